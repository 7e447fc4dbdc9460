package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/web3cache/web3cache/internal/model"
)

// InsertContract persists a contract document. Contracts are created by the
// registration service; the core only reads them.
func (s *Store) InsertContract(c model.Contract) error {
	events, err := json.Marshal(c.Events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO contracts (contract_id, network, address, events_json, status, creation_block)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ContractID, c.Network, c.Address, string(events), string(c.Status), c.CreationBlock)
	if err != nil {
		return fmt.Errorf("insert contract %s: %w", c.ContractID, err)
	}
	return nil
}

// FindContract returns the contract with the given id, or nil when absent.
func (s *Store) FindContract(contractID string) (*model.Contract, error) {
	row := s.db.QueryRow(`
		SELECT contract_id, network, address, events_json, status, creation_block
		FROM contracts WHERE contract_id = ?
	`, contractID)

	var c model.Contract
	var eventsJSON, status string
	err := row.Scan(&c.ContractID, &c.Network, &c.Address, &eventsJSON, &status, &c.CreationBlock)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find contract %s: %w", contractID, err)
	}
	if err := json.Unmarshal([]byte(eventsJSON), &c.Events); err != nil {
		return nil, fmt.Errorf("unmarshal contract events: %w", err)
	}
	c.Status = model.ContractStatus(status)
	return &c, nil
}

// ContractIDs returns all registered contract ids.
func (s *Store) ContractIDs() ([]string, error) {
	rows, err := s.db.Query("SELECT contract_id FROM contracts")
	if err != nil {
		return nil, fmt.Errorf("list contract ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan contract id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
