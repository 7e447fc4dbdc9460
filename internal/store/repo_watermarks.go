package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/web3cache/web3cache/internal/model"
)

// FindWaterMark returns the water-mark document for a contract, or nil when
// no push has ever been accepted for it.
func (s *Store) FindWaterMark(contractID string) (*model.EventWaterMark, error) {
	row := s.db.QueryRow("SELECT contract_id, reset_nonce, marks_json FROM events_info WHERE contract_id = ?", contractID)

	var wm model.EventWaterMark
	var marksJSON string
	err := row.Scan(&wm.ContractID, &wm.ResetNonce, &marksJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find watermark %s: %w", contractID, err)
	}
	if err := json.Unmarshal([]byte(marksJSON), &wm.Marks); err != nil {
		return nil, fmt.Errorf("unmarshal watermark marks: %w", err)
	}
	return &wm, nil
}

// UpsertWaterMark replaces the water-mark document for a contract wholesale.
// The filter computes the full working map, so a reset_nonce advance clears
// every prior mark while a same-nonce push carries unrelated events forward.
func (s *Store) UpsertWaterMark(wm model.EventWaterMark, nowMs int64) error {
	marks := wm.Marks
	if marks == nil {
		marks = map[string]int64{}
	}
	data, err := json.Marshal(marks)
	if err != nil {
		return fmt.Errorf("marshal watermark marks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO events_info (contract_id, reset_nonce, marks_json, updated_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contract_id) DO UPDATE SET
			reset_nonce   = excluded.reset_nonce,
			marks_json    = excluded.marks_json,
			updated_at_ms = excluded.updated_at_ms
	`, wm.ContractID, wm.ResetNonce, string(data), nowMs)
	if err != nil {
		return fmt.Errorf("upsert watermark %s: %w", wm.ContractID, err)
	}
	return nil
}

// DeleteWaterMarksExcept removes water-mark rows whose contract_id is not in
// keep. Used by the janitor to drop state for unregistered contracts.
func (s *Store) DeleteWaterMarksExcept(keep []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keep) == 0 {
		res, err := s.db.Exec("DELETE FROM events_info")
		if err != nil {
			return 0, fmt.Errorf("delete watermarks: %w", err)
		}
		return res.RowsAffected()
	}

	query := "DELETE FROM events_info WHERE contract_id NOT IN (?" +
		repeatPlaceholder(len(keep)-1) + ")"
	args := make([]any, len(keep))
	for i, id := range keep {
		args[i] = id
	}
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete watermarks: %w", err)
	}
	return res.RowsAffected()
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
