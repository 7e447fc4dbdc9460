package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/web3cache/web3cache/internal/model"
)

// InsertSubscription persists a subscription. The registration service owns
// subscription lifecycle; this method exists for collaborators sharing the
// store and for tests.
func (s *Store) InsertSubscription(sub model.Subscription) error {
	topics, err := json.Marshal(sub.Topics)
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO subscriptions (sub_id, api_key, contract_id, url, topics_json, is_active, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sub.SubID, sub.APIKey, sub.ContractID, sub.URL, string(topics),
		boolToInt(sub.IsActive), sub.CreatedAtMs, sub.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("insert subscription %s: %w", sub.SubID, err)
	}
	return nil
}

// DeleteSubscription removes a subscription document. Work items addressed to
// it become orphans and are harvested lazily by the dispatcher.
func (s *Store) DeleteSubscription(subID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM subscriptions WHERE sub_id = ?", subID); err != nil {
		return fmt.Errorf("delete subscription %s: %w", subID, err)
	}
	return nil
}

// SetSubscriptionActive flips the isActive flag.
func (s *Store) SetSubscriptionActive(subID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("UPDATE subscriptions SET is_active = ? WHERE sub_id = ?", boolToInt(active), subID); err != nil {
		return fmt.Errorf("set subscription %s active=%v: %w", subID, active, err)
	}
	return nil
}

// FindSubscription returns the subscription with the given id, or nil when it
// does not exist.
func (s *Store) FindSubscription(subID string) (*model.Subscription, error) {
	row := s.db.QueryRow(`
		SELECT sub_id, api_key, contract_id, url, topics_json, is_active, created_at_ms, updated_at_ms
		FROM subscriptions WHERE sub_id = ?
	`, subID)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find subscription %s: %w", subID, err)
	}
	return sub, nil
}

// FindActiveSubscriptionsByContract returns every active subscription on the
// given contract, in stable sub_id order.
func (s *Store) FindActiveSubscriptionsByContract(contractID string) ([]model.Subscription, error) {
	rows, err := s.db.Query(`
		SELECT sub_id, api_key, contract_id, url, topics_json, is_active, created_at_ms, updated_at_ms
		FROM subscriptions WHERE contract_id = ? AND is_active = 1
		ORDER BY sub_id ASC
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("find active subscriptions for %s: %w", contractID, err)
	}
	defer rows.Close()

	var out []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	var sub model.Subscription
	var topicsJSON string
	var active int
	if err := row.Scan(&sub.SubID, &sub.APIKey, &sub.ContractID, &sub.URL,
		&topicsJSON, &active, &sub.CreatedAtMs, &sub.UpdatedAtMs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(topicsJSON), &sub.Topics); err != nil {
		return nil, fmt.Errorf("unmarshal topics: %w", err)
	}
	sub.IsActive = active != 0
	return &sub, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
