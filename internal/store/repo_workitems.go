package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/web3cache/web3cache/internal/model"
)

// InsertWorkItems performs an unordered bulk insert: unique-index collisions
// on (sub_id, block_number, event_name) are skipped, the remaining items are
// still inserted, and any other error aborts. Returns the number of rows
// inserted and the number of duplicates skipped.
func (s *Store) InsertWorkItems(items []model.WorkItem) (inserted, duplicates int, err error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("insert work items: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO transaction_blocks (id, sub_id, contract_id, event_name, block_number, transactions_json, locked_until_ms, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("insert work items: prepare: %w", err)
	}
	defer stmt.Close()

	for i := range items {
		item := &items[i]
		txJSON, err := json.Marshal(item.Transactions)
		if err != nil {
			return 0, 0, fmt.Errorf("marshal transactions for item %s: %w", item.ID, err)
		}
		_, err = stmt.Exec(item.ID, item.SubID, item.ContractID, item.EventName,
			item.BlockNumber, string(txJSON), item.LockedUntilMs, item.CreatedAtMs)
		if err != nil {
			if IsDuplicateKey(err) {
				duplicates++
				continue
			}
			return 0, 0, fmt.Errorf("insert work item %s: %w", item.ID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("insert work items: commit: %w", err)
	}
	return inserted, duplicates, nil
}

// AnyWorkPending reports whether at least one work item exists for the
// subscription. One point lookup, no mutation.
func (s *Store) AnyWorkPending(subID string) (bool, error) {
	row := s.db.QueryRow("SELECT 1 FROM transaction_blocks WHERE sub_id = ? LIMIT 1", subID)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pending lookup for %s: %w", subID, err)
	}
	return true, nil
}

// FetchWorkBatch returns up to limit work items for the subscription ordered
// by ascending block number. The dispatcher delivers in this order.
func (s *Store) FetchWorkBatch(subID string, limit int) ([]model.WorkItem, error) {
	rows, err := s.db.Query(`
		SELECT id, sub_id, contract_id, event_name, block_number, transactions_json, locked_until_ms, created_at_ms
		FROM transaction_blocks
		WHERE sub_id = ?
		ORDER BY sub_id ASC, block_number ASC, event_name ASC
		LIMIT ?
	`, subID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch work batch for %s: %w", subID, err)
	}
	defer rows.Close()

	var out []model.WorkItem
	for rows.Next() {
		var item model.WorkItem
		var txJSON string
		if err := rows.Scan(&item.ID, &item.SubID, &item.ContractID, &item.EventName,
			&item.BlockNumber, &txJSON, &item.LockedUntilMs, &item.CreatedAtMs); err != nil {
			return nil, fmt.Errorf("scan work item: %w", err)
		}
		if err := json.Unmarshal([]byte(txJSON), &item.Transactions); err != nil {
			return nil, fmt.Errorf("unmarshal transactions for item %s: %w", item.ID, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ClaimWorkItem attempts to take the delivery lease on one work item:
// an atomic conditional update that succeeds only when the current lease has
// lapsed. The claimant holds the lease iff the returned bool is true.
func (s *Store) ClaimWorkItem(id string, nowMs, untilMs int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE transaction_blocks SET locked_until_ms = ?
		WHERE id = ? AND locked_until_ms <= ?
	`, untilMs, id, nowMs)
	if err != nil {
		return false, fmt.Errorf("claim work item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim work item %s: rows affected: %w", id, err)
	}
	return n == 1, nil
}

// ExtendLeases moves locked_until_ms forward for the given items. Called by
// the lease holder right before deleting acknowledged items, so a crash
// between the two steps leaves them invisible until the window lapses.
func (s *Store) ExtendLeases(ids []string, untilMs int64) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := "UPDATE transaction_blocks SET locked_until_ms = ? WHERE id IN (?" +
		repeatPlaceholder(len(ids)-1) + ")"
	args := make([]any, 0, len(ids)+1)
	args = append(args, untilMs)
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("extend leases: %w", err)
	}
	return nil
}

// ReleaseWorkItem resets the lease so the item is immediately
// re-dispatchable.
func (s *Store) ReleaseWorkItem(id string, nowMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("UPDATE transaction_blocks SET locked_until_ms = ? WHERE id = ?", nowMs, id); err != nil {
		return fmt.Errorf("release work item %s: %w", id, err)
	}
	return nil
}

// DeleteWorkItems removes acknowledged items by id.
func (s *Store) DeleteWorkItems(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := "DELETE FROM transaction_blocks WHERE id IN (?" +
		repeatPlaceholder(len(ids)-1) + ")"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("delete work items: %w", err)
	}
	return nil
}

// DeleteWorkItemsBySub removes every work item addressed to a subscription.
// Used for orphan garbage collection when the subscription document is gone.
func (s *Store) DeleteWorkItemsBySub(subID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM transaction_blocks WHERE sub_id = ?", subID)
	if err != nil {
		return 0, fmt.Errorf("delete work items for %s: %w", subID, err)
	}
	return res.RowsAffected()
}

// PendingSubIDs returns the distinct subscription ids that currently have
// work items. The dispatcher refills its queue from this list, which may
// include ids whose subscription document is gone; those are garbage
// collected on first dispatch attempt.
func (s *Store) PendingSubIDs() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT sub_id FROM transaction_blocks ORDER BY sub_id")
	if err != nil {
		return nil, fmt.Errorf("pending sub ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending sub id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CountWorkItems returns the total backlog size.
func (s *Store) CountWorkItems() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM transaction_blocks").Scan(&n); err != nil {
		return 0, fmt.Errorf("count work items: %w", err)
	}
	return n, nil
}
