package store

import (
	"errors"

	sqlite "modernc.org/sqlite"
)

// SQLite extended result codes for unique-constraint violations.
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// IsDuplicateKey reports whether err is a unique-index collision. The unique
// index on transaction_blocks(sub_id, block_number, event_name) is the source
// of truth for work-item dedup; callers swallow this error class.
func IsDuplicateKey(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqliteConstraintPrimaryKey || code == sqliteConstraintUnique
}
