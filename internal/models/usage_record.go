package models

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// SnapshotLimit is the maximum number of characters kept for input/output snapshots.
const SnapshotLimit = 500

// UsageRecord is the append-only audit entry of a billed operation.
type UsageRecord struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	AccountID      uuid.UUID  `db:"account_id" json:"account_id"`
	APIKeyID       *uuid.UUID `db:"api_key_id" json:"api_key_id,omitempty"`
	RequestID      string     `db:"request_id" json:"request_id"`
	Operation      string     `db:"operation" json:"operation"`
	InputSnapshot  string     `db:"input_snapshot" json:"input_snapshot"`
	OutputSnapshot string     `db:"output_snapshot" json:"output_snapshot"`
	CreditsCharged int64      `db:"credits_charged" json:"credits_charged"`
	TokensUsed     int        `db:"tokens_used" json:"tokens_used"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Snapshot truncates s to SnapshotLimit characters without splitting a rune.
func Snapshot(s string) string {
	if utf8.RuneCountInString(s) <= SnapshotLimit {
		return s
	}
	n := 0
	for i := range s {
		if n == SnapshotLimit {
			return s[:i]
		}
		n++
	}
	return s
}
