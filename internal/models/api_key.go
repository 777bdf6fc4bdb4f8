package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a credential that lets external callers act on behalf of an account.
type APIKey struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	AccountID  uuid.UUID  `db:"account_id" json:"account_id"`
	Label      string     `db:"label" json:"label"`
	KeyHash    string     `db:"key_hash" json:"-"` // SHA-256 hash
	KeyPrefix  string     `db:"key_prefix" json:"key_prefix"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// IsRevoked reports whether the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// IsValid checks if the key may authorize requests
func (k *APIKey) IsValid() bool {
	return !k.IsRevoked()
}
