package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"devclip/internal/models"
)

const apiKeyColumns = `id, account_id, label, key_hash, key_prefix, created_at, last_used_at, revoked_at`

// APIKeyRepository handles API key database operations
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create inserts a new API key
func (r *APIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (id, account_id, label, key_hash, key_prefix, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.conn.ExecContext(ctx, query,
		key.ID, key.AccountID, key.Label, key.KeyHash, key.KeyPrefix, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}

	return nil
}

// GetByHash retrieves an API key by its hash. Revoked keys are returned too;
// callers decide how to treat them.
func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	if key, ok := r.db.apiKeyCache.Get(keyHash); ok {
		return key, nil
	}

	var key models.APIKey
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`

	err := r.db.conn.GetContext(ctx, &key, query, keyHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	r.db.apiKeyCache.Set(keyHash, &key)
	return &key, nil
}

// ListByAccount returns every key of an account, newest first
func (r *APIKeyRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE account_id = $1 ORDER BY created_at DESC`

	if err := r.db.conn.SelectContext(ctx, &keys, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}

	return keys, nil
}

// CountActive returns the number of non-revoked keys of an account
func (r *APIKeyRepository) CountActive(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM api_keys WHERE account_id = $1 AND revoked_at IS NULL`

	if err := r.db.conn.GetContext(ctx, &count, query, accountID); err != nil {
		return 0, fmt.Errorf("failed to count API keys: %w", err)
	}

	return count, nil
}

// Revoke soft-deletes a key owned by accountID and evicts it from the cache
func (r *APIKeyRepository) Revoke(ctx context.Context, accountID, id uuid.UUID, at time.Time) error {
	var keyHash string
	query := `
		UPDATE api_keys
		SET revoked_at = $3
		WHERE id = $1 AND account_id = $2 AND revoked_at IS NULL
		RETURNING key_hash
	`

	err := r.db.conn.GetContext(ctx, &keyHash, query, id, accountID, at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAPIKeyNotFound
		}
		return fmt.Errorf("failed to revoke API key: %w", err)
	}

	r.db.apiKeyCache.Delete(keyHash)
	return nil
}

// UpdateLastUsed records the time a key last authorized a request
func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`

	result, err := r.db.conn.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrAPIKeyNotFound
	}

	return nil
}
