package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"devclip/internal/models"
)

const insertUsageQuery = `
	INSERT INTO usage_records (
		id, account_id, api_key_id, request_id, operation,
		input_snapshot, output_snapshot, credits_charged, tokens_used, created_at
	) VALUES (
		:id, :account_id, :api_key_id, :request_id, :operation,
		:input_snapshot, :output_snapshot, :credits_charged, :tokens_used, :created_at
	)
`

// UsageRepository handles usage record database operations
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Record inserts a usage record
func (r *UsageRepository) Record(ctx context.Context, record *models.UsageRecord) error {
	prepareUsageRecord(record)
	if _, err := r.db.conn.NamedExecContext(ctx, insertUsageQuery, record); err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}
	return nil
}

// InsertBatch inserts records in a single transaction
func (r *UsageRepository) InsertBatch(ctx context.Context, records []*models.UsageRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, record := range records {
		prepareUsageRecord(record)
		if _, err := tx.NamedExecContext(ctx, insertUsageQuery, record); err != nil {
			return fmt.Errorf("failed to insert usage record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByAccount returns the most recent usage records of an account
func (r *UsageRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.UsageRecord, error) {
	var records []*models.UsageRecord
	query := `
		SELECT id, account_id, api_key_id, request_id, operation, input_snapshot,
		       output_snapshot, credits_charged, tokens_used, created_at
		FROM usage_records
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	if err := r.db.conn.SelectContext(ctx, &records, query, accountID, limit); err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}

	return records, nil
}

func prepareUsageRecord(record *models.UsageRecord) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.InputSnapshot = models.Snapshot(record.InputSnapshot)
	record.OutputSnapshot = models.Snapshot(record.OutputSnapshot)
}
