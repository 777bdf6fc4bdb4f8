package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"devclip/internal/models"
)

const accountColumns = `id, email, tier, balance, used, carryover, is_admin, refreshed_at, created_at, updated_at`

// AccountRepository handles account ledger rows
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (id, email, tier, balance, used, carryover, is_admin, refreshed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.conn.ExecContext(ctx, query,
		account.ID, account.Email, account.Tier, account.Balance, account.Used,
		account.Carryover, account.IsAdmin, account.RefreshedAt, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	err := r.db.conn.GetContext(ctx, &account, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// Debit atomically subtracts amount from the balance and adds it to the used
// counter. The row is only touched when the balance covers the amount.
func (r *AccountRepository) Debit(ctx context.Context, id uuid.UUID, amount int64) (*models.Account, error) {
	var account models.Account
	query := `
		UPDATE accounts
		SET balance = balance - $2, used = used + $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING ` + accountColumns

	err := r.db.conn.GetContext(ctx, &account, query, id, amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missingOr(ctx, id, ErrInsufficientBalance)
		}
		return nil, fmt.Errorf("failed to debit account: %w", err)
	}

	return &account, nil
}

// SetPlan changes the tier and resets the balance to allocation
func (r *AccountRepository) SetPlan(ctx context.Context, id uuid.UUID, tier models.PlanTier, allocation int64) (*models.Account, error) {
	var account models.Account
	query := `
		UPDATE accounts
		SET tier = $2, balance = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	err := r.db.conn.GetContext(ctx, &account, query, id, tier, allocation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to set plan: %w", err)
	}

	return &account, nil
}

// Refresh grants the monthly allocation plus the capped carryover in a single
// statement. It only applies while the account is still on tier, so a
// concurrent plan change is reported as ErrTierChanged.
func (r *AccountRepository) Refresh(ctx context.Context, id uuid.UUID, tier models.PlanTier, plan models.Plan, now time.Time) (*models.Account, error) {
	var account models.Account
	query := `
		UPDATE accounts
		SET carryover = LEAST(GREATEST(balance, 0), $3),
		    balance = $4 + LEAST(GREATEST(balance, 0), $3),
		    used = 0,
		    refreshed_at = $5,
		    updated_at = $5
		WHERE id = $1 AND tier = $2
		RETURNING ` + accountColumns

	err := r.db.conn.GetContext(ctx, &account, query, id, tier, plan.CarryoverCap, plan.MonthlyAllocation, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missingOr(ctx, id, ErrTierChanged)
		}
		return nil, fmt.Errorf("failed to refresh account: %w", err)
	}

	return &account, nil
}

// ListDueForRefresh returns up to limit accounts last refreshed before cutoff
func (r *AccountRepository) ListDueForRefresh(ctx context.Context, cutoff time.Time, limit int) ([]*models.Account, error) {
	var accounts []*models.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE refreshed_at < $1 ORDER BY refreshed_at LIMIT $2`

	if err := r.db.conn.SelectContext(ctx, &accounts, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to list accounts due for refresh: %w", err)
	}

	return accounts, nil
}

// missingOr distinguishes a missing row from a failed condition.
func (r *AccountRepository) missingOr(ctx context.Context, id uuid.UUID, conditionErr error) error {
	var exists bool
	err := r.db.conn.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id)
	if err != nil {
		return fmt.Errorf("failed to check account: %w", err)
	}
	if !exists {
		return ErrAccountNotFound
	}
	return conditionErr
}
