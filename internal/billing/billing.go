// Package billing owns the credit ledger: balances, debits, plan changes
// and the monthly allocation refresh.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"devclip/internal/models"
	"devclip/internal/storage"
)

var (
	// ErrInvalidAmount is returned for non-positive debits
	ErrInvalidAmount = errors.New("debit amount must be positive")

	// ErrInvalidEmail is returned when creating an account without a usable email
	ErrInvalidEmail = errors.New("invalid email")
)

// maxRefreshAttempts bounds retries when a refresh races with a plan change
const maxRefreshAttempts = 3

// AccountStore is the persistence contract of the ledger. It is implemented by
// storage.AccountRepository and storage.MemoryAccountRepository.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Debit(ctx context.Context, id uuid.UUID, amount int64) (*models.Account, error)
	SetPlan(ctx context.Context, id uuid.UUID, tier models.PlanTier, allocation int64) (*models.Account, error)
	Refresh(ctx context.Context, id uuid.UUID, tier models.PlanTier, plan models.Plan, now time.Time) (*models.Account, error)
	ListDueForRefresh(ctx context.Context, cutoff time.Time, limit int) ([]*models.Account, error)
}

// Ledger applies credit rules on top of an AccountStore
type Ledger struct {
	store AccountStore
	now   func() time.Time
}

// NewLedger creates a ledger over store
func NewLedger(store AccountStore) *Ledger {
	return &Ledger{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new account on the default tier with its allocation
func (l *Ledger) Create(ctx context.Context, email string) (*models.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}

	account := models.NewAccount(strings.ToLower(email), l.now())
	if err := l.store.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Get returns the account or storage.ErrAccountNotFound
func (l *Ledger) Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	return l.store.GetByID(ctx, accountID)
}

// Balance returns the current balance
func (l *Ledger) Balance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	account, err := l.store.GetByID(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Debit atomically charges amount. It fails with storage.ErrInsufficientBalance
// without any partial effect when the balance does not cover it.
func (l *Ledger) Debit(ctx context.Context, accountID uuid.UUID, amount int64) (*models.Account, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return l.store.Debit(ctx, accountID, amount)
}

// SetPlan moves the account to tier and resets the balance to the tier's
// monthly allocation. There is no pro-rating.
func (l *Ledger) SetPlan(ctx context.Context, accountID uuid.UUID, tier models.PlanTier) (*models.Account, error) {
	if !tier.IsValid() {
		return nil, &InvalidTierError{Tier: tier}
	}
	return l.store.SetPlan(ctx, accountID, tier, tier.Plan().MonthlyAllocation)
}

// MonthlyRefresh grants the tier allocation plus the unused balance up to the
// tier's carryover cap and resets the used counter.
func (l *Ledger) MonthlyRefresh(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	var lastErr error
	for attempt := 0; attempt < maxRefreshAttempts; attempt++ {
		account, err := l.store.GetByID(ctx, accountID)
		if err != nil {
			return nil, err
		}

		refreshed, err := l.store.Refresh(ctx, accountID, account.Tier, account.Tier.Plan(), l.now())
		if err == nil {
			return refreshed, nil
		}
		if !errors.Is(err, storage.ErrTierChanged) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("monthly refresh: %w", lastErr)
}

// DueForRefresh lists accounts not refreshed since the start of the current month
func (l *Ledger) DueForRefresh(ctx context.Context, limit int) ([]*models.Account, error) {
	return l.store.ListDueForRefresh(ctx, models.MonthStart(l.now()), limit)
}

// InvalidTierError reports an unknown tier name
type InvalidTierError struct {
	Tier models.PlanTier
}

func (e *InvalidTierError) Error() string {
	return fmt.Sprintf("unknown plan tier %q (want one of %s)", string(e.Tier), models.TierNames())
}
