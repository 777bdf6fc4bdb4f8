package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the credit ledger row of a tenant.
type Account struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	Tier        PlanTier  `db:"tier" json:"tier"`
	Balance     int64     `db:"balance" json:"balance"`
	Used        int64     `db:"used" json:"used"`
	Carryover   int64     `db:"carryover" json:"carryover"`
	IsAdmin     bool      `db:"is_admin" json:"is_admin"`
	RefreshedAt time.Time `db:"refreshed_at" json:"refreshed_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// NewAccount returns an account on the default tier with its starting allocation.
func NewAccount(email string, now time.Time) *Account {
	return &Account{
		ID:          uuid.New(),
		Email:       email,
		Tier:        DefaultTier,
		Balance:     DefaultTier.Plan().MonthlyAllocation,
		RefreshedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanAfford reports whether the balance covers cost.
func (a *Account) CanAfford(cost int64) bool {
	return a.Balance >= cost
}

// NeedsRefresh reports whether the last refresh happened before the month containing now.
func (a *Account) NeedsRefresh(now time.Time) bool {
	return a.RefreshedAt.Before(MonthStart(now))
}

// MonthStart returns midnight UTC of the first day of the month containing t.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
