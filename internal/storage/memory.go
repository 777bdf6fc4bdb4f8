package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"devclip/internal/models"
)

// MemoryStore keeps accounts, API keys and usage records in process memory.
// It backs local development (DEVCLIP_STORAGE=memory) and tests.
// Data is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
	keys     map[uuid.UUID]*models.APIKey
	usage    []*models.UsageRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[uuid.UUID]*models.Account),
		keys:     make(map[uuid.UUID]*models.APIKey),
	}
}

// Accounts returns an account repository view of the store
func (s *MemoryStore) Accounts() *MemoryAccountRepository {
	return &MemoryAccountRepository{s: s}
}

// APIKeys returns an API key repository view of the store
func (s *MemoryStore) APIKeys() *MemoryAPIKeyRepository {
	return &MemoryAPIKeyRepository{s: s}
}

// Usage returns a usage repository view of the store
func (s *MemoryStore) Usage() *MemoryUsageRepository {
	return &MemoryUsageRepository{s: s}
}

// MemoryAccountRepository is the in-memory counterpart of AccountRepository
type MemoryAccountRepository struct {
	s *MemoryStore
}

func (r *MemoryAccountRepository) Create(ctx context.Context, account *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.accounts {
		if existing.Email == account.Email {
			return ErrDuplicateEmail
		}
	}
	cp := *account
	r.s.accounts[account.ID] = &cp
	return nil
}

func (r *MemoryAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account, ok := r.s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (r *MemoryAccountRepository) Debit(ctx context.Context, id uuid.UUID, amount int64) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account, ok := r.s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if account.Balance < amount {
		return nil, ErrInsufficientBalance
	}
	account.Balance -= amount
	account.Used += amount
	account.UpdatedAt = time.Now().UTC()
	cp := *account
	return &cp, nil
}

func (r *MemoryAccountRepository) SetPlan(ctx context.Context, id uuid.UUID, tier models.PlanTier, allocation int64) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account, ok := r.s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	account.Tier = tier
	account.Balance = allocation
	account.UpdatedAt = time.Now().UTC()
	cp := *account
	return &cp, nil
}

func (r *MemoryAccountRepository) Refresh(ctx context.Context, id uuid.UUID, tier models.PlanTier, plan models.Plan, now time.Time) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account, ok := r.s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if account.Tier != tier {
		return nil, ErrTierChanged
	}
	account.Balance, account.Carryover = plan.RefreshedBalance(account.Balance)
	account.Used = 0
	account.RefreshedAt = now
	account.UpdatedAt = now
	cp := *account
	return &cp, nil
}

func (r *MemoryAccountRepository) ListDueForRefresh(ctx context.Context, cutoff time.Time, limit int) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var due []*models.Account
	for _, account := range r.s.accounts {
		if account.RefreshedAt.Before(cutoff) {
			cp := *account
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RefreshedAt.Before(due[j].RefreshedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// MemoryAPIKeyRepository is the in-memory counterpart of APIKeyRepository
type MemoryAPIKeyRepository struct {
	s *MemoryStore
}

func (r *MemoryAPIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *key
	r.s.keys[key.ID] = &cp
	return nil
}

func (r *MemoryAPIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, key := range r.s.keys {
		if key.KeyHash == keyHash {
			cp := *key
			return &cp, nil
		}
	}
	return nil, ErrAPIKeyNotFound
}

func (r *MemoryAPIKeyRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.APIKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var keys []*models.APIKey
	for _, key := range r.s.keys {
		if key.AccountID == accountID {
			cp := *key
			keys = append(keys, &cp)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	return keys, nil
}

func (r *MemoryAPIKeyRepository) CountActive(ctx context.Context, accountID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, key := range r.s.keys {
		if key.AccountID == accountID && !key.IsRevoked() {
			count++
		}
	}
	return count, nil
}

func (r *MemoryAPIKeyRepository) Revoke(ctx context.Context, accountID, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key, ok := r.s.keys[id]
	if !ok || key.AccountID != accountID || key.IsRevoked() {
		return ErrAPIKeyNotFound
	}
	key.RevokedAt = &at
	return nil
}

func (r *MemoryAPIKeyRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key, ok := r.s.keys[id]
	if !ok {
		return ErrAPIKeyNotFound
	}
	key.LastUsedAt = &at
	return nil
}

// MemoryUsageRepository is the in-memory counterpart of UsageRepository
type MemoryUsageRepository struct {
	s *MemoryStore
}

func (r *MemoryUsageRepository) Record(ctx context.Context, record *models.UsageRecord) error {
	prepareUsageRecord(record)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *record
	r.s.usage = append(r.s.usage, &cp)
	return nil
}

func (r *MemoryUsageRepository) InsertBatch(ctx context.Context, records []*models.UsageRecord) error {
	for _, record := range records {
		if err := r.Record(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryUsageRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.UsageRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var records []*models.UsageRecord
	for i := len(r.s.usage) - 1; i >= 0; i-- {
		if r.s.usage[i].AccountID != accountID {
			continue
		}
		cp := *r.s.usage[i]
		records = append(records, &cp)
		if limit > 0 && len(records) == limit {
			break
		}
	}
	return records, nil
}
