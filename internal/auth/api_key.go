package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"devclip/internal/models"
	"devclip/internal/storage"
	"devclip/internal/utils"
)

// maxLabelLength bounds the free-text label of a key
const maxLabelLength = 100

// KeyStore persists API key records. It is implemented by
// storage.APIKeyRepository and storage.MemoryAPIKeyRepository.
type KeyStore interface {
	Create(ctx context.Context, key *models.APIKey) error
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.APIKey, error)
	CountActive(ctx context.Context, accountID uuid.UUID) (int, error)
	Revoke(ctx context.Context, accountID, id uuid.UUID, at time.Time) error
	UpdateLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// IssuedKey is a freshly created key. Secret is only available here.
type IssuedKey struct {
	Key    *models.APIKey `json:"key"`
	Secret string         `json:"secret"`
}

// KeyService resolves and manages API keys
type KeyService struct {
	store  KeyStore
	logger *utils.Logger
	now    func() time.Time
}

// NewKeyService creates a key service over store
func NewKeyService(store KeyStore) *KeyService {
	return &KeyService{
		store:  store,
		logger: utils.NewLogger("auth"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Resolve maps a presented secret to its active key record. Malformed secrets
// are rejected before storage is touched; revoked keys look like unknown ones.
func (s *KeyService) Resolve(ctx context.Context, secret string) (*models.APIKey, error) {
	if err := ValidateKeyFormat(secret); err != nil {
		return nil, err
	}

	key, err := s.store.GetByHash(ctx, HashKey(secret))
	if err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("resolve API key: %w", err)
	}
	if !key.IsValid() {
		return nil, ErrKeyNotFound
	}

	if err := s.store.UpdateLastUsed(ctx, key.ID, s.now()); err != nil {
		s.logger.Warn("Failed to update key last use", "api_key_id", key.ID, "error", err)
	}

	return key, nil
}

// Issue creates a new key for an account on tier, enforcing the tier's key limit
func (s *KeyService) Issue(ctx context.Context, accountID uuid.UUID, tier models.PlanTier, label string) (*IssuedKey, error) {
	label = strings.TrimSpace(label)
	if len(label) > maxLabelLength {
		label = label[:maxLabelLength]
	}

	active, err := s.store.CountActive(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("issue API key: %w", err)
	}
	if active >= tier.Plan().MaxKeys {
		return nil, ErrKeyLimitReached
	}

	secret, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	key := &models.APIKey{
		ID:        uuid.New(),
		AccountID: accountID,
		Label:     label,
		KeyHash:   HashKey(secret),
		KeyPrefix: DisplayPrefix(secret),
		CreatedAt: s.now(),
	}
	if err := s.store.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("issue API key: %w", err)
	}

	s.logger.Info("API key issued", "account_id", accountID, "api_key_id", key.ID)
	return &IssuedKey{Key: key, Secret: secret}, nil
}

// List returns all keys of an account, revoked ones included
func (s *KeyService) List(ctx context.Context, accountID uuid.UUID) ([]*models.APIKey, error) {
	return s.store.ListByAccount(ctx, accountID)
}

// Revoke soft-deletes a key owned by accountID
func (s *KeyService) Revoke(ctx context.Context, accountID, keyID uuid.UUID) error {
	if err := s.store.Revoke(ctx, accountID, keyID, s.now()); err != nil {
		if errors.Is(err, storage.ErrAPIKeyNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("revoke API key: %w", err)
	}
	s.logger.Info("API key revoked", "account_id", accountID, "api_key_id", keyID)
	return nil
}
