package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"devclip/internal/auth"
	"devclip/internal/models"
	"devclip/internal/storage"
	"devclip/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

const (
	// APIKeyRecordKey is the context key for the authenticated API key record
	APIKeyRecordKey ContextKey = "apiKeyRecord"

	// AccountKey is the context key for the account owning the API key
	AccountKey ContextKey = "account"
)

// KeyResolver maps a presented secret to an active key
type KeyResolver interface {
	Resolve(ctx context.Context, secret string) (*models.APIKey, error)
}

// AccountLoader loads the account owning a key
type AccountLoader interface {
	Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
}

// ExtractAPIKey returns the key from X-API-Key or an "Authorization: Bearer" header
func ExtractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// APIKeyMiddleware validates API keys and adds the key record and its account
// to the request context
func APIKeyMiddleware(keys KeyResolver, accounts AccountLoader) func(http.Handler) http.Handler {
	logger := utils.NewLogger("api-key-middleware")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := ExtractAPIKey(r)
			if apiKey == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing API key")
				return
			}

			ctx := r.Context()
			keyRecord, err := keys.Resolve(ctx, apiKey)
			if err != nil {
				if errors.Is(err, auth.ErrKeyNotFound) || errors.Is(err, auth.ErrMalformedKey) {
					utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
					return
				}
				logger.Error("Failed to resolve API key", "error", err)
				utils.RespondWithError(w, http.StatusInternalServerError, "Error validating API key")
				return
			}

			account, err := accounts.Get(ctx, keyRecord.AccountID)
			if err != nil {
				if errors.Is(err, storage.ErrAccountNotFound) {
					utils.RespondWithError(w, http.StatusUnauthorized, "Invalid API key")
					return
				}
				logger.Error("Failed to load account", "account_id", keyRecord.AccountID, "error", err)
				utils.RespondWithError(w, http.StatusInternalServerError, "Error loading account")
				return
			}

			ctx = context.WithValue(ctx, APIKeyRecordKey, keyRecord)
			ctx = context.WithValue(ctx, AccountKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAPIKeyRecord retrieves the API key record from the request context
func GetAPIKeyRecord(ctx context.Context) (*models.APIKey, bool) {
	record, ok := ctx.Value(APIKeyRecordKey).(*models.APIKey)
	return record, ok
}

// GetAccount retrieves the account from the request context
func GetAccount(ctx context.Context) (*models.Account, bool) {
	account, ok := ctx.Value(AccountKey).(*models.Account)
	return account, ok
}
