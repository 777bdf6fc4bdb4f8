package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devclip/internal/auth"
	"devclip/internal/billing"
	"devclip/internal/models"
	"devclip/internal/storage"
)

type keyFixture struct {
	keys    *auth.KeyService
	ledger  *billing.Ledger
	account *models.Account
	secret  string
}

func newKeyFixture(t *testing.T) *keyFixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()

	f := &keyFixture{
		keys:   auth.NewKeyService(store.APIKeys()),
		ledger: billing.NewLedger(store.Accounts()),
	}
	account, err := f.ledger.Create(ctx, "dev@example.com")
	require.NoError(t, err)
	issued, err := f.keys.Issue(ctx, account.ID, account.Tier, "ci")
	require.NoError(t, err)

	f.account = account
	f.secret = issued.Secret
	return f
}

func TestAPIKeyMiddleware_Success(t *testing.T) {
	f := newKeyFixture(t)
	handler := APIKeyMiddleware(f.keys, f.ledger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record, ok := GetAPIKeyRecord(r.Context())
		if !ok {
			t.Error("API key record not found in context")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		account, ok := GetAccount(r.Context())
		if !ok {
			t.Error("account not found in context")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		assert.Equal(t, f.account.ID, record.AccountID)
		assert.Equal(t, f.account.ID, account.ID)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("with X-API-Key header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/account", nil)
		req.Header.Set("X-API-Key", f.secret)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("with Bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/account", nil)
		req.Header.Set("Authorization", "Bearer "+f.secret)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAPIKeyMiddleware_Rejections(t *testing.T) {
	f := newKeyFixture(t)

	revoked, err := f.keys.Resolve(context.Background(), f.secret)
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		revoke     bool
	}{
		{name: "missing key"},
		{name: "Bearer with no token", authHeader: "Bearer "},
		{name: "malformed Bearer", authHeader: "Bearer" + f.secret},
		{name: "different auth scheme", authHeader: "Basic abc123"},
		{name: "malformed key", authHeader: "Bearer invalid-key-12345"},
		{name: "unknown key", authHeader: "Bearer dcp_" + "0123456789abcdef0123456789abcdef0123456789abcdef"},
		{name: "revoked key", authHeader: "Bearer " + f.secret, revoke: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.revoke {
				require.NoError(t, f.keys.Revoke(context.Background(), f.account.ID, revoked.ID))
			}

			handler := APIKeyMiddleware(f.keys, f.ledger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("next handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/account", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestGetAPIKeyRecord(t *testing.T) {
	t.Run("record not in context", func(t *testing.T) {
		_, ok := GetAPIKeyRecord(context.Background())
		assert.False(t, ok)
	})

	t.Run("wrong type in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), APIKeyRecordKey, "not-a-record")
		_, ok := GetAPIKeyRecord(ctx)
		assert.False(t, ok)
	})
}

func TestExtractAPIKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", " dcp_x ")
	req.Header.Set("Authorization", "Bearer dcp_y")
	assert.Equal(t, "dcp_x", ExtractAPIKey(req))

	req.Header.Del("X-API-Key")
	assert.Equal(t, "dcp_y", ExtractAPIKey(req))
}
