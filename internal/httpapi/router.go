// Package httpapi exposes the pipeline, self-service and admin endpoints over
// HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"devclip/internal/auth"
	"devclip/internal/billing"
	"devclip/internal/catalog"
	"devclip/internal/logging"
	"devclip/internal/middleware"
	"devclip/internal/models"
	"devclip/internal/pipeline"
	"devclip/internal/ratelimit"
	"devclip/internal/storage"
	"devclip/internal/utils"
)

// envelopeBytes is the allowance for JSON framing on top of the text cap
const envelopeBytes = 16 * 1024

// UsageLister reads an account's recent usage records
type UsageLister interface {
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.UsageRecord, error)
}

// HealthChecker reports backend health
type HealthChecker func(ctx context.Context) error

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Pipeline  *pipeline.Pipeline
	Catalog   *catalog.Catalog
	Keys      *auth.KeyService
	Ledger    *billing.Ledger
	Usage     UsageLister
	RateLimit ratelimit.Limiter
	Reporter  *logging.ErrorReporter

	JWTSecret         []byte
	AdminPasswordHash string

	// Body caps in bytes, text plus envelope
	FormatMaxBytes int64
	AIMaxBytes     int64

	Health HealthChecker

	// Operator views, nil when the component is not running
	DBStats    func() storage.DBStats
	UsageQueue UsageQueueInspector
}

// NewRouter creates an HTTP handler with all routes registered
func NewRouter(deps *Dependencies) http.Handler {
	if deps.RateLimit == nil {
		deps.RateLimit = ratelimit.NewNoopLimiter()
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	if deps.Reporter == nil {
		deps.Reporter = logging.NewErrorReporter(nil, "httpapi", "")
	}
	if deps.FormatMaxBytes <= 0 {
		deps.FormatMaxBytes = pipeline.DefaultLocalMaxBytes
	}
	if deps.AIMaxBytes <= 0 {
		deps.AIMaxBytes = pipeline.DefaultAIMaxBytes
	}
	deps.FormatMaxBytes += envelopeBytes
	deps.AIMaxBytes += envelopeBytes

	mux := http.NewServeMux()
	registerRoutes(mux, deps)
	return middleware.RequestID(mux)
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Billable operations. The key resolved by the middleware feeds the
	// per-plan rate limiter and is handed to the pipeline.
	throttled := func(h http.HandlerFunc) http.Handler {
		return middleware.APIKeyMiddleware(deps.Keys, deps.Ledger)(
			middleware.RateLimitMiddleware(deps.RateLimit)(h))
	}
	mux.Handle("POST /v1/format", throttled(deps.handleFormat))
	mux.Handle("POST /v1/ai/{operation}", throttled(deps.handleAI))

	// Self-service, API key authenticated
	apiKey := middleware.APIKeyMiddleware(deps.Keys, deps.Ledger)
	mux.Handle("GET /v1/account", apiKey(http.HandlerFunc(deps.handleAccount)))
	mux.Handle("GET /v1/keys", apiKey(http.HandlerFunc(deps.handleListKeys)))
	mux.Handle("POST /v1/keys", apiKey(http.HandlerFunc(deps.handleCreateKey)))
	mux.Handle("DELETE /v1/keys/{id}", apiKey(http.HandlerFunc(deps.handleRevokeKey)))
	mux.Handle("GET /v1/usage", apiKey(http.HandlerFunc(deps.handleUsage)))
	mux.Handle("GET /v1/operations", apiKey(http.HandlerFunc(deps.handleListOperations)))

	// Admin authentication endpoint - public
	mux.HandleFunc("POST /admin/login", deps.handleAdminLogin)

	viewer := middleware.AdminJWTMiddleware(deps.JWTSecret, auth.RoleViewer)
	admin := middleware.AdminJWTMiddleware(deps.JWTSecret, auth.RoleAdmin)
	mux.Handle("GET /admin/accounts/{id}", viewer(http.HandlerFunc(deps.handleAdminGetAccount)))
	mux.Handle("POST /admin/accounts", admin(http.HandlerFunc(deps.handleAdminCreateAccount)))
	mux.Handle("PUT /admin/accounts/{id}/plan", admin(http.HandlerFunc(deps.handleAdminSetPlan)))
	mux.Handle("POST /admin/accounts/{id}/refresh", admin(http.HandlerFunc(deps.handleAdminRefresh)))
	mux.Handle("POST /admin/accounts/{id}/keys", admin(http.HandlerFunc(deps.handleAdminIssueKey)))
	mux.Handle("GET /admin/stats", viewer(http.HandlerFunc(deps.handleAdminStats)))
	mux.Handle("GET /admin/usage-queue/dead-letters", viewer(http.HandlerFunc(deps.handleListDeadLetters)))
	mux.Handle("POST /admin/usage-queue/dead-letters/{id}/retry", admin(http.HandlerFunc(deps.handleRetryDeadLetter)))

	// Health check endpoint - public
	mux.HandleFunc("GET /health", deps.handleHealth)
}

func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	if d.Health != nil {
		if err := d.Health(r.Context()); err != nil {
			utils.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathUUID parses a UUID path value, writing a 400 on failure
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
