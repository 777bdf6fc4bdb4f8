package middleware

import (
	"net/http"
	"strconv"

	"devclip/internal/ratelimit"
	"devclip/internal/utils"
)

// RateLimitMiddleware throttles requests per API key using the per-minute
// limit of the account's plan. It must run after APIKeyMiddleware. Limiter
// errors let the request through.
func RateLimitMiddleware(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	logger := utils.NewLogger("rate-limit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, okKey := GetAPIKeyRecord(r.Context())
			account, okAccount := GetAccount(r.Context())
			if !okKey || !okAccount {
				next.ServeHTTP(w, r)
				return
			}

			limit := account.Tier.Plan().RequestsPerMinute
			allowed, remaining, resetAt, err := limiter.AllowWithDetails(r.Context(), key.ID.String(), limit)
			if err != nil {
				logger.Warn("Rate limit check failed", "api_key_id", key.ID, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if remaining >= 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
			}

			if !allowed {
				utils.RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
