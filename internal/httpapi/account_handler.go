package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"devclip/internal/auth"
	"devclip/internal/middleware"
	"devclip/internal/models"
	"devclip/internal/utils"
)

const (
	defaultUsageLimit = 50
	maxUsageLimit     = 500
	keyBodyMaxBytes   = 4 * 1024
)

// AccountResponse is the self-service view of an account
type AccountResponse struct {
	ID                string          `json:"id"`
	Email             string          `json:"email"`
	Tier              models.PlanTier `json:"tier"`
	Balance           int64           `json:"balance"`
	Used              int64           `json:"used"`
	Carryover         int64           `json:"carryover"`
	MonthlyAllocation int64           `json:"monthly_allocation"`
	RefreshedAt       string          `json:"refreshed_at"`
	RefreshDue        bool            `json:"refresh_due"`
}

// CreateKeyRequest is the body of POST /v1/keys and the admin equivalent
type CreateKeyRequest struct {
	Label string `json:"label"`
}

func newAccountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:                a.ID.String(),
		Email:             a.Email,
		Tier:              a.Tier,
		Balance:           a.Balance,
		Used:              a.Used,
		Carryover:         a.Carryover,
		MonthlyAllocation: a.Tier.Plan().MonthlyAllocation,
		RefreshedAt:       a.RefreshedAt.Format(time.RFC3339),
		RefreshDue:        a.NeedsRefresh(time.Now()),
	}
}

func (d *Dependencies) handleAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.GetAccount(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, newAccountResponse(account))
}

func (d *Dependencies) handleListKeys(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.GetAccount(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	keys, err := d.Keys.List(r.Context(), account.ID)
	if err != nil {
		d.internalError(w, r, "failed to list API keys", err)
		return
	}
	if keys == nil {
		keys = []*models.APIKey{}
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"keys": keys})
}

func (d *Dependencies) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.GetAccount(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateKeyRequest
	if !d.decodeBody(w, r, &req, keyBodyMaxBytes) {
		return
	}
	d.issueKey(w, r, account, req.Label)
}

func (d *Dependencies) issueKey(w http.ResponseWriter, r *http.Request, account *models.Account, label string) {
	issued, err := d.Keys.Issue(r.Context(), account.ID, account.Tier, label)
	if err != nil {
		if errors.Is(err, auth.ErrKeyLimitReached) {
			utils.RespondWithError(w, http.StatusForbidden, err.Error())
			return
		}
		d.internalError(w, r, "failed to issue API key", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, issued)
}

func (d *Dependencies) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.GetAccount(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	keyID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := d.Keys.Revoke(r.Context(), account.ID, keyID); err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "API key not found")
			return
		}
		d.internalError(w, r, "failed to revoke API key", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Dependencies) handleUsage(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.GetAccount(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := defaultUsageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxUsageLimit)
	}

	records, err := d.Usage.ListByAccount(r.Context(), account.ID, limit)
	if err != nil {
		d.internalError(w, r, "failed to list usage", err)
		return
	}
	if records == nil {
		records = []*models.UsageRecord{}
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"usage": records})
}

// internalError reports err and writes a generic 500
func (d *Dependencies) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	d.Reporter.Report(r.Context(), middleware.GetRequestID(r.Context()), message, err, map[string]any{
		"path": r.URL.Path,
	})
	utils.RespondWithError(w, http.StatusInternalServerError, message)
}
