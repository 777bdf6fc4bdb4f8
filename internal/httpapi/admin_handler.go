package httpapi

import (
	"errors"
	"net/http"
	"time"

	"devclip/internal/auth"
	"devclip/internal/billing"
	"devclip/internal/models"
	"devclip/internal/storage"
	"devclip/internal/utils"
)

const adminBodyMaxBytes = 4 * 1024

// LoginRequest is the body of POST /admin/login
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse carries an admin token
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateAccountRequest is the body of POST /admin/accounts
type CreateAccountRequest struct {
	Email string `json:"email"`
}

// SetPlanRequest is the body of PUT /admin/accounts/{id}/plan
type SetPlanRequest struct {
	Tier string `json:"tier"`
}

func (d *Dependencies) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !d.decodeBody(w, r, &req, adminBodyMaxBytes) {
		return
	}
	if d.AdminPasswordHash == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "admin login is disabled")
		return
	}

	token, expiresAt, err := auth.Login(req.Password, d.AdminPasswordHash, d.JWTSecret)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			utils.RespondWithError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		d.internalError(w, r, "failed to log in", err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
}

func (d *Dependencies) handleAdminCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !d.decodeBody(w, r, &req, adminBodyMaxBytes) {
		return
	}

	account, err := d.Ledger.Create(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidEmail):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, storage.ErrDuplicateEmail):
			utils.RespondWithError(w, http.StatusConflict, err.Error())
		default:
			d.internalError(w, r, "failed to create account", err)
		}
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, newAccountResponse(account))
}

func (d *Dependencies) handleAdminGetAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := d.loadAccount(w, r)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, newAccountResponse(account))
}

func (d *Dependencies) handleAdminSetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req SetPlanRequest
	if !d.decodeBody(w, r, &req, adminBodyMaxBytes) {
		return
	}

	account, err := d.Ledger.SetPlan(r.Context(), id, models.PlanTier(req.Tier))
	if err != nil {
		var tierErr *billing.InvalidTierError
		switch {
		case errors.As(err, &tierErr):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, storage.ErrAccountNotFound):
			utils.RespondWithError(w, http.StatusNotFound, "account not found")
		default:
			d.internalError(w, r, "failed to set plan", err)
		}
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, newAccountResponse(account))
}

func (d *Dependencies) handleAdminRefresh(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	account, err := d.Ledger.MonthlyRefresh(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "account not found")
			return
		}
		d.internalError(w, r, "failed to refresh account", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, newAccountResponse(account))
}

func (d *Dependencies) handleAdminIssueKey(w http.ResponseWriter, r *http.Request) {
	account, ok := d.loadAccount(w, r)
	if !ok {
		return
	}
	var req CreateKeyRequest
	if !d.decodeBody(w, r, &req, adminBodyMaxBytes) {
		return
	}
	d.issueKey(w, r, account, req.Label)
}

func (d *Dependencies) loadAccount(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}

	account, err := d.Ledger.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "account not found")
			return nil, false
		}
		d.internalError(w, r, "failed to load account", err)
		return nil, false
	}
	return account, true
}
