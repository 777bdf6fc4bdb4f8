package httpapi

import (
	"errors"
	"net/http"

	"devclip/internal/catalog"
	"devclip/internal/middleware"
	"devclip/internal/pipeline"
	"devclip/internal/utils"
)

// FormatRequest is the body of POST /v1/format
type FormatRequest struct {
	Text      string `json:"text"`
	Operation string `json:"operation"`
	Language  string `json:"language,omitempty"`
}

// AIRequest is the body of POST /v1/ai/{operation}
type AIRequest struct {
	Text string `json:"text"`
}

// OperationResponse is returned by every successful billable call
type OperationResponse struct {
	Success         bool   `json:"success"`
	Operation       string `json:"operation"`
	Result          string `json:"result"`
	TokensUsed      int64  `json:"tokensUsed"`
	TokensRemaining int64  `json:"tokensRemaining"`
	ModelTokens     int    `json:"modelTokens,omitempty"`
}

// OperationInfo is a catalog entry as seen by the calling account
type OperationInfo struct {
	catalog.Definition
	Allowed bool `json:"allowed"`
}

// OperationsResponse is returned by GET /v1/operations
type OperationsResponse struct {
	Operations []OperationInfo `json:"operations"`
}

func (d *Dependencies) handleListOperations(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.GetAccount(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	defs := d.Catalog.List()
	ops := make([]OperationInfo, len(defs))
	for i, def := range defs {
		ops[i] = OperationInfo{Definition: def, Allowed: def.AllowedFor(account.Tier)}
	}
	utils.RespondWithJSON(w, http.StatusOK, OperationsResponse{Operations: ops})
}

func (d *Dependencies) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req FormatRequest
	if !d.decodeBody(w, r, &req, d.FormatMaxBytes) {
		return
	}

	d.execute(w, r, pipeline.Request{
		Category:  catalog.CategoryLocal,
		Operation: req.Operation,
		Text:      req.Text,
		Language:  req.Language,
	})
}

func (d *Dependencies) handleAI(w http.ResponseWriter, r *http.Request) {
	var req AIRequest
	if !d.decodeBody(w, r, &req, d.AIMaxBytes) {
		return
	}

	d.execute(w, r, pipeline.Request{
		Category:  catalog.CategoryAI,
		Operation: r.PathValue("operation"),
		Text:      req.Text,
	})
}

func (d *Dependencies) execute(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	req.Secret = middleware.ExtractAPIKey(r)
	if key, ok := middleware.GetAPIKeyRecord(r.Context()); ok {
		req.Key = key
	}
	req.RequestID = middleware.GetRequestID(r.Context())

	result, err := d.Pipeline.Execute(r.Context(), req)
	if err != nil {
		d.writePipelineError(w, r, req, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, OperationResponse{
		Success:         true,
		Operation:       result.Operation,
		Result:          result.Output,
		TokensUsed:      result.CreditsCharged,
		TokensRemaining: result.CreditsRemaining,
		ModelTokens:     result.Tokens,
	})
}

func (d *Dependencies) writePipelineError(w http.ResponseWriter, r *http.Request, req pipeline.Request, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		perr = &pipeline.Error{Kind: pipeline.KindInternal, Message: "internal error", Err: err}
	}

	switch perr.Kind {
	case pipeline.KindInsufficientBalance:
		utils.RespondWithErrorDetails(w, perr.HTTPStatus(), perr.Message, map[string]interface{}{
			"required":  perr.Required,
			"available": perr.Available,
		})
		return
	case pipeline.KindInternal:
		d.Reporter.Report(r.Context(), req.RequestID, "pipeline internal error", err, map[string]any{
			"operation": req.Operation,
			"path":      r.URL.Path,
		})
	}

	utils.RespondWithError(w, perr.HTTPStatus(), perr.Message)
}

// decodeBody decodes a JSON body capped at maxBytes, writing the error
// response itself on failure
func (d *Dependencies) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, maxBytes int64) bool {
	if err := utils.DecodeJSONBody(w, r, dst, maxBytes); err != nil {
		if errors.Is(err, utils.ErrBodyTooLarge) {
			utils.RespondWithError(w, http.StatusRequestEntityTooLarge, err.Error())
			return false
		}
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
