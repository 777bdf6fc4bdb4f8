package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"devclip/internal/auth"
	"devclip/internal/middleware"
	"devclip/internal/models"
	"devclip/internal/queue"
	"devclip/internal/storage"
	"devclip/internal/utils"
)

const (
	defaultDeadLetterLimit = 100
	maxDeadLetterLimit     = 1000
)

// UsageQueueInspector exposes the async usage queue to operators
type UsageQueueInspector interface {
	QueueLength(ctx context.Context) (int, error)
	DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem[*models.UsageRecord], error)
	RetryDeadLetterItem(ctx context.Context, id string) error
}

// StatsResponse is returned by GET /admin/stats. Absent components are null.
type StatsResponse struct {
	Database         *storage.DBStats `json:"database"`
	UsageQueueLength *int             `json:"usage_queue_length"`
}

// DeadLetterResponse is returned by GET /admin/usage-queue/dead-letters
type DeadLetterResponse struct {
	Items []queue.DeadLetterItem[*models.UsageRecord] `json:"items"`
}

func (d *Dependencies) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	var resp StatsResponse
	if d.DBStats != nil {
		stats := d.DBStats()
		resp.Database = &stats
	}
	if d.UsageQueue != nil {
		length, err := d.UsageQueue.QueueLength(r.Context())
		if err != nil {
			d.internalError(w, r, "failed to read usage queue length", err)
			return
		}
		resp.UsageQueueLength = &length
	}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (d *Dependencies) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if d.UsageQueue == nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "async usage logging is not enabled")
		return
	}

	limit := defaultDeadLetterLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxDeadLetterLimit)
	}

	items, err := d.UsageQueue.DeadLetterItems(r.Context(), limit)
	if err != nil {
		d.internalError(w, r, "failed to list dead letters", err)
		return
	}
	if items == nil {
		items = []queue.DeadLetterItem[*models.UsageRecord]{}
	}

	// Snapshots hold customer input; only admins see them
	if !middleware.HasRole(r.Context(), auth.RoleAdmin) {
		for i := range items {
			if items[i].Item == nil {
				continue
			}
			redacted := *items[i].Item
			redacted.InputSnapshot = ""
			redacted.OutputSnapshot = ""
			items[i].Item = &redacted
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, DeadLetterResponse{Items: items})
}

func (d *Dependencies) handleRetryDeadLetter(w http.ResponseWriter, r *http.Request) {
	if d.UsageQueue == nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "async usage logging is not enabled")
		return
	}

	err := d.UsageQueue.RetryDeadLetterItem(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, queue.ErrItemNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "dead letter not found")
			return
		}
		d.internalError(w, r, "failed to retry dead letter", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
