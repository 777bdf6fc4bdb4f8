package billing

import (
	"context"
	"time"

	"devclip/internal/utils"
)

// refreshBatchSize is the number of accounts refreshed per query
const refreshBatchSize = 100

// RefreshWorker periodically applies the monthly refresh to every account
// that has not been refreshed since the start of the current month.
type RefreshWorker struct {
	ledger      *Ledger
	interval    time.Duration
	logger      *utils.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewRefreshWorker creates a refresh worker ticking every interval
func NewRefreshWorker(ledger *Ledger, interval time.Duration) *RefreshWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RefreshWorker{
		ledger:      ledger,
		interval:    interval,
		logger:      utils.NewLogger("refresh-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval
func (w *RefreshWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop waits for the current pass to finish
func (w *RefreshWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

func (w *RefreshWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Refresh worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("Refresh worker context cancelled")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes all due accounts and returns how many were refreshed.
// Failed accounts are logged and skipped until the next pass.
func (w *RefreshWorker) RunOnce(ctx context.Context) int {
	refreshed := 0
	failed := make(map[string]bool)

	for ctx.Err() == nil {
		limit := refreshBatchSize + len(failed)
		due, err := w.ledger.DueForRefresh(ctx, limit)
		if err != nil {
			w.logger.Error("Failed to list accounts due for refresh", "error", err)
			return refreshed
		}

		progressed := false
		for _, account := range due {
			if failed[account.ID.String()] {
				continue
			}
			if _, err := w.ledger.MonthlyRefresh(ctx, account.ID); err != nil {
				w.logger.Error("Monthly refresh failed", "account_id", account.ID, "error", err)
				failed[account.ID.String()] = true
				continue
			}
			refreshed++
			progressed = true
		}

		if !progressed || len(due) < limit {
			break
		}
	}

	if refreshed > 0 || len(failed) > 0 {
		w.logger.Info("Monthly refresh pass complete", "refreshed", refreshed, "failed", len(failed))
	}
	return refreshed
}
