package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devclip/internal/models"
	"devclip/internal/queue"
	"devclip/internal/utils"
)

// usageEnqueueTimeout bounds how long a request waits on a full queue
const usageEnqueueTimeout = 50 * time.Millisecond

// ErrUsageQueueFull is returned by Record when the queue stays full
var ErrUsageQueueFull = errors.New("usage queue full")

// UsageWriter persists usage records
type UsageWriter interface {
	Record(ctx context.Context, record *models.UsageRecord) error
	InsertBatch(ctx context.Context, records []*models.UsageRecord) error
}

// UsageQueueWorker drains queued usage records into storage in batches.
// A failed batch falls back to per-record inserts with retries, and records
// that still fail are moved to the dead letter queue.
type UsageQueueWorker struct {
	queue       queue.Queue[*models.UsageRecord]
	dlq         queue.DeadLetterQueue[*models.UsageRecord]
	writer      UsageWriter
	config      *queue.Config
	logger      *utils.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewUsageQueueWorker creates a new usage queue worker
func NewUsageQueueWorker(q queue.Queue[*models.UsageRecord], dlq queue.DeadLetterQueue[*models.UsageRecord], writer UsageWriter, config *queue.Config) *UsageQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}

	return &UsageQueueWorker{
		queue:       q,
		dlq:         dlq,
		writer:      writer,
		config:      config,
		logger:      utils.NewLogger("usage-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *UsageQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop stops the worker after draining what is already queued
func (w *UsageQueueWorker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Record enqueues a usage record. It satisfies the same contract as the
// synchronous repositories so the pipeline does not know which one it uses.
// A full queue drops the record after a short wait.
func (w *UsageQueueWorker) Record(ctx context.Context, record *models.UsageRecord) error {
	ctx, cancel := context.WithTimeout(ctx, usageEnqueueTimeout)
	defer cancel()

	if err := w.queue.Enqueue(ctx, record); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			w.logger.Warn("Dropped usage record, queue full", "request_id", record.RequestID, "account_id", record.AccountID)
			return ErrUsageQueueFull
		}
		return err
	}
	return nil
}

func (w *UsageQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.drain()
			w.logger.Info("Usage worker stopped")
			return
		case <-ctx.Done():
			w.logger.Info("Usage worker context cancelled")
			return
		default:
			if err := w.processBatch(ctx); errors.Is(err, queue.ErrQueueClosed) {
				w.logger.Info("Usage queue closed, worker exiting")
				return
			}
		}
	}
}

// drain flushes the remaining items with a bounded deadline
func (w *UsageQueueWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for ctx.Err() == nil {
		length, err := w.queue.Length(ctx)
		if err != nil || length == 0 {
			return
		}
		if err := w.processBatch(ctx); err != nil {
			return
		}
	}
}

func (w *UsageQueueWorker) processBatch(ctx context.Context) error {
	records, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		if errors.Is(err, queue.ErrQueueClosed) || errors.Is(err, context.Canceled) {
			return err
		}
		w.logger.Error("Failed to dequeue usage records", "error", err)
		time.Sleep(time.Second)
		return nil
	}

	if len(records) == 0 {
		return nil
	}

	if err := w.writer.InsertBatch(ctx, records); err != nil {
		w.logger.Error("Failed to insert batch, falling back to individual inserts", "error", err, "count", len(records))
		for _, record := range records {
			if err := w.processItem(ctx, record); err != nil {
				w.logger.Error("Failed to process usage record", "request_id", record.RequestID, "error", err)
			}
		}
		return nil
	}

	w.logger.Debug("Inserted usage batch", "count", len(records))
	return nil
}

// processItem inserts a single record with retries and dead-letters it on failure
func (w *UsageQueueWorker) processItem(ctx context.Context, record *models.UsageRecord) error {
	policy := utils.RetryPolicy{
		MaxAttempts:    w.config.MaxRetries + 1,
		InitialBackoff: w.config.RetryBackoff,
		Retryable:      func(error) bool { return true },
	}

	err := utils.Retry(ctx, policy, func(ctx context.Context) error {
		return w.writer.Record(ctx, record)
	})
	if err == nil {
		return nil
	}

	if w.dlq != nil {
		if dlqErr := w.dlq.Add(ctx, record, err); dlqErr != nil {
			w.logger.Error("Failed to add to dead letter queue", "error", dlqErr)
		} else {
			w.logger.Warn("Usage record moved to DLQ", "request_id", record.RequestID, "error", err)
		}
	}

	return err
}

// QueueLength returns the current queue length
func (w *UsageQueueWorker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetterItems returns items from the dead letter queue
func (w *UsageQueueWorker) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem[*models.UsageRecord], error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a dead-lettered record
func (w *UsageQueueWorker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, item := range items {
		if item.ID != id {
			continue
		}
		if err := w.queue.Enqueue(ctx, item.Item); err != nil {
			return fmt.Errorf("failed to re-enqueue item: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return queue.ErrItemNotFound
}
