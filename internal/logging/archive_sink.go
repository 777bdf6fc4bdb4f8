package logging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"devclip/internal/queue"
	"devclip/internal/utils"
)

// ErrBufferFull is returned by Enqueue when the archive cannot keep up
var ErrBufferFull = errors.New("error archive buffer full")

const (
	enqueueTimeout = 50 * time.Millisecond
	pollInterval   = 250 * time.Millisecond
	uploadTimeout  = 30 * time.Second
)

// BatchWriter persists a batch of events. *S3Writer implements it.
type BatchWriter interface {
	WriteBatch(ctx context.Context, events []*ErrorEvent) (string, error)
}

// ArchiveConfig configures an ArchiveSink
type ArchiveConfig struct {
	BufferSize    int           // queued events before Enqueue reports ErrBufferFull
	FlushSize     int           // write after this many events
	FlushInterval time.Duration // write at least this often when events are pending
}

// ArchiveSink buffers error events in a queue and writes them in batches
type ArchiveSink struct {
	queue         queue.Queue[*ErrorEvent]
	writer        BatchWriter
	flushSize     int
	flushInterval time.Duration
	logger        *utils.Logger

	stopChan    chan struct{}
	stoppedChan chan struct{}
	stopOnce    sync.Once
}

// NewArchiveSink creates the sink and starts its background writer
func NewArchiveSink(writer BatchWriter, config ArchiveConfig) *ArchiveSink {
	if config.FlushSize <= 0 {
		config.FlushSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = time.Minute
	}
	if config.BufferSize < config.FlushSize {
		config.BufferSize = config.FlushSize * 10
	}

	s := &ArchiveSink{
		queue: queue.NewMemoryQueue[*ErrorEvent](&queue.Config{
			QueueName: "error-archive",
			BatchSize: config.BufferSize / 10,
		}),
		writer:        writer,
		flushSize:     config.FlushSize,
		flushInterval: config.FlushInterval,
		logger:        utils.NewLogger("error-archive"),
		stopChan:      make(chan struct{}),
		stoppedChan:   make(chan struct{}),
	}

	go s.run()
	return s
}

// Enqueue buffers ev without blocking the caller for long
func (s *ArchiveSink) Enqueue(ev *ErrorEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	if err := s.queue.Enqueue(ctx, ev); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrBufferFull
		}
		return err
	}
	return nil
}

// Shutdown flushes pending events and stops the writer
func (s *ArchiveSink) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	select {
	case <-s.stoppedChan:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("error archive shutdown: %w", ctx.Err())
	}
}

func (s *ArchiveSink) run() {
	defer close(s.stoppedChan)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	var batch []*ErrorEvent
	for {
		select {
		case <-s.stopChan:
			s.drain(batch)
			return
		case <-ticker.C:
			batch = s.flush(batch)
			continue
		default:
		}

		items, err := s.queue.DequeueWithTimeout(context.Background(), s.flushSize-len(batch), pollInterval)
		if err != nil && !errors.Is(err, queue.ErrQueueClosed) {
			s.logger.Error("Failed to dequeue error events", "error", err)
		}
		batch = append(batch, items...)
		if len(batch) >= s.flushSize {
			batch = s.flush(batch)
		}
	}
}

func (s *ArchiveSink) drain(batch []*ErrorEvent) {
	_ = s.queue.Close()
	for {
		items, _ := s.queue.DequeueWithTimeout(context.Background(), s.flushSize-len(batch), 10*time.Millisecond)
		if len(items) == 0 {
			break
		}
		batch = append(batch, items...)
		if len(batch) >= s.flushSize {
			batch = s.flush(batch)
		}
	}
	s.flush(batch)
}

// flush writes batch and returns an empty slice. Failed batches are dropped
// after the writer's own retries.
func (s *ArchiveSink) flush(batch []*ErrorEvent) []*ErrorEvent {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	if _, err := s.writer.WriteBatch(ctx, batch); err != nil {
		s.logger.Error("Failed to archive error events", "count", len(batch), "error", err)
	}
	return batch[:0:0]
}
