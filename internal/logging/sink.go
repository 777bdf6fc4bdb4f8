// Package logging ships error events to the S3 error archive.
package logging

import (
	"context"
	"time"
)

// ErrorEvent is a single archived failure
type ErrorEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Pod       string         `json:"pod,omitempty"`
	Component string         `json:"component"`
	RequestID string         `json:"request_id,omitempty"`
	Message   string         `json:"message"`
	Error     string         `json:"error,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Sink receives error events.
type Sink interface {
	Enqueue(ev *ErrorEvent) error
	Shutdown(ctx context.Context) error
}

// NoopSink discards events. It is used when the archive is disabled.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(ev *ErrorEvent) error {
	return nil
}

func (s *NoopSink) Shutdown(ctx context.Context) error {
	return nil
}
