package logging

import (
	"context"
	"time"

	"devclip/internal/utils"
)

// ErrorReporter logs failures and ships them to a Sink with their context
// redacted.
type ErrorReporter struct {
	sink      Sink
	component string
	pod       string
	logger    *utils.Logger
	now       func() time.Time
}

// NewErrorReporter creates a reporter for component. A nil sink discards events.
func NewErrorReporter(sink Sink, component, pod string) *ErrorReporter {
	if sink == nil {
		sink = NewNoopSink()
	}
	return &ErrorReporter{
		sink:      sink,
		component: component,
		pod:       pod,
		logger:    utils.NewLogger(component),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Report logs err and enqueues an ErrorEvent. Enqueue failures are logged
// and otherwise ignored.
func (r *ErrorReporter) Report(ctx context.Context, requestID, message string, err error, fields map[string]any) {
	ev := &ErrorEvent{
		Timestamp: r.now(),
		Pod:       r.pod,
		Component: r.component,
		RequestID: requestID,
		Message:   message,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if len(fields) > 0 {
		if redacted, ok := utils.Redact(fields).(map[string]interface{}); ok {
			ev.Context = redacted
		}
	}

	r.logger.Error(message, "request_id", requestID, "error", err)

	if enqueueErr := r.sink.Enqueue(ev); enqueueErr != nil {
		r.logger.Warn("Dropped error event", "request_id", requestID, "error", enqueueErr)
	}
}
