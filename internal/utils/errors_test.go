package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsRecoverableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "upstream 503",
			err:      &StatusError{StatusCode: 503},
			expected: true,
		},
		{
			name:     "upstream 429",
			err:      fmt.Errorf("wrapped: %w", &StatusError{StatusCode: 429}),
			expected: true,
		},
		{
			name:     "upstream 400 is a client failure",
			err:      &StatusError{StatusCode: 400},
			expected: false,
		},
		{
			name:     "upstream 403 is a client failure",
			err:      fmt.Errorf("put object: %w", &StatusError{StatusCode: 403}),
			expected: false,
		},
		{
			name:     "connection refused",
			err:      fmt.Errorf("dial: %w", syscall.ECONNREFUSED),
			expected: true,
		},
		{
			name:     "network timeout",
			err:      timeoutErr{},
			expected: true,
		},
		{
			name:     "deadline exceeded",
			err:      context.DeadlineExceeded,
			expected: true,
		},
		{
			name:     "cancelled",
			err:      context.Canceled,
			expected: false,
		},
		{
			name:     "validation",
			err:      errors.New("invalid input"),
			expected: false,
		},
		{
			name:     "message match",
			err:      errors.New("read tcp: Connection reset by peer"),
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRecoverableError(tt.err)
			if result != tt.expected {
				t.Errorf("IsRecoverableError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func fastPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.InitialBackoff = time.Millisecond
	p.MaxBackoff = 2 * time.Millisecond
	return p
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, fastPolicy(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return &StatusError{StatusCode: 502}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, fastPolicy(), func(ctx context.Context) error {
			calls++
			return &StatusError{StatusCode: 404}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, 404, se.StatusCode)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Retry(ctx, fastPolicy(), func(ctx context.Context) error {
			calls++
			return syscall.ECONNRESET
		})
		require.Error(t, err)
		assert.Equal(t, 4, calls)
		assert.ErrorIs(t, err, syscall.ECONNRESET)
		assert.Contains(t, err.Error(), "max retries exceeded")
	})

	t.Run("permanent error after transient one is returned as is", func(t *testing.T) {
		calls := 0
		permanent := &StatusError{StatusCode: 400, Body: "bad request"}
		err := Retry(ctx, fastPolicy(), func(ctx context.Context) error {
			calls++
			if calls == 1 {
				return &StatusError{StatusCode: 503}
			}
			return permanent
		})
		assert.Same(t, permanent, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("zero backoff falls back to the default", func(t *testing.T) {
		policy := RetryPolicy{MaxAttempts: 1}
		calls := 0
		err := Retry(ctx, policy, func(ctx context.Context) error {
			calls++
			return syscall.ECONNREFUSED
		})
		assert.ErrorIs(t, err, syscall.ECONNREFUSED)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		policy := fastPolicy()
		policy.InitialBackoff = time.Hour
		policy.MaxBackoff = time.Hour

		calls := 0
		err := Retry(cctx, policy, func(ctx context.Context) error {
			calls++
			cancel()
			return &StatusError{StatusCode: 500}
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
