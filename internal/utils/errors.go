package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
)

// StatusCoder is implemented by errors that carry an HTTP status, such as
// provider errors and AWS response errors.
type StatusCoder interface {
	HTTPStatusCode() int
}

// StatusError is an error returned by an upstream HTTP service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// HTTPStatusCode returns the upstream status code.
func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// IsRecoverableError checks if an error is a transient infrastructure failure
// worth retrying. Client-class failures (4xx other than 429) are never recoverable.
func IsRecoverableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatusCode()
		return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	recoverableErrors := []string{
		"connection reset",
		"connection refused",
		"temporarily unavailable",
	}
	msg := strings.ToLower(err.Error())
	for _, recoverable := range recoverableErrors {
		if strings.Contains(msg, recoverable) {
			return true
		}
	}
	return false
}

// RetryPolicy configures Retry.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Retryable      func(error) bool
}

// DefaultRetryPolicy retries recoverable errors up to 4 times starting at 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Retryable:      IsRecoverableError,
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. Backoff doubles after every failed attempt and is
// capped at MaxBackoff.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = DefaultRetryPolicy().InitialBackoff
	}
	if policy.Retryable == nil {
		policy.Retryable = IsRecoverableError
	}

	backoff := retry.NewExponential(policy.InitialBackoff)
	if policy.MaxBackoff > 0 {
		backoff = retry.WithCappedDuration(policy.MaxBackoff, backoff)
	}
	backoff = retry.WithMaxRetries(uint64(policy.MaxAttempts-1), backoff)

	var lastErr error
	lastRetryable := false
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		lastErr = fn(ctx)
		lastRetryable = lastErr != nil && policy.Retryable(lastErr)
		if !lastRetryable {
			return lastErr
		}
		return retry.RetryableError(lastErr)
	})
	switch {
	case err == nil:
		return nil
	case lastRetryable && ctx.Err() != nil:
		return fmt.Errorf("retry aborted: %w", errors.Join(ctx.Err(), lastErr))
	case lastRetryable:
		return fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return err
}
