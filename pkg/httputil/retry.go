package httputil

import (
	"context"
	"errors"
	"time"

	perrors "github.com/matzehuels/pypackages/pkg/errors"
)

// Default retry policy shared by the index client and the acquirer.
const (
	DefaultAttempts = 4
	DefaultDelay    = 500 * time.Millisecond
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses) with this type
// so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as a [RetryableError]. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// NotifyFunc observes a failed attempt before the backoff wait. attempt is
// 1-based and wait is the delay about to be slept.
type NotifyFunc func(attempt int, err error, wait time.Duration)

// Retry executes fn up to attempts times with exponential backoff.
// It only retries errors wrapped with [RetryableError] or carrying a
// transient error code; other errors are returned immediately. The delay
// doubles after each failed attempt. Returns the last error if all attempts
// fail, or ctx.Err() if cancelled.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	return RetryNotify(ctx, attempts, delay, fn, nil)
}

// RetryNotify is [Retry] with a callback invoked after every failed attempt
// that will be retried.
func RetryNotify(ctx context.Context, attempts int, delay time.Duration, fn func() error, notify NotifyFunc) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			if notify != nil {
				notify(i+1, lastErr, delay)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// RetryWithBackoff is a convenience wrapper around [Retry] with the default
// attempt count and initial delay.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, DefaultAttempts, DefaultDelay, fn)
}

// IsRetryable reports whether err should trigger another attempt.
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError)) || perrors.Retryable(err)
}
