// Package httputil provides retry helpers for network operations.
//
// # Retry
//
// [Retry] re-runs an operation on transient failures with exponential
// backoff. An error is transient when it is wrapped in [RetryableError] or
// carries a transient code from pkg/errors (INDEX_UNAVAILABLE,
// NETWORK_ERROR, TIMEOUT, RATE_LIMITED):
//
//	err := httputil.Retry(ctx, 4, 500*time.Millisecond, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    ...
//	})
//
// Use [RetryNotify] to log or count the retries. The backoff wait is
// interrupted by context cancellation.
//
// Both the package index client and the artifact acquirer use this package,
// so a flaky mirror is retried the same way for metadata and downloads.
package httputil
