// Package acquire downloads locked artifacts and verifies them against the
// lockfile digest.
//
// An [Acquirer] runs a fixed pool of workers fed from one job channel; each
// worker reports to a single results channel, so no state is shared between
// downloads. Every download streams to a temporary file while a SHA-256 is
// computed over the same bytes. Content whose digest differs from the
// locked one is deleted and reported as INTEGRITY_VIOLATION with a
// [*DigestMismatch] cause; it is never handed to the installer.
//
//	a := acquire.New(client, acquire.Options{Concurrency: 8})
//	for res := range a.Acquire(ctx, lf.Packages) {
//	    if res.Err != nil {
//	        // per-package failure, siblings keep going
//	        continue
//	    }
//	    defer os.Remove(res.Path)
//	    // extract res.Path
//	}
//
// Transient failures (connection errors, 5xx responses, attempt timeouts)
// are retried with exponential backoff through [httputil.RetryNotify].
package acquire
