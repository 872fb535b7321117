package acquire

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/httputil"
	"github.com/matzehuels/pypackages/pkg/lockfile"
	"github.com/matzehuels/pypackages/pkg/observability"
)

// Fetcher opens the artifact at a source URL. integrations.Client
// implements it for http(s) and file URLs.
type Fetcher interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// Defaults applied by Options.WithDefaults.
const (
	DefaultConcurrency = 4
	DefaultTimeout     = 5 * time.Minute
)

// Options tunes an Acquirer.
type Options struct {
	Concurrency int           // simultaneous downloads
	Attempts    int           // tries per artifact for transient failures
	Delay       time.Duration // initial backoff, doubled after each failure
	Timeout     time.Duration // bound on a single download attempt
	TempDir     string        // where downloads land, "" for the system default
	Logger      *log.Logger
}

// WithDefaults fills zero fields.
func (o Options) WithDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Attempts <= 0 {
		o.Attempts = httputil.DefaultAttempts
	}
	if o.Delay <= 0 {
		o.Delay = httputil.DefaultDelay
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return o
}

// Result is the outcome for one lock entry. On success Path names a
// verified download that the receiver owns and must remove.
type Result struct {
	Entry    lockfile.Entry
	Path     string
	Size     int64
	Duration time.Duration
	Err      error
}

// DigestMismatch is the cause of an INTEGRITY_VIOLATION for content whose
// hash differs from the locked digest.
type DigestMismatch struct {
	Name     string
	Version  string
	Expected string
	Actual   string
}

func (d *DigestMismatch) Error() string {
	return fmt.Sprintf("%s %s: expected %s, got %s", d.Name, d.Version, d.Expected, d.Actual)
}

// Acquirer downloads and verifies locked artifacts.
type Acquirer struct {
	fetcher Fetcher
	opts    Options
}

// New returns an Acquirer reading artifacts through f.
func New(f Fetcher, opts Options) *Acquirer {
	return &Acquirer{fetcher: f, opts: opts.WithDefaults()}
}

// Acquire downloads entries with at most Options.Concurrency transfers in
// flight and streams one Result per entry, in completion order. The
// channel is closed once every entry has been reported.
//
// A failed entry never stops its siblings. After ctx is cancelled no new
// download starts; pending entries are reported with ctx.Err().
func (a *Acquirer) Acquire(ctx context.Context, entries []lockfile.Entry) <-chan Result {
	jobs := make(chan lockfile.Entry)
	results := make(chan Result, a.opts.Concurrency)

	var wg sync.WaitGroup
	for range min(a.opts.Concurrency, max(len(entries), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				if err := ctx.Err(); err != nil {
					results <- Result{Entry: e, Err: err}
					continue
				}
				results <- a.Fetch(ctx, e)
			}
		}()
	}

	go func() {
		for _, e := range entries {
			jobs <- e
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()
	return results
}

// Fetch downloads and verifies a single entry. Transient failures are
// retried with exponential backoff; exhausting the attempts yields
// ACQUISITION_FAILED. A digest mismatch, or a missing or unsupported
// digest, yields INTEGRITY_VIOLATION and is never retried.
func (a *Acquirer) Fetch(ctx context.Context, e lockfile.Entry) Result {
	ver := e.Version.String()
	hooks := observability.Acquire()
	hooks.OnDownloadStart(ctx, e.Name, ver)
	start := time.Now()

	res := Result{Entry: e}
	res.Err = a.fetch(ctx, e, &res)
	res.Duration = time.Since(start)
	hooks.OnDownloadComplete(ctx, e.Name, ver, res.Size, res.Duration, res.Err)

	if res.Err != nil {
		a.opts.Logger.Debug("download failed", "package", e.Name, "version", ver, "err", res.Err)
	} else {
		a.opts.Logger.Debug("downloaded", "package", e.Name, "version", ver, "bytes", res.Size, "took", res.Duration)
	}
	return res
}

func (a *Acquirer) fetch(ctx context.Context, e lockfile.Entry, res *Result) error {
	ver := e.Version.String()
	want, err := expectedDigest(e)
	if err != nil {
		return err
	}

	err = httputil.RetryNotify(ctx, a.opts.Attempts, a.opts.Delay, func() error {
		path, n, _, err := a.download(ctx, e, want)
		if err != nil {
			return err
		}
		res.Path, res.Size = path, n
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		a.opts.Logger.Debug("retrying download", "package", e.Name, "attempt", attempt, "wait", wait, "err", err)
		observability.Acquire().OnDownloadRetry(ctx, e.Name, ver, attempt, err)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrCodeIntegrityViolation):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return errors.Wrap(errors.ErrCodeAcquisitionFailed, err, "%s %s", e.Name, ver)
}

// Digest downloads the artifact of an entry that has no locked digest yet
// and returns its "sha256:<hex>" digest. The download is discarded.
func (a *Acquirer) Digest(ctx context.Context, e lockfile.Entry) (string, error) {
	var sum string
	err := httputil.RetryNotify(ctx, a.opts.Attempts, a.opts.Delay, func() error {
		path, _, got, err := a.download(ctx, e, "")
		if err != nil {
			return err
		}
		sum = got
		return os.Remove(path)
	}, func(attempt int, err error, wait time.Duration) {
		a.opts.Logger.Debug("retrying digest download", "package", e.Name, "attempt", attempt, "wait", wait, "err", err)
	})
	switch {
	case err == nil:
		return "sha256:" + sum, nil
	case ctx.Err() != nil:
		return "", ctx.Err()
	}
	return "", errors.Wrap(errors.ErrCodeAcquisitionFailed, err, "%s %s", e.Name, e.Version)
}

// download streams one attempt into a temp file while hashing it. The file
// is removed unless the digest matches want; an empty want accepts any
// content.
func (a *Acquirer) download(ctx context.Context, e lockfile.Entry, want string) (path string, n int64, sum string, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	body, err := a.fetcher.Open(attemptCtx, e.Source)
	if err != nil {
		return "", 0, "", attemptError(ctx, attemptCtx, err, e, false)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(a.opts.TempDir, "pypackages-download-*")
	if err != nil {
		return "", 0, "", errors.Wrap(errors.ErrCodeInternal, err, "create download file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	h := sha256.New()
	n, err = io.Copy(io.MultiWriter(tmp, h), body)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		return "", n, "", errors.Wrap(errors.ErrCodeInternal, closeErr, "write download file")
	}
	if err != nil {
		return "", n, "", attemptError(ctx, attemptCtx, err, e, true)
	}

	sum = hex.EncodeToString(h.Sum(nil))
	if want != "" && sum != want {
		err = errors.Wrap(errors.ErrCodeIntegrityViolation, &DigestMismatch{
			Name:     e.Name,
			Version:  e.Version.String(),
			Expected: "sha256:" + want,
			Actual:   "sha256:" + sum,
		}, "digest mismatch")
		return "", n, "", err
	}
	return tmp.Name(), n, sum, nil
}

// attemptError classifies a failed attempt. The caller's cancellation is
// final and an expired attempt deadline is a retryable timeout. Errors from
// opening the source keep their own classification; errors mid-stream are
// retryable network errors.
func attemptError(parent, attempt context.Context, err error, e lockfile.Entry, streaming bool) error {
	switch {
	case parent.Err() != nil:
		return parent.Err()
	case attempt.Err() != nil:
		return httputil.Retryable(errors.Wrap(errors.ErrCodeTimeout, err, "download %s", e.Source))
	case streaming:
		return httputil.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "download %s", e.Source))
	}
	return err
}

func expectedDigest(e lockfile.Entry) (string, error) {
	if e.Digest == "" {
		return "", errors.New(errors.ErrCodeIntegrityViolation, "%s %s has no locked digest", e.Name, e.Version)
	}
	algo, sum, _ := strings.Cut(e.Digest, ":")
	if algo != "sha256" || len(sum) != sha256.Size*2 {
		return "", errors.New(errors.ErrCodeIntegrityViolation, "%s %s has unsupported digest %q", e.Name, e.Version, e.Digest)
	}
	return strings.ToLower(sum), nil
}
