package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/pypackages/pkg/requirement"
)

const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the index.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout for index
// requests. The timeout bounds a single request, not a whole resolution.
func NewHTTPClient() *http.Client {
	return NewHTTPClientWithTimeout(httpTimeout)
}

// NewHTTPClientWithTimeout creates an HTTP client with the given per-request
// timeout. A non-positive timeout falls back to the default.
func NewHTTPClientWithTimeout(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = httpTimeout
	}
	return &http.Client{Timeout: timeout}
}

// NormalizePkgName converts a package name to its canonical PEP 503 form.
func NormalizePkgName(name string) string {
	return requirement.NormalizeName(name)
}

// URLEncode percent-encodes a string for use in URL paths.
func URLEncode(s string) string { return url.PathEscape(s) }
