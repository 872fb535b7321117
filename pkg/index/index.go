// Package index defines the package index contract the resolver queries.
//
// An index answers two questions about a package name: which versions exist
// ([Client.ListVersions], newest first) and what a given version depends on
// ([Client.FetchMetadata]). Implementations may block on network I/O and
// must fail with one of two coded errors:
//
//   - PACKAGE_NOT_FOUND when the index has never heard of the name
//   - INDEX_UNAVAILABLE for transient failures the caller may retry
//
// [Memory] is an in-memory implementation for tests. [Session] wraps any
// client with per-run memoization and parallel prefetching.
package index

import (
	"context"
	"slices"
	"strings"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/version"
)

// SourceKind distinguishes index-hosted artifacts from direct references.
type SourceKind string

const (
	SourceIndex SourceKind = "index"
	SourceURL   SourceKind = "url"
)

// Source locates the archive for a candidate.
type Source struct {
	Kind     SourceKind
	URL      string
	Filename string
}

// IsWheel reports whether the artifact is a built wheel.
func (s Source) IsWheel() bool { return strings.HasSuffix(strings.ToLower(s.Filename), ".whl") }

// Candidate is one installable (name, version) pair offered by an index.
type Candidate struct {
	Name           string
	Version        version.Version
	Source         Source
	Digest         string // "sha256:<hex>", empty when the index publishes none
	RequiresPython string // raw Requires-Python specifier, empty when absent
	Yanked         bool
}

// ID returns "name==version".
func (c Candidate) ID() string { return c.Name + "==" + c.Version.String() }

// Client is the capability the resolver needs from a package index.
type Client interface {
	// ListVersions returns every known candidate for name, newest first.
	ListVersions(ctx context.Context, name string) ([]Candidate, error)

	// FetchMetadata returns the declared dependencies of name at v,
	// including marker-gated and extra-only requirements.
	FetchMetadata(ctx context.Context, name string, v version.Version) ([]requirement.Requirement, error)
}

// NotFound builds the PACKAGE_NOT_FOUND error for name.
func NotFound(name string) error {
	return errors.New(errors.ErrCodePackageNotFound, "package %s not found", name)
}

// Unavailable wraps a transient failure as INDEX_UNAVAILABLE.
func Unavailable(name string, cause error) error {
	return errors.Wrap(errors.ErrCodeIndexUnavailable, cause, "index unavailable for %s", name)
}

// SortCandidates orders candidates newest first. Equal versions keep their
// relative order.
func SortCandidates(cs []Candidate) {
	slices.SortStableFunc(cs, func(a, b Candidate) int { return version.Compare(b.Version, a.Version) })
}
