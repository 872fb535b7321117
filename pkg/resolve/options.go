package resolve

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/version"
)

// SourcePolicy orders candidates of equal version offered by both the
// index and a direct URL override.
type SourcePolicy int

const (
	// IndexFirst prefers the index artifact and falls back to the override.
	IndexFirst SourcePolicy = iota
	// URLFirst prefers the override and falls back to the index artifact.
	URLFirst
	// URLOnly drops index candidates for any name that has an override.
	URLOnly
)

var sourcePolicyNames = map[SourcePolicy]string{
	IndexFirst: "index-first",
	URLFirst:   "url-first",
	URLOnly:    "url-only",
}

func (p SourcePolicy) String() string { return sourcePolicyNames[p] }

// ParseSourcePolicy parses "index-first", "url-first" or "url-only". The
// empty string selects IndexFirst.
func ParseSourcePolicy(s string) (SourcePolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return IndexFirst, nil
	}
	for p, name := range sourcePolicyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, errors.New(errors.ErrCodeInvalidInput, "unknown source policy %q", s)
}

// Options configures a resolution run.
type Options struct {
	// Locked maps normalized names to previously locked versions. A locked
	// version is tried first whenever it still satisfies every constraint.
	Locked map[string]version.Version

	// Prereleases decides when pre-release candidates are considered.
	Prereleases version.PrereleasePolicy

	// SourcePolicy breaks ties between index and URL candidates.
	SourcePolicy SourcePolicy

	// URLOverrides maps normalized names to direct archive URLs offered
	// alongside (or instead of) index candidates.
	URLOverrides map[string]string

	// Environment evaluates requirement markers. Zero value means the
	// host environment for Python 3.12.
	Environment requirement.Environment

	// Compatible filters candidates whose artifact cannot be installed.
	// Nil accepts every candidate.
	Compatible index.Compatible

	// PrefetchWidth caps concurrent index queries. Zero uses
	// [index.DefaultPrefetchWidth].
	PrefetchWidth int

	// Logger receives debug output. Nil discards it.
	Logger *log.Logger
}

// WithDefaults returns a copy of o with nil fields filled in.
func (o Options) WithDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	if o.Compatible == nil {
		o.Compatible = index.AnyCompatible
	}
	if o.Environment == (requirement.Environment{}) {
		o.Environment = requirement.DefaultEnvironment("3.12")
	}
	if o.PrefetchWidth <= 0 {
		o.PrefetchWidth = index.DefaultPrefetchWidth
	}
	return o
}
