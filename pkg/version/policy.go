package version

import (
	"strings"

	"github.com/matzehuels/pypackages/pkg/errors"
)

// PrereleasePolicy decides when pre-release candidates may be selected.
type PrereleasePolicy int

const (
	// PrereleaseExplicit admits a pre-release only for names whose
	// constraints pin a pre-release with an exact-match clause.
	PrereleaseExplicit PrereleasePolicy = iota
	// PrereleaseAllow admits pre-releases everywhere.
	PrereleaseAllow
	// PrereleaseIfNecessary behaves like PrereleaseExplicit but falls back
	// to pre-releases for a name when no final release satisfies its
	// constraints.
	PrereleaseIfNecessary
)

var policyNames = map[PrereleasePolicy]string{
	PrereleaseExplicit:    "explicit",
	PrereleaseAllow:       "allow",
	PrereleaseIfNecessary: "if-necessary",
}

// ParsePrereleasePolicy parses "explicit", "allow" or "if-necessary".
func ParsePrereleasePolicy(s string) (PrereleasePolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PrereleaseExplicit, nil
	}
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, errors.New(errors.ErrCodeInvalidInput, "unknown pre-release policy %q", s)
}

func (p PrereleasePolicy) String() string { return policyNames[p] }

// Admits reports whether v may be considered as a candidate for a name
// carrying the given constraints. Final releases are always admitted.
func (p PrereleasePolicy) Admits(v Version, constraints ...Constraint) bool {
	if !v.IsPrerelease() || p == PrereleaseAllow {
		return true
	}
	for _, c := range constraints {
		if c.ExplicitPrerelease() {
			return true
		}
	}
	return false
}
