// Package requirement parses PEP 508 dependency specifiers.
//
// A [Requirement] names a package, constrains its version, optionally asks
// for extras, and may be gated by an environment [Marker]:
//
//	requests[socks]>=2.8.1,<3 ; python_version >= "3.7"
//	torch @ https://download.pytorch.org/whl/torch-2.1.0-cp311-none-any.whl
//
// Requirements are immutable once parsed. Package names are normalized per
// PEP 503 so that "Flask_SQLAlchemy" and "flask-sqlalchemy" compare equal.
package requirement

import (
	"regexp"
	"slices"
	"strings"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/version"
)

// Requirement is a parsed dependency specifier.
type Requirement struct {
	Name       string             // normalized package name
	Extras     []string           // normalized, sorted, deduplicated
	Constraint version.Constraint // empty matches any version
	URL        string             // direct reference, empty for index requirements
	Marker     *Marker            // nil when ungated
}

var (
	nameRe       = regexp.MustCompile(`^\s*([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)\s*`)
	separatorsRe = regexp.MustCompile(`[-_.]+`)
)

// NormalizeName converts a package name to its canonical PEP 503 form:
// lowercase with runs of "-", "_" and "." collapsed to a single "-".
func NormalizeName(name string) string {
	return separatorsRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// Parse parses a PEP 508 requirement string. Malformed input fails with
// INVALID_REQUIREMENT; a malformed version clause fails with
// INVALID_VERSION.
func Parse(s string) (Requirement, error) {
	src := s
	m := nameRe.FindStringSubmatch(s)
	if m == nil {
		return Requirement{}, errors.New(errors.ErrCodeInvalidRequirement, "missing package name in %q", src)
	}
	if err := errors.ValidatePythonPackageName(m[1]); err != nil {
		return Requirement{}, errors.Wrap(errors.ErrCodeInvalidRequirement, err, "invalid requirement %q", src)
	}
	r := Requirement{Name: NormalizeName(m[1])}
	rest := s[len(m[0]):]

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return Requirement{}, errors.New(errors.ErrCodeInvalidRequirement, "unterminated extras in %q", src)
		}
		for _, e := range strings.Split(rest[1:end], ",") {
			if e = strings.TrimSpace(e); e == "" {
				continue
			}
			if errors.ValidatePythonPackageName(e) != nil {
				return Requirement{}, errors.New(errors.ErrCodeInvalidRequirement, "invalid extra %q in %q", e, src)
			}
			r.Extras = append(r.Extras, NormalizeName(e))
		}
		slices.Sort(r.Extras)
		r.Extras = slices.Compact(r.Extras)
		rest = strings.TrimSpace(rest[end+1:])
	}

	var spec, marker string
	if strings.HasPrefix(rest, "@") {
		rest = strings.TrimSpace(rest[1:])
		url, tail, _ := strings.Cut(rest, " ")
		if err := errors.ValidateURL(url); err != nil {
			return Requirement{}, errors.Wrap(errors.ErrCodeInvalidRequirement, err, "invalid direct reference in %q", src)
		}
		r.URL = url
		tail = strings.TrimSpace(tail)
		if tail != "" {
			if !strings.HasPrefix(tail, ";") {
				return Requirement{}, errors.New(errors.ErrCodeInvalidRequirement, "unexpected %q after URL in %q", tail, src)
			}
			marker = tail[1:]
		}
	} else {
		spec, marker, _ = strings.Cut(rest, ";")
		spec = strings.TrimSpace(spec)
		if strings.HasPrefix(spec, "(") {
			if !strings.HasSuffix(spec, ")") {
				return Requirement{}, errors.New(errors.ErrCodeInvalidRequirement, "unbalanced parentheses in %q", src)
			}
			spec = spec[1 : len(spec)-1]
		}
		if spec != "" && !strings.ContainsAny(spec[:1], "<>=!~^*") {
			return Requirement{}, errors.New(errors.ErrCodeInvalidRequirement, "expected version specifier, got %q in %q", spec, src)
		}
	}

	c, err := version.ParseConstraint(spec)
	if err != nil {
		return Requirement{}, err
	}
	r.Constraint = c

	if marker = strings.TrimSpace(marker); marker != "" {
		if r.Marker, err = ParseMarker(marker); err != nil {
			return Requirement{}, err
		}
	}
	return r, nil
}

// MustParse is like [Parse] but panics on error.
func MustParse(s string) Requirement {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// String renders the requirement in canonical PEP 508 form.
func (r Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Extras) > 0 {
		b.WriteString("[" + strings.Join(r.Extras, ",") + "]")
	}
	switch {
	case r.URL != "":
		b.WriteString(" @ " + r.URL)
		if r.Marker != nil {
			b.WriteString(" ")
		}
	default:
		b.WriteString(r.Constraint.String())
	}
	if r.Marker != nil {
		b.WriteString("; " + r.Marker.String())
	}
	return b.String()
}

// Applies reports whether the requirement is active in env for a parent
// installed with the given extras.
func (r Requirement) Applies(env Environment, extras ...string) bool {
	return r.Marker.Evaluate(env, extras...)
}

// SatisfiedBy reports whether v satisfies the version constraint.
func (r Requirement) SatisfiedBy(v version.Version) bool {
	return r.Constraint.Satisfies(v)
}

// WithoutMarker returns r with its marker removed, for recording the
// active form of a requirement once the marker has been evaluated.
func (r Requirement) WithoutMarker() Requirement {
	r.Marker = nil
	return r
}

// ParseAll parses a list of requirement strings, stopping at the first
// error.
func ParseAll(specs []string) ([]Requirement, error) {
	out := make([]Requirement, 0, len(specs))
	for _, s := range specs {
		r, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
