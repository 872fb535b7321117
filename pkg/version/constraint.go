package version

import (
	"regexp"
	"strings"

	"github.com/matzehuels/pypackages/pkg/errors"
)

// Operator is a clause comparison operator.
type Operator string

// Supported operators. Caret and Tilde are range shorthands: ^1.2.3 means
// >=1.2.3,<2.0.0 and ~1.2 means >=1.2,<1.3.
const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpCompatible   Operator = "~="
	OpArbitrary    Operator = "==="
	OpCaret        Operator = "^"
	OpTilde        Operator = "~"
)

// Clause is a single (operator, version) comparison.
type Clause struct {
	Op       Operator
	Version  Version
	Wildcard bool   // ==1.2.* or !=1.2.*
	Literal  string // right-hand side as written, used by ===
}

// Constraint is a conjunction of clauses. The zero value matches every
// version.
type Constraint struct {
	clauses []Clause
}

// Any is the constraint that every version satisfies.
var Any = Constraint{}

var clauseRe = regexp.MustCompile(`^(===|==|!=|~=|<=|>=|<|>|\^|~)?\s*(\S.*?)\s*$`)

// ParseConstraint parses a comma-separated list of clauses such as
// ">=1.2,<2.0", "~=1.4", "==2.*", "^0.3" or "*". An empty string or "*"
// yields [Any]. A bare version means "==". Malformed input fails with
// INVALID_VERSION.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return Any, nil
	}
	var c Constraint
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "*" {
			continue
		}
		cl, err := parseClause(part)
		if err != nil {
			return Constraint{}, err
		}
		c.clauses = append(c.clauses, cl)
	}
	return c, nil
}

// MustParseConstraint is like [ParseConstraint] but panics on error.
func MustParseConstraint(s string) Constraint {
	c, err := ParseConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Exact returns the constraint "==v".
func Exact(v Version) Constraint {
	return Constraint{clauses: []Clause{{Op: OpEqual, Version: v}}}
}

func parseClause(s string) (Clause, error) {
	m := clauseRe.FindStringSubmatch(s)
	if m == nil {
		return Clause{}, errors.New(errors.ErrCodeInvalidVersion, "invalid constraint clause %q", s)
	}
	op, rhs := Operator(m[1]), m[2]
	if op == "" {
		op = OpEqual
	}
	cl := Clause{Op: op, Literal: rhs}

	if op == OpArbitrary {
		if v, err := Parse(rhs); err == nil {
			cl.Version = v
		}
		return cl, nil
	}

	if strings.HasSuffix(rhs, ".*") {
		if op != OpEqual && op != OpNotEqual {
			return Clause{}, errors.New(errors.ErrCodeInvalidVersion, "wildcard not allowed with %s in %q", op, s)
		}
		cl.Wildcard = true
		rhs = strings.TrimSuffix(rhs, ".*")
	}

	v, err := Parse(rhs)
	if err != nil {
		return Clause{}, errors.Wrap(errors.ErrCodeInvalidVersion, err, "invalid constraint clause %q", s)
	}
	if cl.Wildcard && (v.IsPrerelease() || v.IsPostRelease() || len(v.local) > 0) {
		return Clause{}, errors.New(errors.ErrCodeInvalidVersion, "wildcard prefix must be a release in %q", s)
	}
	if op == OpCompatible && len(v.release) < 2 {
		return Clause{}, errors.New(errors.ErrCodeInvalidVersion, "~= needs at least two release segments in %q", s)
	}
	cl.Version = v
	return cl, nil
}

// Clauses returns a copy of the clauses.
func (c Constraint) Clauses() []Clause { return append([]Clause(nil), c.clauses...) }

// IsAny reports whether c has no clauses.
func (c Constraint) IsAny() bool { return len(c.clauses) == 0 }

// And returns the conjunction of c and o.
func (c Constraint) And(o Constraint) Constraint {
	clauses := make([]Clause, 0, len(c.clauses)+len(o.clauses))
	clauses = append(clauses, c.clauses...)
	clauses = append(clauses, o.clauses...)
	return Constraint{clauses: clauses}
}

// Satisfies reports whether v satisfies every clause of c. It is total:
// every (version, constraint) pair yields an answer.
func (c Constraint) Satisfies(v Version) bool {
	for _, cl := range c.clauses {
		if !cl.Matches(v) {
			return false
		}
	}
	return true
}

// ExplicitPrerelease reports whether c pins a pre-release with an
// exact-match clause, which opts that name into pre-release candidates.
func (c Constraint) ExplicitPrerelease() bool {
	for _, cl := range c.clauses {
		if (cl.Op == OpEqual || cl.Op == OpArbitrary) && !cl.Wildcard && cl.Version.IsPrerelease() {
			return true
		}
	}
	return false
}

// String renders c as comma-separated clauses in their original order.
func (c Constraint) String() string {
	if len(c.clauses) == 0 {
		return ""
	}
	parts := make([]string, len(c.clauses))
	for i, cl := range c.clauses {
		parts[i] = cl.String()
	}
	return strings.Join(parts, ",")
}

// String renders the clause.
func (cl Clause) String() string {
	switch {
	case cl.Op == OpArbitrary:
		return string(cl.Op) + cl.Literal
	case cl.Wildcard:
		return string(cl.Op) + cl.Version.String() + ".*"
	default:
		return string(cl.Op) + cl.Version.String()
	}
}

// Matches reports whether v satisfies the clause.
func (cl Clause) Matches(v Version) bool {
	spec := cl.Version
	switch cl.Op {
	case OpArbitrary:
		return strings.EqualFold(strings.TrimSpace(cl.Literal), v.String())
	case OpEqual:
		return cl.equal(v)
	case OpNotEqual:
		return !cl.equal(v)
	case OpLessEqual:
		return Compare(v.Public(), spec) <= 0
	case OpGreaterEqual:
		return Compare(v.Public(), spec) >= 0
	case OpLess:
		return less(v, spec)
	case OpGreater:
		return greater(v, spec)
	case OpCompatible:
		prefix := Clause{Op: OpEqual, Version: spec.Base().truncate(len(spec.release) - 1), Wildcard: true}
		return Compare(v.Public(), spec) >= 0 && prefix.Matches(v)
	case OpCaret:
		i := 0
		for i < len(spec.release)-1 && spec.release[i] == 0 {
			i++
		}
		return Compare(v.Public(), spec) >= 0 && less(v, spec.bump(i))
	case OpTilde:
		i := 0
		if len(spec.release) >= 2 {
			i = 1
		}
		return Compare(v.Public(), spec) >= 0 && less(v, spec.bump(i))
	}
	return false
}

func (cl Clause) equal(v Version) bool {
	spec := cl.Version
	if cl.Wildcard {
		if v.epoch != spec.epoch {
			return false
		}
		for i, seg := range spec.release {
			if v.Segment(i) != seg {
				return false
			}
		}
		return true
	}
	if len(spec.local) == 0 {
		v = v.Public()
	}
	return Compare(v, spec) == 0
}

// less implements exclusive "<": a pre-release of spec never matches
// unless spec is itself a pre-release.
func less(v, spec Version) bool {
	if Compare(v.Public(), spec) >= 0 {
		return false
	}
	if !spec.IsPrerelease() && v.IsPrerelease() && Compare(v.Base(), spec.Base()) == 0 {
		return false
	}
	return true
}

// greater implements exclusive ">": post-releases and local variants of
// spec never match unless spec is itself a post-release.
func greater(v, spec Version) bool {
	if Compare(v.Public(), spec) <= 0 {
		return false
	}
	if !spec.IsPostRelease() && v.IsPostRelease() && Compare(v.Base(), spec.Base()) == 0 {
		return false
	}
	if len(v.local) > 0 && Compare(v.Base(), spec.Base()) == 0 {
		return false
	}
	return true
}

func (v Version) truncate(n int) Version {
	v.release = v.release[:n]
	return v
}
