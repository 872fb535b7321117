package resolve

import (
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/requirement"
)

// constraint is one requirement imposed on a name, with its origin.
type constraint struct {
	req         requirement.Requirement
	from        string // requiring package, "" for the project
	fromVersion string
}

func (c constraint) cause() Cause {
	return Cause{Requirement: c.req.String(), From: c.from, FromVersion: c.fromVersion}
}

// assignment is a decided package. Assignments reachable from a frame's
// base state are never mutated; a state that needs to change one installs
// a copy first.
type assignment struct {
	cand   index.Candidate
	deps   []requirement.Requirement // everything the package declares
	extras []string                  // extras whose dependencies were expanded
	active []requirement.Requirement // dependencies active in the environment
	owner  *state
}

// state is a partial resolution. States are persistent: clone before
// changing, and never change a state a frame holds as its base.
type state struct {
	assigned    map[string]*assignment
	constraints map[string][]constraint
	queue       []string // undecided names in first-seen order
	order       []string // decided names in decision order
}

func newState() *state {
	return &state{
		assigned:    make(map[string]*assignment),
		constraints: make(map[string][]constraint),
	}
}

func (s *state) clone() *state {
	return &state{
		assigned:    maps.Clone(s.assigned),
		constraints: maps.Clone(s.constraints),
		queue:       slices.Clone(s.queue),
		order:       slices.Clone(s.order),
	}
}

// next returns the oldest undecided name.
func (s *state) next() (string, bool) {
	if len(s.queue) == 0 {
		return "", false
	}
	return s.queue[0], true
}

func (s *state) enqueue(name string) {
	if _, ok := s.assigned[name]; ok || slices.Contains(s.queue, name) {
		return
	}
	s.queue = append(s.queue, name)
}

func (s *state) assign(name string, a *assignment) {
	a.owner = s
	s.assigned[name] = a
	s.queue = slices.DeleteFunc(s.queue, func(n string) bool { return n == name })
	s.order = append(s.order, name)
}

// own returns the assignment for name, copying it into s first if another
// state created it.
func (s *state) own(name string) *assignment {
	a := s.assigned[name]
	if a.owner == s {
		return a
	}
	cp := *a
	cp.extras = slices.Clone(a.extras)
	cp.active = slices.Clone(a.active)
	cp.owner = s
	s.assigned[name] = &cp
	return &cp
}

func (s *state) addConstraint(c constraint) {
	name := c.req.Name
	s.constraints[name] = append(slices.Clip(s.constraints[name]), c)
}

// requestedExtras is the sorted union of extras every constraint on name asks for.
func (s *state) requestedExtras(name string) []string {
	var out []string
	for _, c := range s.constraints[name] {
		for _, e := range c.req.Extras {
			if !slices.Contains(out, e) {
				out = append(out, e)
			}
		}
	}
	slices.Sort(out)
	return out
}

// parents returns the decided names whose requirements constrain name.
func (s *state) parents(name string) map[string]bool {
	out := make(map[string]bool)
	for _, c := range s.constraints[name] {
		if c.from != "" {
			out[c.from] = true
		}
	}
	return out
}

func (s *state) causes(name string) []Cause {
	cs := s.constraints[name]
	out := make([]Cause, len(cs))
	for i, c := range cs {
		out[i] = c.cause()
	}
	return out
}

func stripFragment(u string) string {
	u, _, _ = strings.Cut(u, "#")
	return u
}
