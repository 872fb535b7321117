package resolve

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// maxReportedCauses bounds how many incompatibilities Error() prints.
const maxReportedCauses = 5

// Cause is one constraint that took part in a conflict.
type Cause struct {
	Requirement string // canonical requirement string
	From        string // requiring package, empty for the project
	FromVersion string // version of the requiring package, empty for the project
}

func (c Cause) String() string {
	if c.From == "" {
		return c.Requirement + " (required by the project)"
	}
	return fmt.Sprintf("%s (required by %s %s)", c.Requirement, c.From, c.FromVersion)
}

// Incompatibility is a learned fact: the listed constraints on Package
// cannot hold together with the decisions that were in force.
type Incompatibility struct {
	Package string
	Reason  string
	Causes  []Cause
}

func (i Incompatibility) String() string {
	if len(i.Causes) == 0 {
		return i.Reason
	}
	parts := make([]string, len(i.Causes))
	for j, c := range i.Causes {
		parts[j] = c.String()
	}
	return i.Reason + ": " + strings.Join(parts, ", ")
}

// Conflict explains an unsatisfiable resolution. It is carried as the cause
// of an UNSATISFIABLE error; retrieve it with errors.As.
type Conflict struct {
	// Packages names every package involved in the failing chain, sorted.
	Packages []string
	// Incompatibilities lists the learned facts that led to exhaustion,
	// oldest first.
	Incompatibilities []Incompatibility
}

func newConflict(why []Incompatibility) *Conflict {
	names := make(map[string]bool)
	for _, inc := range why {
		names[inc.Package] = true
		for _, c := range inc.Causes {
			if c.From != "" {
				names[c.From] = true
			}
		}
	}
	return &Conflict{Packages: slices.Sorted(maps.Keys(names)), Incompatibilities: why}
}

// Involves reports whether name took part in the conflict.
func (c *Conflict) Involves(name string) bool { return slices.Contains(c.Packages, name) }

func (c *Conflict) Error() string {
	why := c.Incompatibilities
	if len(why) > maxReportedCauses {
		why = why[len(why)-maxReportedCauses:]
	}
	lines := make([]string, len(why))
	for i, inc := range why {
		lines[i] = inc.String()
	}
	return fmt.Sprintf("conflict between %s: %s", strings.Join(c.Packages, ", "), strings.Join(lines, "; "))
}
