package resolve

import (
	"fmt"
	"maps"
	"slices"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/version"
)

// Node is one chosen package in a resolution.
type Node struct {
	Name    string
	Version version.Version
	Source  index.Source
	Digest  string
	Extras  []string // extras requested for this package, sorted

	// Dependencies are the requirements active for this package in the
	// target environment, markers already evaluated and stripped.
	Dependencies []requirement.Requirement
}

// Edge points from a package (or the project, when From is empty) to the
// package chosen to satisfy Requirement.
type Edge struct {
	From        string
	To          string
	Requirement requirement.Requirement
}

// Graph is the outcome of a successful resolution: at most one version per
// name, and every edge's target satisfies its requirement. Cycles between
// names are permitted.
//
// A Graph is immutable once returned by the resolver.
type Graph struct {
	roots []requirement.Requirement
	nodes map[string]*Node
}

// NewGraph assembles a graph from roots and nodes. It is used by the
// resolver and by lockfile loading; callers should run [Graph.Validate]
// on graphs built from untrusted input.
func NewGraph(roots []requirement.Requirement, nodes []*Node) *Graph {
	g := &Graph{roots: slices.Clone(roots), nodes: make(map[string]*Node, len(nodes))}
	for _, n := range nodes {
		g.nodes[n.Name] = n
	}
	return g
}

// Roots returns the project's active root requirements.
func (g *Graph) Roots() []requirement.Requirement { return slices.Clone(g.roots) }

// Len returns the number of packages.
func (g *Graph) Len() int { return len(g.nodes) }

// Node looks up a package by normalized name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[requirement.NormalizeName(name)]
	return n, ok
}

// Nodes returns all packages sorted by name.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, name := range slices.Sorted(maps.Keys(g.nodes)) {
		out = append(out, g.nodes[name])
	}
	return out
}

// Edges returns project edges first, then package edges ordered by source
// name and declaration order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, r := range g.roots {
		out = append(out, Edge{To: r.Name, Requirement: r})
	}
	for _, n := range g.Nodes() {
		for _, d := range n.Dependencies {
			out = append(out, Edge{From: n.Name, To: d.Name, Requirement: d})
		}
	}
	return out
}

// Children returns the names n depends on, deduplicated in declaration order.
func (g *Graph) Children(name string) []string {
	n, ok := g.Node(name)
	if !ok {
		return nil
	}
	var out []string
	for _, d := range n.Dependencies {
		if !slices.Contains(out, d.Name) {
			out = append(out, d.Name)
		}
	}
	return out
}

// Walk visits packages breadth-first from the roots. Each package is
// visited once, at its shallowest depth; cycles are not re-entered.
// Returning false from fn stops the walk.
func (g *Graph) Walk(fn func(n *Node, depth int) bool) {
	seen := make(map[string]bool)
	type item struct {
		name  string
		depth int
	}
	var queue []item
	for _, r := range g.roots {
		queue = append(queue, item{r.Name, 0})
	}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if seen[it.name] {
			continue
		}
		seen[it.name] = true
		n, ok := g.nodes[it.name]
		if !ok {
			continue
		}
		if !fn(n, it.depth) {
			return
		}
		for _, c := range g.Children(it.name) {
			queue = append(queue, item{c, it.depth + 1})
		}
	}
}

// Validate checks the graph invariants: every edge target exists and
// satisfies the requirement that produced the edge. Direct references must
// point at the URL the node was installed from.
func (g *Graph) Validate() error {
	for _, e := range g.Edges() {
		n, ok := g.nodes[e.To]
		if !ok {
			return errors.New(errors.ErrCodeUnsatisfiable, "%s is missing from the graph", describe(e))
		}
		if !satisfiedBy(n.Version, n.Source, e.Requirement) {
			return errors.New(errors.ErrCodeUnsatisfiable, "%s is not satisfied by %s %s", describe(e), n.Name, n.Version)
		}
	}
	return nil
}

func describe(e Edge) string {
	if e.From == "" {
		return fmt.Sprintf("project requirement %s", e.Requirement)
	}
	return fmt.Sprintf("%s requirement %s", e.From, e.Requirement)
}

// satisfiedBy reports whether an artifact at v from src fulfils r.
func satisfiedBy(v version.Version, src index.Source, r requirement.Requirement) bool {
	if r.URL != "" {
		return src.Kind == index.SourceURL && stripFragment(src.URL) == stripFragment(r.URL)
	}
	return r.Constraint.Satisfies(v)
}
