package resolve

import (
	"testing"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/version"
)

func node(name, ver string, deps ...string) *Node {
	n := &Node{Name: name, Version: version.MustParse(ver), Source: index.Source{Kind: index.SourceIndex}}
	for _, d := range deps {
		n.Dependencies = append(n.Dependencies, requirement.MustParse(d))
	}
	return n
}

func TestGraphAccessors(t *testing.T) {
	g := NewGraph(roots("web"), []*Node{
		node("web", "1.0", "db>=2", "log"),
		node("log", "0.3"),
		node("db", "2.1", "log<1"),
	})

	if g.Len() != 3 {
		t.Errorf("Len() = %d", g.Len())
	}
	if n, ok := g.Node("DB"); !ok || n.Version.String() != "2.1" {
		t.Errorf("Node(DB) = %v, %v", n, ok)
	}
	names := ""
	for _, n := range g.Nodes() {
		names += n.Name + " "
	}
	if names != "db log web " {
		t.Errorf("Nodes() order = %q", names)
	}
	edges := g.Edges()
	if len(edges) != 4 || edges[0].From != "" || edges[0].To != "web" {
		t.Errorf("Edges() = %+v", edges)
	}
	if c := g.Children("web"); len(c) != 2 || c[0] != "db" {
		t.Errorf("Children(web) = %v", c)
	}

	var order []string
	depths := map[string]int{}
	g.Walk(func(n *Node, depth int) bool {
		order = append(order, n.Name)
		depths[n.Name] = depth
		return true
	})
	if len(order) != 3 || order[0] != "web" || depths["log"] != 1 {
		t.Errorf("Walk order = %v depths = %v", order, depths)
	}

	visited := 0
	g.Walk(func(*Node, int) bool { visited++; return false })
	if visited != 1 {
		t.Errorf("Walk should stop when fn returns false, visited %d", visited)
	}
}

func TestGraphValidate(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []*Node
		wantErr bool
	}{
		{"valid", []*Node{node("web", "1.0", "db>=2"), node("db", "2.0")}, false},
		{"missing target", []*Node{node("web", "1.0", "db>=2")}, true},
		{"unsatisfied edge", []*Node{node("web", "1.0", "db>=2"), node("db", "1.9")}, true},
		{"missing root", []*Node{node("db", "2.0")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGraph(roots("web"), tt.nodes).Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeUnsatisfiable) {
				t.Errorf("Validate() code = %s", errors.GetCode(err))
			}
		})
	}
}

func TestConflictError(t *testing.T) {
	c := newConflict([]Incompatibility{{
		Package: "a",
		Reason:  "b 1.0 requires a<2.0, but a 2.0 is selected",
		Causes: []Cause{
			{Requirement: "a>=2.0"},
			{Requirement: "a<2.0", From: "b", FromVersion: "1.0"},
		},
	}})
	if len(c.Packages) != 2 || c.Packages[0] != "a" || c.Packages[1] != "b" {
		t.Errorf("Packages = %v", c.Packages)
	}
	want := "conflict between a, b: b 1.0 requires a<2.0, but a 2.0 is selected: " +
		"a>=2.0 (required by the project), a<2.0 (required by b 1.0)"
	if got := c.Error(); got != want {
		t.Errorf("Error() =\n%s\nwant\n%s", got, want)
	}
}
