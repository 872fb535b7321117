package render

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/resolve"
	"github.com/matzehuels/pypackages/pkg/version"
)

func node(name, ver string, deps ...string) *resolve.Node {
	n := &resolve.Node{
		Name:    name,
		Version: version.MustParse(ver),
		Source:  index.Source{Kind: index.SourceIndex},
	}
	for _, d := range deps {
		n.Dependencies = append(n.Dependencies, requirement.MustParse(d))
	}
	return n
}

func sampleGraph() *resolve.Graph {
	roots := []requirement.Requirement{
		requirement.MustParse("requests>=2.30"),
		requirement.MustParse("click"),
	}
	return resolve.NewGraph(roots, []*resolve.Node{
		node("requests", "2.31.0", "urllib3<3", "certifi"),
		node("urllib3", "2.0.7"),
		node("certifi", "2023.7.22"),
		node("click", "8.1.7", "colorama ; platform_system == \"Windows\"", "certifi"),
	})
}

func TestTree(t *testing.T) {
	var buf bytes.Buffer
	if err := Tree(&buf, sampleGraph()); err != nil {
		t.Fatalf("Tree() error: %v", err)
	}
	want := `requests 2.31.0
├── urllib3 2.0.7
└── certifi 2023.7.22
click 8.1.7
└── certifi 2023.7.22 (*)
`
	if got := buf.String(); got != want {
		t.Errorf("Tree() =\n%s\nwant\n%s", got, want)
	}
}

func TestTreeCycle(t *testing.T) {
	g := resolve.NewGraph(
		[]requirement.Requirement{requirement.MustParse("a")},
		[]*resolve.Node{node("a", "1.0", "b"), node("b", "1.0", "a")},
	)
	var buf bytes.Buffer
	if err := Tree(&buf, g); err != nil {
		t.Fatalf("Tree() error: %v", err)
	}
	want := "a 1.0\n└── b 1.0\n    └── a 1.0 (*)\n"
	if got := buf.String(); got != want {
		t.Errorf("Tree() =\n%s\nwant\n%s", got, want)
	}
}

func TestToDOT(t *testing.T) {
	g := sampleGraph()
	dot := ToDOT(g, Options{Detailed: true, Project: "demo"})

	for _, want := range []string{
		`"__project__" [label="demo"`,
		`"requests" [label="requests 2.31.0\nsource: index"];`,
		`"__project__" -> "requests" [label=">=2.30"];`,
		`"__project__" -> "click";`,
		`"requests" -> "urllib3" [label="<3"];`,
		`"click" -> "certifi";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "colorama") {
		t.Errorf("DOT should skip edges to unresolved packages:\n%s", dot)
	}
	if again := ToDOT(g, Options{Detailed: true, Project: "demo"}); again != dot {
		t.Error("ToDOT() is not deterministic")
	}

	plain := ToDOT(g, Options{})
	if !strings.Contains(plain, `"requests" [label="requests 2.31.0"];`) {
		t.Errorf("plain DOT label wrong:\n%s", plain)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="62pt" height="44pt" viewBox="0.00 0.00 62.00 44.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	got := string(normalizeViewBox(in))
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 62.00 44.00" width="62" height="44"><g/></svg>`
	if got != want {
		t.Errorf("normalizeViewBox() =\n%s\nwant\n%s", got, want)
	}

	if got := normalizeViewBox([]byte("<svg></svg>")); string(got) != "<svg></svg>" {
		t.Errorf("normalizeViewBox() without viewBox changed input: %s", got)
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(sampleGraph(), Options{}))
	if err != nil {
		t.Fatalf("RenderSVG() error: %v", err)
	}
	if !bytes.Contains(svg, []byte("<svg")) || !bytes.Contains(svg, []byte("requests 2.31.0")) {
		t.Errorf("RenderSVG() output unexpected: %.200s", svg)
	}
}
