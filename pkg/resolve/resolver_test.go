package resolve

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/version"
)

func roots(specs ...string) []requirement.Requirement {
	out := make([]requirement.Requirement, len(specs))
	for i, s := range specs {
		out[i] = requirement.MustParse(s)
	}
	return out
}

func linuxEnv() requirement.Environment {
	env := requirement.DefaultEnvironment("3.11.4")
	env.SysPlatform = "linux"
	env.PlatformSystem = "Linux"
	env.OSName = "posix"
	return env
}

func resolve(t *testing.T, idx index.Client, opts Options, specs ...string) (*Graph, error) {
	t.Helper()
	if opts.Environment == (requirement.Environment{}) {
		opts.Environment = linuxEnv()
	}
	return New(idx).Resolve(context.Background(), roots(specs...), opts)
}

func versions(g *Graph) string {
	var parts []string
	for _, n := range g.Nodes() {
		parts = append(parts, n.Name+"=="+n.Version.String())
	}
	return strings.Join(parts, " ")
}

func TestResolveTransitive(t *testing.T) {
	idx := index.NewMemory().
		Add("requests", "2.31.0", "urllib3>=1.21.1,<3", "idna>=2.5,<4", "certifi>=2017.4.17").
		Add("requests", "2.30.0", "urllib3>=1.21.1,<3").
		Add("urllib3", "2.0.7").
		Add("urllib3", "1.26.18").
		Add("urllib3", "3.0.0").
		Add("idna", "3.4").
		Add("certifi", "2023.7.22")

	g, err := resolve(t, idx, Options{}, "requests>=2.30")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	want := "certifi==2023.7.22 idna==3.4 requests==2.31.0 urllib3==2.0.7"
	if got := versions(g); got != want {
		t.Errorf("Resolve() = %s, want %s", got, want)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestResolveDeterministic(t *testing.T) {
	build := func() *index.Memory {
		return index.NewMemory().
			Add("a", "1.0", "c>=1", "d").
			Add("b", "1.0", "c<3", "d>=2").
			Add("c", "1.0").Add("c", "2.0").Add("c", "3.0").
			Add("d", "1.0").Add("d", "2.0", "e").
			Add("e", "0.1")
	}
	var first string
	for i := range 5 {
		g, err := resolve(t, build(), Options{}, "a", "b")
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		var edges []string
		for _, e := range g.Edges() {
			edges = append(edges, fmt.Sprintf("%s->%s(%s)", e.From, e.To, e.Requirement))
		}
		got := versions(g) + " | " + strings.Join(edges, ",")
		if i == 0 {
			first = got
		} else if got != first {
			t.Fatalf("run %d differs:\n%s\n%s", i, got, first)
		}
	}
	if !strings.HasPrefix(first, "a==1.0 b==1.0 c==2.0 d==2.0 e==0.1") {
		t.Errorf("unexpected resolution: %s", first)
	}
}

func TestResolveConflictNamesBothPackages(t *testing.T) {
	idx := index.NewMemory().
		Add("a", "1.0").
		Add("a", "2.0").
		Add("a", "2.1").
		Add("b", "1.0", "a<2.0")

	_, err := resolve(t, idx, Options{}, "A>=2.0", "B==1.0")
	if !errors.Is(err, errors.ErrCodeUnsatisfiable) {
		t.Fatalf("err = %v, want UNSATISFIABLE", err)
	}
	var c *Conflict
	if !stderrors.As(err, &c) {
		t.Fatalf("err does not carry *Conflict: %v", err)
	}
	if !c.Involves("a") || !c.Involves("b") {
		t.Errorf("Conflict.Packages = %v, want a and b", c.Packages)
	}
	msg := err.Error()
	if !strings.Contains(msg, "a<2.0") || !strings.Contains(msg, "a>=2.0") {
		t.Errorf("message should quote both requirements: %s", msg)
	}
}

func TestResolveBacktracks(t *testing.T) {
	idx := index.NewMemory().
		Add("a", "2.0", "c>=2").
		Add("a", "1.0", "c<2").
		Add("b", "1.0", "c<2").
		Add("c", "1.0").
		Add("c", "2.0")

	g, err := resolve(t, idx, Options{}, "a", "b")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got, want := versions(g), "a==1.0 b==1.0 c==1.0"; got != want {
		t.Errorf("Resolve() = %s, want %s", got, want)
	}
}

func TestResolveBackjumpsOverUnrelatedDecisions(t *testing.T) {
	idx := index.NewMemory().
		Add("a", "2.0", "z==2").
		Add("a", "1.0", "z==1").
		Add("b", "3.0").Add("b", "2.0").Add("b", "1.0").
		Add("c", "1.0", "z==1").
		Add("z", "1.0").Add("z", "2.0")

	g, err := resolve(t, idx, Options{}, "a", "b", "c")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got, want := versions(g), "a==1.0 b==3.0 c==1.0 z==1.0"; got != want {
		t.Errorf("Resolve() = %s, want %s", got, want)
	}
}

func TestResolveCycle(t *testing.T) {
	idx := index.NewMemory().
		Add("a", "1.0", "b>=1").
		Add("b", "1.0", "a>=1").
		Add("b", "2.0", "a>=2")

	g, err := resolve(t, idx, Options{}, "a")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got, want := versions(g), "a==1.0 b==1.0"; got != want {
		t.Errorf("Resolve() = %s, want %s", got, want)
	}
	visits := 0
	g.Walk(func(*Node, int) bool { visits++; return true })
	if visits != 2 {
		t.Errorf("Walk visited %d nodes, want 2", visits)
	}
}

func TestResolveExtras(t *testing.T) {
	idx := index.NewMemory().
		Add("requests", "2.31.0", "urllib3", `pysocks>=1.5; extra == "socks"`, `chardet; extra == "use-chardet"`).
		Add("urllib3", "2.0.7").
		Add("pysocks", "1.7.1").
		Add("chardet", "5.2.0").
		Add("tool", "1.0", "requests[socks]")

	g, err := resolve(t, idx, Options{}, "requests")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.Node("pysocks"); ok {
		t.Error("extra dependency installed without the extra")
	}

	g, err = resolve(t, idx, Options{}, "requests", "tool")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := versions(g), "pysocks==1.7.1 requests==2.31.0 tool==1.0 urllib3==2.0.7"; got != want {
		t.Errorf("late extra: Resolve() = %s, want %s", got, want)
	}
	n, _ := g.Node("requests")
	if len(n.Extras) != 1 || n.Extras[0] != "socks" {
		t.Errorf("requests extras = %v", n.Extras)
	}
	if len(n.Dependencies) != 2 || n.Dependencies[1].Marker != nil {
		t.Errorf("requests dependencies = %v", n.Dependencies)
	}
}

func TestResolveMarkers(t *testing.T) {
	idx := index.NewMemory().
		Add("app", "1.0", `pywin32; sys_platform == "win32"`, `uvloop; sys_platform != "win32"`).
		Add("uvloop", "0.19.0")

	g, err := resolve(t, idx, Options{}, "app", `colorama; os_name == "nt"`)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got, want := versions(g), "app==1.0 uvloop==0.19.0"; got != want {
		t.Errorf("Resolve() = %s, want %s", got, want)
	}
	if len(g.Roots()) != 1 {
		t.Errorf("inactive root kept: %v", g.Roots())
	}
}

func TestResolvePrefersLocked(t *testing.T) {
	idx := index.NewMemory().Add("a", "1.0").Add("a", "1.5").Add("a", "2.0")

	tests := []struct {
		name   string
		locked string
		spec   string
		want   string
	}{
		{"locked kept", "1.5", "a", "1.5"},
		{"locked no longer satisfies", "1.0", "a>=1.5", "2.0"},
		{"locked missing from index", "1.7", "a", "2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{Locked: map[string]version.Version{"a": version.MustParse(tt.locked)}}
			g, err := resolve(t, idx, opts, tt.spec)
			if err != nil {
				t.Fatal(err)
			}
			if n, _ := g.Node("a"); n.Version.String() != tt.want {
				t.Errorf("chose %s, want %s", n.Version, tt.want)
			}
		})
	}
}

func TestResolvePrereleasePolicy(t *testing.T) {
	idx := index.NewMemory().Add("a", "1.0").Add("a", "2.0b1")

	tests := []struct {
		name    string
		policy  version.PrereleasePolicy
		spec    string
		want    string
		wantErr bool
	}{
		{"explicit skips", version.PrereleaseExplicit, "a", "1.0", false},
		{"explicit pin", version.PrereleaseExplicit, "a==2.0b1", "2.0b1", false},
		{"explicit unsatisfiable", version.PrereleaseExplicit, "a>=2.0a0", "", true},
		{"allow", version.PrereleaseAllow, "a", "2.0b1", false},
		{"if necessary prefers final", version.PrereleaseIfNecessary, "a", "1.0", false},
		{"if necessary falls back", version.PrereleaseIfNecessary, "a>=2.0a0", "2.0b1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := resolve(t, idx, Options{Prereleases: tt.policy}, tt.spec)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeUnsatisfiable) {
					t.Fatalf("err = %v, want UNSATISFIABLE", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if n, _ := g.Node("a"); n.Version.String() != tt.want {
				t.Errorf("chose %s, want %s", n.Version, tt.want)
			}
		})
	}
}

func TestResolveSkipsYanked(t *testing.T) {
	idx := index.NewMemory().Add("a", "1.0")
	idx.AddCandidate(index.Candidate{
		Name:    "a",
		Version: version.MustParse("1.1"),
		Source:  index.Source{Kind: index.SourceIndex, URL: "memory://a/1.1", Filename: "a-1.1.tar.gz"},
		Yanked:  true,
	})

	g, err := resolve(t, idx, Options{}, "a")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := g.Node("a"); n.Version.String() != "1.0" {
		t.Errorf("chose yanked %s", n.Version)
	}
	g, err = resolve(t, idx, Options{}, "a==1.1")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := g.Node("a"); n.Version.String() != "1.1" {
		t.Errorf("pinned yanked release not chosen, got %s", n.Version)
	}
}

func TestResolveSourcePolicy(t *testing.T) {
	idx := index.NewMemory().Add("a", "1.0").Add("a", "2.0")
	overrides := map[string]string{"a": "https://mirror.example/a-1.0.tar.gz#sha256=00ff"}

	tests := []struct {
		policy  SourcePolicy
		spec    string
		version string
		kind    index.SourceKind
	}{
		{IndexFirst, "a==1.0", "1.0", index.SourceIndex},
		{URLFirst, "a==1.0", "1.0", index.SourceURL},
		{IndexFirst, "a", "2.0", index.SourceIndex},
		{URLOnly, "a", "1.0", index.SourceURL},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String()+"/"+tt.spec, func(t *testing.T) {
			g, err := resolve(t, idx, Options{SourcePolicy: tt.policy, URLOverrides: overrides}, tt.spec)
			if err != nil {
				t.Fatal(err)
			}
			n, _ := g.Node("a")
			if n.Version.String() != tt.version || n.Source.Kind != tt.kind {
				t.Errorf("chose %s from %s, want %s from %s", n.Version, n.Source.Kind, tt.version, tt.kind)
			}
			if tt.kind == index.SourceURL && n.Digest != "sha256:00ff" {
				t.Errorf("override digest = %q", n.Digest)
			}
		})
	}
}

func TestParseSourcePolicy(t *testing.T) {
	for _, s := range []string{"index-first", "url-first", "url-only", ""} {
		if _, err := ParseSourcePolicy(s); err != nil {
			t.Errorf("ParseSourcePolicy(%q) error: %v", s, err)
		}
	}
	if _, err := ParseSourcePolicy("mirror-first"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("unknown policy err = %v", err)
	}
}

func TestResolveDirectReference(t *testing.T) {
	idx := index.NewMemory().Add("six", "1.16.0")
	g, err := resolve(t, idx, Options{}, "six @ https://example.com/six-1.15.0-py2.py3-none-any.whl")
	if err != nil {
		t.Fatal(err)
	}
	n, _ := g.Node("six")
	if n.Version.String() != "1.15.0" || n.Source.Kind != index.SourceURL {
		t.Errorf("direct reference not honored: %s %s", n.Version, n.Source.Kind)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestResolveNotFound(t *testing.T) {
	idx := index.NewMemory().
		Add("a", "2.0", "ghost").
		Add("a", "1.0")

	_, err := resolve(t, idx, Options{}, "missing")
	if !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("root missing err = %v, want PACKAGE_NOT_FOUND", err)
	}

	g, err := resolve(t, idx, Options{}, "a")
	if err != nil {
		t.Fatalf("transitive missing should backtrack, got %v", err)
	}
	if n, _ := g.Node("a"); n.Version.String() != "1.0" {
		t.Errorf("chose a %s, want 1.0", n.Version)
	}

	_, err = resolve(t, idx, Options{}, "a==2.0")
	var c *Conflict
	if !errors.Is(err, errors.ErrCodeUnsatisfiable) || !stderrors.As(err, &c) || !c.Involves("a") {
		t.Errorf("pinned parent with missing dependency: err = %v", err)
	}
}

func TestResolveIndexUnavailable(t *testing.T) {
	idx := index.NewMemory().Add("a", "1.0", "b")
	idx.SetUnavailable("b", stderrors.New("503"))

	_, err := resolve(t, idx, Options{}, "a")
	if !errors.Is(err, errors.ErrCodeIndexUnavailable) {
		t.Errorf("err = %v, want INDEX_UNAVAILABLE", err)
	}
}

func TestResolveCompatible(t *testing.T) {
	idx := index.NewMemory().Add("a", "1.0").Add("a", "2.0")
	compat := func(c index.Candidate) bool { return c.Version.Segment(0) < 2 }

	g, err := resolve(t, idx, Options{Compatible: compat}, "a")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := g.Node("a"); n.Version.String() != "1.0" {
		t.Errorf("incompatible candidate chosen: %s", n.Version)
	}
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(index.NewMemory().Add("a", "1.0")).Resolve(ctx, roots("a"), Options{})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestResolveEmpty(t *testing.T) {
	g, err := resolve(t, index.NewMemory(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 0 || len(g.Edges()) != 0 {
		t.Errorf("empty resolution has %d nodes", g.Len())
	}
}
