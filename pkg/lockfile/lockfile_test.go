package lockfile

import (
	"bytes"
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/resolve"
	"github.com/matzehuels/pypackages/pkg/version"
)

func reqs(specs ...string) []requirement.Requirement {
	out := make([]requirement.Requirement, len(specs))
	for i, s := range specs {
		out[i] = requirement.MustParse(s)
	}
	return out
}

func entry(name, ver string, deps ...string) Entry {
	if deps == nil {
		deps = []string{}
	}
	return Entry{
		Name:         name,
		Version:      version.MustParse(ver),
		Source:       "https://files.example.com/" + name + "-" + ver + ".tar.gz",
		Digest:       "sha256:" + strings.Repeat("ab", 32),
		Dependencies: deps,
	}
}

func env() requirement.Environment { return requirement.DefaultEnvironment("3.11") }

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		packages []Entry
	}{
		{"empty", []Entry{}},
		{"single", []Entry{entry("six", "1.16.0")}},
		{"many", []Entry{
			entry("requests", "2.31.0", "certifi>=2017.4.17", "urllib3<3,>=1.21.1"),
			entry("certifi", "2023.7.22"),
			entry("urllib3", "2.0.7"),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lf := &Lockfile{Version: FormatVersion, Python: "3.11", RequirementsHash: "deadbeef", Packages: tt.packages}
			data, err := lf.Marshal()
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			got, err := Unmarshal(data)
			if err != nil {
				t.Fatalf("Unmarshal() error: %v\n%s", err, data)
			}
			if len(got.Packages) != len(tt.packages) {
				t.Fatalf("got %d packages, want %d", len(got.Packages), len(tt.packages))
			}
			for i := 1; i < len(got.Packages); i++ {
				if got.Packages[i-1].Name >= got.Packages[i].Name {
					t.Errorf("packages not sorted: %s before %s", got.Packages[i-1].Name, got.Packages[i].Name)
				}
			}
			for _, want := range tt.packages {
				e, ok := got.Entry(want.Name)
				if !ok {
					t.Fatalf("Entry(%s) missing", want.Name)
				}
				if !version.Equal(e.Version, want.Version) || e.Source != want.Source || e.Digest != want.Digest {
					t.Errorf("Entry(%s) = %+v, want %+v", want.Name, e, want)
				}
				if strings.Join(e.Dependencies, ";") != strings.Join(want.Dependencies, ";") {
					t.Errorf("Entry(%s).Dependencies = %v, want %v", want.Name, e.Dependencies, want.Dependencies)
				}
			}
			again, err := got.Marshal()
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			if !bytes.Equal(data, again) {
				t.Errorf("second Marshal differs:\n%s\n---\n%s", data, again)
			}
		})
	}
}

func TestMarshalFormat(t *testing.T) {
	lf := &Lockfile{
		Version:          FormatVersion,
		Python:           "3.11",
		RequirementsHash: "1f",
		Packages: []Entry{{
			Name:         "six",
			Version:      version.MustParse("1.16.0"),
			Source:       "https://files.example.com/six-1.16.0.tar.gz",
			Digest:       "sha256:00",
			Dependencies: nil,
		}},
	}
	data, err := lf.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	s := string(data)
	for _, want := range []string{
		"# This file is generated by pypackages",
		"version = 1\n",
		`python = "3.11"`,
		`requirements-hash = "1f"`,
		"[[package]]\n",
		`name = "six"`,
		`version = "1.16.0"`,
		"dependencies = []",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "direct") || strings.Contains(s, "extras") {
		t.Errorf("empty optional fields should be omitted:\n%s", s)
	}
}

func TestUnmarshalCorrupt(t *testing.T) {
	const pkg = `
[[package]]
name = "six"
version = "1.16.0"
source = "https://example.com/six.tar.gz"
digest = "sha256:00"
dependencies = []
`
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "version = = 1"},
		{"missing version", "python = \"3.11\"\n"},
		{"future version", "version = 9\npython = \"3.11\"\n"},
		{"missing python", "version = 1\n"},
		{"bad package version", strings.Replace("version = 1\npython = \"3.11\"\n"+pkg, `"1.16.0"`, `"not a version"`, 1)},
		{"missing package version", strings.Replace("version = 1\npython = \"3.11\"\n"+pkg, "version = \"1.16.0\"\n", "", 1)},
		{"missing name", strings.Replace("version = 1\npython = \"3.11\"\n"+pkg, "name = \"six\"\n", "", 1)},
		{"unnormalized name", strings.Replace("version = 1\npython = \"3.11\"\n"+pkg, `"six"`, `"Six_Pkg"`, 1)},
		{"missing source", strings.Replace("version = 1\npython = \"3.11\"\n"+pkg, "source = \"https://example.com/six.tar.gz\"\n", "", 1)},
		{"bad digest", strings.Replace("version = 1\npython = \"3.11\"\n"+pkg, "sha256:00", "md5:00", 1)},
		{"bad dependency", strings.Replace("version = 1\npython = \"3.11\"\n"+pkg, "dependencies = []", `dependencies = ["!!"]`, 1)},
		{"duplicate", "version = 1\npython = \"3.11\"\n" + pkg + pkg},
		{"wrong type", "version = \"one\"\npython = \"3.11\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			if err == nil {
				t.Fatal("Unmarshal() succeeded, want error")
			}
			if !errors.Is(err, errors.ErrCodeCorruptLockfile) {
				t.Errorf("Unmarshal() code = %s, want CORRUPT_LOCKFILE", errors.GetCode(err))
			}
		})
	}
}

func TestReadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultName)

	if _, err := Read(path); !stderrors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Read(missing) error = %v, want fs.ErrNotExist", err)
	}

	lf := &Lockfile{Version: FormatVersion, Python: "3.11", Packages: []Entry{entry("six", "1.16.0")}}
	if err := Write(path, lf); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if len(got.Packages) != 1 || got.Packages[0].Name != "six" {
		t.Errorf("Read() = %+v", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}

	if err := os.WriteFile(path, []byte("garbage ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); !errors.Is(err, errors.ErrCodeCorruptLockfile) {
		t.Errorf("Read(corrupt) error = %v", err)
	}
}

func TestRequirementsHash(t *testing.T) {
	a := RequirementsHash(reqs("requests>=2", "Flask"), "3.11")
	b := RequirementsHash(reqs("flask", "requests>=2"), "3.11")
	if a != b {
		t.Errorf("hash depends on order or spelling: %s != %s", a, b)
	}
	if a == RequirementsHash(reqs("flask", "requests>=3"), "3.11") {
		t.Error("hash ignores constraint change")
	}
	if a == RequirementsHash(reqs("flask", "requests>=2"), "3.12") {
		t.Error("hash ignores python version")
	}
}

func resolveGraph(t *testing.T, roots []requirement.Requirement) *resolve.Graph {
	t.Helper()
	idx := index.NewMemory().
		Add("web", "1.0", "db>=2", "log").
		Add("db", "2.1", "log<1").
		Add("db", "1.0").
		Add("log", "0.3").
		Add("log", "1.2")
	g, err := resolve.New(idx).Resolve(context.Background(), roots, resolve.Options{Environment: env()})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	return g
}

func TestFromGraphDeterministic(t *testing.T) {
	roots := reqs("web")
	var first []byte
	for i := 0; i < 3; i++ {
		data, err := FromGraph(resolveGraph(t, roots), "3.11", roots).Marshal()
		if err != nil {
			t.Fatalf("Marshal() error: %v", err)
		}
		if first == nil {
			first = data
			continue
		}
		if !bytes.Equal(first, data) {
			t.Fatalf("run %d produced different bytes:\n%s\n---\n%s", i, first, data)
		}
	}
	lf, err := Unmarshal(first)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if e, _ := lf.Entry("log"); e.Version.String() != "0.3" {
		t.Errorf("log = %s, want 0.3", e.Version)
	}
	if locked := lf.Locked(); len(locked) != 3 || locked["db"].String() != "2.1" {
		t.Errorf("Locked() = %v", locked)
	}
}

func TestValidate(t *testing.T) {
	roots := reqs("web")
	lf := FromGraph(resolveGraph(t, roots), "3.11", roots)

	if err := lf.Validate(roots, env()); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if !lf.Fresh(roots, env()) {
		t.Error("Fresh() = false for unchanged requirements")
	}

	tests := []struct {
		name  string
		roots []requirement.Requirement
		env   requirement.Environment
		edit  func(*Lockfile)
	}{
		{"requirements changed", reqs("web", "extra-pkg"), env(), nil},
		{"python changed", roots, requirement.DefaultEnvironment("3.12"), nil},
		{"entry removed", roots, env(), func(lf *Lockfile) {
			lf.Packages = lf.Packages[1:]
		}},
		{"unsatisfied dependency", roots, env(), func(lf *Lockfile) {
			for i := range lf.Packages {
				if lf.Packages[i].Name == "log" {
					lf.Packages[i].Version = version.MustParse("1.2")
				}
			}
		}},
		{"extra not locked", reqs("web[fast]"), env(), func(lf *Lockfile) {
			lf.RequirementsHash = RequirementsHash(reqs("web[fast]"), "3.11")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := FromGraph(resolveGraph(t, roots), "3.11", roots)
			if tt.edit != nil {
				tt.edit(c)
			}
			err := c.Validate(tt.roots, tt.env)
			if c.Fresh(tt.roots, tt.env) {
				t.Error("Fresh() = true for a stale lockfile")
			}
			if !errors.Is(err, errors.ErrCodeStaleLockfile) {
				t.Errorf("Validate() error = %v, want STALE_LOCKFILE", err)
			}
		})
	}
}

func TestGraphFromLockfile(t *testing.T) {
	roots := reqs("web", `colorama ; sys_platform == "win32"`)
	lf := FromGraph(resolveGraph(t, reqs("web")), "3.11", roots)
	linux := env()
	linux.SysPlatform = "linux"

	g, err := lf.Graph(roots, linux)
	if err != nil {
		t.Fatalf("Graph() error: %v", err)
	}
	if r := g.Roots(); len(r) != 1 || r[0].Name != "web" {
		t.Errorf("Roots() = %v, want only web", r)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	if n, ok := g.Node("db"); !ok || n.Source.Kind != index.SourceIndex || n.Source.Filename != "db-2.1.tar.gz" {
		t.Errorf("Node(db) = %+v", n)
	}
}
