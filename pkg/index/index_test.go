package index

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/version"
)

func TestMemoryListVersionsNewestFirst(t *testing.T) {
	m := NewMemory().
		Add("Flask", "1.0.0").
		Add("flask", "2.1.0").
		Add("flask", "2.0.0rc1").
		Add("flask", "2.0.0")

	cs, err := m.ListVersions(context.Background(), "FLASK")
	if err != nil {
		t.Fatalf("ListVersions() error: %v", err)
	}
	want := []string{"2.1.0", "2.0.0", "2.0.0rc1", "1.0.0"}
	if len(cs) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(cs), len(want))
	}
	for i, c := range cs {
		if c.Version.String() != want[i] {
			t.Errorf("candidate %d = %s, want %s", i, c.Version, want[i])
		}
		if c.Name != "flask" {
			t.Errorf("candidate name = %q, want normalized", c.Name)
		}
	}
}

func TestMemoryErrors(t *testing.T) {
	m := NewMemory().Add("a", "1.0")
	m.SetUnavailable("down", stderrors.New("connection refused"))
	ctx := context.Background()

	if _, err := m.ListVersions(ctx, "missing"); !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("missing package err = %v", err)
	}
	_, err := m.ListVersions(ctx, "down")
	if !errors.Is(err, errors.ErrCodeIndexUnavailable) {
		t.Errorf("unavailable err = %v", err)
	}
	if !errors.Retryable(err) {
		t.Error("INDEX_UNAVAILABLE should be retryable")
	}
	if _, err := m.FetchMetadata(ctx, "a", version.MustParse("9.9")); !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("missing version metadata err = %v", err)
	}
}

func TestMemoryFetchMetadata(t *testing.T) {
	m := NewMemory().Add("requests", "2.31.0", "urllib3>=1.21.1,<3", `pysocks>=1.5.6; extra == "socks"`)
	deps, err := m.FetchMetadata(context.Background(), "requests", version.MustParse("2.31"))
	if err != nil {
		t.Fatalf("FetchMetadata() error: %v", err)
	}
	if len(deps) != 2 || deps[0].Name != "urllib3" || deps[1].Marker == nil {
		t.Errorf("FetchMetadata() = %v", deps)
	}
}

func TestSessionMemoizes(t *testing.T) {
	m := NewMemory().Add("six", "1.16.0")
	s := NewSession(m, 4)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ListVersions(ctx, "six"); err != nil {
				t.Errorf("ListVersions() error: %v", err)
			}
		}()
	}
	wg.Wait()
	s.ListVersions(ctx, "Six")

	if got := m.Calls("six"); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestSessionRemembersErrors(t *testing.T) {
	m := NewMemory()
	s := NewSession(m, 0)
	ctx := context.Background()
	for range 3 {
		if _, err := s.ListVersions(ctx, "ghost"); !errors.Is(err, errors.ErrCodePackageNotFound) {
			t.Fatalf("err = %v", err)
		}
	}
	if got := m.Calls("ghost"); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestSessionPrefetch(t *testing.T) {
	m := NewMemory().Add("a", "1.0").Add("b", "1.0").Add("c", "1.0")
	s := NewSession(m, 2)
	ctx := context.Background()

	if err := s.Prefetch(ctx, []string{"a", "b", "c", "missing"}); err != nil {
		t.Fatalf("Prefetch() error: %v", err)
	}
	for _, name := range []string{"a", "b", "c"} {
		s.ListVersions(ctx, name)
		if got := m.Calls(name); got != 1 {
			t.Errorf("%s upstream calls = %d, want 1", name, got)
		}
	}
	if _, err := s.ListVersions(ctx, "missing"); !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("prefetched failure should resurface, got %v", err)
	}
}

func TestSessionPrefetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSession(NewMemory(), 1)
	if err := s.Prefetch(ctx, []string{"a"}); err == nil {
		t.Error("Prefetch() on cancelled context should fail")
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename string
		name     string
		version  string
		wantErr  bool
	}{
		{"requests-2.31.0-py3-none-any.whl", "requests", "2.31.0", false},
		{"Zope.Interface-6.0-cp311-cp311-manylinux_2_17_x86_64.whl", "zope-interface", "6.0", false},
		{"numpy-1.26.0-1-cp311-cp311-linux_x86_64.whl", "numpy", "1.26.0", false},
		{"typing_extensions-4.8.0.tar.gz", "typing-extensions", "4.8.0", false},
		{"pkg-name-1.0rc1.zip", "pkg-name", "1.0rc1", false},
		{"README.md", "", "", true},
		{"noversion.tar.gz", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			name, v, err := ParseFilename(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFilename() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if name != tt.name || v.String() != tt.version {
				t.Errorf("ParseFilename() = %s %s, want %s %s", name, v, tt.name, tt.version)
			}
		})
	}
}

func TestCandidateFromURL(t *testing.T) {
	c, err := CandidateFromURL("https://example.com/files/six-1.16.0-py2.py3-none-any.whl#sha256=ABCDEF")
	if err != nil {
		t.Fatalf("CandidateFromURL() error: %v", err)
	}
	if c.Name != "six" || c.Version.String() != "1.16.0" {
		t.Errorf("candidate = %s", c.ID())
	}
	if c.Source.Kind != SourceURL || c.Source.URL != "https://example.com/files/six-1.16.0-py2.py3-none-any.whl" {
		t.Errorf("source = %+v", c.Source)
	}
	if c.Digest != "sha256:abcdef" {
		t.Errorf("digest = %q", c.Digest)
	}
	if !c.Source.IsWheel() {
		t.Error("IsWheel() = false")
	}
}

func TestDefaultCompatible(t *testing.T) {
	env := requirement.DefaultEnvironment("3.11.4")
	env.SysPlatform = "linux"
	compat := DefaultCompatible(env)

	cand := func(filename, requiresPython string) Candidate {
		return Candidate{Source: Source{Filename: filename}, RequiresPython: requiresPython}
	}
	tests := []struct {
		c    Candidate
		want bool
	}{
		{cand("six-1.16.0.tar.gz", ""), true},
		{cand("six-1.16.0-py2.py3-none-any.whl", ""), true},
		{cand("x-1.0-py2-none-any.whl", ""), false},
		{cand("x-1.0-cp311-cp311-manylinux_2_17_x86_64.whl", ""), true},
		{cand("x-1.0-cp310-cp310-manylinux_2_17_x86_64.whl", ""), false},
		{cand("x-1.0-cp311-abi3-win_amd64.whl", ""), false},
		{cand("x-1.0-py3-none-any.whl", ">=3.12"), false},
		{cand("x-1.0.tar.gz", ">=3.8"), true},
	}
	for _, tt := range tests {
		if got := compat(tt.c); got != tt.want {
			t.Errorf("compat(%s, %q) = %v, want %v", tt.c.Source.Filename, tt.c.RequiresPython, got, tt.want)
		}
	}
}
