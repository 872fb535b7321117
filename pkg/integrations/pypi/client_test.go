package pypi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/pypackages/pkg/cache"
	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/version"
)

func fakePyPI(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if hits != nil {
				hits.Add(1)
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/flask/json", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(projectResponse{
			Info: apiInfo{Name: "Flask", Version: "2.0.0"},
			Releases: map[string][]apiFile{
				"1.1.4": {
					{Filename: "Flask-1.1.4.tar.gz", URL: "https://files/Flask-1.1.4.tar.gz", PackageType: "sdist", Digests: map[string]string{"sha256": "AA11"}},
				},
				"2.0.0": {
					{Filename: "Flask-2.0.0.tar.gz", URL: "https://files/Flask-2.0.0.tar.gz", PackageType: "sdist", Digests: map[string]string{"sha256": "bb22"}},
					{Filename: "Flask-2.0.0-py3-none-any.whl", URL: "https://files/Flask-2.0.0-py3-none-any.whl", PackageType: "bdist_wheel", Digests: map[string]string{"sha256": "cc33"}, RequiresPython: ">=3.6"},
					{Filename: "Flask-2.0.0.exe", PackageType: "bdist_wininst"},
				},
				"2.1.0rc1": {
					{Filename: "Flask-2.1.0rc1.tar.gz", URL: "https://files/Flask-2.1.0rc1.tar.gz", PackageType: "sdist", Yanked: true},
				},
				"not-a-version": {
					{Filename: "Flask-bogus.tar.gz", URL: "https://files/bogus", PackageType: "sdist"},
				},
			},
		})
	})
	r.Get("/flask/{version}/json", func(w http.ResponseWriter, req *http.Request) {
		if chi.URLParam(req, "version") != "2.0.0" {
			http.NotFound(w, req)
			return
		}
		json.NewEncoder(w).Encode(projectResponse{
			Info: apiInfo{
				Name:         "Flask",
				Version:      "2.0.0",
				RequiresDist: []string{"Werkzeug>=2.0", "click (>=7.1.2)", `asgiref>=3.2; extra == "async"`, "%%% garbage"},
			},
		})
	})
	r.Get("/flaky/json", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	backend, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { backend.Close() })
	c := NewClient(backend, serverURL+"/")
	c.SetRetry(2, time.Millisecond)
	return c
}

func TestClientListVersions(t *testing.T) {
	srv := fakePyPI(t, nil)
	c := testClient(t, srv.URL)

	cs, err := c.ListVersions(context.Background(), "Flask")
	if err != nil {
		t.Fatalf("ListVersions() error: %v", err)
	}
	want := []string{
		"Flask-2.1.0rc1.tar.gz",
		"Flask-2.0.0-py3-none-any.whl",
		"Flask-2.0.0.tar.gz",
		"Flask-1.1.4.tar.gz",
	}
	if len(cs) != len(want) {
		t.Fatalf("got %d candidates, want %d: %+v", len(cs), len(want), cs)
	}
	for i, c := range cs {
		if c.Source.Filename != want[i] {
			t.Errorf("candidate %d = %s, want %s", i, c.Source.Filename, want[i])
		}
		if c.Name != "flask" {
			t.Errorf("candidate name = %q", c.Name)
		}
	}
	if cs[0].Yanked != true {
		t.Error("yanked flag not carried")
	}
	if cs[1].Digest != "sha256:cc33" || cs[1].RequiresPython != ">=3.6" {
		t.Errorf("wheel candidate = %+v", cs[1])
	}
	if cs[3].Digest != "sha256:aa11" {
		t.Errorf("digest should be lowercased, got %q", cs[3].Digest)
	}
}

func TestClientListVersionsCached(t *testing.T) {
	var hits atomic.Int32
	srv := fakePyPI(t, &hits)
	c := testClient(t, srv.URL)
	ctx := context.Background()

	for range 3 {
		if _, err := c.ListVersions(ctx, "flask"); err != nil {
			t.Fatal(err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}

	c.SetRefresh(true)
	c.ListVersions(ctx, "flask")
	if hits.Load() != 2 {
		t.Errorf("refresh should bypass cache, hits = %d", hits.Load())
	}
}

func TestClientFetchMetadata(t *testing.T) {
	srv := fakePyPI(t, nil)
	c := testClient(t, srv.URL)

	deps, err := c.FetchMetadata(context.Background(), "flask", version.MustParse("2.0.0"))
	if err != nil {
		t.Fatalf("FetchMetadata() error: %v", err)
	}
	if len(deps) != 3 {
		t.Fatalf("got %d deps, want 3 (garbage dropped): %v", len(deps), deps)
	}
	if deps[0].Name != "werkzeug" || deps[1].Constraint.String() != ">=7.1.2" {
		t.Errorf("deps = %v", deps)
	}
	if deps[2].Marker == nil || !deps[2].Marker.ReferencesExtra() {
		t.Errorf("extra marker lost: %v", deps[2])
	}
}

func TestClientErrors(t *testing.T) {
	srv := fakePyPI(t, nil)
	c := testClient(t, srv.URL)
	ctx := context.Background()

	if _, err := c.ListVersions(ctx, "missing-pkg"); !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("404 err = %v, want PACKAGE_NOT_FOUND", err)
	}
	if _, err := c.FetchMetadata(ctx, "flask", version.MustParse("9.0")); !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("missing version err = %v, want PACKAGE_NOT_FOUND", err)
	}
	_, err := c.ListVersions(ctx, "flaky")
	if !errors.Is(err, errors.ErrCodeIndexUnavailable) {
		t.Errorf("502 err = %v, want INDEX_UNAVAILABLE", err)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(nil, "")
	if c.BaseURL() != DefaultIndexURL {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
}
