package pypi

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/pypackages/pkg/cache"
	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/integrations"
	"github.com/matzehuels/pypackages/pkg/requirement"
	"github.com/matzehuels/pypackages/pkg/version"
)

// DefaultIndexURL is the public PyPI JSON API root.
const DefaultIndexURL = "https://pypi.org/pypi"

// Client provides access to a PyPI-compatible JSON API.
// It handles HTTP requests with caching and automatic retries.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
	keyer   cache.Keyer
	refresh bool
	ttl     time.Duration
}

// NewClient creates a client for the JSON API rooted at baseURL (for
// example "https://pypi.org/pypi"). An empty baseURL selects PyPI.
// Responses are cached in backend under keys scoped to baseURL; pass nil
// to disable caching.
func NewClient(backend cache.Cache, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultIndexURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		Client:  integrations.NewClient(backend, "pypi:", cache.TTLReleases, map[string]string{"Accept": "application/json"}),
		baseURL: baseURL,
		keyer:   cache.NewIndexKeyer(baseURL),
		ttl:     cache.TTLReleases,
	}
}

// SetRefresh makes subsequent queries bypass cached responses.
func (c *Client) SetRefresh(refresh bool) { c.refresh = refresh }

// SetReleasesTTL sets how long release lists stay cached. Per-version
// metadata is immutable and keeps [cache.TTLMetadata].
func (c *Client) SetReleasesTTL(ttl time.Duration) {
	if ttl > 0 {
		c.ttl = ttl
	}
}

// BaseURL returns the API root this client queries.
func (c *Client) BaseURL() string { return c.baseURL }

// ListVersions returns one candidate per distribution file, newest version
// first. Within a version wheels precede the sdist. Versions whose string
// is not valid PEP 440 are skipped.
func (c *Client) ListVersions(ctx context.Context, name string) ([]index.Candidate, error) {
	name = integrations.NormalizePkgName(name)

	var files []fileRecord
	err := c.CachedTTL(ctx, c.keyer.ReleasesKey(name), c.ttl, c.refresh, &files, func() error {
		var data projectResponse
		if err := c.Get(ctx, fmt.Sprintf("%s/%s/json", c.baseURL, integrations.URLEncode(name)), &data); err != nil {
			return err
		}
		files = data.files()
		return nil
	})
	if err != nil {
		return nil, c.mapError(ctx, name, err)
	}

	out := make([]index.Candidate, 0, len(files))
	for _, f := range files {
		v, err := version.Parse(f.Version)
		if err != nil {
			continue
		}
		out = append(out, index.Candidate{
			Name:           name,
			Version:        v,
			Source:         index.Source{Kind: index.SourceIndex, URL: f.URL, Filename: f.Filename},
			Digest:         f.Digest,
			RequiresPython: f.RequiresPython,
			Yanked:         f.Yanked,
		})
	}
	slices.SortStableFunc(out, func(a, b index.Candidate) int {
		if n := version.Compare(b.Version, a.Version); n != 0 {
			return n
		}
		return boolRank(b.Source.IsWheel()) - boolRank(a.Source.IsWheel())
	})
	return out, nil
}

// FetchMetadata returns the Requires-Dist entries of name at v. Entries
// that fail to parse are dropped.
func (c *Client) FetchMetadata(ctx context.Context, name string, v version.Version) ([]requirement.Requirement, error) {
	name = integrations.NormalizePkgName(name)

	var requires []string
	err := c.CachedTTL(ctx, c.keyer.MetadataKey(name, v.String()), cache.TTLMetadata, c.refresh, &requires, func() error {
		var data projectResponse
		url := fmt.Sprintf("%s/%s/%s/json", c.baseURL, integrations.URLEncode(name), integrations.URLEncode(v.String()))
		if err := c.Get(ctx, url, &data); err != nil {
			return err
		}
		requires = data.Info.RequiresDist
		if requires == nil {
			requires = []string{}
		}
		return nil
	})
	if err != nil {
		return nil, c.mapError(ctx, name, err)
	}
	return parseRequiresDist(requires), nil
}

func (c *Client) mapError(ctx context.Context, name string, err error) error {
	switch {
	case errors.Is(err, integrations.ErrNotFound):
		return index.NotFound(name)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return index.Unavailable(name, err)
	}
}

func parseRequiresDist(requires []string) []requirement.Requirement {
	out := make([]requirement.Requirement, 0, len(requires))
	for _, s := range requires {
		r, err := requirement.Parse(s)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// fileRecord is the cached, trimmed form of one release file.
type fileRecord struct {
	Version        string `json:"version"`
	Filename       string `json:"filename"`
	URL            string `json:"url"`
	Digest         string `json:"digest,omitempty"`
	RequiresPython string `json:"requires_python,omitempty"`
	Yanked         bool   `json:"yanked,omitempty"`
}

type projectResponse struct {
	Info     apiInfo              `json:"info"`
	Releases map[string][]apiFile `json:"releases"`
}

type apiInfo struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	Summary        string   `json:"summary"`
	RequiresDist   []string `json:"requires_dist"`
	RequiresPython string   `json:"requires_python"`
}

type apiFile struct {
	Filename       string            `json:"filename"`
	URL            string            `json:"url"`
	PackageType    string            `json:"packagetype"`
	Digests        map[string]string `json:"digests"`
	RequiresPython string            `json:"requires_python"`
	Yanked         bool              `json:"yanked"`
}

func (r projectResponse) files() []fileRecord {
	var out []fileRecord
	for ver, files := range r.Releases {
		for _, f := range files {
			if f.PackageType != "sdist" && f.PackageType != "bdist_wheel" {
				continue
			}
			rec := fileRecord{
				Version:        ver,
				Filename:       f.Filename,
				URL:            f.URL,
				RequiresPython: f.RequiresPython,
				Yanked:         f.Yanked,
			}
			if d := f.Digests["sha256"]; d != "" {
				rec.Digest = "sha256:" + strings.ToLower(d)
			}
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b fileRecord) int {
		if n := strings.Compare(a.Version, b.Version); n != 0 {
			return n
		}
		return strings.Compare(a.Filename, b.Filename)
	})
	return out
}

var _ index.Client = (*Client)(nil)
