// Package integrations provides the HTTP plumbing shared by package index
// clients and the artifact downloader.
//
// # Client Pattern
//
// Index clients embed [Client] and wrap each API call in [Client.Cached]:
//
//	c := integrations.NewClient(backend, "pypi:", cache.TTLReleases, nil)
//	err := c.Cached(ctx, "releases:requests", false, &out, func() error {
//	    return c.Get(ctx, url, &out)
//	})
//
// [Client] handles:
//   - Response caching through [cache.Cache] with a per-call TTL
//   - Retry with exponential backoff for 5xx, 429 and transport errors
//   - Common headers and observability hooks
//
// [Client.Open] streams a download body without caching or retry; the
// acquirer owns retries for downloads because it must also discard partial
// files between attempts.
//
// # Index Implementations
//
//   - [pypi]: PyPI JSON API, the default package index
//
// [pypi]: github.com/matzehuels/pypackages/pkg/integrations/pypi
// [cache.Cache]: github.com/matzehuels/pypackages/pkg/cache.Cache
package integrations
