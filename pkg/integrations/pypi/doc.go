// Package pypi implements [index.Client] against the PyPI JSON API.
//
// # Usage
//
//	client := pypi.NewClient(backend, "")  // "" = https://pypi.org/pypi
//	cs, err := client.ListVersions(ctx, "requests")
//	deps, err := client.FetchMetadata(ctx, "requests", cs[0].Version)
//
// # Endpoints
//
//   - GET {base}/{name}/json: release list with files, digests and yank state
//   - GET {base}/{name}/{version}/json: Requires-Dist of one release
//
// Any index serving the same JSON shape (devpi, private mirrors) works by
// passing its root as baseURL.
//
// # Caching
//
// Release lists are cached for [cache.TTLReleases] and per-version metadata
// for [cache.TTLMetadata], under keys scoped to the base URL. Call
// [Client.SetRefresh] to bypass the cache.
//
// # Errors
//
// A 404 maps to PACKAGE_NOT_FOUND. Transport errors, 429 and 5xx responses
// are retried with backoff and then surface as INDEX_UNAVAILABLE.
//
// [index.Client]: github.com/matzehuels/pypackages/pkg/index.Client
// [cache.TTLReleases]: github.com/matzehuels/pypackages/pkg/cache.TTLReleases
// [cache.TTLMetadata]: github.com/matzehuels/pypackages/pkg/cache.TTLMetadata
package pypi
