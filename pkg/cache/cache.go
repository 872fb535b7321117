// Package cache stores package index responses between runs.
//
// # Backends
//
//   - [FileCache]: JSON entry files under the user cache directory (default)
//   - [RedisCache]: shared cache for CI fleets, via go-redis
//   - [MongoCache]: shared cache backed by a MongoDB collection
//   - [NullCache]: disables caching (--no-cache)
//
// All backends store opaque bytes with an optional TTL. Keys come from a
// [Keyer] so that responses from different index URLs never collide.
//
// The cache only ever holds index metadata. Downloaded archives are never
// cached here: their integrity is established per run against the lockfile
// digest.
package cache

import (
	"context"
	"time"
)

// TTLs for index responses. Release lists change whenever a project
// publishes; per-version metadata is immutable once uploaded.
const (
	TTLReleases = time.Hour
	TTLMetadata = 7 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the cached bytes and whether the key was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Keyer derives cache keys for index responses.
type Keyer interface {
	// ReleasesKey identifies the release list of a project.
	ReleasesKey(name string) string
	// MetadataKey identifies the metadata of one release.
	MetadataKey(name, version string) string
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a keyer without a scope prefix.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ReleasesKey returns "releases:<name>".
func (DefaultKeyer) ReleasesKey(name string) string { return "releases:" + name }

// MetadataKey returns "metadata:<name>@<version>".
func (DefaultKeyer) MetadataKey(name, version string) string {
	return "metadata:" + name + "@" + version
}
