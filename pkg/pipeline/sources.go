package pipeline

import (
	"context"
	"path/filepath"

	"github.com/matzehuels/pypackages/pkg/cache"
	"github.com/matzehuels/pypackages/pkg/config"
	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/integrations"
	"github.com/matzehuels/pypackages/pkg/integrations/pypi"
)

// OpenCache opens the index response cache selected by cfg. Backend
// "none" yields a [cache.NullCache].
func OpenCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendRedis:
		c, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "open redis cache")
		}
		return c, nil
	case config.BackendMongo:
		c, err := cache.NewMongoCache(ctx, cfg.MongoURI)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "open mongo cache")
		}
		return c, nil
	case config.BackendFile, "":
		c, err := cache.NewFileCache(filepath.Join(cfg.Dir, "index"))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open file cache")
		}
		return c, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q", cfg.Backend)
}

// NewIndex returns the PyPI JSON API client for indexURL (the configured
// index when empty), caching responses in c.
func NewIndex(cfg *config.Config, c cache.Cache, indexURL string) *pypi.Client {
	if indexURL == "" {
		indexURL = cfg.IndexURL
	}
	client := pypi.NewClient(c, indexURL)
	client.SetReleasesTTL(cfg.Cache.TTL)
	client.SetRetry(cfg.Acquire.Attempts, cfg.Acquire.RetryDelay)
	return client
}

// NewFetcher returns the artifact downloader. Downloads are never cached
// and each attempt is bounded by the configured acquire timeout.
func NewFetcher(cfg *config.Config) *integrations.Client {
	client := integrations.NewClient(nil, "", 0, nil)
	client.SetHTTPClient(integrations.NewHTTPClientWithTimeout(cfg.Acquire.Timeout))
	return client
}
