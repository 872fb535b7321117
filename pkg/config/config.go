// Package config loads pypackages settings.
//
// Settings are layered, lowest precedence first:
//
//  1. built-in defaults ([Default])
//  2. pypackages.toml in the user config directory, or an explicit file
//  3. PYPACKAGES_* environment variables, with "." in a key replaced by
//     "_" (PYPACKAGES_CACHE_BACKEND sets cache.backend)
//
// Command-line flags are applied by the caller on top of the loaded value.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/matzehuels/pypackages/pkg/acquire"
	"github.com/matzehuels/pypackages/pkg/archive"
	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/httputil"
	"github.com/matzehuels/pypackages/pkg/index"
	"github.com/matzehuels/pypackages/pkg/integrations/pypi"
	"github.com/matzehuels/pypackages/pkg/resolve"
	"github.com/matzehuels/pypackages/pkg/version"
)

const (
	// AppName names the config and cache directories.
	AppName = "pypackages"
	// FileName is the config file looked up in [Dir].
	FileName = "pypackages.toml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PYPACKAGES"
	// DefaultPython is the target interpreter when neither the manifest
	// nor the configuration names one.
	DefaultPython = "3.12"
)

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// Config is the typed configuration.
type Config struct {
	IndexURL string        `mapstructure:"index_url"`
	Python   string        `mapstructure:"python"`
	Cache    CacheConfig   `mapstructure:"cache"`
	Acquire  AcquireConfig `mapstructure:"acquire"`
	Archive  ArchiveConfig `mapstructure:"archive"`
	Resolve  ResolveConfig `mapstructure:"resolve"`
	Lock     LockConfig    `mapstructure:"lock"`
}

// CacheConfig selects the index response cache.
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"`
	Dir      string        `mapstructure:"dir"`
	TTL      time.Duration `mapstructure:"ttl"`
	RedisURL string        `mapstructure:"redis_url"`
	MongoURI string        `mapstructure:"mongo_uri"`
}

// AcquireConfig tunes artifact downloads.
type AcquireConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Attempts    int           `mapstructure:"attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ArchiveConfig bounds extraction.
type ArchiveConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
	MaxFiles int   `mapstructure:"max_files"`
}

// ResolveConfig tunes the resolver.
type ResolveConfig struct {
	Prereleases   string            `mapstructure:"prereleases"`
	SourcePolicy  string            `mapstructure:"source_policy"`
	PrefetchWidth int               `mapstructure:"prefetch_width"`
	URLOverrides  map[string]string `mapstructure:"url_overrides"`
}

// LockConfig controls the environment lock.
type LockConfig struct {
	// Wait blocks until a concurrent run releases the environment instead
	// of failing with ENVIRONMENT_LOCKED.
	Wait bool `mapstructure:"wait"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		IndexURL: pypi.DefaultIndexURL,
		Python:   DefaultPython,
		Cache: CacheConfig{
			Backend: BackendFile,
			Dir:     defaultCacheDir(),
			TTL:     time.Hour,
		},
		Acquire: AcquireConfig{
			Concurrency: acquire.DefaultConcurrency,
			Attempts:    httputil.DefaultAttempts,
			RetryDelay:  httputil.DefaultDelay,
			Timeout:     acquire.DefaultTimeout,
		},
		Archive: ArchiveConfig{
			MaxBytes: archive.DefaultMaxBytes,
			MaxFiles: archive.DefaultMaxFiles,
		},
		Resolve: ResolveConfig{
			Prereleases:   version.PrereleaseExplicit.String(),
			SourcePolicy:  resolve.IndexFirst.String(),
			PrefetchWidth: index.DefaultPrefetchWidth,
		},
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppName)
	}
	return filepath.Join(dir, AppName)
}

// Dir returns the user configuration directory ($XDG_CONFIG_HOME/pypackages
// on Linux).
func Dir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// LoadOptions locates the config file.
type LoadOptions struct {
	// File is read exclusively when set and must exist.
	File string
	// Dir overrides [Dir] when looking for FileName.
	Dir string
}

// Load layers defaults, the config file and the environment, then validates
// the result.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("index_url", d.IndexURL)
	v.SetDefault("python", d.Python)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.redis_url", d.Cache.RedisURL)
	v.SetDefault("cache.mongo_uri", d.Cache.MongoURI)
	v.SetDefault("acquire.concurrency", d.Acquire.Concurrency)
	v.SetDefault("acquire.attempts", d.Acquire.Attempts)
	v.SetDefault("acquire.retry_delay", d.Acquire.RetryDelay)
	v.SetDefault("acquire.timeout", d.Acquire.Timeout)
	v.SetDefault("archive.max_bytes", d.Archive.MaxBytes)
	v.SetDefault("archive.max_files", d.Archive.MaxFiles)
	v.SetDefault("resolve.prereleases", d.Resolve.Prereleases)
	v.SetDefault("resolve.source_policy", d.Resolve.SourcePolicy)
	v.SetDefault("resolve.prefetch_width", d.Resolve.PrefetchWidth)
	v.SetDefault("resolve.url_overrides", map[string]string{})
	v.SetDefault("lock.wait", d.Lock.Wait)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := configFile(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configFile(opts LoadOptions) (string, error) {
	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "config file %s", opts.File)
		}
		return opts.File, nil
	}
	dir := opts.Dir
	if dir == "" {
		var err error
		if dir, err = Dir(); err != nil {
			return "", nil
		}
	}
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		return "", nil
	}
	return path, nil
}

// Validate rejects unknown enum values and non-positive limits.
func (c *Config) Validate() error {
	if err := errors.ValidateURL(c.IndexURL); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "index_url")
	}
	if _, err := version.Parse(c.Python); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "python")
	}
	switch c.Cache.Backend {
	case BackendFile, BackendNone:
	case BackendRedis:
		if c.Cache.RedisURL == "" {
			return errors.New(errors.ErrCodeInvalidInput, "cache.redis_url is required for the redis backend")
		}
	case BackendMongo:
		if c.Cache.MongoURI == "" {
			return errors.New(errors.ErrCodeInvalidInput, "cache.mongo_uri is required for the mongo backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache.backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache.ttl must not be negative")
	}

	positive := []struct {
		key string
		val int64
	}{
		{"acquire.concurrency", int64(c.Acquire.Concurrency)},
		{"acquire.attempts", int64(c.Acquire.Attempts)},
		{"acquire.timeout", int64(c.Acquire.Timeout)},
		{"archive.max_bytes", c.Archive.MaxBytes},
		{"archive.max_files", int64(c.Archive.MaxFiles)},
		{"resolve.prefetch_width", int64(c.Resolve.PrefetchWidth)},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return errors.New(errors.ErrCodeInvalidInput, "%s must be positive", p.key)
		}
	}
	if c.Acquire.RetryDelay < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "acquire.retry_delay must not be negative")
	}

	if _, err := c.PrereleasePolicy(); err != nil {
		return err
	}
	if _, err := c.SourcePolicy(); err != nil {
		return err
	}
	for name, u := range c.Resolve.URLOverrides {
		if err := errors.ValidateURL(u); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "resolve.url_overrides.%s", name)
		}
	}
	return nil
}

// PrereleasePolicy parses resolve.prereleases.
func (c *Config) PrereleasePolicy() (version.PrereleasePolicy, error) {
	p, err := version.ParsePrereleasePolicy(c.Resolve.Prereleases)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "resolve.prereleases")
	}
	return p, nil
}

// SourcePolicy parses resolve.source_policy.
func (c *Config) SourcePolicy() (resolve.SourcePolicy, error) {
	p, err := resolve.ParseSourcePolicy(c.Resolve.SourcePolicy)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "resolve.source_policy")
	}
	return p, nil
}

// Limits returns the extraction limits.
func (c *Config) Limits() archive.Limits {
	return archive.Limits{MaxBytes: c.Archive.MaxBytes, MaxFiles: c.Archive.MaxFiles}
}

// AcquireOptions returns downloader options without a logger.
func (c *Config) AcquireOptions() acquire.Options {
	return acquire.Options{
		Concurrency: c.Acquire.Concurrency,
		Attempts:    c.Acquire.Attempts,
		Delay:       c.Acquire.RetryDelay,
		Timeout:     c.Acquire.Timeout,
	}
}
