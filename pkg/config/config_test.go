package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/resolve"
	"github.com/matzehuels/pypackages/pkg/version"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoadOptions{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d := Default()
	if cfg.IndexURL != d.IndexURL {
		t.Errorf("IndexURL = %q, want %q", cfg.IndexURL, d.IndexURL)
	}
	if cfg.Python != DefaultPython {
		t.Errorf("Python = %q, want %q", cfg.Python, DefaultPython)
	}
	if cfg.Cache.Backend != BackendFile || cfg.Cache.TTL != time.Hour {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Acquire != d.Acquire {
		t.Errorf("Acquire = %+v, want %+v", cfg.Acquire, d.Acquire)
	}
	if cfg.Archive != d.Archive {
		t.Errorf("Archive = %+v, want %+v", cfg.Archive, d.Archive)
	}
	if cfg.Lock.Wait {
		t.Error("expected lock.wait to default to false")
	}
	if p, _ := cfg.PrereleasePolicy(); p != version.PrereleaseExplicit {
		t.Errorf("PrereleasePolicy = %v", p)
	}
	if p, _ := cfg.SourcePolicy(); p != resolve.IndexFirst {
		t.Errorf("SourcePolicy = %v", p)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := `
index_url = "https://mirror.example.com/pypi"
python = "3.11"

[cache]
backend = "none"
ttl = "10m"

[acquire]
concurrency = 8
timeout = "30s"

[resolve]
prereleases = "allow"

[resolve.url_overrides]
mylib = "https://example.com/mylib-1.0.tar.gz"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PYPACKAGES_ACQUIRE_CONCURRENCY", "2")
	t.Setenv("PYPACKAGES_LOCK_WAIT", "true")

	cfg, err := Load(LoadOptions{Dir: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IndexURL != "https://mirror.example.com/pypi" || cfg.Python != "3.11" {
		t.Errorf("IndexURL/Python = %q %q", cfg.IndexURL, cfg.Python)
	}
	if cfg.Cache.Backend != BackendNone || cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Acquire.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want env override 2", cfg.Acquire.Concurrency)
	}
	if cfg.Acquire.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Acquire.Timeout)
	}
	if !cfg.Lock.Wait {
		t.Error("expected env override of lock.wait")
	}
	if p, _ := cfg.PrereleasePolicy(); p != version.PrereleaseAllow {
		t.Errorf("PrereleasePolicy = %v", p)
	}
	if got := cfg.Resolve.URLOverrides["mylib"]; got != "https://example.com/mylib-1.0.tar.gz" {
		t.Errorf("URLOverrides = %v", cfg.Resolve.URLOverrides)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	if _, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "missing.toml")}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("missing file error = %v, want INVALID_INPUT", err)
	}

	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, []byte("[cache\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(LoadOptions{File: path}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("invalid file error = %v, want INVALID_INPUT", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"index url scheme", func(c *Config) { c.IndexURL = "ftp://example.com" }},
		{"python", func(c *Config) { c.Python = "three" }},
		{"cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis without url", func(c *Config) { c.Cache.Backend = BackendRedis }},
		{"mongo without uri", func(c *Config) { c.Cache.Backend = BackendMongo }},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }},
		{"zero concurrency", func(c *Config) { c.Acquire.Concurrency = 0 }},
		{"zero attempts", func(c *Config) { c.Acquire.Attempts = 0 }},
		{"zero timeout", func(c *Config) { c.Acquire.Timeout = 0 }},
		{"zero max bytes", func(c *Config) { c.Archive.MaxBytes = 0 }},
		{"negative max files", func(c *Config) { c.Archive.MaxFiles = -1 }},
		{"prerelease policy", func(c *Config) { c.Resolve.Prereleases = "sometimes" }},
		{"source policy", func(c *Config) { c.Resolve.SourcePolicy = "random" }},
		{"override url", func(c *Config) { c.Resolve.URLOverrides = map[string]string{"x": "x.tar.gz"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("Validate() = %v, want INVALID_INPUT", err)
			}
		})
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}
