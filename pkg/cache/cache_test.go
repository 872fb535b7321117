package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("NullCache should not store data")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestEntryName(t *testing.T) {
	dir, file := entryName("releases:requests")
	if len(dir) != 2 || len(file) != 62+len(".json") || !strings.HasSuffix(file, ".json") {
		t.Errorf("entryName() = %q, %q", dir, file)
	}
	if d2, f2 := entryName("releases:flask"); d2+f2 == dir+file {
		t.Error("different keys share a file")
	}
}

func TestIndexScope(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"https://pypi.org/pypi", "https://pypi.org/pypi/", true},
		{"https://pypi.org/pypi", "HTTPS://PyPI.org/pypi", true},
		{"https://pypi.org/pypi", "https://pypi.org/PYPI", false},
		{"https://pypi.org/pypi", "https://mirror.example/pypi", false},
	}
	for _, tt := range tests {
		if got := indexScope(tt.a) == indexScope(tt.b); got != tt.same {
			t.Errorf("indexScope(%q) == indexScope(%q): %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}
}

func TestKeyers(t *testing.T) {
	k := NewDefaultKeyer()
	if got := k.ReleasesKey("requests"); got != "releases:requests" {
		t.Errorf("ReleasesKey = %q", got)
	}
	if got := k.MetadataKey("requests", "2.31.0"); got != "metadata:requests@2.31.0" {
		t.Errorf("MetadataKey = %q", got)
	}

	pypi := NewIndexKeyer("https://pypi.org")
	mirror := NewIndexKeyer("https://mirror.example")
	if pypi.ReleasesKey("a") == mirror.ReleasesKey("a") {
		t.Error("different indexes should produce different keys")
	}
	if !strings.HasSuffix(pypi.MetadataKey("a", "1.0"), ":metadata:a@1.0") {
		t.Errorf("scoped key lost inner key: %q", pypi.MetadataKey("a", "1.0"))
	}
	if pypi.ReleasesKey("a") != NewIndexKeyer("https://pypi.org").ReleasesKey("a") {
		t.Error("index keyer should be deterministic")
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, hit, _ := c.Get(ctx, "missing"); hit {
		t.Error("expected miss for unknown key")
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "v" {
		t.Errorf("Get = %q, %v, %v; want v, true, nil", data, hit, err)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expected miss after Delete")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry should miss")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	path := c.path("k")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("corrupt entry: hit=%v err=%v, want miss", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"a", "b"} {
		if _, hit, _ := c.Get(ctx, k); hit {
			t.Errorf("%s survived Clear", k)
		}
	}
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("PYPACKAGES_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PYPACKAGES_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	exerciseBackend(t, c)
}

func TestMongoCache(t *testing.T) {
	uri := os.Getenv("PYPACKAGES_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PYPACKAGES_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	c, err := NewMongoCache(ctx, uri)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	exerciseBackend(t, c)
}

func exerciseBackend(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	key := "test:" + t.Name()

	if err := c.Set(ctx, key, []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, key)
	if err != nil || !hit || string(data) != "payload" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, key); hit {
		t.Error("expected miss after Delete")
	}
}
