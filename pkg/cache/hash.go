package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// indexScope returns the key prefix for an index base URL. Scheme and
// host case and trailing slashes do not change the scope.
func indexScope(indexURL string) string {
	canon := strings.TrimRight(strings.TrimSpace(indexURL), "/")
	if u, err := url.Parse(canon); err == nil && u.Host != "" {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		canon = u.String()
	}
	return "index-" + strconv.FormatUint(xxhash.Sum64String(canon), 16) + ":"
}

// entryName maps a cache key to a file name below the cache directory:
// the sha256 of the key split into a two-character fan-out directory.
func entryName(key string) (dir, file string) {
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:])
	return h[:2], h[2:] + ".json"
}
