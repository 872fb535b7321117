package cache

// ScopedKeyer wraps a Keyer with a prefix so that several package indexes
// can share one backend without their entries colliding.
//
// Example usage:
//
//	// Keys for a private mirror
//	keyer := NewIndexKeyer("https://pypi.internal.example/")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// NewIndexKeyer scopes keys to an index base URL. URLs differing only in
// host case or a trailing slash share a scope.
func NewIndexKeyer(indexURL string) Keyer {
	return NewScopedKeyer(nil, indexScope(indexURL))
}

// ReleasesKey generates a prefixed release-list key.
func (k *ScopedKeyer) ReleasesKey(name string) string {
	return k.prefix + k.inner.ReleasesKey(name)
}

// MetadataKey generates a prefixed metadata key.
func (k *ScopedKeyer) MetadataKey(name, version string) string {
	return k.prefix + k.inner.MetadataKey(name, version)
}
