package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultResultCacheSize is the default number of cached query results.
const DefaultResultCacheSize = 512

// ResultCache is an LRU of query results. Keys embed the index version and
// buster value, so a rebuilt index or a bumped buster makes old entries
// unreachable; they age out under LRU pressure.
type ResultCache[V any] struct {
	cache *lru.Cache[string, V]
}

// NewResultCache creates a cache holding at most size entries.
func NewResultCache[V any](size int) *ResultCache[V] {
	if size <= 0 {
		size = DefaultResultCacheSize
	}
	c, _ := lru.New[string, V](size)
	return &ResultCache[V]{cache: c}
}

// Key derives a cache key. Callers pass the operation kind, the index
// version and buster value, then the operation arguments.
func Key(kind, version, buster string, args ...string) string {
	parts := append([]string{kind, version, buster}, args...)
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return kind + ":" + hex.EncodeToString(hash[:])
}

// Get returns a cached value.
func (c *ResultCache[V]) Get(key string) (V, bool) {
	return c.cache.Get(key)
}

// Add stores a value.
func (c *ResultCache[V]) Add(key string, v V) {
	c.cache.Add(key, v)
}

// GetOrCompute returns the cached value for key or computes and stores it.
// Errors are returned and not cached.
func (c *ResultCache[V]) GetOrCompute(key string, compute func() (V, error)) (V, bool, error) {
	if v, ok := c.cache.Get(key); ok {
		return v, true, nil
	}
	v, err := compute()
	if err != nil {
		return v, false, err
	}
	c.cache.Add(key, v)
	return v, false, nil
}

// Len returns the number of cached entries.
func (c *ResultCache[V]) Len() int {
	return c.cache.Len()
}

// Purge drops every entry.
func (c *ResultCache[V]) Purge() {
	c.cache.Purge()
}
