// Package cdcache is an optional bounded, TTL-expiring cache of parsed
// archives, keyed on the combination of URL and cookies used to fetch them.
//
// It resolves the "should list/download share server-side state" open
// question: caching is off unless explicitly configured, and a nil *Cache
// behaves exactly like calling zipcd.Load directly, so callers never need a
// nil check of their own.
package cdcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nguyengg/rangezip/rangefetch"
	"github.com/nguyengg/rangezip/zipcd"
)

// Cache wraps an expirable LRU of *zipcd.Archive. Construct a caching one
// with New; the zero value, like a nil *Cache, disables caching.
type Cache struct {
	lru *expirable.LRU[string, *zipcd.Archive]
}

// New creates a Cache holding up to size archives, each expiring ttl after
// insertion. Passing size <= 0 disables caching (New still returns a
// non-nil *Cache whose Load always delegates to zipcd.Load).
func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		return &Cache{}
	}
	return &Cache{lru: expirable.NewLRU[string, *zipcd.Archive](size, nil, ttl)}
}

// Load returns the cached archive for (url, cookies) if present and not
// expired, otherwise calls zipcd.Load and caches a successful result.
func (c *Cache) Load(ctx context.Context, src *rangefetch.Source, cookies string) (*zipcd.Archive, error) {
	if c == nil || c.lru == nil {
		return zipcd.Load(ctx, src)
	}

	key := cacheKey(src.URL, cookies)
	if archive, ok := c.lru.Get(key); ok {
		return archive, nil
	}

	archive, err := zipcd.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	c.lru.Add(key, archive)
	return archive, nil
}

func cacheKey(url, cookies string) string {
	h := sha256.Sum256([]byte(url + "\x00" + cookies))
	return hex.EncodeToString(h[:])
}
