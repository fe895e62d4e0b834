// Package cache provides the shared, TTL-bounded key/value cache the engine
// wires into embedding lookups and recall results.
package cache

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a small shared contract: get/set with a
// per-entry TTL, and best-effort prefix invalidation on write.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
	ClearPrefix(prefix string)
}

type entry struct {
	value     string
	expiresAt time.Time
}

// LRUCache bounds memory with an LRU eviction policy (via golang-lru) and
// layers a per-entry expiry check on top, since golang-lru's generic LRU has
// no native TTL concept.
type LRUCache struct {
	mu    sync.Mutex
	inner *lru.Cache[string, entry]
}

// NewLRUCache builds a cache capped at size entries.
func NewLRUCache(size int) *LRUCache {
	inner, err := lru.New[string, entry](size)
	if err != nil {
		// Only returns an error for size <= 0; fall back to a sane default
		// rather than propagate a constructor error through every caller.
		inner, _ = lru.New[string, entry](128)
	}
	return &LRUCache{inner: inner}
}

// Get returns the cached value if present and not expired.
func (c *LRUCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.inner.Get(key)
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		c.inner.Remove(key)
		return "", false
	}
	return e.value, true
}

// Set stores value under key with the given TTL.
func (c *LRUCache) Set(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(key, entry{value: value, expiresAt: time.Now().Add(ttl)})
}

// ClearPrefix evicts every key sharing prefix. Invalidation is best-effort
// on purpose: a brief staleness window after a write is tolerated.
func (c *LRUCache) ClearPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.inner.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.inner.Remove(key)
		}
	}
}

var _ Cache = (*LRUCache)(nil)
