// Package cache memoizes derived views of the tracker state.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	v   any
	rev uint64
	exp time.Time
}

// RevisionCache keeps values computed for a given state revision. A value is
// served only while the caller's revision matches and its ttl has not
// passed. Zero ttl means no expiry.
type RevisionCache struct {
	mu  sync.RWMutex
	m   map[string]entry
	ttl time.Duration
	now func() time.Time
}

func NewRevisionCache(ttl time.Duration) *RevisionCache {
	return &RevisionCache{m: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (c *RevisionCache) Get(key string, rev uint64) (any, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok || e.rev != rev {
		return nil, false
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.v, true
}

func (c *RevisionCache) Set(key string, rev uint64, v any) {
	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.m[key] = entry{v: v, rev: rev, exp: exp}
	c.mu.Unlock()
}

// GetOrCompute returns the cached value for key at rev or stores fn's result.
// hit reports whether the cache served it.
func GetOrCompute[T any](c *RevisionCache, key string, rev uint64, fn func() T) (v T, hit bool) {
	if cached, ok := c.Get(key, rev); ok {
		if typed, ok := cached.(T); ok {
			return typed, true
		}
	}
	v = fn()
	c.Set(key, rev, v)
	return v, false
}
