package catalog

import (
	"sync"
	"time"
)

// cache holds one immutable catalog snapshot with a short TTL. Catalog data
// changes rarely; a stale snapshot can only defer new phases, never corrupt
// existing tracking, so TTL plus an explicit invalidation hook is enough.
type cache struct {
	mu        sync.RWMutex
	snap      *snapshot
	expiresAt time.Time
	ttl       time.Duration
}

func newCache(ttl time.Duration) *cache {
	return &cache{ttl: ttl}
}

func (c *cache) get() (*snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.snap, true
}

func (c *cache) set(snap *snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
	c.expiresAt = time.Now().Add(c.ttl)
}

// invalidate drops the snapshot so the next read reloads from the store.
func (c *cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
	c.expiresAt = time.Time{}
}
