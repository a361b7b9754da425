package scheduler

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/alpinemaps/terrainclient/internal/tileid"
)

// DefaultQuadLimit is the default number of quads the memory cache holds.
const DefaultQuadLimit = 12000

// MemoryCache is the content-addressed RAM LRU, primary source of
// truth for ship decisions. Backed by hashicorp/golang-lru for the LRU
// bookkeeping itself; this type adds the quad-shaped eviction contract the
// scheduler needs (deletions reported upstream, not swallowed). Not safe for
// concurrent use — the scheduler's worker goroutine is the sole writer.
type MemoryCache struct {
	limit    int
	cache    *lru.Cache
	onEvict  func(tileid.ID)
	deferred []tileid.ID // evictions collected during SetQuadLimit's replay
}

// NewMemoryCache builds a cache with the given quad limit (DefaultQuadLimit
// if non-positive) and an eviction callback invoked once per evicted quad.
func NewMemoryCache(limit int, onEvict func(tileid.ID)) *MemoryCache {
	if limit <= 0 {
		limit = DefaultQuadLimit
	}
	c := &MemoryCache{limit: limit, onEvict: onEvict}
	c.cache, _ = lru.NewWithEvict(limit, c.handleEvict)
	return c
}

func (c *MemoryCache) handleEvict(key, _ interface{}) {
	id := key.(tileid.ID)
	if c.deferred != nil {
		c.deferred = append(c.deferred, id)
		return
	}
	if c.onEvict != nil {
		c.onEvict(id)
	}
}

// Insert adds or refreshes quad, bumping its recency. Overflow evicts the
// least-recently-used quad(s), reported via the eviction callback.
func (c *MemoryCache) Insert(quad DataQuad) {
	c.cache.Add(quad.ID, quad)
}

// Contains reports whether id is cached, bumping its recency.
func (c *MemoryCache) Contains(id tileid.ID) bool {
	_, ok := c.cache.Get(id)
	return ok
}

// Get returns id's cached quad, bumping its recency.
func (c *MemoryCache) Get(id tileid.ID) (DataQuad, bool) {
	v, ok := c.cache.Get(id)
	if !ok {
		return DataQuad{}, false
	}
	return v.(DataQuad), true
}

// Len reports the current number of cached quads.
func (c *MemoryCache) Len() int { return c.cache.Len() }

// Limit reports the configured quad limit.
func (c *MemoryCache) Limit() int { return c.limit }

// SetQuadLimit resizes the cache, rebuilding it and replaying every entry
// from least- to most-recently-used so that any necessary eviction happens
// in LRU order — the same eviction callback fires for each dropped quad.
func (c *MemoryCache) SetQuadLimit(n int) {
	if n <= 0 {
		n = DefaultQuadLimit
	}
	keys := c.cache.Keys() // oldest (least-recently-used) first
	entries := make([]DataQuad, 0, len(keys))
	for _, k := range keys {
		if v, ok := c.cache.Peek(k); ok {
			entries = append(entries, v.(DataQuad))
		}
	}

	c.limit = n
	fresh, _ := lru.NewWithEvict(n, c.handleEvict)
	c.cache = fresh

	c.deferred = make([]tileid.ID, 0)
	for _, e := range entries {
		c.cache.Add(e.ID, e)
	}
	evicted := c.deferred
	c.deferred = nil

	if c.onEvict != nil {
		for _, id := range evicted {
			c.onEvict(id)
		}
	}
}
