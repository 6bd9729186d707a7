package rangecache

import (
	"log/slog"
	"sync"

	"chunkstore/internal/component"
	"chunkstore/internal/entitypath"
	"chunkstore/internal/logging"
)

// cacheKey identifies one cached (entity, component) range.
type cacheKey struct {
	entity uint64
	comp   component.Name
}

// RangeResultCache owns one Entry per (entity, component) pair queried
// through it. Locking here only protects the lookup map; all per-entry
// work happens under the Entry's own lock, per §5's "per-entry read-write
// lock" concurrency model.
type RangeResultCache struct {
	log *slog.Logger

	mu      sync.Mutex
	entries map[cacheKey]*Entry

	generation uint64
}

// New constructs an empty RangeResultCache.
func New(logger *slog.Logger) *RangeResultCache {
	return &RangeResultCache{
		log:     logging.Default(logger).With("component", "rangecache"),
		entries: make(map[cacheKey]*Entry),
	}
}

// Entry returns the cache entry for (entity, comp), creating it if absent.
func (c *RangeResultCache) Entry(entity entitypath.EntityPath, comp component.Name) *Entry {
	key := cacheKey{entity: entity.Hash(), comp: comp}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = NewEntry(c.log)
		c.entries[key] = e
	}
	return e
}

// Generation returns the StoreGeneration this cache is valid for.
func (c *RangeResultCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// BumpGeneration is called by the store after a GC and only records the
// new generation number for callers to compare against; the store drops
// the entries of each evicted chunk's components with Invalidate.
func (c *RangeResultCache) BumpGeneration(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation = gen
}

// Clear drops every cached entry, used when a store's contents change in a
// way finer-grained invalidation doesn't cover (tests, full resets).
func (c *RangeResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*Entry)
}

// Invalidate drops the cached entry for one (entity, component) pair, used
// by the store's GC when a chunk covering that pair is evicted from the
// middle of a cached range — TruncateAtTime only discards the tail of a
// range, so an evicted chunk that isn't the newest data for that pair
// forces a full recache instead of a partial truncation.
func (c *RangeResultCache) Invalidate(entity entitypath.EntityPath, comp component.Name) {
	key := cacheKey{entity: entity.Hash(), comp: comp}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
