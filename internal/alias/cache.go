package alias

import (
	"sync"

	"recon-engine/internal/graph"
)

// Cache holds one resolver per graph, keyed by graph ID and invalidated
// by graph version. Rebuilding on a version bump keeps resolvers aligned
// with graph edits without explicit invalidation calls.
type Cache struct {
	mutex   sync.RWMutex
	entries map[string]*cachedResolver
	hits    int64
	misses  int64
}

type cachedResolver struct {
	version  int64
	resolver *Resolver
}

// NewCache creates an empty resolver cache
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cachedResolver)}
}

// For returns the resolver for a snapshot, building and caching it when
// the cached entry is missing or belongs to an older graph version.
func (c *Cache) For(s *graph.Snapshot) *Resolver {
	c.mutex.RLock()
	cached, exists := c.entries[s.GraphID]
	c.mutex.RUnlock()

	if exists && cached.version == s.Version {
		c.mutex.Lock()
		c.hits++
		c.mutex.Unlock()
		return cached.resolver
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Re-check after acquiring the write lock
	if cached, exists := c.entries[s.GraphID]; exists && cached.version == s.Version {
		c.hits++
		return cached.resolver
	}

	c.misses++
	r := NewResolver(s)
	c.entries[s.GraphID] = &cachedResolver{version: s.Version, resolver: r}
	return r
}

// Invalidate removes the cached resolver for a graph
func (c *Cache) Invalidate(graphID string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, graphID)
}

// Clear clears all cache entries
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*cachedResolver)
}

// CacheStats represents cache statistics
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// GetStats returns cache statistics
func (c *Cache) GetStats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return CacheStats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}
