package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CachedSchema is one endpoint's extracted schema with expiry metadata.
type CachedSchema struct {
	EndpointID string        `json:"endpoint_id"`
	Tables     []TableSchema `json:"tables"`
	Version    string        `json:"version"`
	CachedAt   time.Time     `json:"cached_at"`
	ExpiresAt  time.Time     `json:"expires_at"`
}

// Loader produces a fresh schema for an endpoint on cache miss.
type Loader func(ctx context.Context) ([]TableSchema, string, error)

// SchemaCache holds extracted schemas per endpoint with TTL-based
// expiry. Extraction walks the whole catalog of a live database, so
// results are reused until they expire or are invalidated explicitly.
type SchemaCache struct {
	mutex    sync.RWMutex
	cache    map[string]*CachedSchema
	ttl      time.Duration
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSchemaCache creates a cache with the given TTL. Zero or negative
// TTL falls back to one hour.
func NewSchemaCache(ttl time.Duration) *SchemaCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SchemaCache{
		cache:    make(map[string]*CachedSchema),
		ttl:      ttl,
		interval: 10 * time.Minute,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background cleanup loop.
func (c *SchemaCache) Start() {
	go c.cleanupLoop()
}

// Stop terminates the background cleanup loop.
func (c *SchemaCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *SchemaCache) cleanupLoop() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopChan:
			return
		}
	}
}

func (c *SchemaCache) cleanupExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	now := time.Now()
	for id, cached := range c.cache {
		if now.After(cached.ExpiresAt) {
			delete(c.cache, id)
		}
	}
}

// Get returns the cached schema for an endpoint, or nil when absent or
// expired.
func (c *SchemaCache) Get(endpointID string) *CachedSchema {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	cached, ok := c.cache[endpointID]
	if !ok || time.Now().After(cached.ExpiresAt) {
		return nil
	}
	return cached
}

// Set stores a schema for an endpoint.
func (c *SchemaCache) Set(endpointID string, tables []TableSchema, version string) {
	now := time.Now()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache[endpointID] = &CachedSchema{
		EndpointID: endpointID,
		Tables:     tables,
		Version:    version,
		CachedAt:   now,
		ExpiresAt:  now.Add(c.ttl),
	}
}

// GetOrLoad returns the cached schema, loading and storing it on miss.
// Concurrent misses for the same endpoint may both invoke the loader;
// the later Set wins, which is harmless since extraction is idempotent.
func (c *SchemaCache) GetOrLoad(ctx context.Context, endpointID string, load Loader) (*CachedSchema, error) {
	if cached := c.Get(endpointID); cached != nil {
		return cached, nil
	}
	tables, version, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema load for endpoint %s failed: %w", endpointID, err)
	}
	c.Set(endpointID, tables, version)
	return c.Get(endpointID), nil
}

// Invalidate removes one endpoint's cached schema.
func (c *SchemaCache) Invalidate(endpointID string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.cache, endpointID)
}

// Clear removes all cached schemas.
func (c *SchemaCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache = make(map[string]*CachedSchema)
}

// CacheStats reports cache occupancy.
type CacheStats struct {
	Entries int           `json:"entries"`
	Expired int           `json:"expired"`
	TTL     time.Duration `json:"ttl"`
}

// GetStats returns current occupancy counts.
func (c *SchemaCache) GetStats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	stats := CacheStats{Entries: len(c.cache), TTL: c.ttl}
	now := time.Now()
	for _, cached := range c.cache {
		if now.After(cached.ExpiresAt) {
			stats.Expired++
		}
	}
	return stats
}
