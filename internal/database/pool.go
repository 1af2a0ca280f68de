package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"recon-engine/internal/model"
)

// Pool caches open database handles per endpoint. Handles are created
// lazily, shared across runs and re-created when a liveness probe fails.
type Pool struct {
	registry *Registry
	mutex    sync.RWMutex
	pools    map[string]*sql.DB
	healthMu sync.RWMutex
	health   map[string]bool
}

// NewPool creates an empty pool backed by the given driver registry.
func NewPool(registry *Registry) *Pool {
	return &Pool{
		registry: registry,
		pools:    make(map[string]*sql.DB),
		health:   make(map[string]bool),
	}
}

// Get returns an open handle for the endpoint, creating one on first use.
func (p *Pool) Get(ctx context.Context, endpoint *model.Endpoint) (*sql.DB, error) {
	p.mutex.RLock()
	db, exists := p.pools[endpoint.ID]
	p.mutex.RUnlock()

	if exists {
		if err := db.PingContext(ctx); err == nil {
			return db, nil
		}
		// Handle went stale, drop it and rebuild below.
		p.Invalidate(endpoint.ID)
	}

	return p.create(ctx, endpoint)
}

func (p *Pool) create(ctx context.Context, endpoint *model.Endpoint) (*sql.DB, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	// Double-check after acquiring the write lock.
	if db, exists := p.pools[endpoint.ID]; exists {
		if err := db.PingContext(ctx); err == nil {
			return db, nil
		}
		db.Close()
		delete(p.pools, endpoint.ID)
	}

	driver, err := p.registry.Get(endpoint.Type)
	if err != nil {
		return nil, err
	}

	dsn := driver.BuildDSN(&endpoint.Config)
	if err := driver.ValidateDSN(dsn); err != nil {
		return nil, fmt.Errorf("invalid connection string for endpoint %q: %w", endpoint.Name, err)
	}

	db, err := driver.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection for endpoint %q: %w", endpoint.Name, err)
	}

	configurePool(db, &endpoint.Config)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		p.setHealth(endpoint.ID, false)
		return nil, fmt.Errorf("failed to ping endpoint %q: %w", endpoint.Name, err)
	}

	p.pools[endpoint.ID] = db
	p.setHealth(endpoint.ID, true)
	return db, nil
}

func configurePool(db *sql.DB, cfg *model.EndpointConfig) {
	maxOpen := cfg.MaxPoolSize
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)

	maxIdle := maxOpen / 2
	if maxIdle < 2 {
		maxIdle = 2
	}
	db.SetMaxIdleConns(maxIdle)

	maxLifetime := time.Duration(cfg.MaxLifetime) * time.Second
	if maxLifetime <= 0 {
		maxLifetime = 30 * time.Minute
	}
	db.SetConnMaxLifetime(maxLifetime)

	idleTimeout := time.Duration(cfg.IdleTimeout) * time.Second
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}
	db.SetConnMaxIdleTime(idleTimeout)
}

// Invalidate closes and removes the handle for an endpoint. Used when
// an endpoint's configuration changes or the endpoint is deleted.
func (p *Pool) Invalidate(endpointID string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if db, exists := p.pools[endpointID]; exists {
		db.Close()
		delete(p.pools, endpointID)
		p.setHealth(endpointID, false)
	}
}

// CloseAll closes every pooled handle.
func (p *Pool) CloseAll() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var lastErr error
	for id, db := range p.pools {
		if err := db.Close(); err != nil {
			lastErr = err
		}
		delete(p.pools, id)
		p.setHealth(id, false)
	}
	return lastErr
}

// ConnectionStats reports pool statistics for one endpoint.
type ConnectionStats struct {
	OpenConnections   int           `json:"open_connections"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
	Healthy           bool          `json:"healthy"`
}

// GetStats returns statistics for all pooled endpoints.
func (p *Pool) GetStats() map[string]ConnectionStats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	stats := make(map[string]ConnectionStats, len(p.pools))
	for id, db := range p.pools {
		s := db.Stats()
		stats[id] = ConnectionStats{
			OpenConnections:   s.OpenConnections,
			InUse:             s.InUse,
			Idle:              s.Idle,
			WaitCount:         s.WaitCount,
			WaitDuration:      s.WaitDuration,
			MaxIdleClosed:     s.MaxIdleClosed,
			MaxLifetimeClosed: s.MaxLifetimeClosed,
			Healthy:           p.getHealth(id),
		}
	}
	return stats
}

// HealthCheck pings every pooled handle and returns the per-endpoint
// outcome.
func (p *Pool) HealthCheck(ctx context.Context) map[string]bool {
	p.mutex.RLock()
	handles := make(map[string]*sql.DB, len(p.pools))
	for id, db := range p.pools {
		handles[id] = db
	}
	p.mutex.RUnlock()

	results := make(map[string]bool, len(handles))
	for id, db := range handles {
		healthy := db.PingContext(ctx) == nil
		p.setHealth(id, healthy)
		results[id] = healthy
	}
	return results
}

// IsHealthy reports the last known health of an endpoint's handle.
func (p *Pool) IsHealthy(endpointID string) bool {
	return p.getHealth(endpointID)
}

func (p *Pool) setHealth(endpointID string, healthy bool) {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()
	p.health[endpointID] = healthy
}

func (p *Pool) getHealth(endpointID string) bool {
	p.healthMu.RLock()
	defer p.healthMu.RUnlock()
	return p.health[endpointID]
}
