package database

import (
	"context"
	"fmt"
	"time"

	"recon-engine/internal/model"
)

// HealthChecker probes endpoint connectivity and summarizes pool health.
type HealthChecker struct {
	pool     *Pool
	registry *Registry
}

// NewHealthChecker creates a HealthChecker bound to a pool.
func NewHealthChecker(pool *Pool, registry *Registry) *HealthChecker {
	return &HealthChecker{pool: pool, registry: registry}
}

// HealthCheckResult is the outcome of a single endpoint probe.
type HealthCheckResult struct {
	EndpointID   string    `json:"endpoint_id,omitempty"`
	DatabaseType string    `json:"database_type"`
	Status       string    `json:"status"`
	Message      string    `json:"message,omitempty"`
	LatencyMs    int64     `json:"latency_ms"`
	CheckedAt    time.Time `json:"checked_at"`
}

// HealthSummary aggregates the health of all pooled endpoints.
type HealthSummary struct {
	Total     int             `json:"total"`
	Healthy   int             `json:"healthy"`
	Unhealthy int             `json:"unhealthy"`
	Endpoints map[string]bool `json:"endpoints"`
	CheckedAt time.Time       `json:"checked_at"`
}

// CheckEndpoint probes a stored endpoint through the pool.
func (hc *HealthChecker) CheckEndpoint(ctx context.Context, endpoint *model.Endpoint) *HealthCheckResult {
	start := time.Now()
	result := &HealthCheckResult{
		EndpointID:   endpoint.ID,
		DatabaseType: string(endpoint.Type),
		CheckedAt:    start,
	}

	db, err := hc.pool.Get(ctx, endpoint)
	if err != nil {
		result.Status = "unhealthy"
		result.Message = err.Error()
		result.LatencyMs = time.Since(start).Milliseconds()
		return result
	}

	err = db.PingContext(ctx)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = "unhealthy"
		result.Message = err.Error()
	} else {
		result.Status = "healthy"
	}
	return result
}

// TestConfig probes connectivity for a configuration that has not been
// saved yet. The connection is opened ad hoc and closed afterwards so
// nothing is cached for unsaved endpoints.
func (hc *HealthChecker) TestConfig(ctx context.Context, dbType model.DatabaseType, cfg *model.EndpointConfig) *HealthCheckResult {
	start := time.Now()
	result := &HealthCheckResult{
		DatabaseType: string(dbType),
		CheckedAt:    start,
	}

	driver, err := hc.registry.Get(dbType)
	if err != nil {
		result.Status = "error"
		result.Message = err.Error()
		result.LatencyMs = time.Since(start).Milliseconds()
		return result
	}

	if err := hc.ValidateConfig(cfg, dbType); err != nil {
		result.Status = "error"
		result.Message = err.Error()
		result.LatencyMs = time.Since(start).Milliseconds()
		return result
	}

	db, err := driver.Open(driver.BuildDSN(cfg))
	if err != nil {
		result.Status = "unhealthy"
		result.Message = err.Error()
		result.LatencyMs = time.Since(start).Milliseconds()
		return result
	}
	defer db.Close()

	err = db.PingContext(ctx)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = "unhealthy"
		result.Message = err.Error()
	} else {
		result.Status = "healthy"
	}
	return result
}

// ValidateConfig checks required fields and fills the default port.
func (hc *HealthChecker) ValidateConfig(cfg *model.EndpointConfig, dbType model.DatabaseType) error {
	driver, err := hc.registry.Get(dbType)
	if err != nil {
		return err
	}
	if cfg.Host == "" {
		return fmt.Errorf("host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = driver.DefaultPort()
	}
	if cfg.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if cfg.Username == "" {
		return fmt.Errorf("username is required")
	}
	return driver.ValidateDSN(driver.BuildDSN(cfg))
}

// Summary pings all pooled handles and aggregates the outcome.
func (hc *HealthChecker) Summary(ctx context.Context) *HealthSummary {
	results := hc.pool.HealthCheck(ctx)
	summary := &HealthSummary{
		Total:     len(results),
		Endpoints: results,
		CheckedAt: time.Now(),
	}
	for _, healthy := range results {
		if healthy {
			summary.Healthy++
		} else {
			summary.Unhealthy++
		}
	}
	return summary
}

// Periodic runs Summary on an interval until the context is cancelled.
func (hc *HealthChecker) Periodic(ctx context.Context, interval time.Duration) <-chan *HealthSummary {
	results := make(chan *HealthSummary)

	go func() {
		defer close(results)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case results <- hc.Summary(ctx):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return results
}

// DriverInfo describes one registered driver.
type DriverInfo struct {
	Type        string `json:"type"`
	DriverName  string `json:"driver_name"`
	DefaultPort int    `json:"default_port"`
}

// GetDriverInfo lists the registered drivers in deterministic order.
func (hc *HealthChecker) GetDriverInfo() []DriverInfo {
	types := hc.registry.SupportedTypes()
	info := make([]DriverInfo, 0, len(types))
	for _, dbType := range types {
		driver, err := hc.registry.Get(dbType)
		if err != nil {
			continue
		}
		info = append(info, DriverInfo{
			Type:        string(dbType),
			DriverName:  driver.Name(),
			DefaultPort: driver.DefaultPort(),
		})
	}
	return info
}
