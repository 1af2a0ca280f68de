package service

import (
	"sync"
	"time"

	"recon-engine/internal/model"
)

// StatsCollector aggregates query execution statistics in memory. It
// backs the stats endpoint and supplies the efficiency KPI inputs.
type StatsCollector struct {
	mutex     sync.RWMutex
	endpoints map[string]*EndpointStats
	global    GlobalStats
	startTime time.Time
}

// EndpointStats holds execution aggregates for one endpoint.
type EndpointStats struct {
	EndpointID     string                    `json:"endpoint_id"`
	DatabaseType   model.DatabaseType        `json:"database_type"`
	TotalQueries   int64                     `json:"total_queries"`
	Succeeded      int64                     `json:"succeeded"`
	Failed         int64                     `json:"failed"`
	TotalRows      int64                     `json:"total_rows"`
	TotalTimeMs    int64                     `json:"total_time_ms"`
	MinTimeMs      int64                     `json:"min_time_ms"`
	MaxTimeMs      int64                     `json:"max_time_ms"`
	QueriesByKind  map[model.QueryKind]int64 `json:"queries_by_kind"`
	LastQueryTime  time.Time                 `json:"last_query_time"`
	LastError      string                    `json:"last_error,omitempty"`
	LastErrorTime  time.Time                 `json:"last_error_time,omitempty"`
}

// GlobalStats holds run-wide execution aggregates.
type GlobalStats struct {
	TotalQueries int64 `json:"total_queries"`
	Succeeded    int64 `json:"succeeded"`
	Failed       int64 `json:"failed"`
	TotalRows    int64 `json:"total_rows"`
	TotalTimeMs  int64 `json:"total_time_ms"`
}

// StatsSummary is the wire shape of the stats endpoint.
type StatsSummary struct {
	UptimeSeconds float64                   `json:"uptime_seconds"`
	TotalQueries  int64                     `json:"total_queries"`
	Succeeded     int64                     `json:"succeeded"`
	Failed        int64                     `json:"failed"`
	SuccessRate   float64                   `json:"success_rate"`
	AvgTimeMs     float64                   `json:"avg_time_ms"`
	TotalRows     int64                     `json:"total_rows"`
	Endpoints     map[string]*EndpointStats `json:"endpoints"`
}

// NewStatsCollector creates an empty collector.
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		endpoints: make(map[string]*EndpointStats),
		startTime: time.Now(),
	}
}

// Record adds one query execution to the aggregates.
func (sc *StatsCollector) Record(endpointID string, dbType model.DatabaseType, kind model.QueryKind, success bool, duration time.Duration, rows int64, errMsg string) {
	ms := duration.Milliseconds()
	now := time.Now()

	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	es, ok := sc.endpoints[endpointID]
	if !ok {
		es = &EndpointStats{
			EndpointID:    endpointID,
			DatabaseType:  dbType,
			MinTimeMs:     ms,
			QueriesByKind: make(map[model.QueryKind]int64),
		}
		sc.endpoints[endpointID] = es
	}

	es.TotalQueries++
	es.TotalTimeMs += ms
	es.TotalRows += rows
	es.LastQueryTime = now
	es.QueriesByKind[kind]++
	if ms < es.MinTimeMs {
		es.MinTimeMs = ms
	}
	if ms > es.MaxTimeMs {
		es.MaxTimeMs = ms
	}
	if success {
		es.Succeeded++
	} else {
		es.Failed++
		es.LastError = errMsg
		es.LastErrorTime = now
	}

	sc.global.TotalQueries++
	sc.global.TotalTimeMs += ms
	sc.global.TotalRows += rows
	if success {
		sc.global.Succeeded++
	} else {
		sc.global.Failed++
	}
}

// EndpointStatsFor returns a copy of one endpoint's aggregates.
func (sc *StatsCollector) EndpointStatsFor(endpointID string) (*EndpointStats, bool) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	es, ok := sc.endpoints[endpointID]
	if !ok {
		return nil, false
	}
	return copyEndpointStats(es), true
}

// Summary returns a copy-safe snapshot of all aggregates.
func (sc *StatsCollector) Summary() *StatsSummary {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	s := &StatsSummary{
		UptimeSeconds: time.Since(sc.startTime).Seconds(),
		TotalQueries:  sc.global.TotalQueries,
		Succeeded:     sc.global.Succeeded,
		Failed:        sc.global.Failed,
		TotalRows:     sc.global.TotalRows,
		Endpoints:     make(map[string]*EndpointStats, len(sc.endpoints)),
	}
	if sc.global.TotalQueries > 0 {
		s.SuccessRate = float64(sc.global.Succeeded) / float64(sc.global.TotalQueries)
		s.AvgTimeMs = float64(sc.global.TotalTimeMs) / float64(sc.global.TotalQueries)
	}
	for id, es := range sc.endpoints {
		s.Endpoints[id] = copyEndpointStats(es)
	}
	return s
}

// Reset clears the aggregates of one endpoint.
func (sc *StatsCollector) Reset(endpointID string) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	delete(sc.endpoints, endpointID)
}

func copyEndpointStats(es *EndpointStats) *EndpointStats {
	cp := *es
	cp.QueriesByKind = make(map[model.QueryKind]int64, len(es.QueriesByKind))
	for k, v := range es.QueriesByKind {
		cp.QueriesByKind[k] = v
	}
	return &cp
}
