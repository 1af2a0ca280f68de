package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all Prometheus metrics of the engine.
type PrometheusMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RunsTotal        *prometheus.CounterVec
	ActiveRuns       prometheus.Gauge
	DefinitionsTotal *prometheus.CounterVec
	ParseTotal       *prometheus.CounterVec

	QueryTotal    *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryRows     *prometheus.CounterVec

	EndpointUp *prometheus.GaugeVec
}

var metrics *PrometheusMetrics

// InitMetrics registers all Prometheus metrics. Call once at startup;
// recording functions are no-ops until then.
func InitMetrics() {
	metrics = &PrometheusMetrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recon_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_runs_total",
				Help: "Total number of reconciliation runs",
			},
			[]string{"mode"},
		),
		ActiveRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "recon_active_runs",
				Help: "Number of reconciliation runs in flight",
			},
		),
		DefinitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_definitions_total",
				Help: "Total number of processed definitions",
			},
			[]string{"status", "degraded"},
		),
		ParseTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_parse_total",
				Help: "Total number of definition parses by path",
			},
			[]string{"path"},
		),

		QueryTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_query_total",
				Help: "Total number of executed reconciliation queries",
			},
			[]string{"endpoint_id", "database_type", "status"},
		),
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recon_query_duration_seconds",
				Help:    "Reconciliation query execution time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		QueryRows: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_query_rows_total",
				Help: "Total number of rows scanned by reconciliation queries",
			},
			[]string{"endpoint_id", "database_type"},
		),

		EndpointUp: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recon_endpoint_up",
				Help: "Whether the endpoint passed its last health check (1=up, 0=down)",
			},
			[]string{"endpoint_id", "database_type"},
		),
	}
}

// GetMetrics returns the initialized metrics, or nil before InitMetrics.
func GetMetrics() *PrometheusMetrics {
	return metrics
}

// PrometheusMiddleware records HTTP request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if metrics == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// RunStarted marks a reconciliation run in flight.
func RunStarted(execute bool) {
	if metrics == nil {
		return
	}
	mode := "plan"
	if execute {
		mode = "execute"
	}
	metrics.RunsTotal.WithLabelValues(mode).Inc()
	metrics.ActiveRuns.Inc()
}

// RunFinished marks a reconciliation run as done.
func RunFinished() {
	if metrics == nil {
		return
	}
	metrics.ActiveRuns.Dec()
}

// RecordDefinition counts one processed definition.
func RecordDefinition(success, degraded bool) {
	if metrics == nil {
		return
	}
	status := "failed"
	if success {
		status = "succeeded"
	}
	metrics.DefinitionsTotal.WithLabelValues(status, strconv.FormatBool(degraded)).Inc()
}

// RecordParse counts one definition parse by the path that produced it.
func RecordParse(llmUsed bool) {
	if metrics == nil {
		return
	}
	path := "fallback"
	if llmUsed {
		path = "llm"
	}
	metrics.ParseTotal.WithLabelValues(path).Inc()
}

// RecordQueryMetrics records one executed query.
func RecordQueryMetrics(endpointID, databaseType, kind, status string, duration time.Duration, rows int64) {
	if metrics == nil {
		return
	}
	metrics.QueryTotal.WithLabelValues(endpointID, databaseType, status).Inc()
	metrics.QueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if rows > 0 {
		metrics.QueryRows.WithLabelValues(endpointID, databaseType).Add(float64(rows))
	}
}

// SetEndpointUp publishes the outcome of an endpoint health check.
func SetEndpointUp(endpointID, databaseType string, up bool) {
	if metrics == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	metrics.EndpointUp.WithLabelValues(endpointID, databaseType).Set(v)
}
