package kpi

import (
	"math"

	"recon-engine/internal/model"
)

// Thresholds classify a KPI value: >= Healthy is healthy, >= Warning is
// warning, below is critical.
type Thresholds struct {
	Healthy float64
	Warning float64
}

var (
	coverageThresholds   = Thresholds{Healthy: 90, Warning: 80}
	confidenceThresholds = Thresholds{Healthy: 0.80, Warning: 0.70}
	efficiencyThresholds = Thresholds{Healthy: 40, Warning: 30}
)

// Input carries everything the calculator needs. Results are the
// per-definition outcomes of one run; the query-level numbers come from
// the executor.
type Input struct {
	Results          []model.DefinitionResult
	QueriesExecuted  int
	QueriesSucceeded int
	AvgLatencyMs     float64
}

// Calculate derives the reconciliation health indicators from one run.
// It is pure: same input, same output. Indicators whose inputs are
// absent (a plan-only run has no executed queries) are omitted rather
// than reported as zero.
func Calculate(in Input) []model.KPIValue {
	kpis := make([]model.KPIValue, 0, 3)

	if v, ok := coverage(in.Results); ok {
		kpis = append(kpis, classify(model.KPICoverage, v, coverageThresholds))
	}
	if v, ok := confidence(in.Results); ok {
		kpis = append(kpis, classify(model.KPIConfidence, v, confidenceThresholds))
	}
	if v, ok := efficiency(in); ok {
		kpis = append(kpis, classify(model.KPIEfficiency, v, efficiencyThresholds))
	}
	return kpis
}

// coverage is the share of source records that found a counterpart:
// matched / (matched + unmatched_source) * 100 across the run.
func coverage(results []model.DefinitionResult) (float64, bool) {
	var matched, unmatchedSource int64
	seen := false
	for _, r := range results {
		if r.Error != "" || r.Counts == nil {
			continue
		}
		m, okM := r.Counts[model.QueryKindMatched]
		u, okU := r.Counts[model.QueryKindUnmatchedSource]
		if !okM && !okU {
			continue
		}
		seen = true
		matched += m
		unmatchedSource += u
	}
	total := matched + unmatchedSource
	if !seen || total == 0 {
		return 0, false
	}
	return round2(float64(matched) / float64(total) * 100), true
}

// confidence averages per-definition parse confidence, weighted by
// matched record count. When no definition matched anything the plain
// average is used so a plan-only run still reports confidence.
func confidence(results []model.DefinitionResult) (float64, bool) {
	var weighted, weight, plain float64
	n := 0
	for _, r := range results {
		if r.Error != "" {
			continue
		}
		n++
		plain += r.Confidence
		if r.Counts != nil {
			if m := r.Counts[model.QueryKindMatched]; m > 0 {
				weighted += r.Confidence * float64(m)
				weight += float64(m)
			}
		}
	}
	if n == 0 {
		return 0, false
	}
	if weight > 0 {
		return round2(weighted / weight), true
	}
	return round2(plain / float64(n)), true
}

// efficiency blends query success rate, definition utilization, and
// inverse latency:
//
//	100 * (0.5*success_rate + 0.3*utilization + 0.2*inverse_latency)
//
// where inverse_latency = 1000 / (1000 + avg_ms). Utilization is the
// share of executed definitions that produced at least one matched row.
func efficiency(in Input) (float64, bool) {
	if in.QueriesExecuted == 0 {
		return 0, false
	}
	successRate := float64(in.QueriesSucceeded) / float64(in.QueriesExecuted)

	executed, productive := 0, 0
	for _, r := range in.Results {
		if r.Error != "" || r.Counts == nil {
			continue
		}
		executed++
		if r.Counts[model.QueryKindMatched] > 0 {
			productive++
		}
	}
	utilization := 0.0
	if executed > 0 {
		utilization = float64(productive) / float64(executed)
	}

	inverseLatency := 1000 / (1000 + in.AvgLatencyMs)

	return round2(100 * (0.5*successRate + 0.3*utilization + 0.2*inverseLatency)), true
}

func classify(kind model.KPIKind, value float64, t Thresholds) model.KPIValue {
	status := model.KPIStatusCritical
	switch {
	case value >= t.Healthy:
		status = model.KPIStatusHealthy
	case value >= t.Warning:
		status = model.KPIStatusWarning
	}
	return model.KPIValue{Kind: kind, Value: value, Status: status}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
