package model

// KPIKind identifies a reconciliation health indicator.
type KPIKind string

const (
	KPICoverage   KPIKind = "coverage"
	KPIConfidence KPIKind = "confidence"
	KPIEfficiency KPIKind = "efficiency"
)

// KPIStatus classifies a KPI value against its thresholds.
type KPIStatus string

const (
	KPIStatusHealthy  KPIStatus = "healthy"
	KPIStatusWarning  KPIStatus = "warning"
	KPIStatusCritical KPIStatus = "critical"
)

// KPIValue is a computed health indicator with its classification.
type KPIValue struct {
	Kind   KPIKind   `json:"kind"`
	Value  float64   `json:"value"`
	Status KPIStatus `json:"status"`
}
