package intent

import (
	"recon-engine/internal/graph"
	"recon-engine/internal/model"
)

// Filter is one predicate extracted from a definition. The owning side
// (source or target) is resolved during SQL generation.
type Filter struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// AdditionalColumn is an "include X from Y" request. JoinPath is filled
// by the pipeline after path discovery, never by the parser.
type AdditionalColumn struct {
	Column      string      `json:"column"`
	OwningTable string      `json:"owning_table"`
	Alias       string      `json:"alias,omitempty"`
	JoinPath    *graph.Path `json:"-"`
}

// ParsedIntent is the structured form of one natural-language definition.
// It is created once per definition and read-only afterwards. Degraded
// reports that the deterministic fallback produced the parse, meaning
// filters may be incomplete even when the list is empty.
type ParsedIntent struct {
	QueryType         model.QueryType    `json:"query_type"`
	Operation         model.Operation    `json:"operation"`
	SourceTable       string             `json:"source_table"`
	TargetTable       string             `json:"target_table,omitempty"`
	Filters           []Filter           `json:"filters,omitempty"`
	AdditionalColumns []AdditionalColumn `json:"additional_columns,omitempty"`
	Confidence        float64            `json:"confidence"`
	Degraded          bool               `json:"degraded"`
	Warnings          []string           `json:"warnings,omitempty"`
}
