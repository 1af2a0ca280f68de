package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"recon-engine/internal/alias"
	"recon-engine/internal/graph"
	"recon-engine/internal/llm"
	"recon-engine/internal/model"
)

func planningSnapshot() *graph.Snapshot {
	kg := &model.KnowledgeGraph{
		ID:      "g1",
		Name:    "planning",
		Version: 1,
		Tables: []model.GraphTable{
			{
				Name:    "RBP",
				Columns: model.ColumnList{{Name: "Material"}, {Name: "Description"}},
			},
			{
				Name:    "OPS_EXCEL",
				Columns: model.ColumnList{{Name: "PLANNING_SKU"}, {Name: "Active_Inclusive"}},
				Aliases: model.StringList{"ops excel", "ops"},
			},
			{
				Name:    "HANA_MASTER",
				Columns: model.ColumnList{{Name: "SKU"}, {Name: "PLANNER"}},
				Aliases: model.StringList{"hana master", "master"},
			},
		},
	}
	return graph.NewSnapshot(kg)
}

func parseRequest(s *graph.Snapshot, definition string, useLLM bool) Request {
	return Request{
		Definition: definition,
		Snapshot:   s,
		Resolver:   alias.NewResolver(s),
		UseLLM:     useLLM,
	}
}

func TestParseLLMPath(t *testing.T) {
	s := planningSnapshot()
	mock := llm.NewMock(`{
		"query_type": "comparison",
		"operation": "NOT_IN",
		"source_table": "rbp",
		"target_table": "ops excel",
		"filters": [{"column": "active_inclusive", "operator": "=", "value": "Active"}],
		"additional_columns": [{"column": "planner", "table": "hana master", "alias": ""}],
		"confidence": 0.93
	}`)
	p := NewParser(mock, 0)

	parsed := p.Parse(context.Background(), parseRequest(s, "Show me all products in RBP which are not in OPS Excel", true))

	if parsed.Degraded {
		t.Fatalf("LLM path must not be degraded, warnings: %v", parsed.Warnings)
	}
	if parsed.SourceTable != "RBP" || parsed.TargetTable != "OPS_EXCEL" {
		t.Errorf("tables not canonicalized: %q / %q", parsed.SourceTable, parsed.TargetTable)
	}
	if parsed.Operation != model.OperationNotIn {
		t.Errorf("expected NOT_IN, got %s", parsed.Operation)
	}
	if parsed.QueryType != model.QueryTypeComparison {
		t.Errorf("expected comparison, got %s", parsed.QueryType)
	}
	if len(parsed.Filters) != 1 || parsed.Filters[0].Column != "Active_Inclusive" {
		t.Errorf("filter column not canonicalized: %+v", parsed.Filters)
	}
	if len(parsed.AdditionalColumns) != 1 || parsed.AdditionalColumns[0].OwningTable != "HANA_MASTER" || parsed.AdditionalColumns[0].Column != "PLANNER" {
		t.Errorf("additional column not canonicalized: %+v", parsed.AdditionalColumns)
	}
	if parsed.Confidence != 0.93 {
		t.Errorf("expected confidence 0.93, got %v", parsed.Confidence)
	}
}

func TestParseLLMFencedResponse(t *testing.T) {
	s := planningSnapshot()
	mock := llm.NewMock("```json\n{\"query_type\":\"filter\",\"operation\":\"IN\",\"source_table\":\"RBP\",\"target_table\":\"\",\"confidence\":0.9}\n```")
	p := NewParser(mock, 0)

	parsed := p.Parse(context.Background(), parseRequest(s, "show RBP", true))
	if parsed.Degraded {
		t.Fatalf("fenced JSON should parse, warnings: %v", parsed.Warnings)
	}
	if parsed.SourceTable != "RBP" || parsed.QueryType != model.QueryTypeFilter {
		t.Errorf("unexpected parse: %+v", parsed)
	}
}

func TestParseLLMFailureFallsBack(t *testing.T) {
	s := planningSnapshot()
	p := NewParser(llm.NewMockError(errors.New("rate limited")), 0)

	parsed := p.Parse(context.Background(), parseRequest(s, "Show me all products in RBP which are not in OPS Excel", true))

	if !parsed.Degraded {
		t.Fatal("fallback result must be flagged degraded")
	}
	found := false
	for _, w := range parsed.Warnings {
		if strings.Contains(w, "llm parse failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected llm failure warning, got %v", parsed.Warnings)
	}
	if parsed.SourceTable != "RBP" || parsed.TargetTable != "OPS_EXCEL" {
		t.Errorf("fallback should still find tables: %q / %q", parsed.SourceTable, parsed.TargetTable)
	}
	if parsed.Operation != model.OperationNotIn {
		t.Errorf("expected NOT_IN from vocabulary, got %s", parsed.Operation)
	}
}

func TestParseLLMUnresolvableTableFallsBack(t *testing.T) {
	s := planningSnapshot()
	mock := llm.NewMock(`{"query_type":"comparison","operation":"IN","source_table":"warehouse_zzz_unknown","target_table":"ops excel","confidence":0.9}`)
	p := NewParser(mock, 0)

	parsed := p.Parse(context.Background(), parseRequest(s, "RBP vs OPS Excel", true))
	if !parsed.Degraded {
		t.Fatal("unresolvable model table must trigger the fallback")
	}
}

func TestParseLLMGarbageFallsBack(t *testing.T) {
	s := planningSnapshot()
	p := NewParser(llm.NewMock("I could not understand the request."), 0)

	parsed := p.Parse(context.Background(), parseRequest(s, "RBP not in OPS Excel", true))
	if !parsed.Degraded {
		t.Fatal("non-JSON output must trigger the fallback")
	}
}

func TestParseWithoutLLM(t *testing.T) {
	s := planningSnapshot()
	p := NewParser(nil, 0)

	parsed := p.Parse(context.Background(), parseRequest(s, "RBP which are not in OPS Excel", false))
	if !parsed.Degraded {
		t.Fatal("deterministic path must be flagged degraded")
	}
	if parsed.SourceTable != "RBP" || parsed.TargetTable != "OPS_EXCEL" {
		t.Errorf("unexpected tables: %q / %q", parsed.SourceTable, parsed.TargetTable)
	}
	if parsed.QueryType != model.QueryTypeComparison {
		t.Errorf("expected comparison, got %s", parsed.QueryType)
	}
	if parsed.Confidence > fallbackMaxConfidence {
		t.Errorf("fallback confidence above cap: %v", parsed.Confidence)
	}
}

func TestFallbackActiveFilterWithColumn(t *testing.T) {
	s := planningSnapshot()
	p := NewParser(nil, 0)

	parsed := p.Parse(context.Background(), parseRequest(s, "show active OPS Excel", false))

	if !parsed.Degraded {
		t.Fatal("expected degraded parse")
	}
	if parsed.SourceTable != "OPS_EXCEL" {
		t.Fatalf("expected OPS_EXCEL, got %q", parsed.SourceTable)
	}
	if len(parsed.Filters) != 1 {
		t.Fatalf("expected the active filter, got %+v", parsed.Filters)
	}
	f := parsed.Filters[0]
	if f.Column != "Active_Inclusive" || f.Operator != "=" || f.Value != "Active" {
		t.Errorf("unexpected filter: %+v", f)
	}
	if parsed.QueryType != model.QueryTypeFilter {
		t.Errorf("single-table definition should be a filter query, got %s", parsed.QueryType)
	}
}

func TestFallbackActiveFilterWithoutColumn(t *testing.T) {
	// RBP has no active-like column, so the vocabulary filter is dropped;
	// the degraded flag is what tells callers filters may be missing.
	s := planningSnapshot()
	p := NewParser(nil, 0)

	parsed := p.Parse(context.Background(), parseRequest(s, "show active RBP", false))

	if !parsed.Degraded {
		t.Fatal("expected degraded parse")
	}
	if len(parsed.Filters) != 0 {
		t.Errorf("expected no filters, got %+v", parsed.Filters)
	}
}

func TestFallbackIncludeClause(t *testing.T) {
	s := planningSnapshot()
	p := NewParser(nil, 0)

	parsed := p.Parse(context.Background(), parseRequest(s,
		"show products in RBP missing from OPS Excel, include planner from hana master", false))

	if parsed.SourceTable != "RBP" || parsed.TargetTable != "OPS_EXCEL" {
		t.Errorf("include clause leaked into table scan: %q / %q", parsed.SourceTable, parsed.TargetTable)
	}
	if parsed.Operation != model.OperationNotIn {
		t.Errorf("expected NOT_IN, got %s", parsed.Operation)
	}
	if len(parsed.AdditionalColumns) != 1 {
		t.Fatalf("expected one additional column, got %+v", parsed.AdditionalColumns)
	}
	ac := parsed.AdditionalColumns[0]
	if ac.OwningTable != "HANA_MASTER" || ac.Column != "PLANNER" {
		t.Errorf("unexpected additional column: %+v", ac)
	}
}

func TestFallbackAggregate(t *testing.T) {
	s := planningSnapshot()
	p := NewParser(nil, 0)

	parsed := p.Parse(context.Background(), parseRequest(s, "count RBP records not in OPS Excel", false))
	if parsed.QueryType != model.QueryTypeAggregate {
		t.Errorf("expected aggregate, got %s", parsed.QueryType)
	}
	if parsed.Operation != model.OperationNotIn {
		t.Errorf("expected NOT_IN, got %s", parsed.Operation)
	}
}

func TestFallbackNoTables(t *testing.T) {
	s := planningSnapshot()
	p := NewParser(nil, 0)

	parsed := p.Parse(context.Background(), parseRequest(s, "show me everything interesting", false))
	if parsed.SourceTable != "" {
		t.Errorf("expected no source table, got %q", parsed.SourceTable)
	}
	if len(parsed.Warnings) == 0 {
		t.Error("expected a warning about unrecognized tables")
	}
}

func TestNormalizeOperator(t *testing.T) {
	cases := map[string]string{
		"=": "=", "==": "=", "!=": "<>", "<>": "<>",
		"LIKE": "LIKE", "like": "LIKE", ">=": ">=",
		"bogus": "=", "": "=",
	}
	for in, want := range cases {
		if got := normalizeOperator(in); got != want {
			t.Errorf("normalizeOperator(%q) = %q, want %q", in, got, want)
		}
	}
}
