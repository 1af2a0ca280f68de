package service

import (
	"testing"
	"time"

	"recon-engine/internal/model"
)

func TestStatsCollectorRecord(t *testing.T) {
	sc := NewStatsCollector()
	sc.Record("ep-1", model.DatabaseTypeMySQL, model.QueryKindMatched, true, 10*time.Millisecond, 100, "")
	sc.Record("ep-1", model.DatabaseTypeMySQL, model.QueryKindUnmatchedSource, true, 30*time.Millisecond, 50, "")
	sc.Record("ep-1", model.DatabaseTypeMySQL, model.QueryKindMatched, false, 20*time.Millisecond, 0, "timeout")

	es, ok := sc.EndpointStatsFor("ep-1")
	if !ok {
		t.Fatalf("expected stats for ep-1")
	}
	if es.TotalQueries != 3 || es.Succeeded != 2 || es.Failed != 1 {
		t.Errorf("unexpected totals: %+v", es)
	}
	if es.TotalRows != 150 || es.TotalTimeMs != 60 {
		t.Errorf("unexpected rows/time: %d/%d", es.TotalRows, es.TotalTimeMs)
	}
	if es.MinTimeMs != 10 || es.MaxTimeMs != 30 {
		t.Errorf("unexpected min/max: %d/%d", es.MinTimeMs, es.MaxTimeMs)
	}
	if es.QueriesByKind[model.QueryKindMatched] != 2 || es.QueriesByKind[model.QueryKindUnmatchedSource] != 1 {
		t.Errorf("unexpected kind counts: %+v", es.QueriesByKind)
	}
	if es.LastError != "timeout" || es.LastErrorTime.IsZero() {
		t.Errorf("last error not tracked: %+v", es)
	}
	if es.DatabaseType != model.DatabaseTypeMySQL {
		t.Errorf("unexpected database type: %s", es.DatabaseType)
	}
}

func TestStatsCollectorSummary(t *testing.T) {
	sc := NewStatsCollector()
	sc.Record("ep-1", model.DatabaseTypeMySQL, model.QueryKindMatched, true, 10*time.Millisecond, 10, "")
	sc.Record("ep-2", model.DatabaseTypePostgreSQL, model.QueryKindMatched, true, 20*time.Millisecond, 20, "")
	sc.Record("ep-2", model.DatabaseTypePostgreSQL, model.QueryKindMatched, false, 30*time.Millisecond, 0, "boom")

	s := sc.Summary()
	if s.TotalQueries != 3 || s.Succeeded != 2 || s.Failed != 1 {
		t.Errorf("unexpected summary totals: %+v", s)
	}
	if s.SuccessRate < 0.66 || s.SuccessRate > 0.67 {
		t.Errorf("expected success rate 2/3, got %v", s.SuccessRate)
	}
	if s.AvgTimeMs != 20 {
		t.Errorf("expected avg 20ms, got %v", s.AvgTimeMs)
	}
	if len(s.Endpoints) != 2 {
		t.Errorf("expected two endpoints, got %d", len(s.Endpoints))
	}
}

func TestStatsCollectorCopySafety(t *testing.T) {
	sc := NewStatsCollector()
	sc.Record("ep-1", model.DatabaseTypeMySQL, model.QueryKindMatched, true, 10*time.Millisecond, 1, "")

	s := sc.Summary()
	s.Endpoints["ep-1"].QueriesByKind[model.QueryKindMatched] = 99
	s.Endpoints["ep-1"].TotalQueries = 99

	es, _ := sc.EndpointStatsFor("ep-1")
	if es.TotalQueries != 1 || es.QueriesByKind[model.QueryKindMatched] != 1 {
		t.Errorf("summary mutation leaked into the collector: %+v", es)
	}
}

func TestStatsCollectorMissingEndpoint(t *testing.T) {
	sc := NewStatsCollector()
	if _, ok := sc.EndpointStatsFor("nope"); ok {
		t.Errorf("expected no stats for unknown endpoint")
	}
}

func TestStatsCollectorReset(t *testing.T) {
	sc := NewStatsCollector()
	sc.Record("ep-1", model.DatabaseTypeMySQL, model.QueryKindMatched, true, 10*time.Millisecond, 1, "")
	sc.Reset("ep-1")

	if _, ok := sc.EndpointStatsFor("ep-1"); ok {
		t.Errorf("expected endpoint stats cleared after reset")
	}
	// Run-wide counters survive a per-endpoint reset.
	if s := sc.Summary(); s.TotalQueries != 1 {
		t.Errorf("global totals should survive endpoint reset, got %+v", s)
	}
}
