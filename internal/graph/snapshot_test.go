package graph

import (
	"testing"

	"recon-engine/internal/model"
)

func TestSnapshotTableLookup(t *testing.T) {
	kg := &model.KnowledgeGraph{
		ID:      "g1",
		Name:    "fin_recon",
		Version: 3,
		Tables: []model.GraphTable{
			{Name: "Invoices", SchemaName: "billing", Columns: model.ColumnList{{Name: "ID"}, {Name: "amount"}}},
			{Name: "orders"},
		},
	}
	s := NewSnapshot(kg)

	if s.Version != 3 {
		t.Errorf("expected version 3, got %d", s.Version)
	}

	tbl, ok := s.Table("invoices")
	if !ok {
		t.Fatal("expected case-insensitive table lookup")
	}
	if tbl.Name != "Invoices" {
		t.Errorf("expected stored spelling, got %q", tbl.Name)
	}
	if tbl.QualifiedName() != "billing.Invoices" {
		t.Errorf("unexpected qualified name %q", tbl.QualifiedName())
	}

	if !tbl.HasColumn("id") {
		t.Error("expected case-insensitive column lookup")
	}
	if name, _ := tbl.Column("id"); name != "ID" {
		t.Errorf("expected stored column spelling, got %q", name)
	}
	if tbl.HasColumn("no_such_column") {
		t.Error("unknown column reported as present")
	}

	// A table without column metadata accepts any column name.
	orders, _ := s.Table("orders")
	if !orders.HasColumn("anything") {
		t.Error("table without column metadata should accept any column")
	}
}

func TestSnapshotOrdersTablesByName(t *testing.T) {
	kg := &model.KnowledgeGraph{
		Name: "g",
		Tables: []model.GraphTable{
			{Name: "zebra"}, {Name: "alpha"}, {Name: "midway"},
		},
	}
	s := NewSnapshot(kg)

	names := make([]string, 0, 3)
	for _, tbl := range s.Tables() {
		names = append(names, tbl.Name)
	}
	want := []string{"alpha", "midway", "zebra"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, names)
		}
	}
}

func TestSnapshotSkipsDanglingRelationships(t *testing.T) {
	kg := &model.KnowledgeGraph{
		Name:   "g",
		Tables: []model.GraphTable{{Name: "a"}, {Name: "b"}},
		Relationships: []model.GraphRelationship{
			{SourceTable: "a", SourceColumn: "x", TargetTable: "missing", TargetColumn: "y", Confidence: 1},
			{SourceTable: "a", SourceColumn: "b_id", TargetTable: "b", TargetColumn: "id", Confidence: 1, Bidirectional: true},
		},
	}
	s := NewSnapshot(kg)

	a, _ := s.Table("a")
	if got := len(s.Neighbors(a)); got != 1 {
		t.Errorf("expected dangling relationship to be skipped, got %d edges", got)
	}
}

func TestSnapshotClampsConfidence(t *testing.T) {
	kg := &model.KnowledgeGraph{
		Name:   "g",
		Tables: []model.GraphTable{{Name: "a"}, {Name: "b"}},
		Relationships: []model.GraphRelationship{
			{SourceTable: "a", SourceColumn: "b_id", TargetTable: "b", TargetColumn: "id", Confidence: 0},
		},
	}
	s := NewSnapshot(kg)

	a, _ := s.Table("a")
	edges := s.Neighbors(a)
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if edges[0].Confidence != 1 {
		t.Errorf("zero confidence should default to 1, got %v", edges[0].Confidence)
	}
}
