package graph

import (
	"errors"
	"testing"

	"recon-engine/internal/model"
)

func rel(st, sc, tt, tc string, conf float64, bidi bool) model.GraphRelationship {
	return model.GraphRelationship{
		SourceTable:   st,
		SourceColumn:  sc,
		TargetTable:   tt,
		TargetColumn:  tc,
		Confidence:    conf,
		Bidirectional: bidi,
	}
}

func testSnapshot(rels []model.GraphRelationship, tables ...string) *Snapshot {
	kg := &model.KnowledgeGraph{ID: "g1", Name: "fin_recon", Version: 1}
	for _, name := range tables {
		kg.Tables = append(kg.Tables, model.GraphTable{Name: name})
	}
	kg.Relationships = rels
	return NewSnapshot(kg)
}

func TestFindPathDirect(t *testing.T) {
	s := testSnapshot([]model.GraphRelationship{
		rel("invoices", "order_id", "orders", "id", 0.95, true),
	}, "invoices", "orders")

	path, err := FindPath(s, "invoices", "orders")
	if err != nil {
		t.Fatalf("FindPath failed: %v", err)
	}
	if len(path.Hops) != 1 {
		t.Fatalf("expected 1 hop, got %d", len(path.Hops))
	}
	hop := path.Hops[0]
	if hop.FromTable != "invoices" || hop.FromColumn != "order_id" || hop.ToTable != "orders" || hop.ToColumn != "id" {
		t.Errorf("unexpected hop: %+v", hop)
	}
	if path.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %v", path.Confidence)
	}
}

func TestFindPathSameTable(t *testing.T) {
	s := testSnapshot(nil, "payments")

	path, err := FindPath(s, "payments", "payments")
	if err != nil {
		t.Fatalf("FindPath failed: %v", err)
	}
	if len(path.Hops) != 0 {
		t.Errorf("expected empty path, got %d hops", len(path.Hops))
	}
	if path.Confidence != 1 {
		t.Errorf("expected confidence 1, got %v", path.Confidence)
	}
}

func TestFindPathTwoHops(t *testing.T) {
	s := testSnapshot([]model.GraphRelationship{
		rel("invoices", "order_id", "orders", "id", 0.9, true),
		rel("orders", "customer_id", "customers", "id", 0.8, true),
	}, "invoices", "orders", "customers")

	path, err := FindPath(s, "invoices", "customers")
	if err != nil {
		t.Fatalf("FindPath failed: %v", err)
	}
	if len(path.Hops) != 2 {
		t.Fatalf("expected 2 hops, got %d", len(path.Hops))
	}
	if path.Hops[0].ToTable != "orders" || path.Hops[1].ToTable != "customers" {
		t.Errorf("unexpected chain: %v", path.TableNames())
	}
	want := 0.9 * 0.8
	if diff := path.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected confidence %v, got %v", want, path.Confidence)
	}
}

func TestFindPathPrefersFewerHops(t *testing.T) {
	// Direct low-confidence edge beats a high-confidence detour.
	s := testSnapshot([]model.GraphRelationship{
		rel("a", "b_id", "b", "id", 0.5, true),
		rel("a", "c_id", "c", "id", 1.0, true),
		rel("c", "b_id", "b", "id", 1.0, true),
	}, "a", "b", "c")

	path, err := FindPath(s, "a", "b")
	if err != nil {
		t.Fatalf("FindPath failed: %v", err)
	}
	if len(path.Hops) != 1 {
		t.Fatalf("expected direct path, got %d hops via %v", len(path.Hops), path.TableNames())
	}
	if path.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5, got %v", path.Confidence)
	}
}

func TestFindPathPrefersHigherConfidence(t *testing.T) {
	// Both routes are two hops; the one through x has the better product.
	s := testSnapshot([]model.GraphRelationship{
		rel("src", "x_id", "x", "id", 0.9, true),
		rel("x", "dst_id", "dst", "id", 0.9, true),
		rel("src", "y_id", "y", "id", 0.6, true),
		rel("y", "dst_id", "dst", "id", 0.6, true),
	}, "src", "dst", "x", "y")

	path, err := FindPath(s, "src", "dst")
	if err != nil {
		t.Fatalf("FindPath failed: %v", err)
	}
	if len(path.Hops) != 2 {
		t.Fatalf("expected 2 hops, got %d", len(path.Hops))
	}
	if path.Hops[0].ToTable != "x" {
		t.Errorf("expected route through x, got %v", path.TableNames())
	}
}

func TestFindPathDeterministicTieBreak(t *testing.T) {
	// Equal confidence products; the alphabetically first intermediate wins.
	rels := []model.GraphRelationship{
		rel("src", "m_id", "mid_b", "id", 0.8, true),
		rel("mid_b", "dst_id", "dst", "id", 0.8, true),
		rel("src", "m_id", "mid_a", "id", 0.8, true),
		rel("mid_a", "dst_id", "dst", "id", 0.8, true),
	}

	for i := 0; i < 5; i++ {
		s := testSnapshot(rels, "src", "dst", "mid_b", "mid_a")
		path, err := FindPath(s, "src", "dst")
		if err != nil {
			t.Fatalf("FindPath failed: %v", err)
		}
		if path.Hops[0].ToTable != "mid_a" {
			t.Fatalf("expected deterministic route through mid_a, got %v", path.TableNames())
		}
	}
}

func TestFindPathNoPath(t *testing.T) {
	s := testSnapshot([]model.GraphRelationship{
		rel("a", "b_id", "b", "id", 1.0, true),
	}, "a", "b", "island")

	_, err := FindPath(s, "a", "island")
	if err == nil {
		t.Fatal("expected NoPathError")
	}
	var npe *NoPathError
	if !errors.As(err, &npe) {
		t.Fatalf("expected *NoPathError, got %T", err)
	}
	if npe.Source != "a" || npe.Target != "island" || npe.Graph != "fin_recon" {
		t.Errorf("unexpected error fields: %+v", npe)
	}
}

func TestFindPathIgnoresDirectionality(t *testing.T) {
	// The bidirectional flag labels edge semantics only; traversal always
	// works both ways.
	s := testSnapshot([]model.GraphRelationship{
		rel("a", "b_id", "b", "id", 1.0, false),
	}, "a", "b")

	if _, err := FindPath(s, "a", "b"); err != nil {
		t.Fatalf("forward path failed: %v", err)
	}
	path, err := FindPath(s, "b", "a")
	if err != nil {
		t.Fatalf("reverse path failed: %v", err)
	}
	hop := path.Hops[0]
	if hop.FromColumn != "id" || hop.ToColumn != "b_id" {
		t.Errorf("reverse hop should swap columns, got %+v", hop)
	}
}

func TestFindPathReverseHopSwapsColumns(t *testing.T) {
	s := testSnapshot([]model.GraphRelationship{
		rel("orders", "id", "invoices", "order_id", 1.0, true),
	}, "invoices", "orders")

	path, err := FindPath(s, "invoices", "orders")
	if err != nil {
		t.Fatalf("FindPath failed: %v", err)
	}
	hop := path.Hops[0]
	if hop.FromColumn != "order_id" || hop.ToColumn != "id" {
		t.Errorf("reverse traversal should swap columns, got %+v", hop)
	}
}

func TestJoinColumns(t *testing.T) {
	s := testSnapshot([]model.GraphRelationship{
		rel("invoices", "order_id", "orders", "id", 1.0, true),
		rel("orders", "customer_id", "customers", "id", 1.0, true),
	}, "invoices", "orders", "customers")

	path, err := FindPath(s, "invoices", "customers")
	if err != nil {
		t.Fatalf("FindPath failed: %v", err)
	}
	pairs := path.JoinColumns()
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0] != [2]string{"order_id", "id"} || pairs[1] != [2]string{"customer_id", "id"} {
		t.Errorf("unexpected pairs: %v", pairs)
	}
}
