package alias

import (
	"errors"
	"testing"

	"recon-engine/internal/graph"
	"recon-engine/internal/model"
)

func billingSnapshot() *graph.Snapshot {
	kg := &model.KnowledgeGraph{
		ID:      "g1",
		Name:    "billing",
		Version: 1,
		Tables: []model.GraphTable{
			{Name: "invoices", Aliases: model.StringList{"bills", "invoice records"}},
			{Name: "payments", Aliases: model.StringList{"pay", "payment records"}},
			{Name: "bank_statements", Aliases: model.StringList{"statements"}},
		},
	}
	return graph.NewSnapshot(kg)
}

func TestResolveExactCanonical(t *testing.T) {
	r := NewResolver(billingSnapshot())

	m, err := r.Resolve("invoices")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Table != "invoices" || m.Score != 1 {
		t.Errorf("expected invoices at 1.0, got %+v", m)
	}
}

func TestResolveIdempotent(t *testing.T) {
	r := NewResolver(billingSnapshot())

	m, err := r.Resolve("invoices")
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	again, err := r.Resolve(m.Table)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if again.Table != m.Table || again.Score != 1 {
		t.Errorf("canonical name should resolve to itself at 1.0, got %+v", again)
	}
}

func TestResolveAlias(t *testing.T) {
	r := NewResolver(billingSnapshot())

	m, err := r.Resolve("bills")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Table != "invoices" {
		t.Errorf("expected alias to resolve to invoices, got %q", m.Table)
	}
	if m.Score != 1 {
		t.Errorf("expected exact alias score 1.0, got %v", m.Score)
	}
}

func TestResolveCaseAndSeparators(t *testing.T) {
	r := NewResolver(billingSnapshot())

	cases := []string{"  Invoices ", "INVOICES", "Invoice-Records", "invoice_records"}
	for _, name := range cases {
		m, err := r.Resolve(name)
		if err != nil {
			t.Errorf("Resolve(%q) failed: %v", name, err)
			continue
		}
		if m.Table != "invoices" {
			t.Errorf("Resolve(%q) = %q, expected invoices", name, m.Table)
		}
	}
}

func TestResolvePluralFold(t *testing.T) {
	r := NewResolver(billingSnapshot())

	cases := map[string]string{
		"invoice":        "invoices",
		"bill":           "invoices",
		"bank statement": "bank_statements",
		"statement":      "bank_statements",
	}
	for name, want := range cases {
		m, err := r.Resolve(name)
		if err != nil {
			t.Errorf("Resolve(%q) failed: %v", name, err)
			continue
		}
		if m.Table != want {
			t.Errorf("Resolve(%q) = %q, expected %q", name, m.Table, want)
		}
		if m.Score != 1 {
			t.Errorf("Resolve(%q) score = %v, expected exact 1.0", name, m.Score)
		}
	}
}

func TestResolveFuzzy(t *testing.T) {
	r := NewResolver(billingSnapshot())

	m, err := r.Resolve("bank statments")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Table != "bank_statements" {
		t.Errorf("expected bank_statements, got %q", m.Table)
	}
	if m.Score < matchThreshold || m.Score >= 1 {
		t.Errorf("fuzzy score out of range: %v", m.Score)
	}
}

func TestResolveNoMatch(t *testing.T) {
	r := NewResolver(billingSnapshot())

	_, err := r.Resolve("warehouse inventory snapshots xyz")
	if err == nil {
		t.Fatal("expected NoMatchError")
	}
	var nme *NoMatchError
	if !errors.As(err, &nme) {
		t.Fatalf("expected *NoMatchError, got %T", err)
	}
	if nme.Graph != "billing" {
		t.Errorf("unexpected graph in error: %q", nme.Graph)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	kg := &model.KnowledgeGraph{
		ID:      "g2",
		Name:    "dup",
		Version: 1,
		Tables: []model.GraphTable{
			{Name: "ledger_b", Aliases: model.StringList{"ledger"}},
			{Name: "ledger_a", Aliases: model.StringList{"ledger"}},
		},
	}
	r := NewResolver(graph.NewSnapshot(kg))

	_, err := r.Resolve("ledger")
	if err == nil {
		t.Fatal("expected AmbiguousMatchError")
	}
	var ame *AmbiguousMatchError
	if !errors.As(err, &ame) {
		t.Fatalf("expected *AmbiguousMatchError, got %T", err)
	}
	if len(ame.Candidates) != 2 {
		t.Fatalf("expected top-2 candidates, got %d", len(ame.Candidates))
	}
	if ame.Candidates[0].Table != "ledger_a" {
		t.Errorf("expected deterministic candidate order, got %+v", ame.Candidates)
	}
}

func TestResolveCanonicalBeatsForeignAlias(t *testing.T) {
	// "orders" is both a table and an alias of another table; the
	// canonical table must win without an ambiguity error.
	kg := &model.KnowledgeGraph{
		ID:      "g3",
		Name:    "shop",
		Version: 1,
		Tables: []model.GraphTable{
			{Name: "orders"},
			{Name: "purchase_orders", Aliases: model.StringList{"orders"}},
		},
	}
	r := NewResolver(graph.NewSnapshot(kg))

	m, err := r.Resolve("orders")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Table != "orders" || m.Score != 1 {
		t.Errorf("expected canonical orders at 1.0, got %+v", m)
	}
}

func TestCacheReusesByVersion(t *testing.T) {
	cache := NewCache()

	kg := &model.KnowledgeGraph{ID: "g1", Name: "g", Version: 1, Tables: []model.GraphTable{{Name: "a"}}}
	s1 := graph.NewSnapshot(kg)

	r1 := cache.For(s1)
	r2 := cache.For(s1)
	if r1 != r2 {
		t.Error("expected cached resolver for same version")
	}

	kg.Version = 2
	s2 := graph.NewSnapshot(kg)
	r3 := cache.For(s2)
	if r3 == r1 {
		t.Error("expected rebuild after version bump")
	}

	stats := cache.GetStats()
	if stats.Entries != 1 || stats.Misses != 2 || stats.Hits != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
