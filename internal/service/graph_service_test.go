package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"recon-engine/internal/alias"
	"recon-engine/internal/database/metadata"
	"recon-engine/internal/model"
	"recon-engine/internal/repository"
)

// fakeGraphRepo is an in-memory GraphRepository. Loads return copies so
// callers never share table slices with the store, matching how the
// real repository returns freshly scanned entities.
type fakeGraphRepo struct {
	mu     sync.Mutex
	graphs map[string]*model.KnowledgeGraph
}

func newFakeGraphRepo(graphs ...*model.KnowledgeGraph) *fakeGraphRepo {
	r := &fakeGraphRepo{graphs: make(map[string]*model.KnowledgeGraph)}
	for _, kg := range graphs {
		if kg.ID == "" {
			kg.ID = uuid.New().String()
		}
		if kg.Version == 0 {
			kg.Version = 1
		}
		r.graphs[kg.ID] = copyGraph(kg)
	}
	return r
}

func copyGraph(kg *model.KnowledgeGraph) *model.KnowledgeGraph {
	out := *kg
	out.Tables = append([]model.GraphTable(nil), kg.Tables...)
	out.Relationships = append([]model.GraphRelationship(nil), kg.Relationships...)
	return &out
}

func (r *fakeGraphRepo) Create(ctx context.Context, kg *model.KnowledgeGraph) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.graphs {
		if existing.Name == kg.Name {
			return repository.ErrGraphExists
		}
	}
	if kg.ID == "" {
		kg.ID = uuid.New().String()
	}
	if kg.Version == 0 {
		kg.Version = 1
	}
	r.graphs[kg.ID] = copyGraph(kg)
	return nil
}

func (r *fakeGraphRepo) GetByID(ctx context.Context, id string) (*model.KnowledgeGraph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kg, ok := r.graphs[id]
	if !ok {
		return nil, repository.ErrGraphNotFound
	}
	return copyGraph(kg), nil
}

func (r *fakeGraphRepo) GetByName(ctx context.Context, name string) (*model.KnowledgeGraph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kg := range r.graphs {
		if kg.Name == name {
			return copyGraph(kg), nil
		}
	}
	return nil, repository.ErrGraphNotFound
}

func (r *fakeGraphRepo) GetAll(ctx context.Context, limit, offset int) ([]*model.KnowledgeGraph, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.KnowledgeGraph
	for _, kg := range r.graphs {
		out = append(out, copyGraph(kg))
	}
	return out, int64(len(r.graphs)), nil
}

func (r *fakeGraphRepo) Update(ctx context.Context, kg *model.KnowledgeGraph) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.graphs[kg.ID]
	if !ok {
		return repository.ErrGraphNotFound
	}
	stored.Name = kg.Name
	stored.Description = kg.Description
	stored.Version++
	return nil
}

func (r *fakeGraphRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.graphs[id]; !ok {
		return repository.ErrGraphNotFound
	}
	delete(r.graphs, id)
	return nil
}

func (r *fakeGraphRepo) AddTable(ctx context.Context, graphID string, table *model.GraphTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kg, ok := r.graphs[graphID]
	if !ok {
		return repository.ErrGraphNotFound
	}
	if table.ID == "" {
		table.ID = uuid.New().String()
	}
	table.GraphID = graphID
	kg.Tables = append(kg.Tables, *table)
	kg.Version++
	return nil
}

func (r *fakeGraphRepo) UpdateTable(ctx context.Context, graphID string, table *model.GraphTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kg, ok := r.graphs[graphID]
	if !ok {
		return repository.ErrGraphNotFound
	}
	for i := range kg.Tables {
		if kg.Tables[i].ID == table.ID || strings.EqualFold(kg.Tables[i].Name, table.Name) {
			kg.Tables[i] = *table
			kg.Version++
			return nil
		}
	}
	return repository.ErrTableNotFound
}

func (r *fakeGraphRepo) DeleteTable(ctx context.Context, graphID, tableName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kg, ok := r.graphs[graphID]
	if !ok {
		return repository.ErrGraphNotFound
	}
	for i := range kg.Tables {
		if strings.EqualFold(kg.Tables[i].Name, tableName) {
			kg.Tables = append(kg.Tables[:i], kg.Tables[i+1:]...)
			var kept []model.GraphRelationship
			for _, rel := range kg.Relationships {
				if strings.EqualFold(rel.SourceTable, tableName) || strings.EqualFold(rel.TargetTable, tableName) {
					continue
				}
				kept = append(kept, rel)
			}
			kg.Relationships = kept
			kg.Version++
			return nil
		}
	}
	return repository.ErrTableNotFound
}

func (r *fakeGraphRepo) AddRelationship(ctx context.Context, graphID string, rel *model.GraphRelationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kg, ok := r.graphs[graphID]
	if !ok {
		return repository.ErrGraphNotFound
	}
	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	rel.GraphID = graphID
	kg.Relationships = append(kg.Relationships, *rel)
	kg.Version++
	return nil
}

func (r *fakeGraphRepo) DeleteRelationship(ctx context.Context, graphID, relID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kg, ok := r.graphs[graphID]
	if !ok {
		return repository.ErrGraphNotFound
	}
	for i := range kg.Relationships {
		if kg.Relationships[i].ID == relID {
			kg.Relationships = append(kg.Relationships[:i], kg.Relationships[i+1:]...)
			kg.Version++
			return nil
		}
	}
	return repository.ErrRelationshipNotFound
}

func (r *fakeGraphRepo) ReplaceContents(ctx context.Context, graphID string, tables []model.GraphTable, rels []model.GraphRelationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kg, ok := r.graphs[graphID]
	if !ok {
		return repository.ErrGraphNotFound
	}
	kg.Tables = append([]model.GraphTable(nil), tables...)
	kg.Relationships = append([]model.GraphRelationship(nil), rels...)
	kg.Version++
	return nil
}

// stubEndpoints serves OpenEndpoint from a fixed map. The embedded
// interface panics on anything else, which no test should reach.
type stubEndpoints struct {
	EndpointService
	eps    map[string]*model.Endpoint
	opened []string
}

func (s *stubEndpoints) OpenEndpoint(ctx context.Context, nameOrID string) (*model.Endpoint, error) {
	s.opened = append(s.opened, nameOrID)
	ep, ok := s.eps[nameOrID]
	if !ok {
		return nil, repository.ErrEndpointNotFound
	}
	return ep, nil
}

type fakeLoader struct {
	mu      sync.Mutex
	calls   int
	tables  []metadata.TableSchema
	version string
	err     error
}

func (f *fakeLoader) Extract(ctx context.Context, endpoint *model.Endpoint, schemas []string) ([]metadata.TableSchema, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.tables, f.version, nil
}

func planningGraph() *model.KnowledgeGraph {
	return &model.KnowledgeGraph{
		ID:      "g-planning",
		Name:    "planning",
		Version: 1,
		Tables: []model.GraphTable{
			{
				Name:    "RBP",
				Columns: model.ColumnList{{Name: "Material"}, {Name: "Description"}},
			},
			{
				Name:    "OPS_EXCEL",
				Columns: model.ColumnList{{Name: "PLANNING_SKU"}, {Name: "REGION"}},
				Aliases: model.StringList{"ops excel", "ops"},
			},
			{
				Name:    "HANA_MASTER",
				Columns: model.ColumnList{{Name: "SKU"}, {Name: "PLANNER"}},
				Aliases: model.StringList{"hana master", "master"},
			},
		},
		Relationships: []model.GraphRelationship{
			{
				ID:          "r1",
				SourceTable: "RBP", SourceColumn: "Material",
				TargetTable: "OPS_EXCEL", TargetColumn: "PLANNING_SKU",
				RelationType: model.RelationTypeOneToOne, Confidence: 1, Bidirectional: true,
			},
			{
				ID:          "r2",
				SourceTable: "OPS_EXCEL", SourceColumn: "PLANNING_SKU",
				TargetTable: "HANA_MASTER", TargetColumn: "SKU",
				RelationType: model.RelationTypeOneToOne, Confidence: 0.9, Bidirectional: true,
			},
		},
	}
}

func newTestGraphService(repo repository.GraphRepository, loader SchemaLoader, endpoints EndpointService) (GraphService, *alias.Cache) {
	cache := alias.NewCache()
	return NewGraphService(repo, cache, loader, metadata.NewSchemaCache(time.Hour), endpoints), cache
}

func TestCreateGraphDuplicateName(t *testing.T) {
	repo := newFakeGraphRepo(planningGraph())
	svc, _ := newTestGraphService(repo, nil, nil)

	_, err := svc.CreateGraph(context.Background(), &CreateGraphRequest{Name: "planning"})
	if !errors.Is(err, repository.ErrGraphExists) {
		t.Fatalf("expected ErrGraphExists, got %v", err)
	}
}

func TestCreateGraphValidatesRelationshipTables(t *testing.T) {
	repo := newFakeGraphRepo()
	svc, _ := newTestGraphService(repo, nil, nil)

	_, err := svc.CreateGraph(context.Background(), &CreateGraphRequest{
		Name:   "broken",
		Tables: []TableRequest{{Name: "orders"}},
		Relationships: []RelationshipRequest{
			{SourceTable: "orders", SourceColumn: "id", TargetTable: "ghosts", TargetColumn: "id"},
		},
	})
	if err == nil || !strings.Contains(err.Error(), "ghosts") {
		t.Fatalf("expected error naming the missing table, got %v", err)
	}
}

func TestCreateGraphRejectsInvalidRelationType(t *testing.T) {
	repo := newFakeGraphRepo()
	svc, _ := newTestGraphService(repo, nil, nil)

	_, err := svc.CreateGraph(context.Background(), &CreateGraphRequest{
		Name:   "broken",
		Tables: []TableRequest{{Name: "a"}, {Name: "b"}},
		Relationships: []RelationshipRequest{
			{SourceTable: "a", SourceColumn: "x", TargetTable: "b", TargetColumn: "y", RelationType: "one_to_everything"},
		},
	})
	if err == nil || !strings.Contains(err.Error(), "relation type") {
		t.Fatalf("expected invalid relation type error, got %v", err)
	}
}

func TestAddTableRejectsDuplicate(t *testing.T) {
	repo := newFakeGraphRepo(planningGraph())
	svc, _ := newTestGraphService(repo, nil, nil)

	_, err := svc.AddTable(context.Background(), "planning", &TableRequest{Name: "rbp"})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate table error, got %v", err)
	}
}

func TestAddRelationshipUnknownTable(t *testing.T) {
	repo := newFakeGraphRepo(planningGraph())
	svc, _ := newTestGraphService(repo, nil, nil)

	_, err := svc.AddRelationship(context.Background(), "planning", &RelationshipRequest{
		SourceTable: "RBP", SourceColumn: "Material",
		TargetTable: "NOWHERE", TargetColumn: "id",
	})
	if !errors.Is(err, repository.ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
}

func TestResolveAliasProbe(t *testing.T) {
	repo := newFakeGraphRepo(planningGraph())
	svc, _ := newTestGraphService(repo, nil, nil)

	match, err := svc.ResolveAlias(context.Background(), "planning", "ops excel")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if match.Table != "OPS_EXCEL" {
		t.Errorf("expected OPS_EXCEL, got %s", match.Table)
	}

	_, err = svc.ResolveAlias(context.Background(), "planning", "warehouse ledger")
	var noMatch *alias.NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
}

func TestFindJoinPathProbe(t *testing.T) {
	repo := newFakeGraphRepo(planningGraph())
	svc, _ := newTestGraphService(repo, nil, nil)

	path, err := svc.FindJoinPath(context.Background(), "planning", "rbp", "master")
	if err != nil {
		t.Fatalf("path lookup failed: %v", err)
	}
	if len(path.Hops) != 2 {
		t.Fatalf("expected 2 hops, got %d", len(path.Hops))
	}
	if path.Confidence != 0.9 {
		t.Errorf("expected path confidence 0.9, got %v", path.Confidence)
	}
	cols := path.JoinColumns()
	if cols[0] != [2]string{"Material", "PLANNING_SKU"} || cols[1] != [2]string{"PLANNING_SKU", "SKU"} {
		t.Errorf("unexpected join columns: %v", cols)
	}
}

func TestDeleteGraphInvalidatesResolverCache(t *testing.T) {
	repo := newFakeGraphRepo(planningGraph())
	svc, cache := newTestGraphService(repo, nil, nil)

	if _, err := svc.ResolveAlias(context.Background(), "planning", "rbp"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if cache.GetStats().Entries != 1 {
		t.Fatalf("expected one cached resolver, got %d", cache.GetStats().Entries)
	}

	if err := svc.DeleteGraph(context.Background(), "planning"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if cache.GetStats().Entries != 0 {
		t.Errorf("resolver cache not invalidated on delete")
	}
}

func TestListGraphsDefaults(t *testing.T) {
	repo := newFakeGraphRepo(planningGraph())
	svc, _ := newTestGraphService(repo, nil, nil)

	resp, err := svc.ListGraphs(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if resp.Limit != 20 {
		t.Errorf("expected default limit 20, got %d", resp.Limit)
	}
	if resp.Total != 1 || len(resp.Graphs) != 1 {
		t.Errorf("expected one graph, got total=%d len=%d", resp.Total, len(resp.Graphs))
	}
}

func importFixtures() []metadata.TableSchema {
	return []metadata.TableSchema{
		{
			Name: "customers",
			Columns: []metadata.ColumnSchema{
				{Name: "id", Type: "bigint"},
				{Name: "name", Type: "varchar(255)", Nullable: true},
			},
			PrimaryKey: []string{"id"},
		},
		{
			Name: "orders",
			Columns: []metadata.ColumnSchema{
				{Name: "id", Type: "bigint"},
				{Name: "customer_id", Type: "bigint"},
			},
			PrimaryKey:  []string{"id"},
			ForeignKeys: []metadata.ForeignKey{{Name: "fk_orders_customer", Column: "customer_id", RefTable: "customers", RefColumn: "id"}},
		},
	}
}

func TestImportFromEndpoint(t *testing.T) {
	repo := newFakeGraphRepo(&model.KnowledgeGraph{ID: "g-shop", Name: "shop", Version: 1})
	loader := &fakeLoader{tables: importFixtures(), version: "v1"}
	eps := &stubEndpoints{eps: map[string]*model.Endpoint{
		"warehouse": {ID: "ep-1", Name: "warehouse", Type: model.DatabaseTypeMySQL},
	}}
	svc, _ := newTestGraphService(repo, loader, eps)

	result, err := svc.ImportFromEndpoint(context.Background(), "shop", &ImportRequest{Endpoint: "warehouse"})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if result.TablesAdded != 2 || result.TablesUpdated != 0 {
		t.Errorf("expected 2 added 0 updated, got %d/%d", result.TablesAdded, result.TablesUpdated)
	}
	if result.RelationshipsAdded != 1 {
		t.Errorf("expected 1 relationship from the foreign key, got %d", result.RelationshipsAdded)
	}

	kg, err := svc.GetGraph(context.Background(), "shop")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(kg.Tables) != 2 || len(kg.Relationships) != 1 {
		t.Fatalf("expected 2 tables 1 relationship, got %d/%d", len(kg.Tables), len(kg.Relationships))
	}
	rel := kg.Relationships[0]
	if rel.SourceTable != "orders" || rel.SourceColumn != "customer_id" ||
		rel.TargetTable != "customers" || rel.TargetColumn != "id" {
		t.Errorf("unexpected relationship: %+v", rel)
	}
	if rel.Confidence != 1 || rel.RelationType != model.RelationTypeManyToOne {
		t.Errorf("foreign key edge should be many_to_one at full confidence: %+v", rel)
	}

	// Second import refreshes instead of duplicating.
	result, err = svc.ImportFromEndpoint(context.Background(), "shop", &ImportRequest{Endpoint: "warehouse"})
	if err != nil {
		t.Fatalf("re-import failed: %v", err)
	}
	if result.TablesAdded != 0 || result.TablesUpdated != 2 || result.RelationshipsAdded != 0 {
		t.Errorf("re-import should update in place, got %+v", result)
	}
}

func TestImportUsesSchemaCache(t *testing.T) {
	repo := newFakeGraphRepo(&model.KnowledgeGraph{ID: "g-shop", Name: "shop", Version: 1})
	loader := &fakeLoader{tables: importFixtures(), version: "v1"}
	eps := &stubEndpoints{eps: map[string]*model.Endpoint{
		"warehouse": {ID: "ep-1", Name: "warehouse", Type: model.DatabaseTypeMySQL},
	}}
	svc, _ := newTestGraphService(repo, loader, eps)

	for i := 0; i < 2; i++ {
		if _, err := svc.ImportFromEndpoint(context.Background(), "shop", &ImportRequest{Endpoint: "warehouse"}); err != nil {
			t.Fatalf("import %d failed: %v", i, err)
		}
	}
	if loader.calls != 1 {
		t.Errorf("expected cached schema on re-import, extractor ran %d times", loader.calls)
	}

	if _, err := svc.ImportFromEndpoint(context.Background(), "shop", &ImportRequest{Endpoint: "warehouse", Refresh: true}); err != nil {
		t.Fatalf("refresh import failed: %v", err)
	}
	if loader.calls != 2 {
		t.Errorf("refresh should bypass the schema cache, extractor ran %d times", loader.calls)
	}
}

func TestImportUnknownEndpoint(t *testing.T) {
	repo := newFakeGraphRepo(&model.KnowledgeGraph{ID: "g-shop", Name: "shop", Version: 1})
	svc, _ := newTestGraphService(repo, &fakeLoader{}, &stubEndpoints{eps: map[string]*model.Endpoint{}})

	_, err := svc.ImportFromEndpoint(context.Background(), "shop", &ImportRequest{Endpoint: "nowhere"})
	if !errors.Is(err, repository.ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

func TestSuggestRelationships(t *testing.T) {
	repo := newFakeGraphRepo(&model.KnowledgeGraph{
		ID: "g-shop", Name: "shop", Version: 1,
		Tables: []model.GraphTable{
			{
				Name: "invoices",
				Columns: model.ColumnList{
					{Name: "customer_id", DataType: "bigint"},
					{Name: "region", DataType: "varchar(64)"},
					{Name: "amount", DataType: "decimal(10,2)"},
				},
			},
			{
				Name: "customers",
				Columns: model.ColumnList{
					{Name: "id", DataType: "bigint"},
					{Name: "region", DataType: "varchar(64)"},
				},
			},
		},
	})
	svc, _ := newTestGraphService(repo, nil, nil)

	suggestions, err := svc.SuggestRelationships(context.Background(), "shop")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %d: %+v", len(suggestions), suggestions)
	}
	if suggestions[0].SourceColumn != "region" || suggestions[0].Confidence != 0.95 {
		t.Errorf("identical columns should rank first at 0.95: %+v", suggestions[0])
	}
	if suggestions[1].SourceColumn != "customer_id" || suggestions[1].TargetColumn != "id" || suggestions[1].Confidence != 0.85 {
		t.Errorf("key reference should score 0.85: %+v", suggestions[1])
	}
}

func TestSuggestSkipsExistingEdges(t *testing.T) {
	kg := planningGraph()
	repo := newFakeGraphRepo(kg)
	svc, _ := newTestGraphService(repo, nil, nil)

	suggestions, err := svc.SuggestRelationships(context.Background(), "planning")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	for _, sg := range suggestions {
		if sg.SourceColumn == "PLANNING_SKU" && sg.TargetColumn == "SKU" {
			t.Errorf("suggested an edge that already exists: %+v", sg)
		}
	}
}

func TestScoreColumnPair(t *testing.T) {
	tableA := &model.GraphTable{Name: "invoices"}
	tableB := &model.GraphTable{Name: "customers"}

	tests := []struct {
		name string
		a, b model.ColumnDef
		want float64
	}{
		{"identical compatible", model.ColumnDef{Name: "sku", DataType: "varchar(32)"}, model.ColumnDef{Name: "SKU", DataType: "text"}, 0.95},
		{"identical incompatible", model.ColumnDef{Name: "code", DataType: "varchar(32)"}, model.ColumnDef{Name: "code", DataType: "bigint"}, 0.75},
		{"key reference", model.ColumnDef{Name: "customer_id", DataType: "bigint"}, model.ColumnDef{Name: "id", DataType: "int"}, 0.85},
		{"similar names", model.ColumnDef{Name: "created_at", DataType: "datetime"}, model.ColumnDef{Name: "created_dt", DataType: "timestamp"}, 0.64},
		{"type gate blocks fuzzy", model.ColumnDef{Name: "created_at", DataType: "datetime"}, model.ColumnDef{Name: "created_a", DataType: "varchar(10)"}, 0},
		{"unrelated", model.ColumnDef{Name: "amount", DataType: "decimal"}, model.ColumnDef{Name: "name", DataType: "varchar"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := scoreColumnPair(tableA, tt.a, tableB, tt.b)
			if got != tt.want {
				t.Errorf("scoreColumnPair(%s, %s) = %v, want %v", tt.a.Name, tt.b.Name, got, tt.want)
			}
		})
	}
}

func TestTypeFamily(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"varchar(255)", "string"},
		{"TEXT", "string"},
		{"NVARCHAR2(100)", "string"},
		{"bigint", "number"},
		{"NUMBER(10,2)", "number"},
		{"double precision", "number"},
		{"timestamp with time zone", "time"},
		{"datetime2", "time"},
		{"bit", "bool"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := typeFamily(tt.raw); got != tt.want {
			t.Errorf("typeFamily(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
