package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"recon-engine/internal/alias"
	"recon-engine/internal/database/metadata"
	"recon-engine/internal/graph"
	"recon-engine/internal/model"
	"recon-engine/internal/repository"
)

const (
	suggestionThreshold = 0.6
	maxSuggestions      = 50
)

// GraphService manages knowledge graphs and exposes the resolver and
// path-finder probes. Every mutation bumps the graph version, which
// invalidates cached resolvers implicitly.
type GraphService interface {
	CreateGraph(ctx context.Context, req *CreateGraphRequest) (*model.KnowledgeGraph, error)
	GetGraph(ctx context.Context, name string) (*model.KnowledgeGraph, error)
	ListGraphs(ctx context.Context, limit, offset int) (*ListGraphsResponse, error)
	DeleteGraph(ctx context.Context, name string) error
	AddTable(ctx context.Context, graphName string, table *TableRequest) (*model.KnowledgeGraph, error)
	DeleteTable(ctx context.Context, graphName, tableName string) error
	AddRelationship(ctx context.Context, graphName string, rel *RelationshipRequest) (*model.KnowledgeGraph, error)
	DeleteRelationship(ctx context.Context, graphName, relID string) error

	Snapshot(ctx context.Context, name string) (*graph.Snapshot, error)
	ResolverFor(snap *graph.Snapshot) *alias.Resolver
	ResolveAlias(ctx context.Context, graphName, mention string) (*alias.Match, error)
	FindJoinPath(ctx context.Context, graphName, from, to string) (*graph.Path, error)

	ImportFromEndpoint(ctx context.Context, graphName string, req *ImportRequest) (*ImportResult, error)
	SuggestRelationships(ctx context.Context, graphName string) ([]RelationshipSuggestion, error)
}

// SchemaLoader reads table metadata from a live endpoint.
// *metadata.Extractor is the production implementation.
type SchemaLoader interface {
	Extract(ctx context.Context, endpoint *model.Endpoint, schemas []string) ([]metadata.TableSchema, string, error)
}

type graphService struct {
	repo        repository.GraphRepository
	aliasCache  *alias.Cache
	extractor   SchemaLoader
	schemaCache *metadata.SchemaCache
	endpoints   EndpointService
}

type CreateGraphRequest struct {
	Name          string                `json:"name" validate:"required,min=1,max=255"`
	Description   string                `json:"description,omitempty"`
	Tables        []TableRequest        `json:"tables,omitempty" validate:"dive"`
	Relationships []RelationshipRequest `json:"relationships,omitempty" validate:"dive"`
}

type TableRequest struct {
	Name       string            `json:"name" validate:"required,min=1,max=255"`
	SchemaName string            `json:"schema_name,omitempty"`
	Columns    []model.ColumnDef `json:"columns,omitempty" validate:"dive"`
	Aliases    []string          `json:"aliases,omitempty"`
}

type RelationshipRequest struct {
	SourceTable   string  `json:"source_table" validate:"required"`
	SourceColumn  string  `json:"source_column" validate:"required"`
	TargetTable   string  `json:"target_table" validate:"required"`
	TargetColumn  string  `json:"target_column" validate:"required"`
	RelationType  string  `json:"relation_type,omitempty"`
	Confidence    float64 `json:"confidence,omitempty" validate:"omitempty,min=0,max=1"`
	Bidirectional *bool   `json:"bidirectional,omitempty"`
}

type ListGraphsResponse struct {
	Graphs []*model.KnowledgeGraph `json:"graphs"`
	Total  int64                   `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

type ImportRequest struct {
	Endpoint string   `json:"endpoint" validate:"required"`
	Schemas  []string `json:"schemas,omitempty"`
	// Refresh bypasses the schema cache and re-reads the catalog.
	Refresh bool `json:"refresh,omitempty"`
}

type ImportResult struct {
	TablesAdded        int   `json:"tables_added"`
	TablesUpdated      int   `json:"tables_updated"`
	RelationshipsAdded int   `json:"relationships_added"`
	Version            int64 `json:"version"`
}

// RelationshipSuggestion is a scored candidate edge. Suggestions never
// mutate the graph; an operator confirms them through AddRelationship.
type RelationshipSuggestion struct {
	SourceTable  string  `json:"source_table"`
	SourceColumn string  `json:"source_column"`
	TargetTable  string  `json:"target_table"`
	TargetColumn string  `json:"target_column"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
}

// NewGraphService creates a new GraphService.
func NewGraphService(repo repository.GraphRepository, aliasCache *alias.Cache, extractor SchemaLoader, schemaCache *metadata.SchemaCache, endpoints EndpointService) GraphService {
	return &graphService{
		repo:        repo,
		aliasCache:  aliasCache,
		extractor:   extractor,
		schemaCache: schemaCache,
		endpoints:   endpoints,
	}
}

func (s *graphService) CreateGraph(ctx context.Context, req *CreateGraphRequest) (*model.KnowledgeGraph, error) {
	if existing, _ := s.repo.GetByName(ctx, req.Name); existing != nil {
		return nil, repository.ErrGraphExists
	}

	kg := &model.KnowledgeGraph{
		Name:        req.Name,
		Description: req.Description,
		Version:     1,
	}
	for _, t := range req.Tables {
		kg.Tables = append(kg.Tables, toGraphTable(t))
	}
	for _, r := range req.Relationships {
		rel, err := toRelationship(r)
		if err != nil {
			return nil, err
		}
		kg.Relationships = append(kg.Relationships, *rel)
	}
	if err := validateRelationshipTables(kg); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, kg); err != nil {
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}
	return kg, nil
}

func (s *graphService) GetGraph(ctx context.Context, name string) (*model.KnowledgeGraph, error) {
	return s.repo.GetByName(ctx, name)
}

func (s *graphService) ListGraphs(ctx context.Context, limit, offset int) (*ListGraphsResponse, error) {
	if limit == 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	graphs, total, err := s.repo.GetAll(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	return &ListGraphsResponse{Graphs: graphs, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *graphService) DeleteGraph(ctx context.Context, name string) error {
	kg, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, kg.ID); err != nil {
		return err
	}
	s.aliasCache.Invalidate(kg.ID)
	return nil
}

func (s *graphService) AddTable(ctx context.Context, graphName string, table *TableRequest) (*model.KnowledgeGraph, error) {
	kg, err := s.repo.GetByName(ctx, graphName)
	if err != nil {
		return nil, err
	}
	for _, t := range kg.Tables {
		if strings.EqualFold(t.Name, table.Name) {
			return nil, fmt.Errorf("table %q already exists in graph %q", table.Name, graphName)
		}
	}
	gt := toGraphTable(*table)
	if err := s.repo.AddTable(ctx, kg.ID, &gt); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, kg.ID)
}

func (s *graphService) DeleteTable(ctx context.Context, graphName, tableName string) error {
	kg, err := s.repo.GetByName(ctx, graphName)
	if err != nil {
		return err
	}
	return s.repo.DeleteTable(ctx, kg.ID, tableName)
}

func (s *graphService) AddRelationship(ctx context.Context, graphName string, relReq *RelationshipRequest) (*model.KnowledgeGraph, error) {
	kg, err := s.repo.GetByName(ctx, graphName)
	if err != nil {
		return nil, err
	}
	rel, err := toRelationship(*relReq)
	if err != nil {
		return nil, err
	}
	if !hasTable(kg, rel.SourceTable) || !hasTable(kg, rel.TargetTable) {
		return nil, repository.ErrTableNotFound
	}
	if err := s.repo.AddRelationship(ctx, kg.ID, rel); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, kg.ID)
}

func (s *graphService) DeleteRelationship(ctx context.Context, graphName, relID string) error {
	kg, err := s.repo.GetByName(ctx, graphName)
	if err != nil {
		return err
	}
	return s.repo.DeleteRelationship(ctx, kg.ID, relID)
}

// Snapshot loads the graph and builds its immutable traversal view. The
// pipeline holds onto one snapshot for a whole run, so later mutations
// never affect definitions already in flight.
func (s *graphService) Snapshot(ctx context.Context, name string) (*graph.Snapshot, error) {
	kg, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return graph.NewSnapshot(kg), nil
}

func (s *graphService) ResolverFor(snap *graph.Snapshot) *alias.Resolver {
	return s.aliasCache.For(snap)
}

func (s *graphService) ResolveAlias(ctx context.Context, graphName, mention string) (*alias.Match, error) {
	snap, err := s.Snapshot(ctx, graphName)
	if err != nil {
		return nil, err
	}
	return s.aliasCache.For(snap).Resolve(mention)
}

func (s *graphService) FindJoinPath(ctx context.Context, graphName, from, to string) (*graph.Path, error) {
	snap, err := s.Snapshot(ctx, graphName)
	if err != nil {
		return nil, err
	}
	resolver := s.aliasCache.For(snap)
	src, err := resolver.Resolve(from)
	if err != nil {
		return nil, err
	}
	dst, err := resolver.Resolve(to)
	if err != nil {
		return nil, err
	}
	return graph.FindPath(snap, src.Table, dst.Table)
}

// ImportFromEndpoint bootstraps graph tables from a live endpoint's
// catalog. Existing tables get their columns refreshed; declared
// foreign keys between imported tables become relationships with full
// confidence.
func (s *graphService) ImportFromEndpoint(ctx context.Context, graphName string, req *ImportRequest) (*ImportResult, error) {
	kg, err := s.repo.GetByName(ctx, graphName)
	if err != nil {
		return nil, err
	}
	endpoint, err := s.endpoints.OpenEndpoint(ctx, req.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve endpoint %q: %w", req.Endpoint, err)
	}

	if req.Refresh {
		s.schemaCache.Invalidate(endpoint.ID)
	}
	cached, err := s.schemaCache.GetOrLoad(ctx, endpoint.ID, func(ctx context.Context) ([]metadata.TableSchema, string, error) {
		return s.extractor.Extract(ctx, endpoint, req.Schemas)
	})
	if err != nil {
		return nil, fmt.Errorf("schema extraction failed: %w", err)
	}

	result := &ImportResult{}
	existing := make(map[string]*model.GraphTable, len(kg.Tables))
	for i := range kg.Tables {
		existing[strings.ToLower(kg.Tables[i].Name)] = &kg.Tables[i]
	}

	for _, ts := range cached.Tables {
		cols := make(model.ColumnList, 0, len(ts.Columns))
		for _, c := range ts.Columns {
			cols = append(cols, model.ColumnDef{
				Name:     c.Name,
				DataType: c.Type,
				Nullable: c.Nullable,
				Comment:  c.Comment,
			})
		}
		if prev, ok := existing[strings.ToLower(ts.Name)]; ok {
			prev.Columns = cols
			if prev.SchemaName == "" {
				prev.SchemaName = ts.Schema
			}
			if err := s.repo.UpdateTable(ctx, kg.ID, prev); err != nil {
				return nil, fmt.Errorf("failed to update table %s: %w", ts.Name, err)
			}
			result.TablesUpdated++
			continue
		}
		gt := model.GraphTable{
			Name:       ts.Name,
			SchemaName: ts.Schema,
			Columns:    cols,
		}
		if err := s.repo.AddTable(ctx, kg.ID, &gt); err != nil {
			return nil, fmt.Errorf("failed to add table %s: %w", ts.Name, err)
		}
		existing[strings.ToLower(ts.Name)] = &gt
		result.TablesAdded++
	}

	// Declared foreign keys are authoritative join edges.
	fresh, err := s.repo.GetByID(ctx, kg.ID)
	if err != nil {
		return nil, err
	}
	for _, ts := range cached.Tables {
		for _, fk := range ts.ForeignKeys {
			if _, ok := existing[strings.ToLower(fk.RefTable)]; !ok {
				continue
			}
			if hasEdge(fresh, ts.Name, fk.Column, fk.RefTable, fk.RefColumn) {
				continue
			}
			rel := model.GraphRelationship{
				SourceTable:   ts.Name,
				SourceColumn:  fk.Column,
				TargetTable:   fk.RefTable,
				TargetColumn:  fk.RefColumn,
				RelationType:  model.RelationTypeManyToOne,
				Confidence:    1,
				Bidirectional: true,
			}
			if err := s.repo.AddRelationship(ctx, fresh.ID, &rel); err != nil {
				return nil, fmt.Errorf("failed to add relationship %s.%s -> %s.%s: %w",
					ts.Name, fk.Column, fk.RefTable, fk.RefColumn, err)
			}
			fresh.Relationships = append(fresh.Relationships, rel)
			result.RelationshipsAdded++
		}
	}

	final, err := s.repo.GetByID(ctx, kg.ID)
	if err != nil {
		return nil, err
	}
	result.Version = final.Version
	return result, nil
}

// SuggestRelationships scores candidate edges between tables that have
// no edge on the candidate columns yet. Exact column-name matches rank
// highest, then key-name patterns, then fuzzy name similarity.
func (s *graphService) SuggestRelationships(ctx context.Context, graphName string) ([]RelationshipSuggestion, error) {
	kg, err := s.repo.GetByName(ctx, graphName)
	if err != nil {
		return nil, err
	}

	var suggestions []RelationshipSuggestion
	for i := 0; i < len(kg.Tables); i++ {
		for j := i + 1; j < len(kg.Tables); j++ {
			a, b := &kg.Tables[i], &kg.Tables[j]
			for _, ca := range a.Columns {
				for _, cb := range b.Columns {
					if hasEdge(kg, a.Name, ca.Name, b.Name, cb.Name) {
						continue
					}
					conf, reason := scoreColumnPair(a, ca, b, cb)
					if conf < suggestionThreshold {
						continue
					}
					suggestions = append(suggestions, RelationshipSuggestion{
						SourceTable:  a.Name,
						SourceColumn: ca.Name,
						TargetTable:  b.Name,
						TargetColumn: cb.Name,
						Confidence:   conf,
						Reason:       reason,
					})
				}
			}
		}
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		if suggestions[i].SourceTable != suggestions[j].SourceTable {
			return suggestions[i].SourceTable < suggestions[j].SourceTable
		}
		return suggestions[i].SourceColumn < suggestions[j].SourceColumn
	})
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions, nil
}

// scoreColumnPair rates one candidate edge. Type compatibility gates
// fuzzy matches but only dampens exact name matches, since catalogs
// disagree on numeric type spellings.
func scoreColumnPair(a *model.GraphTable, ca model.ColumnDef, b *model.GraphTable, cb model.ColumnDef) (float64, string) {
	nameA := strings.ToLower(ca.Name)
	nameB := strings.ToLower(cb.Name)
	typesMatch := compatibleTypes(ca.DataType, cb.DataType)

	if nameA == nameB {
		if typesMatch {
			return 0.95, "identical column names and compatible types"
		}
		return 0.75, "identical column names"
	}

	// Key-name pattern: a column named after the other table plus a key
	// suffix, pointing at a plain key column there.
	if isKeyReference(nameA, b.Name) && isKeyColumn(nameB) {
		return 0.85, fmt.Sprintf("%s.%s names table %s", a.Name, ca.Name, b.Name)
	}
	if isKeyReference(nameB, a.Name) && isKeyColumn(nameA) {
		return 0.85, fmt.Sprintf("%s.%s names table %s", b.Name, cb.Name, a.Name)
	}

	if !typesMatch {
		return 0, ""
	}
	sim := nameSimilarity(nameA, nameB)
	if sim < 0.8 {
		return 0, ""
	}
	return roundConfidence(0.6*sim + 0.1), "similar column names and compatible types"
}

// isKeyReference reports whether a column is named after the table plus
// a key suffix. Plural table names are folded so customers matches
// customer_id.
func isKeyReference(column, table string) bool {
	t := strings.ToLower(table)
	forms := []string{t}
	switch {
	case strings.HasSuffix(t, "ies"):
		forms = append(forms, t[:len(t)-3]+"y")
	case strings.HasSuffix(t, "es"):
		forms = append(forms, t[:len(t)-2], t[:len(t)-1])
	case strings.HasSuffix(t, "s"):
		forms = append(forms, t[:len(t)-1])
	}
	for _, f := range forms {
		for _, suffix := range []string{"_id", "id", "_key", "_sku", "_code"} {
			if column == f+suffix {
				return true
			}
		}
	}
	return false
}

func isKeyColumn(column string) bool {
	switch column {
	case "id", "key", "sku", "code":
		return true
	}
	return strings.HasSuffix(column, "_id") || strings.HasSuffix(column, "_key")
}

func nameSimilarity(a, b string) float64 {
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	distance := levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)
	sim := 1 - float64(distance)/float64(maxLen)
	if sim < 0 {
		return 0
	}
	return sim
}

// compatibleTypes groups catalog type spellings into rough families.
func compatibleTypes(a, b string) bool {
	fa, fb := typeFamily(a), typeFamily(b)
	if fa == "" || fb == "" {
		return true
	}
	return fa == fb
}

func typeFamily(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.Index(t, "("); i > 0 {
		t = t[:i]
	}
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "char"), strings.Contains(t, "text"), strings.Contains(t, "clob"), t == "enum", t == "set", t == "uuid":
		return "string"
	case strings.Contains(t, "int"), t == "number", t == "numeric", t == "decimal", t == "serial", t == "bigserial":
		return "number"
	case strings.Contains(t, "float"), strings.Contains(t, "double"), t == "real", t == "money":
		return "number"
	case strings.Contains(t, "date"), strings.Contains(t, "time"):
		return "time"
	case t == "boolean", t == "bool", t == "bit":
		return "bool"
	default:
		return t
	}
}

func roundConfidence(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func toGraphTable(t TableRequest) model.GraphTable {
	return model.GraphTable{
		Name:       t.Name,
		SchemaName: t.SchemaName,
		Columns:    t.Columns,
		Aliases:    t.Aliases,
	}
}

func toRelationship(r RelationshipRequest) (*model.GraphRelationship, error) {
	relType := model.RelationTypeOneToMany
	if r.RelationType != "" {
		if !model.IsValidRelationType(r.RelationType) {
			return nil, fmt.Errorf("invalid relation type %q", r.RelationType)
		}
		relType = model.RelationType(r.RelationType)
	}
	conf := r.Confidence
	if conf <= 0 || conf > 1 {
		conf = 1
	}
	bidi := true
	if r.Bidirectional != nil {
		bidi = *r.Bidirectional
	}
	return &model.GraphRelationship{
		SourceTable:   r.SourceTable,
		SourceColumn:  r.SourceColumn,
		TargetTable:   r.TargetTable,
		TargetColumn:  r.TargetColumn,
		RelationType:  relType,
		Confidence:    conf,
		Bidirectional: bidi,
	}, nil
}

func validateRelationshipTables(kg *model.KnowledgeGraph) error {
	for _, rel := range kg.Relationships {
		if !hasTable(kg, rel.SourceTable) || !hasTable(kg, rel.TargetTable) {
			return fmt.Errorf("relationship %s.%s -> %s.%s references a table not in the graph",
				rel.SourceTable, rel.SourceColumn, rel.TargetTable, rel.TargetColumn)
		}
	}
	return nil
}

func hasTable(kg *model.KnowledgeGraph, name string) bool {
	for _, t := range kg.Tables {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

func hasEdge(kg *model.KnowledgeGraph, srcTable, srcCol, dstTable, dstCol string) bool {
	for _, rel := range kg.Relationships {
		if strings.EqualFold(rel.SourceTable, srcTable) && strings.EqualFold(rel.SourceColumn, srcCol) &&
			strings.EqualFold(rel.TargetTable, dstTable) && strings.EqualFold(rel.TargetColumn, dstCol) {
			return true
		}
		if strings.EqualFold(rel.SourceTable, dstTable) && strings.EqualFold(rel.SourceColumn, dstCol) &&
			strings.EqualFold(rel.TargetTable, srcTable) && strings.EqualFold(rel.TargetColumn, srcCol) {
			return true
		}
	}
	return false
}
