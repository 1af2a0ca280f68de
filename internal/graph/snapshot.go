package graph

import (
	"sort"
	"strings"

	"recon-engine/internal/model"
)

// Table is a table node inside a snapshot.
type Table struct {
	Name       string
	SchemaName string
	Columns    []model.ColumnDef
	Aliases    []string

	index   int
	colSet  map[string]string
	aliasID string
}

// Edge is a directed join edge between two snapshot tables.
type Edge struct {
	From       int
	To         int
	FromColumn string
	ToColumn   string
	Confidence float64
}

// Snapshot is an immutable, traversal-ready view of a knowledge graph.
// It is keyed by the graph version so cached snapshots can be invalidated
// when the underlying graph changes.
type Snapshot struct {
	GraphID   string
	GraphName string
	Version   int64

	tables    []*Table
	byName    map[string]*Table
	adjacency [][]Edge
}

// NewSnapshot builds a snapshot from a loaded knowledge graph. Tables and
// edges are ordered by name so traversal results are deterministic
// regardless of storage order.
func NewSnapshot(kg *model.KnowledgeGraph) *Snapshot {
	s := &Snapshot{
		GraphID:   kg.ID,
		GraphName: kg.Name,
		Version:   kg.Version,
		byName:    make(map[string]*Table, len(kg.Tables)),
	}

	tables := make([]*Table, 0, len(kg.Tables))
	for _, gt := range kg.Tables {
		t := &Table{
			Name:       gt.Name,
			SchemaName: gt.SchemaName,
			Columns:    gt.Columns,
			Aliases:    gt.Aliases,
			colSet:     make(map[string]string, len(gt.Columns)),
		}
		for _, c := range gt.Columns {
			t.colSet[strings.ToLower(c.Name)] = c.Name
		}
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	for i, t := range tables {
		t.index = i
		s.byName[strings.ToLower(t.Name)] = t
	}
	s.tables = tables
	s.adjacency = make([][]Edge, len(tables))

	rels := make([]model.GraphRelationship, len(kg.Relationships))
	copy(rels, kg.Relationships)
	sort.Slice(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		if a.SourceTable != b.SourceTable {
			return a.SourceTable < b.SourceTable
		}
		if a.TargetTable != b.TargetTable {
			return a.TargetTable < b.TargetTable
		}
		if a.SourceColumn != b.SourceColumn {
			return a.SourceColumn < b.SourceColumn
		}
		return a.TargetColumn < b.TargetColumn
	})

	// Every relationship is traversable in both directions; the
	// bidirectional flag labels semantics, it does not gate traversal.
	for _, rel := range rels {
		src, okSrc := s.byName[strings.ToLower(rel.SourceTable)]
		dst, okDst := s.byName[strings.ToLower(rel.TargetTable)]
		if !okSrc || !okDst {
			continue
		}
		conf := rel.Confidence
		if conf <= 0 || conf > 1 {
			conf = 1
		}
		s.adjacency[src.index] = append(s.adjacency[src.index], Edge{
			From:       src.index,
			To:         dst.index,
			FromColumn: rel.SourceColumn,
			ToColumn:   rel.TargetColumn,
			Confidence: conf,
		})
		if src.index != dst.index {
			s.adjacency[dst.index] = append(s.adjacency[dst.index], Edge{
				From:       dst.index,
				To:         src.index,
				FromColumn: rel.TargetColumn,
				ToColumn:   rel.SourceColumn,
				Confidence: conf,
			})
		}
	}

	return s
}

// Tables returns all tables ordered by name.
func (s *Snapshot) Tables() []*Table {
	return s.tables
}

// Table looks up a table by canonical name, case-insensitively.
func (s *Snapshot) Table(name string) (*Table, bool) {
	t, ok := s.byName[strings.ToLower(name)]
	return t, ok
}

// Neighbors returns the outgoing edges of a table in deterministic order.
func (s *Snapshot) Neighbors(t *Table) []Edge {
	return s.adjacency[t.index]
}

// TableAt returns the table at the given snapshot index.
func (s *Snapshot) TableAt(i int) *Table {
	return s.tables[i]
}

// HasColumn reports whether the table has the named column,
// case-insensitively. When the table carries no column metadata every
// column name is accepted.
func (t *Table) HasColumn(name string) bool {
	if len(t.colSet) == 0 {
		return true
	}
	_, ok := t.colSet[strings.ToLower(name)]
	return ok
}

// Column returns the stored spelling of a column name, case-insensitively.
func (t *Table) Column(name string) (string, bool) {
	if len(t.colSet) == 0 {
		return name, true
	}
	c, ok := t.colSet[strings.ToLower(name)]
	return c, ok
}

// ColumnNames returns the names of the table's columns.
func (t *Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// QualifiedName returns the schema-qualified table name.
func (t *Table) QualifiedName() string {
	if t.SchemaName == "" {
		return t.Name
	}
	return t.SchemaName + "." + t.Name
}
