package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"recon-engine/internal/database"
	"recon-engine/internal/model"
)

// TableSchema describes one table as discovered from an endpoint.
type TableSchema struct {
	Name        string         `json:"name"`
	Schema      string         `json:"schema,omitempty"`
	Columns     []ColumnSchema `json:"columns"`
	PrimaryKey  []string       `json:"primary_key,omitempty"`
	Unique      []string       `json:"unique,omitempty"`
	ForeignKeys []ForeignKey   `json:"foreign_keys,omitempty"`
}

// ColumnSchema describes one column.
type ColumnSchema struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Comment  string `json:"comment,omitempty"`
}

// ForeignKey is one declared column-level reference. Composite keys
// produce one entry per column pair.
type ForeignKey struct {
	Name      string `json:"name"`
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// Extractor discovers schema metadata from live endpoints. Declared
// foreign keys are collected because they seed relationship suggestions
// with full confidence.
type Extractor struct {
	pool *database.Pool
}

// NewExtractor creates an Extractor backed by the connection pool.
func NewExtractor(pool *database.Pool) *Extractor {
	return &Extractor{pool: pool}
}

// Extract discovers all base tables visible to the endpoint, optionally
// restricted to the given schemas. The returned version is a hash of
// the discovered structure, stable across repeated extractions.
func (e *Extractor) Extract(ctx context.Context, endpoint *model.Endpoint, schemas []string) ([]TableSchema, string, error) {
	db, err := e.pool.Get(ctx, endpoint)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get connection: %w", err)
	}

	tables, err := e.listTables(ctx, db, endpoint.Type, schemas)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list tables: %w", err)
	}

	for i := range tables {
		t := &tables[i]
		t.Columns, err = e.listColumns(ctx, db, endpoint.Type, t.Schema, t.Name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read columns of %s: %w", t.Name, err)
		}
		t.PrimaryKey, err = e.listPrimaryKey(ctx, db, endpoint.Type, t.Schema, t.Name)
		if err != nil {
			t.PrimaryKey = nil
		}
		t.Unique, err = e.listUniqueColumns(ctx, db, endpoint.Type, t.Schema, t.Name)
		if err != nil {
			t.Unique = nil
		}
		t.ForeignKeys, err = e.listForeignKeys(ctx, db, endpoint.Type, t.Schema, t.Name)
		if err != nil {
			t.ForeignKeys = nil
		}
	}

	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, schemaVersion(tables), nil
}

func (e *Extractor) listTables(ctx context.Context, db *sql.DB, dbType model.DatabaseType, schemas []string) ([]TableSchema, error) {
	query := tableQuery(dbType, schemas)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []TableSchema
	for rows.Next() {
		var name string
		var schema sql.NullString
		if err := rows.Scan(&name, &schema); err != nil {
			return nil, err
		}
		tables = append(tables, TableSchema{Name: name, Schema: schema.String})
	}
	return tables, rows.Err()
}

func (e *Extractor) listColumns(ctx context.Context, db *sql.DB, dbType model.DatabaseType, schema, table string) ([]ColumnSchema, error) {
	rows, err := db.QueryContext(ctx, columnQuery(dbType, schema, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnSchema
	for rows.Next() {
		var name, dataType, nullable string
		var comment sql.NullString
		if err := rows.Scan(&name, &dataType, &nullable, &comment); err != nil {
			return nil, err
		}
		upper := strings.ToUpper(nullable)
		columns = append(columns, ColumnSchema{
			Name:     name,
			Type:     dataType,
			Nullable: upper == "YES" || upper == "Y",
			Comment:  comment.String,
		})
	}
	return columns, rows.Err()
}

func (e *Extractor) listPrimaryKey(ctx context.Context, db *sql.DB, dbType model.DatabaseType, schema, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, primaryKeyQuery(dbType, schema, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return nil, err
		}
		pk = append(pk, column)
	}
	return pk, rows.Err()
}

// listUniqueColumns returns columns covered by a single-column unique
// index. Multi-column unique indexes are ignored since they cannot
// serve as one-column join anchors.
func (e *Extractor) listUniqueColumns(ctx context.Context, db *sql.DB, dbType model.DatabaseType, schema, table string) ([]string, error) {
	rows, err := db.QueryContext(ctx, indexQuery(dbType, schema, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type indexInfo struct {
		columns []string
		unique  bool
	}
	indexes := make(map[string]*indexInfo)
	for rows.Next() {
		indexName, column, unique, err := scanIndexRow(rows, dbType)
		if err != nil {
			return nil, err
		}
		info, ok := indexes[indexName]
		if !ok {
			info = &indexInfo{unique: unique}
			indexes[indexName] = info
		}
		info.columns = append(info.columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var unique []string
	for _, info := range indexes {
		if info.unique && len(info.columns) == 1 && !seen[info.columns[0]] {
			seen[info.columns[0]] = true
			unique = append(unique, info.columns[0])
		}
	}
	sort.Strings(unique)
	return unique, nil
}

func (e *Extractor) listForeignKeys(ctx context.Context, db *sql.DB, dbType model.DatabaseType, schema, table string) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, foreignKeyQuery(dbType, schema, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Name, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func scanIndexRow(rows *sql.Rows, dbType model.DatabaseType) (indexName, column string, unique bool, err error) {
	switch dbType {
	case model.DatabaseTypeMySQL, model.DatabaseTypeMariaDB:
		var nonUnique int
		err = rows.Scan(&indexName, &column, &nonUnique)
		unique = nonUnique == 0
	case model.DatabaseTypeOracle:
		var flag int
		err = rows.Scan(&indexName, &column, &flag)
		unique = flag == 1
	default:
		err = rows.Scan(&indexName, &column, &unique)
	}
	return indexName, column, unique, err
}

// schemaVersion hashes the discovered structure so callers can detect
// drift between extractions.
func schemaVersion(tables []TableSchema) string {
	h := fnv.New64a()
	for _, t := range tables {
		fmt.Fprintf(h, "%s.%s;", t.Schema, t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(h, "%s:%s;", c.Name, c.Type)
		}
	}
	return fmt.Sprintf("%x", h.Sum64())
}

// =============================================================================
// Dialect-specific catalog queries
// =============================================================================

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func schemaList(schemas []string) string {
	quoted := make([]string, 0, len(schemas))
	for _, s := range schemas {
		quoted = append(quoted, "'"+escapeLiteral(s)+"'")
	}
	return strings.Join(quoted, ", ")
}

func tableQuery(dbType model.DatabaseType, schemas []string) string {
	switch dbType {
	case model.DatabaseTypeMySQL, model.DatabaseTypeMariaDB:
		if len(schemas) > 0 {
			return fmt.Sprintf("SELECT table_name, table_schema FROM information_schema.tables WHERE table_type = 'BASE TABLE' AND table_schema IN (%s)", schemaList(schemas))
		}
		return "SELECT table_name, table_schema FROM information_schema.tables WHERE table_type = 'BASE TABLE' AND table_schema = DATABASE()"
	case model.DatabaseTypePostgreSQL:
		if len(schemas) > 0 {
			return fmt.Sprintf("SELECT tablename, schemaname FROM pg_tables WHERE schemaname IN (%s)", schemaList(schemas))
		}
		return "SELECT tablename, schemaname FROM pg_tables WHERE schemaname NOT IN ('pg_catalog', 'information_schema')"
	case model.DatabaseTypeOracle:
		if len(schemas) > 0 {
			return fmt.Sprintf("SELECT table_name, owner FROM all_tables WHERE owner IN (%s)", schemaList(schemas))
		}
		return "SELECT table_name, owner FROM all_tables WHERE owner NOT IN ('SYS', 'SYSTEM', 'SYSAUX')"
	default:
		if len(schemas) > 0 {
			return fmt.Sprintf("SELECT table_name, table_schema FROM information_schema.tables WHERE table_type = 'BASE TABLE' AND table_schema IN (%s)", schemaList(schemas))
		}
		return "SELECT table_name, table_schema FROM information_schema.tables WHERE table_type = 'BASE TABLE'"
	}
}

func columnQuery(dbType model.DatabaseType, schema, table string) string {
	schema, table = escapeLiteral(schema), escapeLiteral(table)
	switch dbType {
	case model.DatabaseTypeMySQL, model.DatabaseTypeMariaDB:
		return fmt.Sprintf("SELECT column_name, data_type, is_nullable, column_comment FROM information_schema.columns WHERE table_schema = '%s' AND table_name = '%s' ORDER BY ordinal_position", schema, table)
	case model.DatabaseTypeOracle:
		return fmt.Sprintf("SELECT column_name, data_type, nullable, '' FROM all_tab_columns WHERE owner = '%s' AND table_name = '%s' ORDER BY column_id", schema, table)
	default:
		return fmt.Sprintf("SELECT column_name, data_type, is_nullable, '' FROM information_schema.columns WHERE table_schema = '%s' AND table_name = '%s' ORDER BY ordinal_position", schema, table)
	}
}

func primaryKeyQuery(dbType model.DatabaseType, schema, table string) string {
	schema, table = escapeLiteral(schema), escapeLiteral(table)
	switch dbType {
	case model.DatabaseTypeMySQL, model.DatabaseTypeMariaDB:
		return fmt.Sprintf("SELECT column_name FROM information_schema.key_column_usage WHERE table_schema = '%s' AND table_name = '%s' AND constraint_name = 'PRIMARY' ORDER BY ordinal_position", schema, table)
	case model.DatabaseTypePostgreSQL:
		return fmt.Sprintf("SELECT a.attname FROM pg_index i JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey) WHERE i.indrelid = '%s.%s'::regclass AND i.indisprimary", schema, table)
	case model.DatabaseTypeOracle:
		return fmt.Sprintf("SELECT cols.column_name FROM all_constraints cons JOIN all_cons_columns cols ON cons.constraint_name = cols.constraint_name AND cons.owner = cols.owner WHERE cons.constraint_type = 'P' AND cons.owner = '%s' AND cons.table_name = '%s' ORDER BY cols.position", schema, table)
	default:
		return fmt.Sprintf("SELECT kcu.column_name FROM information_schema.table_constraints tc JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = '%s' AND tc.table_name = '%s' ORDER BY kcu.ordinal_position", schema, table)
	}
}

func indexQuery(dbType model.DatabaseType, schema, table string) string {
	schema, table = escapeLiteral(schema), escapeLiteral(table)
	switch dbType {
	case model.DatabaseTypeMySQL, model.DatabaseTypeMariaDB:
		return fmt.Sprintf("SELECT index_name, column_name, non_unique FROM information_schema.statistics WHERE table_schema = '%s' AND table_name = '%s'", schema, table)
	case model.DatabaseTypePostgreSQL:
		return fmt.Sprintf("SELECT i.relname, a.attname, ix.indisunique FROM pg_class t JOIN pg_index ix ON t.oid = ix.indrelid JOIN pg_class i ON i.oid = ix.indexrelid JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey) WHERE t.relname = '%s'", table)
	case model.DatabaseTypeOracle:
		return fmt.Sprintf("SELECT ai.index_name, aic.column_name, CASE ai.uniqueness WHEN 'UNIQUE' THEN 1 ELSE 0 END FROM all_indexes ai JOIN all_ind_columns aic ON ai.index_name = aic.index_name AND ai.owner = aic.index_owner WHERE ai.owner = '%s' AND ai.table_name = '%s'", schema, table)
	default:
		return fmt.Sprintf("SELECT i.name, c.name, i.is_unique FROM sys.indexes i JOIN sys.index_columns ic ON i.object_id = ic.object_id AND i.index_id = ic.index_id JOIN sys.columns c ON ic.object_id = c.object_id AND ic.column_id = c.column_id WHERE i.object_id = OBJECT_ID('%s.%s') AND i.name IS NOT NULL", schema, table)
	}
}

func foreignKeyQuery(dbType model.DatabaseType, schema, table string) string {
	schema, table = escapeLiteral(schema), escapeLiteral(table)
	switch dbType {
	case model.DatabaseTypeMySQL, model.DatabaseTypeMariaDB:
		return fmt.Sprintf("SELECT constraint_name, column_name, referenced_table_name, referenced_column_name FROM information_schema.key_column_usage WHERE table_schema = '%s' AND table_name = '%s' AND referenced_table_name IS NOT NULL", schema, table)
	case model.DatabaseTypeOracle:
		return fmt.Sprintf("SELECT c.constraint_name, cc.column_name, rc.table_name, rcc.column_name FROM all_constraints c JOIN all_cons_columns cc ON c.constraint_name = cc.constraint_name AND c.owner = cc.owner JOIN all_constraints rc ON c.r_constraint_name = rc.constraint_name AND c.r_owner = rc.owner JOIN all_cons_columns rcc ON rc.constraint_name = rcc.constraint_name AND rc.owner = rcc.owner AND cc.position = rcc.position WHERE c.constraint_type = 'R' AND c.owner = '%s' AND c.table_name = '%s'", schema, table)
	case model.DatabaseTypeSQLServer:
		return fmt.Sprintf("SELECT rc.constraint_name, kcu.column_name, kcu2.table_name, kcu2.column_name FROM information_schema.referential_constraints rc JOIN information_schema.key_column_usage kcu ON kcu.constraint_name = rc.constraint_name JOIN information_schema.key_column_usage kcu2 ON kcu2.constraint_name = rc.unique_constraint_name AND kcu2.ordinal_position = kcu.ordinal_position WHERE kcu.table_schema = '%s' AND kcu.table_name = '%s'", schema, table)
	default:
		return fmt.Sprintf("SELECT tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name FROM information_schema.table_constraints tc JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name JOIN information_schema.constraint_column_usage ccu ON ccu.constraint_name = tc.constraint_name WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = '%s' AND tc.table_name = '%s'", schema, table)
	}
}
