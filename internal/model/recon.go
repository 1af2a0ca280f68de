package model

// QueryKind identifies one of the three generated reconciliation queries.
type QueryKind string

const (
	QueryKindMatched         QueryKind = "matched"
	QueryKindUnmatchedSource QueryKind = "unmatched_source"
	QueryKindUnmatchedTarget QueryKind = "unmatched_target"
)

// QueryType is the shape of the result a definition asks for.
type QueryType string

const (
	QueryTypeFilter     QueryType = "filter"
	QueryTypeComparison QueryType = "comparison"
	QueryTypeAggregate  QueryType = "aggregate"
)

// Operation is the set comparison a definition asks for.
type Operation string

const (
	OperationIn     Operation = "IN"
	OperationNotIn  Operation = "NOT_IN"
	OperationExists Operation = "EXISTS"
)

// Dialect identifies a SQL dialect for query generation.
type Dialect string

const (
	DialectMySQL      Dialect = "mysql"
	DialectMariaDB    Dialect = "mariadb"
	DialectPostgreSQL Dialect = "postgresql"
	DialectOracle     Dialect = "oracle"
	DialectSQLServer  Dialect = "sqlserver"
)

// ReconRequest is a reconciliation run request. Each definition is an
// independent natural-language reconciliation statement.
type ReconRequest struct {
	KGName         string   `json:"kg_name" validate:"required"`
	Schemas        []string `json:"schemas,omitempty"`
	Definitions    []string `json:"definitions" validate:"required,min=1,dive,required"`
	Dialect        string   `json:"dialect" validate:"required"`
	Limit          int      `json:"limit,omitempty" validate:"omitempty,min=1,max=100000"`
	UseLLM         bool     `json:"use_llm"`
	Execute        bool     `json:"execute"`
	SourceEndpoint string   `json:"source_endpoint,omitempty"`
	TargetEndpoint string   `json:"target_endpoint,omitempty"`
}

// SQLBundle carries the three generated queries of a definition.
type SQLBundle struct {
	Matched         string `json:"matched"`
	UnmatchedSource string `json:"unmatched_source"`
	UnmatchedTarget string `json:"unmatched_target"`
}

// DefinitionResult is the per-definition outcome of a reconciliation run.
// On failure only Definition and Error are guaranteed to be populated.
type DefinitionResult struct {
	Definition      string                   `json:"definition"`
	QueryType       QueryType                `json:"query_type,omitempty"`
	Operation       Operation                `json:"operation,omitempty"`
	SourceTable     string                   `json:"source_table,omitempty"`
	TargetTable     string                   `json:"target_table,omitempty"`
	JoinColumns     [][2]string              `json:"join_columns,omitempty"`
	Confidence      float64                  `json:"confidence"`
	Degraded        bool                     `json:"degraded"`
	SQL             *SQLBundle               `json:"sql,omitempty"`
	RecordCount     int64                    `json:"record_count"`
	ExecutionTimeMs int64                    `json:"execution_time_ms"`
	Records         []map[string]interface{} `json:"records,omitempty"`
	Counts          map[QueryKind]int64      `json:"counts,omitempty"`
	Warnings        []string                 `json:"warnings,omitempty"`
	Error           string                   `json:"error,omitempty"`
}

// ExecutionResult is the outcome of running one generated query against
// an endpoint. A failed query carries its error and a zero count.
type ExecutionResult struct {
	Kind            QueryKind                `json:"kind"`
	RecordCount     int64                    `json:"record_count"`
	Records         []map[string]interface{} `json:"records,omitempty"`
	ExecutionTimeMs int64                    `json:"execution_time_ms"`
	Error           string                   `json:"error,omitempty"`
}

// RunSummary aggregates a reconciliation run across its definitions.
type RunSummary struct {
	Definitions int        `json:"definitions"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Degraded    int        `json:"degraded"`
	KPIs        []KPIValue `json:"kpis,omitempty"`
}

// ReconResponse is the full response of a reconciliation run.
type ReconResponse struct {
	KGName  string             `json:"kg_name"`
	Dialect string             `json:"dialect"`
	Results []DefinitionResult `json:"results"`
	Summary RunSummary         `json:"summary"`
}

// IsValidDialect checks if a dialect string is supported.
func IsValidDialect(d string) bool {
	switch Dialect(d) {
	case DialectMySQL, DialectMariaDB, DialectPostgreSQL, DialectOracle, DialectSQLServer:
		return true
	default:
		return false
	}
}

// NormalizeDialect maps accepted dialect spellings onto canonical values.
func NormalizeDialect(d string) (Dialect, bool) {
	switch d {
	case "mysql":
		return DialectMySQL, true
	case "mariadb":
		return DialectMariaDB, true
	case "postgresql", "postgres":
		return DialectPostgreSQL, true
	case "oracle":
		return DialectOracle, true
	case "sqlserver", "mssql":
		return DialectSQLServer, true
	default:
		return "", false
	}
}
