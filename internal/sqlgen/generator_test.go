package sqlgen

import (
	"errors"
	"strings"
	"testing"

	"recon-engine/internal/graph"
	"recon-engine/internal/intent"
	"recon-engine/internal/model"
)

func planningSnapshot() *graph.Snapshot {
	kg := &model.KnowledgeGraph{
		ID:      "kg-1",
		Name:    "planning",
		Version: 1,
		Tables: []model.GraphTable{
			{Name: "RBP", Columns: model.ColumnList{
				{Name: "Material", DataType: "varchar"},
				{Name: "Description", DataType: "varchar"},
				{Name: "Plant", DataType: "varchar"},
			}},
			{Name: "OPS_EXCEL", Aliases: model.StringList{"ops excel", "ops"}, Columns: model.ColumnList{
				{Name: "PLANNING_SKU", DataType: "varchar"},
				{Name: "Active_Inclusive", DataType: "varchar"},
				{Name: "Region", DataType: "varchar"},
			}},
			{Name: "HANA_MASTER", Aliases: model.StringList{"hana master"}, Columns: model.ColumnList{
				{Name: "SKU", DataType: "varchar"},
				{Name: "PLANNER", DataType: "varchar"},
			}},
		},
		Relationships: []model.GraphRelationship{
			{SourceTable: "RBP", SourceColumn: "Material", TargetTable: "OPS_EXCEL", TargetColumn: "PLANNING_SKU", Confidence: 0.95},
			{SourceTable: "OPS_EXCEL", SourceColumn: "PLANNING_SKU", TargetTable: "HANA_MASTER", TargetColumn: "SKU", Confidence: 0.9},
		},
	}
	return graph.NewSnapshot(kg)
}

func comparisonInput(t *testing.T, snap *graph.Snapshot, dialect model.Dialect) Input {
	t.Helper()
	path, err := graph.FindPath(snap, "RBP", "OPS_EXCEL")
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	return Input{
		Intent: &intent.ParsedIntent{
			QueryType:   model.QueryTypeComparison,
			Operation:   model.OperationNotIn,
			SourceTable: "RBP",
			TargetTable: "OPS_EXCEL",
		},
		BasePath: path,
		Dialect:  dialect,
		Limit:    50,
	}
}

func TestGenerateMySQLComparison(t *testing.T) {
	snap := planningSnapshot()
	bundle, err := Generate(snap, comparisonInput(t, snap, model.DialectMySQL))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	wantMatched := "SELECT DISTINCT s.* FROM `RBP` s INNER JOIN `OPS_EXCEL` t ON s.`Material` = t.`PLANNING_SKU` LIMIT 50"
	if bundle.Matched != wantMatched {
		t.Errorf("matched:\n got %s\nwant %s", bundle.Matched, wantMatched)
	}

	wantUnmatchedSrc := "SELECT DISTINCT s.* FROM `RBP` s LEFT JOIN `OPS_EXCEL` t ON s.`Material` = t.`PLANNING_SKU` WHERE t.`PLANNING_SKU` IS NULL LIMIT 50"
	if bundle.UnmatchedSource != wantUnmatchedSrc {
		t.Errorf("unmatched source:\n got %s\nwant %s", bundle.UnmatchedSource, wantUnmatchedSrc)
	}

	wantUnmatchedTgt := "SELECT DISTINCT t.* FROM `OPS_EXCEL` t LEFT JOIN `RBP` s ON t.`PLANNING_SKU` = s.`Material` WHERE s.`Material` IS NULL LIMIT 50"
	if bundle.UnmatchedTarget != wantUnmatchedTgt {
		t.Errorf("unmatched target:\n got %s\nwant %s", bundle.UnmatchedTarget, wantUnmatchedTgt)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	snap := planningSnapshot()
	first, err := Generate(snap, comparisonInput(t, snap, model.DialectPostgreSQL))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Generate(snap, comparisonInput(t, snap, model.DialectPostgreSQL))
		if err != nil {
			t.Fatalf("Generate run %d: %v", i, err)
		}
		if again.Matched != first.Matched || again.UnmatchedSource != first.UnmatchedSource || again.UnmatchedTarget != first.UnmatchedTarget {
			t.Fatalf("run %d produced different SQL", i)
		}
	}
}

func TestGenerateDialectConformance(t *testing.T) {
	snap := planningSnapshot()
	cases := []struct {
		dialect model.Dialect
		want    []string
		banned  []string
	}{
		{model.DialectMySQL, []string{" LIMIT 50"}, []string{"ROWNUM", "TOP "}},
		{model.DialectMariaDB, []string{" LIMIT 50"}, []string{"ROWNUM", "TOP "}},
		{model.DialectPostgreSQL, []string{" LIMIT 50"}, []string{"ROWNUM", "TOP "}},
		{model.DialectOracle, []string{"ROWNUM <= 50"}, []string{"LIMIT", "TOP "}},
		{model.DialectSQLServer, []string{"TOP 50"}, []string{"LIMIT", "ROWNUM"}},
	}
	for _, tc := range cases {
		bundle, err := Generate(snap, comparisonInput(t, snap, tc.dialect))
		if err != nil {
			t.Fatalf("%s: Generate: %v", tc.dialect, err)
		}
		for _, sql := range []string{bundle.Matched, bundle.UnmatchedSource, bundle.UnmatchedTarget} {
			for _, want := range tc.want {
				if !strings.Contains(sql, want) {
					t.Errorf("%s: missing %q in %s", tc.dialect, want, sql)
				}
			}
			for _, banned := range tc.banned {
				if strings.Contains(sql, banned) {
					t.Errorf("%s: found banned %q in %s", tc.dialect, banned, sql)
				}
			}
		}
	}
}

func TestGenerateQuotingPerDialect(t *testing.T) {
	snap := planningSnapshot()

	bundle, err := Generate(snap, comparisonInput(t, snap, model.DialectPostgreSQL))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(bundle.Matched, `"RBP" s`) || !strings.Contains(bundle.Matched, `s."Material"`) {
		t.Errorf("postgresql quoting wrong: %s", bundle.Matched)
	}

	bundle, err = Generate(snap, comparisonInput(t, snap, model.DialectSQLServer))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(bundle.Matched, "[RBP] s") || !strings.Contains(bundle.Matched, "s.[Material]") {
		t.Errorf("sqlserver quoting wrong: %s", bundle.Matched)
	}
}

func TestGenerateOracleRownumPlacement(t *testing.T) {
	snap := planningSnapshot()

	in := comparisonInput(t, snap, model.DialectOracle)
	bundle, err := Generate(snap, in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(bundle.Matched, " WHERE ROWNUM <= 50") {
		t.Errorf("matched should open WHERE with ROWNUM: %s", bundle.Matched)
	}
	if !strings.Contains(bundle.UnmatchedSource, " IS NULL AND ROWNUM <= 50") {
		t.Errorf("existing WHERE should gain AND ROWNUM: %s", bundle.UnmatchedSource)
	}
	if strings.Count(bundle.UnmatchedSource, "WHERE") != 1 {
		t.Errorf("only one WHERE expected: %s", bundle.UnmatchedSource)
	}
}

func TestGenerateSQLServerTopPlacement(t *testing.T) {
	snap := planningSnapshot()
	bundle, err := Generate(snap, comparisonInput(t, snap, model.DialectSQLServer))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(bundle.Matched, "SELECT DISTINCT TOP 50 s.*") {
		t.Errorf("TOP must follow SELECT DISTINCT: %s", bundle.Matched)
	}
}

func TestGenerateNotInUnmatchedShape(t *testing.T) {
	snap := planningSnapshot()
	bundle, err := Generate(snap, comparisonInput(t, snap, model.DialectMySQL))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(bundle.UnmatchedSource, "LEFT JOIN") || !strings.Contains(bundle.UnmatchedSource, "IS NULL") {
		t.Errorf("unmatched source must probe with LEFT JOIN + IS NULL: %s", bundle.UnmatchedSource)
	}
	if strings.Contains(bundle.Matched, "LEFT JOIN") {
		t.Errorf("matched query must use inner joins: %s", bundle.Matched)
	}
}

func TestGenerateAdditionalColumnTwoHops(t *testing.T) {
	snap := planningSnapshot()
	in := comparisonInput(t, snap, model.DialectMySQL)
	addPath, err := graph.FindPath(snap, "RBP", "HANA_MASTER")
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if len(addPath.Hops) != 2 {
		t.Fatalf("expected 2-hop path, got %d hops", len(addPath.Hops))
	}
	in.Intent.AdditionalColumns = []intent.AdditionalColumn{
		{Column: "PLANNER", OwningTable: "HANA_MASTER", JoinPath: addPath},
	}

	bundle, err := Generate(snap, in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := strings.Count(bundle.Matched, "`HANA_MASTER`"); got != 1 {
		t.Errorf("expected exactly one HANA_MASTER join, got %d: %s", got, bundle.Matched)
	}
	// The first hop lands on the already-joined target, so only the
	// second hop's columns appear.
	if !strings.Contains(bundle.Matched, "LEFT JOIN `HANA_MASTER` a1 ON t.`PLANNING_SKU` = a1.`SKU`") {
		t.Errorf("second-hop join columns expected: %s", bundle.Matched)
	}
	if !strings.Contains(bundle.Matched, "s.*, a1.`PLANNER`") {
		t.Errorf("additional column missing from select list: %s", bundle.Matched)
	}
}

func TestGenerateAdditionalColumnsCollapse(t *testing.T) {
	snap := planningSnapshot()
	in := comparisonInput(t, snap, model.DialectMySQL)
	addPath, err := graph.FindPath(snap, "RBP", "HANA_MASTER")
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	in.Intent.AdditionalColumns = []intent.AdditionalColumn{
		{Column: "PLANNER", OwningTable: "HANA_MASTER", JoinPath: addPath},
		{Column: "SKU", OwningTable: "HANA_MASTER", Alias: "master_sku", JoinPath: addPath},
	}

	bundle, err := Generate(snap, in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := strings.Count(bundle.Matched, "LEFT JOIN `HANA_MASTER`"); got != 1 {
		t.Errorf("joins to the same owning table must collapse, got %d: %s", got, bundle.Matched)
	}
	if !strings.Contains(bundle.Matched, "a1.`PLANNER`") || !strings.Contains(bundle.Matched, "a1.`SKU` AS `master_sku`") {
		t.Errorf("both additional columns expected: %s", bundle.Matched)
	}
}

func TestGenerateFilterSideRouting(t *testing.T) {
	snap := planningSnapshot()
	in := comparisonInput(t, snap, model.DialectMySQL)
	in.Intent.Filters = []intent.Filter{
		{Column: "Active_Inclusive", Operator: "=", Value: "Active"},
		{Column: "Plant", Operator: "=", Value: "0012"},
	}

	bundle, err := Generate(snap, in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(bundle.Matched, "t.`Active_Inclusive` = 'Active'") {
		t.Errorf("target-side filter misrouted: %s", bundle.Matched)
	}
	if !strings.Contains(bundle.Matched, "s.`Plant` = '0012'") {
		t.Errorf("source-side filter misrouted: %s", bundle.Matched)
	}
	if strings.Contains(bundle.UnmatchedSource, "Active_Inclusive") {
		t.Errorf("target-side filter must not reach the unmatched-source query: %s", bundle.UnmatchedSource)
	}
	if !strings.Contains(bundle.UnmatchedSource, "s.`Plant` = '0012'") {
		t.Errorf("source-side filter must survive in the unmatched-source query: %s", bundle.UnmatchedSource)
	}
	if strings.Contains(bundle.UnmatchedTarget, "Plant") {
		t.Errorf("source-side filter must not reach the unmatched-target query: %s", bundle.UnmatchedTarget)
	}
}

func TestGenerateSingleTableFilter(t *testing.T) {
	snap := planningSnapshot()
	bundle, err := Generate(snap, Input{
		Intent: &intent.ParsedIntent{
			QueryType:   model.QueryTypeFilter,
			SourceTable: "OPS_EXCEL",
			Filters:     []intent.Filter{{Column: "Active_Inclusive", Operator: "=", Value: "Active"}},
		},
		Dialect: model.DialectMySQL,
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := "SELECT s.* FROM `OPS_EXCEL` s WHERE s.`Active_Inclusive` = 'Active' LIMIT 10"
	if bundle.Matched != want {
		t.Errorf("got %s\nwant %s", bundle.Matched, want)
	}
	if bundle.UnmatchedSource != "" || bundle.UnmatchedTarget != "" {
		t.Errorf("single-table intent must not produce unmatched queries")
	}
}

func TestGenerateAggregate(t *testing.T) {
	snap := planningSnapshot()
	in := comparisonInput(t, snap, model.DialectMySQL)
	in.Intent.QueryType = model.QueryTypeAggregate

	bundle, err := Generate(snap, in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(bundle.Matched, "SELECT COUNT(*) AS record_count FROM") {
		t.Errorf("aggregate must render a count: %s", bundle.Matched)
	}
	if strings.Contains(bundle.Matched, "LIMIT") || strings.Contains(bundle.Matched, "DISTINCT") {
		t.Errorf("aggregate must not carry limit or distinct: %s", bundle.Matched)
	}
}

func TestGenerateColumnNotFound(t *testing.T) {
	snap := planningSnapshot()
	in := comparisonInput(t, snap, model.DialectMySQL)
	in.Intent.Filters = []intent.Filter{{Column: "Activ", Operator: "=", Value: "Active"}}

	_, err := Generate(snap, in)
	var cnf *ColumnNotFoundError
	if !errors.As(err, &cnf) {
		t.Fatalf("expected ColumnNotFoundError, got %v", err)
	}
	found := false
	for _, s := range cnf.Suggestions {
		if s == "Active_Inclusive" {
			found = true
		}
	}
	if !found {
		t.Errorf("suggestions should include Active_Inclusive, got %v", cnf.Suggestions)
	}
}

func TestGenerateUnsupportedDialect(t *testing.T) {
	snap := planningSnapshot()
	in := comparisonInput(t, snap, model.DialectMySQL)
	in.Dialect = model.Dialect("db2")

	_, err := Generate(snap, in)
	var ud *UnsupportedDialectError
	if !errors.As(err, &ud) {
		t.Fatalf("expected UnsupportedDialectError, got %v", err)
	}
	if ud.Dialect != "db2" {
		t.Errorf("dialect = %q, want db2", ud.Dialect)
	}
}

func TestGenerateLiteralRendering(t *testing.T) {
	snap := planningSnapshot()

	in := comparisonInput(t, snap, model.DialectMySQL)
	in.Intent.Filters = []intent.Filter{{Column: "Description", Operator: "=", Value: "O'Brien"}}
	bundle, err := Generate(snap, in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(bundle.Matched, "'O''Brien'") {
		t.Errorf("embedded quote must be doubled: %s", bundle.Matched)
	}

	in = comparisonInput(t, snap, model.DialectMySQL)
	in.Intent.Filters = []intent.Filter{{Column: "Plant", Operator: "IN", Value: "A, B"}}
	bundle, err = Generate(snap, in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(bundle.Matched, "s.`Plant` IN ('A', 'B')") {
		t.Errorf("IN list rendering wrong: %s", bundle.Matched)
	}

	in = comparisonInput(t, snap, model.DialectMySQL)
	in.Intent.Filters = []intent.Filter{{Column: "Plant", Operator: ">", Value: "1247"}}
	bundle, err = Generate(snap, in)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(bundle.Matched, "s.`Plant` > 1247") {
		t.Errorf("integer value should stay bare: %s", bundle.Matched)
	}
}

func TestGenerateSchemaQualifiedTable(t *testing.T) {
	kg := &model.KnowledgeGraph{
		ID: "kg-2", Name: "billing", Version: 1,
		Tables: []model.GraphTable{
			{Name: "invoices", SchemaName: "billing", Columns: model.ColumnList{{Name: "id"}}},
			{Name: "payments", SchemaName: "billing", Columns: model.ColumnList{{Name: "invoice_id"}}},
		},
		Relationships: []model.GraphRelationship{
			{SourceTable: "invoices", SourceColumn: "id", TargetTable: "payments", TargetColumn: "invoice_id", Confidence: 1},
		},
	}
	snap := graph.NewSnapshot(kg)
	path, err := graph.FindPath(snap, "invoices", "payments")
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	bundle, err := Generate(snap, Input{
		Intent: &intent.ParsedIntent{
			QueryType:   model.QueryTypeComparison,
			Operation:   model.OperationIn,
			SourceTable: "invoices",
			TargetTable: "payments",
		},
		BasePath: path,
		Dialect:  model.DialectPostgreSQL,
		Limit:    5,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(bundle.Matched, `FROM "billing"."invoices" s`) {
		t.Errorf("schema qualification missing: %s", bundle.Matched)
	}
}
