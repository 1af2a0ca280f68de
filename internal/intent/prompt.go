package intent

import (
	"fmt"
	"strings"

	"recon-engine/internal/graph"
)

const systemPrompt = `You are a data reconciliation assistant. You turn one natural-language reconciliation definition into a structured query intent over a known set of tables. Respond with a single JSON object and nothing else.`

// buildPrompt renders the extraction prompt: the definition, the graph's
// tables with their columns and aliases, optional free-text schema notes,
// and the strict output contract.
func buildPrompt(definition string, s *graph.Snapshot, schemaHints []string) string {
	var b strings.Builder

	b.WriteString("Definition:\n")
	b.WriteString(definition)
	b.WriteString("\n\nKnown tables:\n")
	for _, t := range s.Tables() {
		b.WriteString("- ")
		b.WriteString(t.Name)
		if cols := t.ColumnNames(); len(cols) > 0 {
			fmt.Fprintf(&b, " (columns: %s)", strings.Join(cols, ", "))
		}
		if len(t.Aliases) > 0 {
			fmt.Fprintf(&b, " [also known as: %s]", strings.Join(t.Aliases, ", "))
		}
		b.WriteString("\n")
	}

	if len(schemaHints) > 0 {
		b.WriteString("\nSchema notes:\n")
		for _, h := range schemaHints {
			b.WriteString("- ")
			b.WriteString(h)
			b.WriteString("\n")
		}
	}

	b.WriteString(`
Extract the intent as JSON with exactly these keys:
{
  "query_type": "filter" | "comparison" | "aggregate",
  "operation": "IN" | "NOT_IN" | "EXISTS",
  "source_table": "<table the definition starts from>",
  "target_table": "<table compared against, empty string if none>",
  "filters": [{"column": "...", "operator": "=", "value": "..."}],
  "additional_columns": [{"column": "...", "table": "<owning table>", "alias": ""}],
  "confidence": <0.0-1.0>
}

Rules:
- Use table names from the known tables list only.
- "not in" / "missing from" style definitions are operation NOT_IN.
- Counting definitions are query_type "aggregate".
- A single-table definition has an empty target_table and query_type "filter".
- Emit a filter only for predicates stated in the definition.
- "include X from Y" becomes an additional_columns entry.`)

	return b.String()
}
