package intent

import (
	"regexp"
	"strings"

	"recon-engine/internal/alias"
	"recon-engine/internal/graph"
	"recon-engine/internal/model"
)

const (
	fallbackBaseConfidence = 0.40
	fallbackOpBonus        = 0.15
	fallbackDetailBonus    = 0.05
	fallbackMaxConfidence  = 0.65
)

// notInPhrases map a definition onto NOT_IN. Order matters: longer
// phrases are checked first so "not present in" wins over "present in".
var notInPhrases = []string{
	"not in", "not present", "missing from", "missing in",
	"absent from", "absent in", "without a match", "unmatched",
	"no matching",
}

var existsPhrases = []string{"exists in", "exist in", "existing in"}

var inPhrases = []string{
	"which are in", "that are in", "present in", "also in", "found in",
	"matched with", "matching",
}

var aggregatePhrases = []string{"count", "how many", "number of", "total"}

// stopTokens never count as a single-token table mention.
var stopTokens = map[string]struct{}{
	"show": {}, "me": {}, "all": {}, "the": {}, "a": {}, "an": {},
	"in": {}, "which": {}, "are": {}, "is": {}, "not": {}, "that": {},
	"of": {}, "and": {}, "to": {}, "with": {}, "from": {}, "include": {},
	"list": {}, "find": {}, "get": {}, "data": {}, "rows": {}, "row": {},
	"entries": {}, "how": {}, "many": {}, "count": {}, "number": {},
	"total": {}, "missing": {}, "absent": {}, "present": {}, "exists": {},
	"exist": {}, "active": {}, "vs": {}, "versus": {}, "against": {},
	"compare": {}, "between": {}, "but": {}, "where": {}, "no": {},
	"them": {}, "those": {}, "these": {}, "records": {}, "record": {},
	"items": {}, "item": {}, "products": {}, "product": {}, "for": {},
	"by": {}, "on": {}, "as": {}, "be": {}, "have": {}, "has": {},
}

var includePattern = regexp.MustCompile(`include\s+([a-z0-9_ ]+?)\s+from\s+([a-z0-9_ ]+)`)

// fallbackParse extracts a best-effort intent without the language model.
// It recognizes a small fixed vocabulary and table mentions only; filter
// extraction beyond that vocabulary is out of its reach, which is why
// the result is always flagged degraded.
func fallbackParse(definition string, s *graph.Snapshot, r *alias.Resolver, warnings []string) *ParsedIntent {
	lower := strings.ToLower(definition)

	out := &ParsedIntent{
		Operation:  model.OperationIn,
		Degraded:   true,
		Confidence: fallbackBaseConfidence,
		Warnings:   warnings,
	}

	opMatched := false
	switch {
	case containsAny(lower, notInPhrases):
		out.Operation = model.OperationNotIn
		opMatched = true
	case containsAny(lower, existsPhrases):
		out.Operation = model.OperationExists
		opMatched = true
	case containsAny(lower, inPhrases):
		out.Operation = model.OperationIn
		opMatched = true
	}
	if opMatched {
		out.Confidence += fallbackOpBonus
	}

	// The include clause is consumed before table scanning so its owning
	// table is not mistaken for the comparison target.
	scanText := lower
	for _, m := range includePattern.FindAllStringSubmatch(lower, -1) {
		column := strings.TrimSpace(m[1])
		owner := strings.TrimSpace(m[2])
		match, err := r.Resolve(owner)
		if err != nil {
			out.Warnings = append(out.Warnings, "additional column dropped: "+err.Error())
			continue
		}
		out.AdditionalColumns = append(out.AdditionalColumns, AdditionalColumn{
			Column:      canonicalColumn(s, []string{match.Table}, column),
			OwningTable: match.Table,
		})
		out.Confidence += fallbackDetailBonus
		scanText = strings.Replace(scanText, m[0], "", 1)
	}

	tables := scanTables(scanText, r)
	if len(tables) > 0 {
		out.SourceTable = tables[0]
	} else {
		out.Warnings = append(out.Warnings, "no table mentions recognized")
	}
	if len(tables) > 1 {
		out.TargetTable = tables[1]
	}

	// "active" is the one filter the fixed vocabulary knows, and only
	// when the source table carries a recognizable column for it.
	if strings.Contains(lower, "active") && out.SourceTable != "" {
		if col, ok := activeColumn(s, out.SourceTable); ok {
			out.Filters = append(out.Filters, Filter{Column: col, Operator: "=", Value: "Active"})
			out.Confidence += fallbackDetailBonus
		}
	}

	switch {
	case containsAny(lower, aggregatePhrases):
		out.QueryType = model.QueryTypeAggregate
	case out.TargetTable != "":
		out.QueryType = model.QueryTypeComparison
	default:
		out.QueryType = model.QueryTypeFilter
	}

	if out.Confidence > fallbackMaxConfidence {
		out.Confidence = fallbackMaxConfidence
	}

	return out
}

// scanTables walks the definition greedily, longest window first, and
// collects distinct table mentions in order of appearance. A window
// counts when it resolves at substring strength or better.
func scanTables(text string, r *alias.Resolver) []string {
	tokens := strings.Fields(nonAlnumToSpace(text))

	var found []string
	seen := make(map[string]struct{})

	i := 0
	for i < len(tokens) {
		matched := false
		for n := 3; n >= 1; n-- {
			if i+n > len(tokens) {
				continue
			}
			if n == 1 {
				if _, stop := stopTokens[tokens[i]]; stop {
					continue
				}
			}
			window := strings.Join(tokens[i:i+n], " ")
			m, err := r.Resolve(window)
			if err != nil || m.Score < 0.8 {
				continue
			}
			if _, dup := seen[m.Table]; !dup {
				seen[m.Table] = struct{}{}
				found = append(found, m.Table)
			}
			i += n
			matched = true
			break
		}
		if !matched {
			i++
		}
	}

	return found
}

// activeColumn finds a column on the table whose name contains "active".
func activeColumn(s *graph.Snapshot, tableName string) (string, bool) {
	t, ok := s.Table(tableName)
	if !ok {
		return "", false
	}
	for _, c := range t.Columns {
		if strings.Contains(strings.ToLower(c.Name), "active") {
			return c.Name, true
		}
	}
	return "", false
}

// canonicalColumn fixes the spelling of a column mention against the
// listed tables, trying the raw form and an underscored form. Unknown
// columns pass through unchanged for the generator to reject with
// suggestions.
func canonicalColumn(s *graph.Snapshot, tables []string, column string) string {
	forms := []string{column, strings.ReplaceAll(strings.TrimSpace(column), " ", "_")}
	for _, tn := range tables {
		t, ok := s.Table(tn)
		if !ok || len(t.Columns) == 0 {
			continue
		}
		for _, form := range forms {
			if c, ok := t.Column(form); ok {
				return c
			}
		}
	}
	return forms[len(forms)-1]
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func nonAlnumToSpace(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return ' '
		}
	}, text)
}
