package sqlgen

import (
	"fmt"
	"strconv"
	"strings"
)

// The generator builds queries as typed clause objects and renders them
// once at the end. Dialect never leaks into clause construction, which
// keeps the three query kinds structurally identical across dialects.

type tableRef struct {
	table string // canonical, possibly schema-qualified
	alias string
}

type joinKind string

const (
	joinInner joinKind = "INNER JOIN"
	joinLeft  joinKind = "LEFT JOIN"
)

type joinClause struct {
	kind        joinKind
	table       tableRef
	leftAlias   string
	leftColumn  string
	rightColumn string
}

// selectItem is one entry in the select list. An empty column renders
// the alias star form (s.*).
type selectItem struct {
	alias  string
	column string
	as     string
}

type condKind int

const (
	condCompare condKind = iota
	condIsNull
)

type whereCond struct {
	kind     condKind
	alias    string
	column   string
	operator string
	value    string
}

type selectQuery struct {
	distinct  bool
	aggregate bool
	items     []selectItem
	from      tableRef
	joins     []joinClause
	wheres    []whereCond
	limit     int
}

func (q *selectQuery) render(d dialectSpec) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.distinct {
		b.WriteString("DISTINCT ")
	}
	if q.limit > 0 && d.limit == limitTop && !q.aggregate {
		fmt.Fprintf(&b, "TOP %d ", q.limit)
	}
	if q.aggregate {
		b.WriteString("COUNT(*) AS record_count")
	} else {
		for i, item := range q.items {
			if i > 0 {
				b.WriteString(", ")
			}
			if item.column == "" {
				b.WriteString(item.alias)
				b.WriteString(".*")
				continue
			}
			b.WriteString(item.alias)
			b.WriteString(".")
			b.WriteString(d.quote(item.column))
			if item.as != "" {
				b.WriteString(" AS ")
				b.WriteString(d.quote(item.as))
			}
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(d.qualify(q.from.table))
	b.WriteString(" ")
	b.WriteString(q.from.alias)
	for _, j := range q.joins {
		fmt.Fprintf(&b, " %s %s %s ON %s.%s = %s.%s",
			j.kind, d.qualify(j.table.table), j.table.alias,
			j.leftAlias, d.quote(j.leftColumn),
			j.table.alias, d.quote(j.rightColumn))
	}
	wheres := q.wheres
	if q.limit > 0 && d.limit == limitRowNum && !q.aggregate {
		wheres = append(append([]whereCond{}, wheres...), whereCond{
			kind:     condCompare,
			column:   "ROWNUM",
			operator: "<=",
			value:    strconv.Itoa(q.limit),
		})
	}
	if len(wheres) > 0 {
		b.WriteString(" WHERE ")
		for i, w := range wheres {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString(renderCond(w, d))
		}
	}
	if q.limit > 0 && d.limit == limitTrailing && !q.aggregate {
		fmt.Fprintf(&b, " LIMIT %d", q.limit)
	}
	return b.String()
}

func renderCond(w whereCond, d dialectSpec) string {
	ref := w.column
	if ref != "ROWNUM" {
		ref = d.quote(w.column)
	}
	if w.alias != "" {
		ref = w.alias + "." + ref
	}
	switch w.kind {
	case condIsNull:
		return ref + " IS NULL"
	default:
		op := strings.ToUpper(w.operator)
		if op == "IN" || op == "NOT IN" {
			return fmt.Sprintf("%s %s (%s)", ref, op, renderList(w.value))
		}
		return fmt.Sprintf("%s %s %s", ref, op, sqlLiteral(w.value))
	}
}

// renderList splits a comma-separated value into individual literals
// for IN and NOT IN conditions.
func renderList(value string) string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, sqlLiteral(p))
	}
	return strings.Join(out, ", ")
}

// sqlLiteral renders a filter value. Values that round-trip through
// numeric parsing unchanged stay bare; everything else is quoted with
// embedded quotes doubled. "0012" stays a string so zero-padded keys
// keep their padding.
func sqlLiteral(v string) string {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil && strconv.FormatInt(i, 10) == v {
		return v
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && strconv.FormatFloat(f, 'g', -1, 64) == v {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
