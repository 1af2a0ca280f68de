package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"recon-engine/internal/graph"
	"recon-engine/internal/intent"
	"recon-engine/internal/model"
)

const (
	sourceAlias = "s"
	targetAlias = "t"
)

// Input carries one parsed definition plus the join paths discovered
// for it. BasePath joins source to target and is nil for single-table
// queries; per-column paths ride on the intent's AdditionalColumns.
type Input struct {
	Intent   *intent.ParsedIntent
	BasePath *graph.Path
	Dialect  model.Dialect
	Limit    int
}

// Generate renders the SQL bundle for one definition. Filters and
// additional columns are validated against the graph's column metadata
// before any SQL text is built. The same input always yields
// byte-identical SQL.
//
// Comparison intents produce all three query kinds; the operation
// (IN, NOT_IN, EXISTS) decides downstream which kind is the primary
// result, not how the SQL is shaped. Single-table intents produce only
// the matched query.
func Generate(snap *graph.Snapshot, in Input) (*model.SQLBundle, error) {
	spec, err := dialectFor(in.Dialect)
	if err != nil {
		return nil, err
	}
	it := in.Intent

	src, ok := snap.Table(it.SourceTable)
	if !ok {
		return nil, fmt.Errorf("source table %q is not part of graph %q", it.SourceTable, snap.GraphName)
	}
	var tgt *graph.Table
	if it.TargetTable != "" {
		tgt, ok = snap.Table(it.TargetTable)
		if !ok {
			return nil, fmt.Errorf("target table %q is not part of graph %q", it.TargetTable, snap.GraphName)
		}
		if in.BasePath == nil {
			return nil, fmt.Errorf("no join path supplied for %q to %q", src.Name, tgt.Name)
		}
	}

	filters, err := bindFilters(it.Filters, src, tgt)
	if err != nil {
		return nil, err
	}
	adds, err := bindAdditionalColumns(it.AdditionalColumns, snap, src, tgt)
	if err != nil {
		return nil, err
	}

	aggregate := it.QueryType == model.QueryTypeAggregate
	singleTable := tgt == nil || len(in.BasePath.Hops) == 0

	bundle := &model.SQLBundle{}

	matched, err := buildQuery(snap, queryPlan{
		src:       src,
		basePath:  in.BasePath,
		baseKind:  joinInner,
		adds:      adds,
		filters:   filters,
		useSource: true,
		useTarget: true,
		limit:     in.Limit,
		aggregate: aggregate,
	})
	if err != nil {
		return nil, err
	}
	bundle.Matched = matched.render(spec)

	if singleTable {
		return bundle, nil
	}

	lastHop := in.BasePath.Hops[len(in.BasePath.Hops)-1]
	unmatchedSrc, err := buildQuery(snap, queryPlan{
		src:       src,
		basePath:  in.BasePath,
		baseKind:  joinLeft,
		adds:      adds,
		filters:   filters,
		useSource: true,
		nullProbe: &whereCond{kind: condIsNull, alias: targetAlias, column: lastHop.ToColumn},
		limit:     in.Limit,
		aggregate: aggregate,
	})
	if err != nil {
		return nil, err
	}
	bundle.UnmatchedSource = unmatchedSrc.render(spec)

	// The reversed query walks the same path target-first. Additional
	// columns are anchored on the source side, which is the NULL side
	// here, so they are omitted.
	reversed := reversePath(in.BasePath)
	firstHop := in.BasePath.Hops[0]
	unmatchedTgt, err := buildQuery(snap, queryPlan{
		src:        tgt,
		srcAlias:   targetAlias,
		finalAlias: sourceAlias,
		basePath:   reversed,
		baseKind:   joinLeft,
		filters:    filters,
		useTarget:  true,
		nullProbe:  &whereCond{kind: condIsNull, alias: sourceAlias, column: firstHop.FromColumn},
		limit:      in.Limit,
		aggregate:  aggregate,
	})
	if err != nil {
		return nil, err
	}
	bundle.UnmatchedTarget = unmatchedTgt.render(spec)

	return bundle, nil
}

// queryPlan is the dialect-free description of one query kind.
type queryPlan struct {
	src        *graph.Table
	srcAlias   string // defaults to "s"
	finalAlias string // alias of the path's last table, defaults to "t"
	basePath   *graph.Path
	baseKind   joinKind
	adds       []boundColumn
	filters    []boundFilter
	useSource  bool // include source-side filters
	useTarget  bool // include target-side filters
	nullProbe  *whereCond
	limit      int
	aggregate  bool
}

func buildQuery(snap *graph.Snapshot, plan queryPlan) (*selectQuery, error) {
	if plan.srcAlias == "" {
		plan.srcAlias = sourceAlias
	}
	if plan.finalAlias == "" {
		plan.finalAlias = targetAlias
	}

	aliases := map[string]string{strings.ToLower(plan.src.Name): plan.srcAlias}
	var joins []joinClause
	if plan.basePath != nil {
		for i, hop := range plan.basePath.Hops {
			if hop.FromColumn == "" || hop.ToColumn == "" {
				return nil, &MissingJoinColumnsError{FromTable: hop.FromTable, ToTable: hop.ToTable}
			}
			alias := plan.finalAlias
			if i < len(plan.basePath.Hops)-1 {
				alias = fmt.Sprintf("j%d", i+1)
			}
			joins = append(joins, joinClause{
				kind:        plan.baseKind,
				table:       tableRef{table: qualifiedFor(snap, hop.ToTable), alias: alias},
				leftAlias:   aliases[strings.ToLower(hop.FromTable)],
				leftColumn:  hop.FromColumn,
				rightColumn: hop.ToColumn,
			})
			aliases[strings.ToLower(hop.ToTable)] = alias
		}
	}

	items := []selectItem{{alias: plan.srcAlias}}
	nextAdd := 0
	for _, add := range plan.adds {
		ownerKey := strings.ToLower(add.owner.Name)
		if _, aliased := aliases[ownerKey]; !aliased {
			for _, hop := range add.path.Hops {
				toKey := strings.ToLower(hop.ToTable)
				if _, ok := aliases[toKey]; ok {
					continue
				}
				if hop.FromColumn == "" || hop.ToColumn == "" {
					return nil, &MissingJoinColumnsError{FromTable: hop.FromTable, ToTable: hop.ToTable}
				}
				nextAdd++
				alias := fmt.Sprintf("a%d", nextAdd)
				joins = append(joins, joinClause{
					kind:        joinLeft,
					table:       tableRef{table: qualifiedFor(snap, hop.ToTable), alias: alias},
					leftAlias:   aliases[strings.ToLower(hop.FromTable)],
					leftColumn:  hop.FromColumn,
					rightColumn: hop.ToColumn,
				})
				aliases[toKey] = alias
			}
		}
		items = append(items, selectItem{
			alias:  aliases[ownerKey],
			column: add.column,
			as:     add.as,
		})
	}

	var wheres []whereCond
	for _, f := range plan.filters {
		if f.onSource && !plan.useSource {
			continue
		}
		if !f.onSource && !plan.useTarget {
			continue
		}
		wheres = append(wheres, whereCond{
			kind:     condCompare,
			alias:    f.alias,
			column:   f.column,
			operator: f.operator,
			value:    f.value,
		})
	}
	if plan.nullProbe != nil {
		wheres = append(wheres, *plan.nullProbe)
	}

	return &selectQuery{
		distinct:  len(joins) > 0 && !plan.aggregate,
		aggregate: plan.aggregate,
		items:     items,
		from:      tableRef{table: plan.src.QualifiedName(), alias: plan.srcAlias},
		joins:     joins,
		wheres:    wheres,
		limit:     plan.limit,
	}, nil
}

type boundFilter struct {
	alias    string
	column   string // stored spelling
	operator string
	value    string
	onSource bool
}

// bindFilters resolves each filter column to the side that owns it.
// Tables with real column metadata are consulted first; a table without
// metadata accepts any column, so it only claims a filter when no
// metadata-backed table does.
func bindFilters(filters []intent.Filter, src, tgt *graph.Table) ([]boundFilter, error) {
	srcMeta := len(src.Columns) > 0
	tgtMeta := tgt != nil && len(tgt.Columns) > 0
	out := make([]boundFilter, 0, len(filters))
	for _, f := range filters {
		bf := boundFilter{operator: f.Operator, value: f.Value}
		switch {
		case srcMeta && src.HasColumn(f.Column):
			bf.alias, bf.onSource = sourceAlias, true
			bf.column, _ = src.Column(f.Column)
		case tgtMeta && tgt.HasColumn(f.Column):
			bf.alias = targetAlias
			bf.column, _ = tgt.Column(f.Column)
		case !srcMeta:
			bf.alias, bf.onSource = sourceAlias, true
			bf.column = f.Column
		case tgt != nil && !tgtMeta:
			bf.alias = targetAlias
			bf.column = f.Column
		default:
			sugg := nearestColumns(f.Column, src, tgt)
			return nil, &ColumnNotFoundError{Table: src.Name, Column: f.Column, Suggestions: sugg}
		}
		out = append(out, bf)
	}
	return out, nil
}

type boundColumn struct {
	owner  *graph.Table
	column string // stored spelling
	as     string
	path   *graph.Path
}

func bindAdditionalColumns(adds []intent.AdditionalColumn, snap *graph.Snapshot, src, tgt *graph.Table) ([]boundColumn, error) {
	out := make([]boundColumn, 0, len(adds))
	for _, ac := range adds {
		owner, ok := snap.Table(ac.OwningTable)
		if !ok {
			return nil, fmt.Errorf("additional column table %q is not part of graph %q", ac.OwningTable, snap.GraphName)
		}
		stored, ok := owner.Column(ac.Column)
		if !ok {
			return nil, &ColumnNotFoundError{Table: owner.Name, Column: ac.Column, Suggestions: nearestColumns(ac.Column, owner)}
		}
		bc := boundColumn{owner: owner, column: stored, as: ac.Alias, path: ac.JoinPath}
		if owner != src && (tgt == nil || owner != tgt) && bc.path == nil {
			return nil, fmt.Errorf("no join path supplied for additional column %q on %q", ac.Column, owner.Name)
		}
		out = append(out, bc)
	}
	return out, nil
}

func reversePath(p *graph.Path) *graph.Path {
	hops := make([]graph.Hop, 0, len(p.Hops))
	for i := len(p.Hops) - 1; i >= 0; i-- {
		h := p.Hops[i]
		hops = append(hops, graph.Hop{
			FromTable:  h.ToTable,
			FromColumn: h.ToColumn,
			ToTable:    h.FromTable,
			ToColumn:   h.FromColumn,
			Confidence: h.Confidence,
		})
	}
	return &graph.Path{Source: p.Target, Target: p.Source, Hops: hops, Confidence: p.Confidence}
}

func qualifiedFor(snap *graph.Snapshot, name string) string {
	if t, ok := snap.Table(name); ok {
		return t.QualifiedName()
	}
	return name
}

// nearestColumns ranks the available columns of the given tables by
// edit distance to the requested name. Substring hits rank first.
func nearestColumns(column string, tables ...*graph.Table) []string {
	type scored struct {
		name string
		dist int
	}
	lc := strings.ToLower(column)
	seen := map[string]bool{}
	var cands []scored
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, name := range t.ColumnNames() {
			ln := strings.ToLower(name)
			if seen[ln] {
				continue
			}
			seen[ln] = true
			d := levenshtein.DistanceForStrings([]rune(lc), []rune(ln), levenshtein.DefaultOptions)
			if strings.Contains(ln, lc) || strings.Contains(lc, ln) {
				d = 1
			}
			if d > 4 {
				continue
			}
			cands = append(cands, scored{name: name, dist: d})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].name < cands[j].name
	})
	if len(cands) > 3 {
		cands = cands[:3]
	}
	names := make([]string, 0, len(cands))
	for _, c := range cands {
		names = append(names, c.name)
	}
	return names
}
