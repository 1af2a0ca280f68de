package alias

import (
	"fmt"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"recon-engine/internal/graph"
)

const (
	// matchThreshold is the minimum score a fuzzy candidate must reach.
	matchThreshold = 0.6
	// ambiguityWindow is the maximum lead under which the top two
	// candidates are considered indistinguishable.
	ambiguityWindow = 0.05
)

// Match is a resolved table with its match score.
type Match struct {
	Table string  `json:"table"`
	Score float64 `json:"score"`
}

// NoMatchError reports that no table scored above the match threshold.
// Candidates carries the closest rejects for diagnostics.
type NoMatchError struct {
	Name       string
	Graph      string
	Candidates []Match
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no table in graph %q matches %q", e.Graph, e.Name)
}

// AmbiguousMatchError reports that the top two candidates scored within
// the ambiguity window of each other.
type AmbiguousMatchError struct {
	Name       string
	Graph      string
	Candidates []Match
}

func (e *AmbiguousMatchError) Error() string {
	names := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		names = append(names, c.Table)
	}
	return fmt.Sprintf("name %q in graph %q is ambiguous between %s", e.Name, e.Graph, strings.Join(names, ", "))
}

type candidate struct {
	table  string
	norm   string
	tokens map[string]struct{}
}

// Resolver maps free-text table mentions onto the canonical tables of one
// graph snapshot. Build one per snapshot; it is safe for concurrent use
// once built.
type Resolver struct {
	graphName  string
	canonical  map[string]string
	exact      map[string][]string
	candidates []candidate
}

// NewResolver builds the alias index over the snapshot's tables, their
// names, and their registered aliases.
func NewResolver(s *graph.Snapshot) *Resolver {
	r := &Resolver{
		graphName: s.GraphName,
		canonical: make(map[string]string),
		exact:     make(map[string][]string),
	}
	for _, t := range s.Tables() {
		norm := normalize(t.Name)
		r.canonical[norm] = t.Name
		r.canonical[fold(norm)] = t.Name
		r.index(t.Name, norm)
		r.candidates = append(r.candidates, candidate{table: t.Name, norm: norm, tokens: tokenSet(norm)})
		for _, a := range t.Aliases {
			an := normalize(a)
			if an == "" {
				continue
			}
			r.index(t.Name, an)
			r.candidates = append(r.candidates, candidate{table: t.Name, norm: an, tokens: tokenSet(an)})
		}
	}
	return r
}

func (r *Resolver) index(table, norm string) {
	for _, key := range []string{norm, fold(norm)} {
		found := false
		for _, t := range r.exact[key] {
			if t == table {
				found = true
				break
			}
		}
		if !found {
			r.exact[key] = append(r.exact[key], table)
		}
	}
}

// Resolve maps a free-text mention to a canonical table. A canonical name
// always resolves to itself with score 1. Exact alias hits score 1;
// otherwise candidates are scored fuzzily, failing with NoMatchError
// below the threshold and AmbiguousMatchError when the top two are
// closer than the ambiguity window.
func (r *Resolver) Resolve(name string) (*Match, error) {
	norm := normalize(name)
	if norm == "" {
		return nil, &NoMatchError{Name: name, Graph: r.graphName}
	}
	folded := fold(norm)

	// Canonical table names win outright, even when another table
	// carries the same text as an alias.
	if table, ok := r.canonical[norm]; ok {
		return &Match{Table: table, Score: 1}, nil
	}
	if table, ok := r.canonical[folded]; ok {
		return &Match{Table: table, Score: 1}, nil
	}

	// Exact alias-index hits.
	hits := r.exact[norm]
	if len(hits) == 0 {
		hits = r.exact[folded]
	}
	if len(hits) == 1 {
		return &Match{Table: hits[0], Score: 1}, nil
	}
	if len(hits) > 1 {
		sorted := append([]string(nil), hits...)
		sort.Slice(sorted, func(i, j int) bool { return lessSpecific(sorted[j], sorted[i]) })
		return nil, &AmbiguousMatchError{
			Name:  name,
			Graph: r.graphName,
			Candidates: []Match{
				{Table: sorted[0], Score: 1},
				{Table: sorted[1], Score: 1},
			},
		}
	}

	return r.resolveFuzzy(name, norm)
}

func (r *Resolver) resolveFuzzy(name, norm string) (*Match, error) {
	queryTokens := tokenSet(norm)
	bestPerTable := make(map[string]float64)
	for _, c := range r.candidates {
		s := score(norm, queryTokens, c)
		if s > bestPerTable[c.table] {
			bestPerTable[c.table] = s
		}
	}

	ranked := make([]Match, 0, len(bestPerTable))
	for table, s := range bestPerTable {
		ranked = append(ranked, Match{Table: table, Score: s})
	}
	// Ties prefer the shorter, more canonical table name.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return lessSpecific(ranked[j].Table, ranked[i].Table)
	})

	if len(ranked) == 0 || ranked[0].Score < matchThreshold {
		return nil, &NoMatchError{Name: name, Graph: r.graphName, Candidates: top(ranked, 3)}
	}

	if len(ranked) > 1 && ranked[1].Score >= matchThreshold && ranked[0].Score-ranked[1].Score < ambiguityWindow {
		return nil, &AmbiguousMatchError{Name: name, Graph: r.graphName, Candidates: top(ranked, 2)}
	}

	m := ranked[0]
	return &m, nil
}

// lessSpecific reports whether a is a less specific table name than b,
// meaning b should rank first.
func lessSpecific(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

// score rates how well the query matches one candidate string: exact 1.0,
// containment 0.8, otherwise a blend of token overlap and edit distance.
func score(queryNorm string, queryTokens map[string]struct{}, c candidate) float64 {
	if queryNorm == c.norm || fold(queryNorm) == fold(c.norm) {
		return 1.0
	}
	if strings.Contains(c.norm, queryNorm) || strings.Contains(queryNorm, c.norm) {
		return 0.8
	}

	overlap := jaccard(queryTokens, c.tokens)

	maxLen := len([]rune(queryNorm))
	if l := len([]rune(c.norm)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 0
	}
	distance := levenshtein.DistanceForStrings([]rune(queryNorm), []rune(c.norm), levenshtein.DefaultOptions)
	levSim := 1.0 - float64(distance)/float64(maxLen)
	if levSim < 0 {
		levSim = 0
	}

	return 0.5*overlap + 0.5*levSim
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// normalize lowers the mention and collapses separators to single spaces.
func normalize(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// fold reduces every token of a normalized mention to a rough singular
// form so plural and singular spellings index identically.
func fold(norm string) string {
	tokens := strings.Fields(norm)
	for i, t := range tokens {
		tokens[i] = singular(t)
	}
	return strings.Join(tokens, " ")
}

func singular(token string) string {
	switch {
	case len(token) > 3 && strings.HasSuffix(token, "ies"):
		return token[:len(token)-3] + "y"
	case len(token) > 3 && strings.HasSuffix(token, "ses"):
		return token[:len(token)-2]
	case len(token) > 2 && strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss"):
		return token[:len(token)-1]
	default:
		return token
	}
}

func tokenSet(norm string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(norm) {
		set[t] = struct{}{}
	}
	return set
}

func top(ms []Match, n int) []Match {
	if len(ms) < n {
		n = len(ms)
	}
	return ms[:n]
}
