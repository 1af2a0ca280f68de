package graph

import "fmt"

// Hop is one join step along a path. The join condition is
// FromTable.FromColumn = ToTable.ToColumn.
type Hop struct {
	FromTable  string
	FromColumn string
	ToTable    string
	ToColumn   string
	Confidence float64
}

// Path is a join path between two tables. Confidence is the product of
// the hop confidences; an empty path has confidence 1.
type Path struct {
	Source     string
	Target     string
	Hops       []Hop
	Confidence float64
}

// NoPathError reports that no join path connects two tables.
type NoPathError struct {
	Graph  string
	Source string
	Target string
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("no join path from %q to %q in graph %q", e.Source, e.Target, e.Graph)
}

// FindPath returns the shortest join path between two tables. Among paths
// of equal length the one with the highest confidence product wins; ties
// break on table name order so results are stable. A table joined to
// itself yields an empty path with confidence 1.
func FindPath(s *Snapshot, source, target string) (*Path, error) {
	src, okSrc := s.Table(source)
	dst, okDst := s.Table(target)
	if !okSrc || !okDst {
		return nil, &NoPathError{Graph: s.GraphName, Source: source, Target: target}
	}

	if src.index == dst.index {
		return &Path{Source: src.Name, Target: dst.Name, Confidence: 1}, nil
	}

	n := len(s.tables)
	dist := make([]int, n)
	for i := range dist {
		dist[i] = -1
	}
	dist[src.index] = 0
	queue := []int{src.index}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, e := range s.adjacency[u] {
			if dist[e.To] == -1 {
				dist[e.To] = dist[u] + 1
				queue = append(queue, e.To)
			}
		}
	}

	if dist[dst.index] == -1 {
		return nil, &NoPathError{Graph: s.GraphName, Source: src.Name, Target: dst.Name}
	}

	// Maximize the confidence product layer by layer over the BFS
	// distances. Vertices and edges are visited in sorted order, so the
	// first of several equally confident parents wins every time.
	maxDist := dist[dst.index]
	layers := make([][]int, maxDist+1)
	for v := 0; v < n; v++ {
		if d := dist[v]; d >= 0 && d <= maxDist {
			layers[d] = append(layers[d], v)
		}
	}

	best := make([]float64, n)
	parent := make([]Edge, n)
	hasParent := make([]bool, n)
	best[src.index] = 1

	for d := 0; d < maxDist; d++ {
		for _, u := range layers[d] {
			for _, e := range s.adjacency[u] {
				if dist[e.To] != d+1 {
					continue
				}
				if cand := best[u] * e.Confidence; cand > best[e.To] {
					best[e.To] = cand
					parent[e.To] = e
					hasParent[e.To] = true
				}
			}
		}
	}

	hops := make([]Hop, 0, maxDist)
	for v := dst.index; v != src.index; {
		if !hasParent[v] {
			return nil, &NoPathError{Graph: s.GraphName, Source: src.Name, Target: dst.Name}
		}
		e := parent[v]
		hops = append(hops, Hop{
			FromTable:  s.tables[e.From].Name,
			FromColumn: e.FromColumn,
			ToTable:    s.tables[e.To].Name,
			ToColumn:   e.ToColumn,
			Confidence: e.Confidence,
		})
		v = e.From
	}
	for i, j := 0, len(hops)-1; i < j; i, j = i+1, j-1 {
		hops[i], hops[j] = hops[j], hops[i]
	}

	return &Path{Source: src.Name, Target: dst.Name, Hops: hops, Confidence: best[dst.index]}, nil
}

// JoinColumns returns the column pair of each hop, source side first.
func (p *Path) JoinColumns() [][2]string {
	pairs := make([][2]string, 0, len(p.Hops))
	for _, h := range p.Hops {
		pairs = append(pairs, [2]string{h.FromColumn, h.ToColumn})
	}
	return pairs
}

// TableNames returns the chain of table names along the path, starting
// at the source.
func (p *Path) TableNames() []string {
	names := []string{p.Source}
	for _, h := range p.Hops {
		names = append(names, h.ToTable)
	}
	return names
}
