package railway

import (
	"fmt"
	logger "log"
)

// vertexKey rounds a coordinate pair to 8 decimal places for endpoint
// equality checks between sub-segments.
func vertexKey(c []float64) string {
	return fmt.Sprintf("%.8f,%.8f", c[0], c[1])
}

func squaredDistance(a, b []float64) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx + dy*dy
}

// nearestVertex returns the index of the polyline vertex closest to the
// anchor point, by squared distance in lon/lat space.
func nearestVertex(polyline [][]float64, anchor []float64) int {
	best := -1
	bestDist := 0.0
	for i, vertex := range polyline {
		d := squaredDistance(vertex, anchor)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

func reversed(coords [][]float64) [][]float64 {
	out := make([][]float64, len(coords))
	for i, c := range coords {
		out[len(coords)-1-i] = c
	}
	return out
}

// merger assembles per-line polylines, resolving cross-line sub-segment
// references against lines merged earlier in the recursion.
type merger struct {
	log        *logger.Logger
	shapes     map[string]*railwayShape
	merged     map[string][][]float64
	inProgress map[string]bool
}

func newMerger(log *logger.Logger, shapes []railwayShape) *merger {
	m := &merger{
		log:        log,
		shapes:     make(map[string]*railwayShape, len(shapes)),
		merged:     make(map[string][][]float64),
		inProgress: make(map[string]bool),
	}
	for i := range shapes {
		m.shapes[shapes[i].Id] = &shapes[i]
	}
	return m
}

// polyline returns the merged polyline for lineId, merging on first use.
// Reference cycles resolve to nil for the inner line.
func (m *merger) polyline(lineId string) [][]float64 {
	if merged, ok := m.merged[lineId]; ok {
		return merged
	}
	shape, ok := m.shapes[lineId]
	if !ok {
		return nil
	}
	if m.inProgress[lineId] {
		m.log.Printf("railway: subline reference cycle at %s", lineId)
		return nil
	}
	m.inProgress[lineId] = true
	merged := m.mergeShape(shape)
	delete(m.inProgress, lineId)
	m.merged[lineId] = merged
	return merged
}

// mergeShape emits a single ordered polyline from the shape's sub-segments.
func (m *merger) mergeShape(shape *railwayShape) [][]float64 {
	var segments [][][]float64
	for i := range shape.Sublines {
		coords := m.resolveSubline(shape, &shape.Sublines[i])
		if len(coords) > 0 {
			segments = append(segments, coords)
		}
	}
	if len(segments) == 0 {
		return nil
	}

	order := orderSegments(segments, shape.Loop)
	if len(order) == 0 {
		order = greedyChain(segments)
	}
	return concatSegments(segments, order)
}

// resolveSubline yields the fragment's own coordinates, or for "sub"
// fragments the referenced range of another line's polyline.
func (m *merger) resolveSubline(shape *railwayShape, sub *SubLine) [][]float64 {
	if sub.Type != "sub" {
		return sub.Coords
	}

	ref := m.polyline(sub.Railway)
	if len(ref) == 0 || len(sub.Start) < 2 || len(sub.End) < 2 {
		m.log.Printf("railway: cannot resolve subline of %s referencing %s", shape.Id, sub.Railway)
		return sub.Coords
	}
	start := nearestVertex(ref, sub.Start)
	end := nearestVertex(ref, sub.End)
	if start < 0 || end < 0 {
		return nil
	}
	if end < start {
		return reversed(ref[end : start+1])
	}
	return ref[start : end+1]
}

// orderSegments builds the endpoint graph and walks it depth first. An edge
// runs a→b when a's last vertex equals b's first vertex. Non-loop lines start
// at an in-degree-zero segment; loop lines start at the first. Returns nil
// when no start exists.
func orderSegments(segments [][][]float64, loop bool) []int {
	n := len(segments)
	successors := make([][]int, n)
	indegree := make([]int, n)
	for a := 0; a < n; a++ {
		lastKey := vertexKey(segments[a][len(segments[a])-1])
		for b := 0; b < n; b++ {
			if a == b {
				continue
			}
			if lastKey == vertexKey(segments[b][0]) {
				successors[a] = append(successors[a], b)
				indegree[b]++
			}
		}
	}

	start := -1
	if loop {
		start = 0
	} else {
		for i := 0; i < n; i++ {
			if indegree[i] == 0 {
				start = i
				break
			}
		}
	}
	if start < 0 {
		return nil
	}

	visited := make([]bool, n)
	var order []int
	var visit func(int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		order = append(order, i)
		for _, next := range successors[i] {
			visit(next)
		}
	}
	visit(start)

	// Disjoint fragments go at the end in source order.
	for i := 0; i < n; i++ {
		if !visited[i] {
			order = append(order, i)
		}
	}
	return order
}

// greedyChain is the fallback ordering: starting from segment 0, repeatedly
// attach the unused segment whose nearer endpoint is closest to the current
// tail. Orientation is fixed later during concatenation.
func greedyChain(segments [][][]float64) []int {
	n := len(segments)
	used := make([]bool, n)
	used[0] = true
	order := []int{0}
	tail := segments[0][len(segments[0])-1]

	for range segments[1:] {
		best := -1
		bestDist := 0.0
		bestTail := tail
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			first := segments[i][0]
			last := segments[i][len(segments[i])-1]
			d, candidateTail := squaredDistance(tail, first), last
			if dLast := squaredDistance(tail, last); dLast < d {
				d, candidateTail = dLast, first
			}
			if best < 0 || d < bestDist {
				best, bestDist, bestTail = i, d, candidateTail
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		order = append(order, best)
		tail = bestTail
	}
	return order
}

// concatSegments joins the ordered segments. Each appended segment is
// oriented so its nearer endpoint faces the merged path's tail, and a first
// vertex repeating the tail is dropped.
func concatSegments(segments [][][]float64, order []int) [][]float64 {
	var merged [][]float64
	for _, idx := range order {
		coords := segments[idx]
		if len(coords) == 0 {
			continue
		}
		if len(merged) > 0 {
			tail := merged[len(merged)-1]
			first := coords[0]
			last := coords[len(coords)-1]
			if squaredDistance(tail, last) < squaredDistance(tail, first) {
				coords = reversed(coords)
			}
			if vertexKey(merged[len(merged)-1]) == vertexKey(coords[0]) {
				coords = coords[1:]
			}
		}
		merged = append(merged, coords...)
	}
	return merged
}
