package core

import "strconv"

// Route is an ordered edge sequence walked from Start to End.
type Route struct {
	Start Node
	End   Node
	Edges []Edge
}

// Length sums the stored direction lengths of the route.
func (g *Graph) Length(r Route) float64 {
	total := 0.0
	for _, e := range r.Edges {
		total += g.Edges[e].LengthM
	}
	return total
}

// RouteWells lists the wells a route passes through in walk order, each once.
func (g *Graph) RouteWells(r Route) []Node {
	seen := make(map[Node]struct{}, len(r.Edges)+1)
	out := make([]Node, 0, len(r.Edges)+1)
	add := func(n Node) {
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	cur := r.Start
	add(cur)
	for _, e := range r.Edges {
		cur = g.Advance(e, cur)
		add(cur)
	}
	return out
}

// Reverse walks the same edges from the other end.
func (r Route) Reverse() Route {
	edges := make([]Edge, len(r.Edges))
	for i, e := range r.Edges {
		edges[len(r.Edges)-1-i] = e
	}
	return Route{Start: r.End, End: r.Start, Edges: edges}
}

// Canonical orients a route so that its direction id sequence is the
// lexicographically smaller of the two walking orders. Two routes over the
// same undirected edge sequence share one canonical form.
func (g *Graph) Canonical(r Route) Route {
	n := len(r.Edges)
	for i := 0; i < n; i++ {
		fwd := g.Edges[r.Edges[i]].ID
		bwd := g.Edges[r.Edges[n-1-i]].ID
		if fwd < bwd {
			return r
		}
		if fwd > bwd {
			return r.Reverse()
		}
	}
	return r
}

// Key identifies a route by its canonical direction sequence.
func (g *Graph) Key(r Route) string {
	c := g.Canonical(r)
	buf := make([]byte, 0, len(c.Edges)*8)
	for i, e := range c.Edges {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, g.Edges[e].ID, 10)
	}
	return string(buf)
}

// Runs splits a route into its maximal contiguous stretches of edges that
// still have capacity. Zero-capacity edges only connect stretches and never
// end up in the result.
func (g *Graph) Runs(r Route, rem Capacity) []Route {
	var (
		out []Route
		run *Route
	)
	cur := r.Start
	for _, e := range r.Edges {
		next := g.Advance(e, cur)
		if rem[e] > 0 {
			if run == nil {
				run = &Route{Start: cur}
			}
			run.Edges = append(run.Edges, e)
			run.End = next
		} else if run != nil {
			out = append(out, *run)
			run = nil
		}
		cur = next
	}
	if run != nil {
		out = append(out, *run)
	}
	return out
}

// Consume takes one unit from every edge of the route that still has
// capacity and returns how many units were taken.
func (c Capacity) Consume(r Route) int {
	taken := 0
	for _, e := range r.Edges {
		if c.Take(e) {
			taken++
		}
	}
	return taken
}
