package synth

import (
	"context"
	"sort"

	"github.com/signalsfoundry/assumed-cables/core"
)

// TrailDecomposition is variant 3. Remaining capacity is treated as parallel
// edges; each route starts at the first well with odd remaining degree (or
// any positive degree) and greedily follows the longest incident edge with
// capacity until stuck. A direction appears at most once per route.
//
// Wells are visited in geographic order (longitude, latitude, id) when
// picking a start; edge ties go to the lower direction id.
type TrailDecomposition struct {
	Policy Policy
}

func (s *TrailDecomposition) Variant() int { return 3 }
func (s *TrailDecomposition) Name() string { return "trail_decomposition" }

func (s *TrailDecomposition) Synthesize(ctx context.Context, net *core.Network, rem core.Capacity) ([]core.Route, error) {
	g := net.Graph
	limit := s.Policy.maxRoutes()

	degree := make([]int, len(g.Wells))
	for e, c := range rem {
		if c <= 0 {
			continue
		}
		d := &g.Edges[e]
		degree[d.A] += c
		degree[d.B] += c
	}
	order := make([]core.Node, 0, len(g.Wells))
	for n := range g.Wells {
		if degree[n] > 0 {
			order = append(order, core.Node(n))
		}
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := &g.Wells[order[i]], &g.Wells[order[j]]
		if a.Pos.Lon() != b.Pos.Lon() {
			return a.Pos.Lon() < b.Pos.Lon()
		}
		if a.Pos.Lat() != b.Pos.Lat() {
			return a.Pos.Lat() < b.Pos.Lat()
		}
		return a.ID < b.ID
	})

	var out []core.Route
	used := make(map[core.Edge]struct{})
	for len(out) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Degrees only shrink, so the drained prefix of order can be dropped.
		for len(order) > 0 && degree[order[0]] <= 0 {
			order = order[1:]
		}
		start, ok := pickStart(order, degree)
		if !ok {
			break
		}

		clear(used)
		route := core.Route{Start: start}
		cur := start
		for {
			next, ok := longestUsable(g, cur, rem, used)
			if !ok {
				break
			}
			rem.Take(next)
			d := &g.Edges[next]
			degree[d.A]--
			degree[d.B]--
			used[next] = struct{}{}
			route.Edges = append(route.Edges, next)
			cur = g.Advance(next, cur)
		}
		if len(route.Edges) == 0 {
			break
		}
		route.End = cur
		out = append(out, route)
	}
	return out, nil
}

func pickStart(order []core.Node, degree []int) (core.Node, bool) {
	var (
		first core.Node
		found bool
	)
	for _, n := range order {
		deg := degree[n]
		if deg <= 0 {
			continue
		}
		if deg%2 == 1 {
			return n, true
		}
		if !found {
			first, found = n, true
		}
	}
	return first, found
}

func longestUsable(g *core.Graph, at core.Node, rem core.Capacity, used map[core.Edge]struct{}) (core.Edge, bool) {
	var (
		best    core.Edge
		bestLen = -1.0
	)
	for _, e := range g.Wells[at].Incident {
		if rem[e] <= 0 {
			continue
		}
		if _, dup := used[e]; dup {
			continue
		}
		if l := g.Edges[e].LengthM; l > bestLen {
			best, bestLen = e, l
		}
	}
	return best, bestLen >= 0
}
