package synth

import (
	"context"
	"sort"

	"github.com/signalsfoundry/assumed-cables/core"
)

// LongestPathGreedy is variant 1. It collects the diameter paths of maximum
// spanning forests over every component that still has capacity, then walks
// the candidates longest first, routing one cable along each stretch of a
// candidate that still has capacity. Passes repeat until no candidate
// progresses; leftover units become single-edge routes.
type LongestPathGreedy struct {
	Policy Policy
}

func (s *LongestPathGreedy) Variant() int { return 1 }
func (s *LongestPathGreedy) Name() string { return "longest_path_greedy" }

func (s *LongestPathGreedy) Synthesize(ctx context.Context, net *core.Network, rem core.Capacity) ([]core.Route, error) {
	g := net.Graph
	limit := s.Policy.maxRoutes()
	cands := s.candidates(net, rem)

	var out []core.Route
	for rem.Any() && len(out) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress := false
		for _, c := range cands {
			for _, run := range g.Runs(c, rem) {
				if len(out) >= limit {
					return out, nil
				}
				rem.Consume(run)
				out = append(out, run)
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	for e := range g.Edges {
		edge := core.Edge(e)
		for rem[edge] > 0 && len(out) < limit {
			rem.Take(edge)
			d := &g.Edges[edge]
			out = append(out, core.Route{Start: d.A, End: d.B, Edges: []core.Edge{edge}})
		}
	}
	return out, nil
}

// candidates builds the deduplicated candidate pool ordered by length
// descending, then by canonical key.
func (s *LongestPathGreedy) candidates(net *core.Network, rem core.Capacity) []core.Route {
	g := net.Graph
	weights := []core.EdgeWeight{
		s.Policy.plainWeight(net, rem),
		s.Policy.tagWeight(net, rem),
	}

	type candidate struct {
		route  core.Route
		key    string
		length float64
	}
	seen := make(map[string]struct{})
	var pool []candidate
	for _, comp := range net.Components(core.AllEdges, rem) {
		if len(comp.CapacityEdges) == 0 {
			continue
		}
		for _, edges := range [][]core.Edge{comp.Edges, comp.CapacityEdges} {
			for _, w := range weights {
				for _, p := range g.LongestTreePaths(edges, w) {
					key := g.Key(p)
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					pool = append(pool, candidate{route: g.Canonical(p), key: key, length: g.Length(p)})
				}
			}
		}
	}

	sort.Slice(pool, func(i, j int) bool {
		if pool[i].length != pool[j].length {
			return pool[i].length > pool[j].length
		}
		return pool[i].key < pool[j].key
	})
	out := make([]core.Route, len(pool))
	for i, c := range pool {
		out[i] = c.route
	}
	return out
}
