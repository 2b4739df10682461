package synth

import (
	"context"

	"github.com/signalsfoundry/assumed-cables/core"
)

// IterativeExtraction is variant 2. Each round recomputes the components of
// the capacity-only subgraph, scores plain, tag-biased and capacity-biased
// diameter candidates of every component, and routes one cable along the
// best one. Ties keep the first candidate found.
type IterativeExtraction struct {
	Policy Policy
}

func (s *IterativeExtraction) Variant() int { return 2 }
func (s *IterativeExtraction) Name() string { return "iterative_extraction" }

func (s *IterativeExtraction) Synthesize(ctx context.Context, net *core.Network, rem core.Capacity) ([]core.Route, error) {
	g := net.Graph
	limit := s.Policy.maxRoutes()
	weights := []core.EdgeWeight{
		s.Policy.plainWeight(net, rem),
		s.Policy.tagWeight(net, rem),
		s.Policy.capacityWeight(net, rem),
	}

	var out []core.Route
	for rem.Any() && len(out) < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			best      core.Route
			bestScore float64
			found     bool
		)
		for _, comp := range net.Components(core.CapacityEdges, rem) {
			for _, w := range weights {
				for _, p := range g.LongestTreePaths(comp.Edges, w) {
					score, ok := s.Policy.Score(net, p, rem)
					if !ok {
						continue
					}
					if !found || score > bestScore {
						best, bestScore, found = p, score, true
					}
				}
			}
		}
		if !found {
			break
		}
		if rem.Consume(best) == 0 {
			break
		}
		out = append(out, g.Canonical(best))
	}
	return out, nil
}
