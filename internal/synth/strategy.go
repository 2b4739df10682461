// Package synth turns remaining direction capacity into assumed cable routes.
// Each variant is a RouteStrategy; all of them drain capacity one unit per
// route edge and never touch an edge whose capacity is already zero.
package synth

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/assumed-cables/core"
)

// ErrUnknownVariant is returned for a variant number with no strategy.
var ErrUnknownVariant = errors.New("unknown variant")

// Variants lists the supported variant numbers in build order.
var Variants = []int{1, 2, 3}

// RouteStrategy synthesizes routes for one scenario. rem is the strategy's
// own copy of the remaining capacity and is drained in place. Implementations
// stop once Policy.MaxRoutes routes exist without reporting an error.
type RouteStrategy interface {
	Variant() int
	Name() string
	Synthesize(ctx context.Context, net *core.Network, rem core.Capacity) ([]core.Route, error)
}

// ForVariant returns the strategy registered for a variant number.
func ForVariant(variant int, p Policy) (RouteStrategy, error) {
	switch variant {
	case 1:
		return &LongestPathGreedy{Policy: p}, nil
	case 2:
		return &IterativeExtraction{Policy: p}, nil
	case 3:
		return &TrailDecomposition{Policy: p}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVariant, variant)
	}
}

// plainWeight prefers long edges and slightly prefers edges with capacity.
func (p Policy) plainWeight(net *core.Network, rem core.Capacity) core.EdgeWeight {
	g := net.Graph
	return func(e core.Edge) float64 {
		w := g.Edges[e].LengthM
		if rem[e] > 0 {
			w += p.CapacityEdgeBonus
		}
		return w
	}
}

// tagWeight adds a bonus per tag-bearing endpoint on top of plainWeight.
func (p Policy) tagWeight(net *core.Network, rem core.Capacity) core.EdgeWeight {
	g := net.Graph
	plain := p.plainWeight(net, rem)
	return func(e core.Edge) float64 {
		w := plain(e)
		d := &g.Edges[e]
		if net.TagPresence[d.A] > 0 {
			w += p.TagEdgeBonus
		}
		if net.TagPresence[d.B] > 0 {
			w += p.TagEdgeBonus
		}
		return w
	}
}

// capacityWeight favours edges with many remaining units.
func (p Policy) capacityWeight(net *core.Network, rem core.Capacity) core.EdgeWeight {
	g := net.Graph
	return func(e core.Edge) float64 {
		return g.Edges[e].LengthM + p.CapacityEdgeBonus*float64(rem[e])
	}
}

// Score rates a candidate as its length plus a bonus per tag-bearing well
// and a bonus for its bottleneck capacity. A route with no remaining
// capacity on any edge is not feasible.
func (p Policy) Score(net *core.Network, r core.Route, rem core.Capacity) (float64, bool) {
	g := net.Graph
	length := 0.0
	minCap := 0
	for _, e := range r.Edges {
		length += g.Edges[e].LengthM
		if c := rem[e]; c > 0 && (minCap == 0 || c < minCap) {
			minCap = c
		}
	}
	if minCap == 0 {
		return 0, false
	}
	tagHits := 0
	for _, n := range g.RouteWells(r) {
		if net.TagPresence[n] > 0 {
			tagHits++
		}
	}
	return length + p.LambdaTag*float64(tagHits) + p.MuBottleneck*float64(minCap), true
}
