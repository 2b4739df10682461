package synth

import "fmt"

// DefaultMaxRoutes bounds the number of routes one strategy may emit.
const DefaultMaxRoutes = 20000

// Policy holds the tunable weights shared by all strategies.
type Policy struct {
	// LambdaTag is the score, in metres, added per tag-bearing well on a route.
	LambdaTag float64
	// MuBottleneck is the score, in metres, added per unit of the smallest
	// remaining capacity along a route.
	MuBottleneck float64

	// TagEdgeBonus is added to a spanning-tree edge weight for each tag-bearing
	// endpoint when building tag-biased candidates.
	TagEdgeBonus float64
	// CapacityEdgeBonus is added to a spanning-tree edge weight when the edge
	// still has capacity. Capacity-biased candidates multiply it by the
	// remaining units instead.
	CapacityEdgeBonus float64

	MaxRoutes int
}

// DefaultPolicy returns the stock weights.
func DefaultPolicy() Policy {
	return Policy{
		LambdaTag:         25,
		MuBottleneck:      50,
		TagEdgeBonus:      10,
		CapacityEdgeBonus: 5,
		MaxRoutes:         DefaultMaxRoutes,
	}
}

// Validate checks that the weights are usable.
func (p Policy) Validate() error {
	switch {
	case p.LambdaTag < 0:
		return fmt.Errorf("lambda_tag must be non-negative, got %v", p.LambdaTag)
	case p.MuBottleneck < 0:
		return fmt.Errorf("mu_bottleneck must be non-negative, got %v", p.MuBottleneck)
	case p.TagEdgeBonus < 0:
		return fmt.Errorf("tag_edge_bonus must be non-negative, got %v", p.TagEdgeBonus)
	case p.CapacityEdgeBonus < 0:
		return fmt.Errorf("capacity_edge_bonus must be non-negative, got %v", p.CapacityEdgeBonus)
	case p.MaxRoutes <= 0:
		return fmt.Errorf("max_routes must be positive, got %d", p.MaxRoutes)
	}
	return nil
}

func (p Policy) maxRoutes() int {
	if p.MaxRoutes <= 0 {
		return DefaultMaxRoutes
	}
	return p.MaxRoutes
}

// Params describes the policy for persistence next to a scenario.
func (p Policy) Params() map[string]any {
	return map[string]any{
		"lambda_tag":          p.LambdaTag,
		"mu_bottleneck":       p.MuBottleneck,
		"tag_edge_bonus":      p.TagEdgeBonus,
		"capacity_edge_bonus": p.CapacityEdgeBonus,
		"max_routes":          p.maxRoutes(),
	}
}
