package core

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/assumed-cables/model"
)

// wellPos places well n on the equator, 0.001 degrees apart per id.
func wellPos(n int64) orb.Point {
	return orb.Point{float64(n) * 0.001, 0}
}

func dir(id, a, b int64, length float64) model.Direction {
	return model.Direction{
		ID:          id,
		Number:      fmt.Sprintf("D-%d", id),
		StartWellID: a,
		EndWellID:   b,
		LengthM:     length,
		Coords:      orb.LineString{wellPos(a), wellPos(b)},
	}
}

func caps(pairs ...int) []model.DirectionCapacity {
	out := make([]model.DirectionCapacity, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.DirectionCapacity{DirectionID: int64(pairs[i]), Unaccounted: pairs[i+1]})
	}
	return out
}

func mustEdge(g *Graph, id int64) Edge {
	e, ok := g.EdgeOf(id)
	if !ok {
		panic(fmt.Sprintf("direction %d not in graph", id))
	}
	return e
}

func mustNode(g *Graph, id int64) Node {
	n, ok := g.NodeOf(id)
	if !ok {
		panic(fmt.Sprintf("well %d not in graph", id))
	}
	return n
}
