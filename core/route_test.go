package core

import (
	"testing"

	"github.com/signalsfoundry/assumed-cables/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pathGraph(t *testing.T) *Graph {
	t.Helper()
	g, rejected := NewGraph([]model.Direction{
		dir(1, 1, 2, 100),
		dir(2, 2, 3, 50),
		dir(3, 3, 4, 25),
	})
	require.Empty(t, rejected)
	return g
}

func TestRouteKeyIgnoresWalkingOrder(t *testing.T) {
	g := pathGraph(t)
	r := Route{
		Start: mustNode(g, 4),
		End:   mustNode(g, 1),
		Edges: []Edge{mustEdge(g, 3), mustEdge(g, 2), mustEdge(g, 1)},
	}

	assert.Equal(t, "1,2,3", g.Key(r))
	assert.Equal(t, g.Key(r), g.Key(r.Reverse()))

	c := g.Canonical(r)
	assert.Equal(t, mustNode(g, 1), c.Start)
	assert.Equal(t, mustNode(g, 4), c.End)
}

func TestRouteWellsAndLength(t *testing.T) {
	g := pathGraph(t)
	r := Route{
		Start: mustNode(g, 1),
		End:   mustNode(g, 4),
		Edges: []Edge{mustEdge(g, 1), mustEdge(g, 2), mustEdge(g, 3)},
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, g.WellIDs(g.RouteWells(r)))
	assert.Equal(t, 175.0, g.Length(r))
}

func TestRunsSkipZeroCapacityEdges(t *testing.T) {
	g := pathGraph(t)
	rem := Capacity{1, 0, 2}
	r := Route{
		Start: mustNode(g, 1),
		End:   mustNode(g, 4),
		Edges: []Edge{0, 1, 2},
	}

	runs := g.Runs(r, rem)
	require.Len(t, runs, 2)
	assert.Equal(t, Route{Start: mustNode(g, 1), End: mustNode(g, 2), Edges: []Edge{0}}, runs[0])
	assert.Equal(t, Route{Start: mustNode(g, 3), End: mustNode(g, 4), Edges: []Edge{2}}, runs[1])

	for _, run := range runs {
		assert.Equal(t, 1, rem.Consume(run))
	}
	assert.Equal(t, Capacity{0, 0, 1}, rem)
}
