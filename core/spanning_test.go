package core

import (
	"testing"

	"github.com/signalsfoundry/assumed-cables/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allEdges(g *Graph) []Edge {
	out := make([]Edge, len(g.Edges))
	for i := range out {
		out[i] = Edge(i)
	}
	return out
}

func TestLongestTreePaths_DropsLightestCycleEdge(t *testing.T) {
	g, _ := NewGraph([]model.Direction{
		dir(1, 1, 2, 100),
		dir(2, 2, 3, 50),
		dir(3, 1, 3, 10),
	})

	paths := g.LongestTreePaths(allEdges(g), g.LengthWeight())
	require.Len(t, paths, 1)
	assert.Equal(t, "1,2", g.Key(paths[0]))
	assert.Equal(t, 150.0, g.Length(paths[0]))
	assert.ElementsMatch(t, []Node{mustNode(g, 1), mustNode(g, 3)}, []Node{paths[0].Start, paths[0].End})
}

func TestLongestTreePaths_PicksDiameterOfStar(t *testing.T) {
	g, _ := NewGraph([]model.Direction{
		dir(1, 1, 2, 10),
		dir(2, 1, 3, 40),
		dir(3, 1, 4, 30),
		dir(4, 1, 5, 5),
	})

	paths := g.LongestTreePaths(allEdges(g), g.LengthWeight())
	require.Len(t, paths, 1)
	assert.Equal(t, 70.0, g.Length(paths[0]))
	assert.Equal(t, "2,3", g.Key(paths[0]))
}

func TestLongestTreePaths_OnePathPerTree(t *testing.T) {
	g, _ := NewGraph([]model.Direction{
		dir(1, 1, 2, 100),
		dir(2, 3, 4, 50),
	})

	paths := g.LongestTreePaths(allEdges(g), g.LengthWeight())
	require.Len(t, paths, 2)
	assert.Equal(t, 100.0, g.Length(paths[0]))
	assert.Equal(t, 50.0, g.Length(paths[1]))
}

func TestLongestTreePaths_WeightSteersTreeButNotLength(t *testing.T) {
	g, _ := NewGraph([]model.Direction{
		dir(1, 1, 2, 100),
		dir(2, 2, 3, 50),
		dir(3, 1, 3, 60),
	})
	heavy := mustEdge(g, 2)
	weight := func(e Edge) float64 {
		if e == heavy {
			return 1000
		}
		return g.Edges[e].LengthM
	}

	paths := g.LongestTreePaths(allEdges(g), weight)
	require.Len(t, paths, 1)
	// Tree keeps 2 and 1; the diameter is 3-2-1 by length.
	assert.Equal(t, "1,2", g.Key(paths[0]))
	assert.Equal(t, 150.0, g.Length(paths[0]))
}

func TestLongestTreePaths_Empty(t *testing.T) {
	g, _ := NewGraph(nil)
	assert.Nil(t, g.LongestTreePaths(nil, g.LengthWeight()))
}
