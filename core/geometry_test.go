package core

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/assumed-cables/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStitch_ReversesAndDeduplicates(t *testing.T) {
	mid := orb.Point{0.0015, 0.0005}
	d1 := dir(1, 1, 2, 100.004)
	d2 := dir(2, 3, 2, 50.003)
	d2.Coords = orb.LineString{wellPos(3), mid, wellPos(2)}

	g, rejected := NewGraph([]model.Direction{d1, d2})
	require.Empty(t, rejected)

	r := Route{Start: mustNode(g, 1), End: mustNode(g, 3), Edges: []Edge{mustEdge(g, 1), mustEdge(g, 2)}}
	line, length := g.Stitch(r)

	assert.Equal(t, orb.LineString{wellPos(1), wellPos(2), mid, wellPos(3)}, line)
	assert.Equal(t, 150.01, length)
}

func TestStitch_FromOppositeEnd(t *testing.T) {
	g, _ := NewGraph([]model.Direction{dir(1, 1, 2, 100), dir(2, 2, 3, 50)})
	r := Route{Start: mustNode(g, 3), End: mustNode(g, 1), Edges: []Edge{mustEdge(g, 2), mustEdge(g, 1)}}

	line, length := g.Stitch(r)
	assert.Equal(t, orb.LineString{wellPos(3), wellPos(2), wellPos(1)}, line)
	assert.Equal(t, 150.0, length)
}

func TestStitch_KeepsInexactJoins(t *testing.T) {
	d1 := dir(1, 1, 2, 10)
	d2 := dir(2, 2, 3, 10)
	d2.Coords = orb.LineString{{0.0020000001, 0}, wellPos(3)}
	g, _ := NewGraph([]model.Direction{d1, d2})

	line, _ := g.Stitch(Route{Start: mustNode(g, 1), End: mustNode(g, 3), Edges: []Edge{0, 1}})
	assert.Len(t, line, 4)
}

func TestStitch_EmptyRoute(t *testing.T) {
	g, _ := NewGraph([]model.Direction{dir(1, 1, 2, 10)})
	line, length := g.Stitch(Route{Start: 0, End: 0})
	assert.Nil(t, line)
	assert.Zero(t, length)
}
