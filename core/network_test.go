package core

import (
	"testing"

	"github.com/signalsfoundry/assumed-cables/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNetwork(t *testing.T) {
	net := BuildNetwork(model.Dataset{
		Directions: []model.Direction{dir(1, 1, 2, 100), dir(2, 2, 3, 50)},
		Capacities: caps(1, 2, 2, 0, 99, 5),
		Tags: []model.WellOwnerCount{
			{WellID: 1, OwnerID: 10, Count: 3},
			{WellID: 2, OwnerID: 11, Count: 1},
			{WellID: 42, OwnerID: 10, Count: 7},
		},
		DuctCablesByWell: []model.WellOwnerCount{
			{WellID: 1, OwnerID: 10, Count: 1},
			{WellID: 2, OwnerID: 11, Count: 1},
		},
		DuctCablesByDirection: []model.DirectionOwnerCount{
			{DirectionID: 2, OwnerID: 11, Count: 2},
			{DirectionID: 2, OwnerID: 11, Count: 1},
			{DirectionID: 2, OwnerID: 12, Count: 0},
		},
	})

	g := net.Graph
	e1, e2 := mustEdge(g, 1), mustEdge(g, 2)
	n1, n2 := mustNode(g, 1), mustNode(g, 2)

	assert.Equal(t, 2, net.Capacity[e1])
	assert.Equal(t, 0, net.Capacity[e2])
	assert.Equal(t, 2, net.TotalUnaccounted, "capacity outside the graph is ignored")

	assert.Equal(t, map[int64]int{10: 2}, net.Supply[n1])
	assert.Nil(t, net.Supply[n2], "fully explained tags leave no supply")
	assert.Equal(t, 2, net.TagPresence[n1])
	assert.Equal(t, 0, net.TagPresence[n2])

	assert.Nil(t, net.Votes[e1])
	assert.Equal(t, map[int64]int{11: 3}, net.Votes[e2])
}

func TestSupplyCloneIsDeep(t *testing.T) {
	s := Supply{{10: 1}, nil}
	cp := s.Clone()
	cp[0][10] = 0
	require.Nil(t, cp[1])
	assert.Equal(t, 1, s[0][10])
}

func TestCapacityTakeNeverGoesNegative(t *testing.T) {
	c := Capacity{1, 0}
	assert.True(t, c.Take(0))
	assert.False(t, c.Take(0))
	assert.False(t, c.Take(1))
	assert.Equal(t, Capacity{0, 0}, c)
	assert.False(t, c.Any())
}

func TestSortedOwners(t *testing.T) {
	assert.Equal(t, []int64{3, 7, 12}, SortedOwners(map[int64]int{12: 1, 3: 4, 7: 0}))
}
