package owner

import (
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/signalsfoundry/assumed-cables/core"
	"github.com/signalsfoundry/assumed-cables/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerA int64 = 10
	ownerB int64 = 20
	ownerC int64 = 30
)

// lineNetwork is the path 1-2-3-4 with one unit of capacity per direction.
func lineNetwork(t *testing.T, tags []model.WellOwnerCount, votes []model.DirectionOwnerCount) *core.Network {
	t.Helper()
	ds := model.Dataset{Tags: tags, DuctCablesByDirection: votes}
	for i := int64(1); i <= 3; i++ {
		ds.Directions = append(ds.Directions, model.Direction{
			ID:          i,
			Number:      fmt.Sprintf("D-%d", i),
			StartWellID: i,
			EndWellID:   i + 1,
			LengthM:     100,
			Coords:      orb.LineString{{float64(i), 0}, {float64(i + 1), 0}},
		})
		ds.Capacities = append(ds.Capacities, model.DirectionCapacity{DirectionID: i, Unaccounted: 1})
	}
	net := core.BuildNetwork(ds)
	require.Empty(t, net.Rejected)
	return net
}

func route(t *testing.T, net *core.Network, startWell int64, dirs ...int64) core.Route {
	t.Helper()
	start, ok := net.Graph.NodeOf(startWell)
	require.True(t, ok)
	r := core.Route{Start: start, End: start}
	for _, id := range dirs {
		e, ok := net.Graph.EdgeOf(id)
		require.True(t, ok)
		r.Edges = append(r.Edges, e)
		r.End = net.Graph.Advance(e, r.End)
	}
	return r
}

func tag(well, owner int64, n int) model.WellOwnerCount {
	return model.WellOwnerCount{WellID: well, OwnerID: owner, Count: n}
}

func TestInfer_ConcreteScenarioConsumesSupply(t *testing.T) {
	net := lineNetwork(t, []model.WellOwnerCount{tag(1, ownerA, 1), tag(3, ownerB, 1)}, nil)
	eng := NewEngine(net, 1, DefaultPolicy())

	long := eng.Infer(route(t, net, 1, 1, 2))
	require.NotNil(t, long.OwnerID)
	assert.Equal(t, ownerA, *long.OwnerID, "equal score and hits go to the lower owner id")
	assert.Equal(t, 0.60, long.Confidence)
	assert.Equal(t, model.ModeTagsAnyWell, long.Mode)
	assert.Equal(t, []int64{1, 2, 3}, long.WellIDs)
	assert.Equal(t, []model.OwnerCandidate{
		{OwnerID: ownerA, Score: 1, Hits: 1},
		{OwnerID: ownerB, Score: 1, Hits: 1},
	}, long.Candidates)

	leftover := eng.Infer(route(t, net, 1, 1))
	assert.Nil(t, leftover.OwnerID)
	assert.Equal(t, 0.15, leftover.Confidence)
	assert.Equal(t, model.ModeUnknown, leftover.Mode)
	assert.NotNil(t, leftover.Candidates)
	assert.Empty(t, leftover.Candidates)

	assert.Equal(t, 1, net.Supply[0][ownerA], "the network baseline is never touched")
}

func TestInfer_ReadModeKeepsSupply(t *testing.T) {
	net := lineNetwork(t, []model.WellOwnerCount{tag(1, ownerA, 1)}, nil)
	p := DefaultPolicy()
	p.SupplyMode = SupplyRead
	eng := NewEngine(net, 1, p)

	for i := 0; i < 2; i++ {
		ev := eng.Infer(route(t, net, 1, 1))
		require.NotNil(t, ev.OwnerID)
		assert.Equal(t, ownerA, *ev.OwnerID)
	}
}

func TestInfer_TiersPerVariant(t *testing.T) {
	tags := []model.WellOwnerCount{tag(1, ownerA, 1), tag(2, ownerA, 1)}
	cases := []struct {
		variant       int
		multi, single float64
	}{
		{1, 0.85, 0.60},
		{2, 0.80, 0.65},
		{3, 0.75, 0.55},
	}
	for _, tc := range cases {
		net := lineNetwork(t, tags, nil)
		eng := NewEngine(net, tc.variant, DefaultPolicy())

		multi := eng.Infer(route(t, net, 1, 1))
		assert.Equalf(t, tc.multi, multi.Confidence, "variant %d multi", tc.variant)
		assert.Equal(t, model.ModeTagsMultiWells, multi.Mode)

		single := eng.Infer(route(t, net, 3, 3))
		assert.Equal(t, model.ModeUnknown, single.Mode)

		net = lineNetwork(t, []model.WellOwnerCount{tag(4, ownerB, 1)}, nil)
		eng = NewEngine(net, tc.variant, DefaultPolicy())
		single = eng.Infer(route(t, net, 3, 3))
		assert.Equalf(t, tc.single, single.Confidence, "variant %d single", tc.variant)
		assert.Equal(t, model.ModeTagsAnyWell, single.Mode)
		assert.Greater(t, multi.Confidence, single.Confidence)
	}
}

func TestInfer_ScoreBeatsHits(t *testing.T) {
	net := lineNetwork(t, []model.WellOwnerCount{
		tag(1, ownerA, 1), tag(2, ownerA, 1),
		tag(3, ownerB, 3),
	}, nil)
	ev := NewEngine(net, 2, DefaultPolicy()).Infer(route(t, net, 1, 1, 2))

	require.NotNil(t, ev.OwnerID)
	assert.Equal(t, ownerB, *ev.OwnerID)
	assert.Equal(t, 0.65, ev.Confidence)
	assert.Equal(t, []model.OwnerCandidate{
		{OwnerID: ownerB, Score: 3, Hits: 1},
		{OwnerID: ownerA, Score: 2, Hits: 2},
	}, ev.Candidates)
}

func TestInfer_FallbackToDuctCableVotes(t *testing.T) {
	votes := []model.DirectionOwnerCount{
		{DirectionID: 1, OwnerID: ownerC, Count: 2},
		{DirectionID: 2, OwnerID: ownerB, Count: 1},
		{DirectionID: 2, OwnerID: ownerA, Count: 2},
	}
	net := lineNetwork(t, nil, votes)
	r := route(t, net, 1, 1, 2)

	v2 := NewEngine(net, 2, DefaultPolicy()).Infer(r)
	assert.Nil(t, v2.OwnerID, "variant 2 has no fallback")
	assert.Equal(t, model.ModeUnknown, v2.Mode)

	v3 := NewEngine(net, 3, DefaultPolicy()).Infer(r)
	require.NotNil(t, v3.OwnerID)
	assert.Equal(t, ownerA, *v3.OwnerID, "vote ties go to the lower owner id")
	assert.Equal(t, 0.35, v3.Confidence)
	assert.Equal(t, model.ModeRealCablesFallback, v3.Mode)
}

func TestInfer_KeepsTopCandidates(t *testing.T) {
	var tags []model.WellOwnerCount
	for o := int64(1); o <= 12; o++ {
		tags = append(tags, tag(1, o, int(o)))
	}
	net := lineNetwork(t, tags, nil)
	ev := NewEngine(net, 1, DefaultPolicy()).Infer(route(t, net, 1, 1))

	require.Len(t, ev.Candidates, 10)
	assert.Equal(t, int64(12), ev.Candidates[0].OwnerID)
	assert.Equal(t, int64(3), ev.Candidates[9].OwnerID)
}

func TestInfer_ConfidenceBounds(t *testing.T) {
	p := DefaultPolicy()
	for v := 1; v <= 3; v++ {
		tr := p.tiersFor(v)
		for _, c := range []float64{tr.High, tr.Medium, p.FallbackConfidence, p.UnknownConfidence} {
			assert.GreaterOrEqual(t, c, 0.15)
			assert.LessOrEqual(t, c, 0.85)
		}
		assert.GreaterOrEqual(t, tr.High, tr.Medium)
	}
	assert.Equal(t, p.Tiers[3], p.tiersFor(7))
}

func TestParseSupplyMode(t *testing.T) {
	m, err := ParseSupplyMode(" Read ")
	require.NoError(t, err)
	assert.Equal(t, SupplyRead, m)

	_, err = ParseSupplyMode("borrow")
	assert.Error(t, err)
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.Tiers = map[int]Tiers{1: {High: 0.5, Medium: 0.6}}
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.UnknownConfidence = 1.5
	assert.Error(t, p.Validate())
}
