package scenario

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/signalsfoundry/assumed-cables/internal/store"
	"github.com/signalsfoundry/assumed-cables/model"
	"github.com/signalsfoundry/assumed-cables/timectrl"
)

const (
	ownerA int64 = 1
	ownerB int64 = 2
)

var testStart = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

// concreteDataset is wells 1-2-3 with directions (1,2,len 100,cap 2) and
// (2,3,len 50,cap 1); well 1 carries a free tag of owner A and well 3 one of
// owner B.
func concreteDataset() model.Dataset {
	return model.Dataset{
		Directions: []model.Direction{
			{ID: 1, Number: "K-1", StartWellID: 1, EndWellID: 2, LengthM: 100, Coords: orb.LineString{{65.0, 57.0}, {65.001, 57.0}}},
			{ID: 2, Number: "K-2", StartWellID: 2, EndWellID: 3, LengthM: 50, Coords: orb.LineString{{65.001, 57.0}, {65.002, 57.0}}},
		},
		Capacities: []model.DirectionCapacity{{DirectionID: 1, Unaccounted: 2}, {DirectionID: 2, Unaccounted: 1}},
		Tags: []model.WellOwnerCount{
			{WellID: 1, OwnerID: ownerA, Count: 1},
			{WellID: 3, OwnerID: ownerB, Count: 1},
		},
		Wells:  []model.Well{{ID: 1, Number: "W-1"}, {ID: 2, Number: "W-2"}, {ID: 3, Number: "W-3"}},
		Owners: []model.Owner{{ID: ownerA, Name: "Alpha", Color: "#112233"}, {ID: ownerB, Name: "Beta", Color: "#445566"}},
	}
}

// meshDataset is a small grid with branches, a zero-capacity bridge, a
// malformed direction and duct cables for the fallback vote.
func meshDataset() model.Dataset {
	pt := func(x, y float64) orb.Point { return orb.Point{65 + x*0.001, 57 + y*0.001} }
	wellPos := map[int64]orb.Point{
		1: pt(0, 0), 2: pt(1, 0), 3: pt(2, 0), 4: pt(0, 1), 5: pt(1, 1), 6: pt(2, 1), 7: pt(3, 1), 8: pt(3, 0),
	}
	dir := func(id, a, b int64, length float64) model.Direction {
		return model.Direction{
			ID: id, Number: "M-" + string(rune('A'+id)), StartWellID: a, EndWellID: b, LengthM: length,
			Coords: orb.LineString{wellPos[a], wellPos[b]},
		}
	}
	ds := model.Dataset{
		Directions: []model.Direction{
			dir(1, 1, 2, 120), dir(2, 2, 3, 80), dir(3, 1, 4, 60), dir(4, 4, 5, 90),
			dir(5, 2, 5, 40), dir(6, 5, 6, 70), dir(7, 3, 6, 55), dir(8, 6, 7, 65),
			dir(9, 3, 8, 75), dir(10, 7, 8, 30),
			{ID: 11, StartWellID: 8, EndWellID: 9, LengthM: 10, Coords: orb.LineString{wellPos[8]}},
		},
		Capacities: []model.DirectionCapacity{
			{DirectionID: 1, Unaccounted: 3}, {DirectionID: 2, Unaccounted: 1}, {DirectionID: 3, Unaccounted: 2},
			{DirectionID: 4, Unaccounted: 1}, {DirectionID: 5, Unaccounted: 0}, {DirectionID: 6, Unaccounted: 2},
			{DirectionID: 7, Unaccounted: 1}, {DirectionID: 8, Unaccounted: 1}, {DirectionID: 9, Unaccounted: 2},
			{DirectionID: 10, Unaccounted: 1}, {DirectionID: 11, Unaccounted: 4}, {DirectionID: 99, Unaccounted: 5},
		},
		Tags: []model.WellOwnerCount{
			{WellID: 1, OwnerID: ownerA, Count: 2},
			{WellID: 2, OwnerID: ownerA, Count: 1},
			{WellID: 6, OwnerID: ownerB, Count: 3},
			{WellID: 6, OwnerID: ownerA, Count: 1},
		},
		DuctCablesByWell:      []model.WellOwnerCount{{WellID: 6, OwnerID: ownerA, Count: 1}},
		DuctCablesByDirection: []model.DirectionOwnerCount{{DirectionID: 9, OwnerID: ownerB, Count: 2}, {DirectionID: 10, OwnerID: ownerB, Count: 1}},
		Owners:                []model.Owner{{ID: ownerA, Name: "Alpha"}, {ID: ownerB, Name: "Beta"}},
	}
	for id := int64(1); id <= 8; id++ {
		ds.Wells = append(ds.Wells, model.Well{ID: id, Number: "W-" + string(rune('0'+id))})
	}
	return ds
}

func newTestRebuilder(t *testing.T, st store.Store, opts ...Option) *Rebuilder {
	t.Helper()
	opts = append([]Option{WithClock(timectrl.NewManual(testStart, time.Millisecond))}, opts...)
	r, err := NewRebuilder(st, nil, opts...)
	if err != nil {
		t.Fatalf("NewRebuilder: %v", err)
	}
	return r
}

func mustRebuild(t *testing.T, r *Rebuilder) Result {
	t.Helper()
	res, err := r.Rebuild(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return res
}

func liveRoutes(t *testing.T, st store.ScenarioReader, variant int) (model.Scenario, []model.RouteView) {
	t.Helper()
	ctx := context.Background()
	sc, err := st.LatestScenario(ctx, variant)
	if err != nil {
		t.Fatalf("LatestScenario(%d): %v", variant, err)
	}
	routes, err := st.ScenarioRoutes(ctx, sc.ID)
	if err != nil {
		t.Fatalf("ScenarioRoutes(%d): %v", sc.ID, err)
	}
	return sc, routes
}

// faultyStore wraps the memory store to inject failures and pauses.
type faultyStore struct {
	*store.Memory

	failInsert bool
	auditErr   error

	// When gate is set, LoadDataset signals loaded and blocks until gate
	// is closed.
	gate   chan struct{}
	loaded chan struct{}
}

var errDiskFull = errors.New("disk full")

func (f *faultyStore) LoadDataset(ctx context.Context) (model.Dataset, error) {
	if f.gate != nil {
		close(f.loaded)
		<-f.gate
	}
	return f.Memory.LoadDataset(ctx)
}

func (f *faultyStore) ReplaceScenarios(ctx context.Context, fn func(store.ScenarioTx) error) error {
	return f.Memory.ReplaceScenarios(ctx, func(tx store.ScenarioTx) error {
		return fn(&faultyTx{ScenarioTx: tx, fail: f.failInsert})
	})
}

func (f *faultyStore) RecordAudit(ctx context.Context, e model.AuditEntry) error {
	if f.auditErr != nil {
		return f.auditErr
	}
	return f.Memory.RecordAudit(ctx, e)
}

type faultyTx struct {
	store.ScenarioTx
	fail bool
}

func (t *faultyTx) InsertRoute(ctx context.Context, r *model.Route) error {
	if t.fail {
		return errDiskFull
	}
	return t.ScenarioTx.InsertRoute(ctx, r)
}
