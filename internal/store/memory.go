package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/assumed-cables/model"
)

// Memory is an in-memory, thread-safe Store. Scenario replacement works on a
// copy of the committed state that is swapped in only when the callback
// succeeds, so readers never observe a partial rebuild.
type Memory struct {
	mu sync.RWMutex

	// writeMu serialises ReplaceScenarios like the advisory lock does for
	// Postgres.
	writeMu sync.Mutex

	dataset       model.Dataset
	schemaMissing bool

	state memState
	audit []model.AuditEntry

	now func() time.Time
}

type memState struct {
	nextScenarioID int64
	nextRouteID    int64
	scenarios      map[int64]model.Scenario
	routes         map[int64]model.Route
}

func (s memState) clone() memState {
	out := memState{
		nextScenarioID: s.nextScenarioID,
		nextRouteID:    s.nextRouteID,
		scenarios:      make(map[int64]model.Scenario, len(s.scenarios)),
		routes:         make(map[int64]model.Route, len(s.routes)),
	}
	for id, sc := range s.scenarios {
		out.scenarios[id] = sc
	}
	for id, r := range s.routes {
		out.routes[id] = r
	}
	return out
}

// NewMemory creates a memory store serving ds as its inventory dataset.
func NewMemory(ds model.Dataset) *Memory {
	return &Memory{
		dataset: ds,
		state: memState{
			scenarios: make(map[int64]model.Scenario),
			routes:    make(map[int64]model.Route),
		},
		now: time.Now,
	}
}

// SetDataset replaces the inventory dataset.
func (m *Memory) SetDataset(ds model.Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataset = ds
}

// SetSchemaMissing makes every operation behave as if the scenario tables
// were absent.
func (m *Memory) SetSchemaMissing(missing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemaMissing = missing
}

// AuditLog returns a snapshot of recorded audit entries.
func (m *Memory) AuditLog() []model.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}

func (m *Memory) CheckSchema(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.schemaMissing {
		return ErrSchemaMissing
	}
	return nil
}

func (m *Memory) LoadDataset(ctx context.Context) (model.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dataset, nil
}

func (m *Memory) ReplaceScenarios(ctx context.Context, fn func(tx ScenarioTx) error) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.RLock()
	if m.schemaMissing {
		m.mu.RUnlock()
		return ErrSchemaMissing
	}
	tx := &memTx{state: m.state.clone(), now: m.now}
	m.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = tx.state
	m.mu.Unlock()
	return nil
}

func (m *Memory) RecordAudit(ctx context.Context, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) LatestScenario(ctx context.Context, variant int) (model.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.schemaMissing {
		return model.Scenario{}, ErrSchemaMissing
	}
	var (
		best  model.Scenario
		found bool
	)
	for _, sc := range m.state.scenarios {
		if sc.VariantNo == variant && (!found || sc.ID > best.ID) {
			best, found = sc, true
		}
	}
	if !found {
		return model.Scenario{}, fmt.Errorf("variant %d: %w", variant, ErrScenarioNotFound)
	}
	return best, nil
}

func (m *Memory) ScenarioRoutes(ctx context.Context, scenarioID int64) ([]model.RouteView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.schemaMissing {
		return nil, ErrSchemaMissing
	}

	owners := make(map[int64]model.Owner, len(m.dataset.Owners))
	for _, o := range m.dataset.Owners {
		owners[o.ID] = o
	}
	wells := make(map[int64]string, len(m.dataset.Wells))
	for _, w := range m.dataset.Wells {
		wells[w.ID] = w.Number
	}
	dirs := make(map[int64]string, len(m.dataset.Directions))
	for _, d := range m.dataset.Directions {
		dirs[d.ID] = d.Number
	}

	var out []model.RouteView
	for _, r := range m.state.routes {
		if r.ScenarioID != scenarioID {
			continue
		}
		v := model.RouteView{
			Route:           r,
			StartWellNumber: wells[r.StartWellID],
			EndWellNumber:   wells[r.EndWellID],
		}
		if r.OwnerID != nil {
			o := owners[*r.OwnerID]
			v.OwnerName, v.OwnerColor = o.Name, o.Color
		}
		for _, d := range r.Directions {
			v.DirectionNumbers = append(v.DirectionNumbers, dirs[d.DirectionID])
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) TotalUnaccounted(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, c := range m.dataset.Capacities {
		if c.Unaccounted > 0 {
			total += c.Unaccounted
		}
	}
	return total, nil
}

func (m *Memory) Close() {}

type memTx struct {
	state memState
	now   func() time.Time
}

func (tx *memTx) ClearAll(ctx context.Context) error {
	tx.state.scenarios = make(map[int64]model.Scenario)
	tx.state.routes = make(map[int64]model.Route)
	return nil
}

func (tx *memTx) DeleteScenario(ctx context.Context, variant int) error {
	for id, sc := range tx.state.scenarios {
		if sc.VariantNo != variant {
			continue
		}
		delete(tx.state.scenarios, id)
		for rid, r := range tx.state.routes {
			if r.ScenarioID == id {
				delete(tx.state.routes, rid)
			}
		}
	}
	return nil
}

func (tx *memTx) CreateScenario(ctx context.Context, sc *model.Scenario) error {
	tx.state.nextScenarioID++
	sc.ID = tx.state.nextScenarioID
	if sc.BuiltAt.IsZero() {
		sc.BuiltAt = tx.now()
	}
	tx.state.scenarios[sc.ID] = *sc
	return nil
}

func (tx *memTx) InsertRoute(ctx context.Context, r *model.Route) error {
	if _, ok := tx.state.scenarios[r.ScenarioID]; !ok {
		return fmt.Errorf("insert route: scenario %d: %w", r.ScenarioID, ErrScenarioNotFound)
	}
	tx.state.nextRouteID++
	r.ID = tx.state.nextRouteID
	cp := *r
	cp.Directions = append([]model.RouteDirection(nil), r.Directions...)
	tx.state.routes[r.ID] = cp
	return nil
}

func (tx *memTx) UpdateScenarioStats(ctx context.Context, scenarioID int64, stats model.ScenarioStats) error {
	sc, ok := tx.state.scenarios[scenarioID]
	if !ok {
		return fmt.Errorf("update stats: scenario %d: %w", scenarioID, ErrScenarioNotFound)
	}
	sc.Stats = stats
	tx.state.scenarios[scenarioID] = sc
	return nil
}
