// Package scenario rebuilds the assumed cable scenarios and serves their
// read views.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/assumed-cables/core"
	"github.com/signalsfoundry/assumed-cables/internal/logging"
	"github.com/signalsfoundry/assumed-cables/internal/observability"
	"github.com/signalsfoundry/assumed-cables/internal/owner"
	"github.com/signalsfoundry/assumed-cables/internal/store"
	"github.com/signalsfoundry/assumed-cables/internal/synth"
	"github.com/signalsfoundry/assumed-cables/model"
	"github.com/signalsfoundry/assumed-cables/timectrl"
)

// Messages reported with soft outcomes.
const (
	MessageRebuilt       = "assumed cable scenarios rebuilt"
	MessageNoCapacity    = "no directions with unaccounted cables"
	MessageSchemaMissing = "assumed cable tables are missing (apply migrations)"
)

const (
	auditAction = "rebuild_assumed_cables"
	auditTable  = "assumed_cable_scenarios"
)

// RebuildRecorder receives rebuild metrics. *observability.RebuildCollector
// satisfies it.
type RebuildRecorder interface {
	ObserveRebuild(result string, d time.Duration)
	ObserveVariant(variant int, d time.Duration)
	SetScenario(variant, routes, unknown int, lengthM float64)
	ResetScenarios()
	SetInProgress(active bool)
	SetInput(rejected, totalUnaccounted int)
}

// Request carries the caller-supplied context of one rebuild.
type Request struct {
	// BuiltBy is the acting user, recorded on scenarios and in the audit log.
	BuiltBy *int64
}

// VariantResult summarises one persisted scenario.
type VariantResult struct {
	ScenarioID int64               `json:"scenario_id"`
	VariantNo  int                 `json:"variant_no"`
	Strategy   string              `json:"strategy"`
	Routes     int                 `json:"routes"`
	Stats      model.ScenarioStats `json:"stats"`
}

// Result is the outcome of a rebuild. Soft outcomes (missing schema, no
// capacity) are results, not errors.
type Result struct {
	BuildID       string          `json:"build_id,omitempty"`
	Message       string          `json:"-"`
	SchemaMissing bool            `json:"-"`
	Variants      []VariantResult `json:"variants"`
}

// Option customises Rebuilder construction.
type Option func(*Rebuilder)

// WithSynthesisPolicy sets the route synthesis knobs.
func WithSynthesisPolicy(p synth.Policy) Option {
	return func(r *Rebuilder) { r.synthPolicy = p }
}

// WithOwnerPolicy sets the owner inference knobs.
func WithOwnerPolicy(p owner.Policy) Option {
	return func(r *Rebuilder) { r.ownerPolicy = p }
}

// WithVariants limits the rebuild to the given variants.
func WithVariants(variants ...int) Option {
	return func(r *Rebuilder) { r.variants = append([]int(nil), variants...) }
}

// WithParallelVariants toggles concurrent synthesis of variants.
func WithParallelVariants(on bool) Option {
	return func(r *Rebuilder) { r.parallel = on }
}

// WithMetricsRecorder attaches a metrics recorder.
func WithMetricsRecorder(m RebuildRecorder) Option {
	return func(r *Rebuilder) { r.metrics = m }
}

// WithClock replaces the wall clock.
func WithClock(c timectrl.Clock) Option {
	return func(r *Rebuilder) { r.clock = c }
}

// WithStateListener registers fn to be called with true when a rebuild takes
// the lock and false when it releases it.
func WithStateListener(fn func(active bool)) Option {
	return func(r *Rebuilder) { r.listeners = append(r.listeners, fn) }
}

// Rebuilder regenerates all scenarios from the current inventory. At most
// one rebuild runs at a time per Rebuilder; the store adds its own
// cross-process guard.
type Rebuilder struct {
	store store.Store
	log   logging.Logger

	synthPolicy synth.Policy
	ownerPolicy owner.Policy
	variants    []int
	parallel    bool

	metrics   RebuildRecorder
	clock     timectrl.Clock
	listeners []func(active bool)

	mu     sync.Mutex
	active atomic.Bool
}

// NewRebuilder validates the configuration and returns a Rebuilder.
func NewRebuilder(st store.Store, log logging.Logger, opts ...Option) (*Rebuilder, error) {
	if st == nil {
		return nil, errors.New("scenario: store is nil")
	}
	if log == nil {
		log = logging.Noop()
	}
	r := &Rebuilder{
		store:       st,
		log:         log,
		synthPolicy: synth.DefaultPolicy(),
		ownerPolicy: owner.DefaultPolicy(),
		variants:    append([]int(nil), synth.Variants...),
		parallel:    true,
		clock:       timectrl.System{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if err := r.synthPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	if err := r.ownerPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	if len(r.variants) == 0 {
		return nil, fmt.Errorf("scenario: no variants: %w", ErrInvalidVariant)
	}
	seen := make(map[int]bool, len(r.variants))
	for _, v := range r.variants {
		if _, err := synth.ForVariant(v, r.synthPolicy); err != nil || seen[v] {
			return nil, fmt.Errorf("scenario: variant %d: %w", v, ErrInvalidVariant)
		}
		seen[v] = true
	}
	return r, nil
}

// InProgress reports whether a rebuild currently holds the lock.
func (r *Rebuilder) InProgress() bool { return r.active.Load() }

// Variants returns the variants a rebuild produces.
func (r *Rebuilder) Variants() []int { return append([]int(nil), r.variants...) }

func (r *Rebuilder) setActive(on bool) {
	r.active.Store(on)
	if r.metrics != nil {
		r.metrics.SetInProgress(on)
	}
	for _, fn := range r.listeners {
		fn(on)
	}
}

// Rebuild replaces every scenario with freshly synthesized routes. All
// variants are written in one transaction; on any error the previously
// committed scenarios stay visible.
func (r *Rebuilder) Rebuild(ctx context.Context, req Request) (Result, error) {
	start := r.clock.Now()
	if !r.mu.TryLock() {
		r.observe(observability.ResultBusy, start)
		return Result{}, ErrRebuildInProgress
	}
	defer r.mu.Unlock()
	r.setActive(true)
	defer r.setActive(false)

	ctx, span := observability.StartSpan(ctx, "routesynth.Rebuild")
	defer span.End()
	log := logging.FromContext(ctx, r.log)

	res, outcome, err := r.rebuild(ctx, req, log)
	r.observe(outcome, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rebuild failed")
		log.Error(ctx, "assumed cable rebuild failed", logging.Err(err))
		return Result{}, err
	}
	span.SetAttributes(attribute.String("routesynth.outcome", outcome))
	return res, nil
}

func (r *Rebuilder) observe(result string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveRebuild(result, r.clock.Now().Sub(start))
	}
}

func (r *Rebuilder) rebuild(ctx context.Context, req Request, log logging.Logger) (Result, string, error) {
	if err := r.store.CheckSchema(ctx); err != nil {
		if errors.Is(err, store.ErrSchemaMissing) {
			log.Warn(ctx, "assumed cable schema missing; nothing rebuilt", logging.Err(err))
			return Result{Message: MessageSchemaMissing, SchemaMissing: true, Variants: []VariantResult{}}, observability.ResultNoSchema, nil
		}
		return Result{}, observability.ResultFailed, fmt.Errorf("check schema: %w", err)
	}

	ds, err := r.store.LoadDataset(ctx)
	if err != nil {
		return Result{}, observability.ResultFailed, fmt.Errorf("load dataset: %w", err)
	}
	net := core.BuildNetwork(ds)
	if r.metrics != nil {
		r.metrics.SetInput(len(net.Rejected), net.TotalUnaccounted)
	}
	for _, rej := range net.Rejected {
		log.Debug(ctx, "direction excluded from graph",
			logging.Int64("direction_id", rej.DirectionID),
			logging.Err(rej.Err),
		)
	}

	if !net.Capacity.Any() {
		err := r.store.ReplaceScenarios(ctx, func(tx store.ScenarioTx) error {
			return tx.ClearAll(ctx)
		})
		if err != nil {
			return Result{}, observability.ResultFailed, fmt.Errorf("clear scenarios: %w", err)
		}
		if r.metrics != nil {
			r.metrics.ResetScenarios()
		}
		log.Info(ctx, "no unaccounted capacity; scenarios cleared",
			logging.Int("directions", len(net.Graph.Edges)),
		)
		return Result{Message: MessageNoCapacity, Variants: []VariantResult{}}, observability.ResultNoCapacity, nil
	}

	buildID := uuid.NewString()
	builtAt := r.clock.Now()
	log = log.With(logging.String("build_id", buildID))
	log.Info(ctx, "assumed cable rebuild started",
		logging.Int("directions", len(net.Graph.Edges)),
		logging.Int("wells", len(net.Graph.Wells)),
		logging.Int("rejected", len(net.Rejected)),
		logging.Int("total_unaccounted", net.TotalUnaccounted),
	)

	built, err := r.synthesizeAll(ctx, net, log)
	if err != nil {
		return Result{}, observability.ResultFailed, err
	}

	res := Result{BuildID: buildID, Message: MessageRebuilt}
	pctx, pspan := observability.StartSpan(ctx, "routesynth.Persist")
	err = r.store.ReplaceScenarios(pctx, func(tx store.ScenarioTx) error {
		res.Variants = res.Variants[:0]
		// Variants left out of this build must not keep scenarios from an
		// older one.
		if err := tx.ClearAll(pctx); err != nil {
			return fmt.Errorf("clear scenarios: %w", err)
		}
		for _, b := range built {
			vr, err := persistVariant(pctx, tx, b, buildID, builtAt, req.BuiltBy)
			if err != nil {
				return err
			}
			res.Variants = append(res.Variants, vr)
		}
		return nil
	})
	if err != nil {
		pspan.RecordError(err)
		pspan.SetStatus(codes.Error, "persist failed")
	}
	pspan.End()
	if err != nil {
		return Result{}, observability.ResultFailed, fmt.Errorf("persist scenarios: %w", err)
	}

	if r.metrics != nil {
		r.metrics.ResetScenarios()
		for _, v := range res.Variants {
			r.metrics.SetScenario(v.VariantNo, v.Stats.RoutesTotal, v.Stats.OwnersUnknown, v.Stats.TotalLengthM)
		}
	}

	entry := model.AuditEntry{
		UserID:    req.BuiltBy,
		Action:    auditAction,
		TableName: auditTable,
		NewValues: map[string]any{"variants": r.Variants(), "build_id": buildID},
	}
	if err := r.store.RecordAudit(ctx, entry); err != nil {
		log.Warn(ctx, "audit record failed", logging.Err(err))
	} else {
		log.Info(ctx, auditAction, logging.Any("variants", r.variants))
	}
	return res, observability.ResultOK, nil
}

// builtVariant is one synthesized scenario waiting to be persisted.
type builtVariant struct {
	variant  int
	strategy string
	params   map[string]any
	routes   []model.Route
	stats    model.ScenarioStats
}

func (r *Rebuilder) synthesizeAll(ctx context.Context, net *core.Network, log logging.Logger) ([]builtVariant, error) {
	out := make([]builtVariant, len(r.variants))
	g, gctx := errgroup.WithContext(ctx)
	if !r.parallel {
		g.SetLimit(1)
	}
	for i, v := range r.variants {
		g.Go(func() error {
			b, err := r.synthesize(gctx, net, v, log)
			if err != nil {
				return fmt.Errorf("synthesize variant %d: %w", v, err)
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Rebuilder) synthesize(ctx context.Context, net *core.Network, variant int, log logging.Logger) (b builtVariant, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	strategy, err := synth.ForVariant(variant, r.synthPolicy)
	if err != nil {
		return b, fmt.Errorf("%w: %v", ErrInvalidVariant, err)
	}
	ctx, span := observability.StartSpan(ctx, "routesynth.Synthesize",
		attribute.Int("routesynth.variant", variant),
		attribute.String("routesynth.strategy", strategy.Name()),
	)
	defer span.End()
	start := r.clock.Now()

	routes, err := strategy.Synthesize(ctx, net, net.Capacity.Clone())
	if err != nil {
		span.RecordError(err)
		return b, err
	}

	engine := owner.NewEngine(net, variant, r.ownerPolicy)
	b = builtVariant{
		variant:  variant,
		strategy: strategy.Name(),
		params:   r.params(strategy, variant),
		routes:   make([]model.Route, 0, len(routes)),
		stats:    model.ScenarioStats{TotalUnaccounted: net.TotalUnaccounted},
	}
	totalLength := 0.0
	for _, cr := range routes {
		route := buildRoute(net, cr, engine.Infer(cr))
		b.routes = append(b.routes, route)
		b.stats.RoutesTotal++
		if route.OwnerID != nil {
			b.stats.OwnersAssigned++
		}
		totalLength += route.LengthM
		b.stats.TotalEdgeUnits += len(cr.Edges)
	}
	b.stats.OwnersUnknown = b.stats.RoutesTotal - b.stats.OwnersAssigned
	b.stats.TotalLengthM = core.RoundMeters(totalLength)

	elapsed := r.clock.Now().Sub(start)
	if r.metrics != nil {
		r.metrics.ObserveVariant(variant, elapsed)
	}
	span.SetAttributes(attribute.Int("routesynth.routes", b.stats.RoutesTotal))
	log.Info(ctx, "variant synthesized",
		logging.Int("variant", variant),
		logging.String("strategy", b.strategy),
		logging.Int("routes", b.stats.RoutesTotal),
		logging.Int("owners_assigned", b.stats.OwnersAssigned),
		logging.Duration("duration", elapsed),
	)
	return b, nil
}

func (r *Rebuilder) params(s synth.RouteStrategy, variant int) map[string]any {
	return map[string]any{
		"build":     "assumed_routes_v1",
		"graph":     "all_wells_and_directions",
		"capacity":  "inventory_summary.unaccounted_cables",
		"weight":    "length_m",
		"strategy":  s.Name(),
		"synthesis": r.synthPolicy.Params(),
		"owner":     r.ownerPolicy.Params(variant),
	}
}

// buildRoute stitches geometry and attaches the owner evidence of one route.
func buildRoute(net *core.Network, cr core.Route, ev model.OwnerEvidence) model.Route {
	g := net.Graph
	geom, length := g.Stitch(cr)
	candidates := ev.Candidates
	if candidates == nil {
		candidates = []model.OwnerCandidate{}
	}
	wellIDs := ev.WellIDs
	if wellIDs == nil {
		wellIDs = []int64{}
	}
	route := model.Route{
		OwnerID:     ev.OwnerID,
		Confidence:  ev.Confidence,
		StartWellID: g.Wells[cr.Start].ID,
		EndWellID:   g.Wells[cr.End].ID,
		LengthM:     length,
		Geometry:    geom,
		Evidence: model.RouteEvidence{
			Mode:            ev.Mode,
			DirectionIDs:    g.DirectionIDs(cr.Edges),
			StartWellID:     g.Wells[cr.Start].ID,
			EndWellID:       g.Wells[cr.End].ID,
			WellIDs:         wellIDs,
			OwnerCandidates: candidates,
		},
		Directions: make([]model.RouteDirection, len(cr.Edges)),
	}
	for i, e := range cr.Edges {
		d := &g.Edges[e]
		route.Directions[i] = model.RouteDirection{
			Seq:         i + 1,
			DirectionID: d.ID,
			LengthM:     core.RoundMeters(d.LengthM),
		}
	}
	return route
}

func persistVariant(ctx context.Context, tx store.ScenarioTx, b builtVariant, buildID string, builtAt time.Time, builtBy *int64) (VariantResult, error) {
	if err := tx.DeleteScenario(ctx, b.variant); err != nil {
		return VariantResult{}, fmt.Errorf("variant %d: %w", b.variant, err)
	}
	sc := &model.Scenario{
		VariantNo: b.variant,
		BuildID:   buildID,
		BuiltAt:   builtAt,
		BuiltBy:   builtBy,
		Params:    b.params,
		Stats:     model.ScenarioStats{TotalUnaccounted: b.stats.TotalUnaccounted},
	}
	if err := tx.CreateScenario(ctx, sc); err != nil {
		return VariantResult{}, fmt.Errorf("variant %d: %w", b.variant, err)
	}
	for i := range b.routes {
		route := b.routes[i]
		route.ScenarioID = sc.ID
		if err := tx.InsertRoute(ctx, &route); err != nil {
			return VariantResult{}, fmt.Errorf("variant %d route %d: %w", b.variant, i+1, err)
		}
	}
	if err := tx.UpdateScenarioStats(ctx, sc.ID, b.stats); err != nil {
		return VariantResult{}, fmt.Errorf("variant %d: %w", b.variant, err)
	}
	return VariantResult{
		ScenarioID: sc.ID,
		VariantNo:  b.variant,
		Strategy:   b.strategy,
		Routes:     b.stats.RoutesTotal,
		Stats:      b.stats,
	}, nil
}
