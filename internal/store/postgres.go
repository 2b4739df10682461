package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"

	"github.com/signalsfoundry/assumed-cables/model"
)

// Schema creates the scenario tables. The inventory tables it reads from
// belong to the host system and are not created here.
//
//go:embed schema.sql
var Schema string

// rebuildLockKey keys the transaction-scoped advisory lock held while
// scenarios are replaced.
const rebuildLockKey int64 = 0x61637262 // "acrb"

const ductObjectTypeCode = "cable_duct"

// SQLSTATE codes the store reacts to.
const (
	codeUndefinedTable = "42P01"
)

const (
	selectDirectionsSQL = `
SELECT cd.id,
       COALESCE(cd.number, '')::text,
       cd.start_well_id,
       cd.end_well_id,
       COALESCE(cd.length_m, 0)::float8,
       ST_AsGeoJSON(COALESCE(cd.geom_wgs84, ST_Transform(cd.geom_msk86, 4326)))::text
FROM channel_directions cd
WHERE cd.start_well_id IS NOT NULL
  AND cd.end_well_id IS NOT NULL
  AND (cd.geom_wgs84 IS NOT NULL OR cd.geom_msk86 IS NOT NULL)
ORDER BY cd.id`

	selectCapacitiesSQL = `
SELECT direction_id, unaccounted_cables::int
FROM inventory_summary
WHERE unaccounted_cables > 0
ORDER BY direction_id`

	selectTagsSQL = `
WITH latest_cards AS (
    SELECT DISTINCT ON (well_id) id, well_id
    FROM inventory_cards
    ORDER BY well_id, filled_date DESC, id DESC
)
SELECT lc.well_id, it.owner_id, COUNT(*)::int
FROM latest_cards lc
JOIN inventory_tags it ON it.card_id = lc.id
WHERE it.owner_id IS NOT NULL
GROUP BY lc.well_id, it.owner_id`

	selectTableExistsSQL = `
SELECT EXISTS (
    SELECT 1 FROM information_schema.tables
    WHERE table_schema = current_schema() AND table_name = $1
)`

	selectDuctTypeSQL = `SELECT id FROM object_types WHERE code = $1 LIMIT 1`

	selectDuctByWellSQL = `
SELECT crw.well_id, c.owner_id, COUNT(DISTINCT c.id)::int
FROM cable_route_wells crw
JOIN cables c ON c.id = crw.cable_id
WHERE c.object_type_id = $1
  AND c.owner_id IS NOT NULL
GROUP BY crw.well_id, c.owner_id`

	selectDuctByDirectionSQL = `
SELECT ch.direction_id, c.owner_id, COUNT(DISTINCT c.id)::int
FROM cable_route_channels crc
JOIN cable_channels ch ON ch.id = crc.cable_channel_id
JOIN cables c ON c.id = crc.cable_id
WHERE c.object_type_id = $1
  AND c.owner_id IS NOT NULL
GROUP BY ch.direction_id, c.owner_id`

	insertScenarioSQL = `
INSERT INTO assumed_cable_scenarios (variant_no, built_by, built_at, params_json, stats_json)
VALUES ($1, $2, $3, $4::jsonb, $5::jsonb)
RETURNING id`

	insertRouteSQL = `
INSERT INTO assumed_cable_routes
    (scenario_id, owner_id, confidence, start_well_id, end_well_id, length_m, geom_wgs84, evidence_json)
VALUES
    ($1, $2, $3, $4, $5, $6, ST_SetSRID(ST_GeomFromGeoJSON(NULLIF($7, '')), 4326), $8::jsonb)
RETURNING id`

	insertRouteDirectionSQL = `
INSERT INTO assumed_cable_route_directions (route_id, seq, direction_id, length_m)
VALUES ($1, $2, $3, $4)`

	selectLatestScenarioSQL = `
SELECT id, variant_no, built_by, built_at, params_json, stats_json
FROM assumed_cable_scenarios
WHERE variant_no = $1
ORDER BY id DESC
LIMIT 1`

	selectScenarioRoutesSQL = `
SELECT r.id,
       r.scenario_id,
       r.owner_id,
       COALESCE(o.name, '')::text,
       COALESCE(o.color, '')::text,
       r.confidence::float8,
       COALESCE(r.start_well_id, 0),
       COALESCE(r.end_well_id, 0),
       r.length_m::float8,
       COALESCE(ST_AsGeoJSON(r.geom_wgs84)::text, ''),
       r.evidence_json,
       COALESCE(sw.number, '')::text,
       COALESCE(ew.number, '')::text,
       COALESCE((
           SELECT ARRAY_AGG(rd.direction_id ORDER BY rd.seq)
           FROM assumed_cable_route_directions rd
           WHERE rd.route_id = r.id
       ), '{}'::bigint[]),
       COALESCE((
           SELECT ARRAY_AGG(COALESCE(cd.number, '')::text ORDER BY rd.seq)
           FROM assumed_cable_route_directions rd
           LEFT JOIN channel_directions cd ON cd.id = rd.direction_id
           WHERE rd.route_id = r.id
       ), '{}'::text[])
FROM assumed_cable_routes r
LEFT JOIN owners o ON r.owner_id = o.id
LEFT JOIN wells sw ON r.start_well_id = sw.id
LEFT JOIN wells ew ON r.end_well_id = ew.id
WHERE r.scenario_id = $1
ORDER BY r.id`

	selectTotalUnaccountedSQL = `
SELECT COALESCE(SUM(unaccounted_cables), 0)::int
FROM inventory_summary
WHERE unaccounted_cables > 0`

	insertAuditSQL = `
INSERT INTO audit_log (user_id, action, table_name, record_id, new_values, created_at)
VALUES ($1, $2, $3, $4, $5::jsonb, $6)`
)

// Postgres is a Store over a PostGIS-enabled database holding the inventory
// schema.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgres connects to dsn and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Postgres{pool: pool, now: time.Now}, nil
}

// Migrate creates the scenario tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) CheckSchema(ctx context.Context) error {
	for _, table := range []string{"assumed_cable_scenarios", "assumed_cable_routes"} {
		var exists bool
		if err := p.pool.QueryRow(ctx, selectTableExistsSQL, table).Scan(&exists); err != nil {
			return mapError("check schema", err)
		}
		if !exists {
			return fmt.Errorf("table %s: %w", table, ErrSchemaMissing)
		}
	}
	return nil
}

func (p *Postgres) LoadDataset(ctx context.Context) (model.Dataset, error) {
	var ds model.Dataset

	dirs, err := collectRows(ctx, p.pool, selectDirectionsSQL, nil, scanDirection)
	if err != nil {
		return ds, mapError("load directions", err)
	}
	ds.Directions = dirs

	ds.Capacities, err = collectRows(ctx, p.pool, selectCapacitiesSQL, nil, func(r pgx.CollectableRow) (model.DirectionCapacity, error) {
		var c model.DirectionCapacity
		err := r.Scan(&c.DirectionID, &c.Unaccounted)
		return c, err
	})
	if err != nil {
		return ds, mapError("load capacities", err)
	}

	// Tag and duct cable evidence is optional: a host schema without these
	// tables yields routes without owners rather than a failed rebuild.
	ds.Tags, _ = collectRows(ctx, p.pool, selectTagsSQL, nil, scanWellCount)

	var ductType int64
	if err := p.pool.QueryRow(ctx, selectDuctTypeSQL, ductObjectTypeCode).Scan(&ductType); err == nil {
		args := []any{ductType}
		ds.DuctCablesByWell, _ = collectRows(ctx, p.pool, selectDuctByWellSQL, args, scanWellCount)
		ds.DuctCablesByDirection, _ = collectRows(ctx, p.pool, selectDuctByDirectionSQL, args, func(r pgx.CollectableRow) (model.DirectionOwnerCount, error) {
			var c model.DirectionOwnerCount
			err := r.Scan(&c.DirectionID, &c.OwnerID, &c.Count)
			return c, err
		})
	}
	return ds, nil
}

func scanDirection(r pgx.CollectableRow) (model.Direction, error) {
	var (
		d    model.Direction
		geom *string
	)
	if err := r.Scan(&d.ID, &d.Number, &d.StartWellID, &d.EndWellID, &d.LengthM, &geom); err != nil {
		return d, err
	}
	if geom != nil {
		// Unparseable geometry leaves the direction without coordinates,
		// which the graph builder rejects.
		d.Coords, _ = parseLine([]byte(*geom))
	}
	return d, nil
}

func scanWellCount(r pgx.CollectableRow) (model.WellOwnerCount, error) {
	var c model.WellOwnerCount
	err := r.Scan(&c.WellID, &c.OwnerID, &c.Count)
	return c, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func collectRows[T any](ctx context.Context, q querier, sql string, args []any, scan func(pgx.CollectableRow) (T, error)) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scan)
}

// ReplaceScenarios runs fn in one transaction guarded by an advisory lock so
// two rebuilds never interleave their writes, even across processes.
func (p *Postgres) ReplaceScenarios(ctx context.Context, fn func(tx ScenarioTx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return mapError("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, rebuildLockKey); err != nil {
		return mapError("advisory lock", err)
	}
	if err := fn(&pgTx{tx: tx, now: p.now}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError("commit", err)
	}
	return nil
}

func (p *Postgres) RecordAudit(ctx context.Context, entry model.AuditEntry) error {
	values, err := marshalJSON(entry.NewValues)
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = p.now()
	}
	if _, err := p.pool.Exec(ctx, insertAuditSQL, entry.UserID, entry.Action, entry.TableName, entry.RecordID, values, created); err != nil {
		return mapError("record audit", err)
	}
	return nil
}

func (p *Postgres) LatestScenario(ctx context.Context, variant int) (model.Scenario, error) {
	var (
		sc           model.Scenario
		params, stat []byte
	)
	err := p.pool.QueryRow(ctx, selectLatestScenarioSQL, variant).
		Scan(&sc.ID, &sc.VariantNo, &sc.BuiltBy, &sc.BuiltAt, &params, &stat)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Scenario{}, fmt.Errorf("variant %d: %w", variant, ErrScenarioNotFound)
	}
	if err != nil {
		return model.Scenario{}, mapError("latest scenario", err)
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &sc.Params); err != nil {
			return model.Scenario{}, fmt.Errorf("latest scenario: params: %w", err)
		}
		if id, ok := sc.Params[paramBuildID].(string); ok {
			sc.BuildID = id
		}
	}
	if len(stat) > 0 {
		if err := json.Unmarshal(stat, &sc.Stats); err != nil {
			return model.Scenario{}, fmt.Errorf("latest scenario: stats: %w", err)
		}
	}
	return sc, nil
}

func (p *Postgres) ScenarioRoutes(ctx context.Context, scenarioID int64) ([]model.RouteView, error) {
	rows, err := p.pool.Query(ctx, selectScenarioRoutesSQL, scenarioID)
	if err != nil {
		return nil, mapError("scenario routes", err)
	}
	defer rows.Close()

	var out []model.RouteView
	for rows.Next() {
		var (
			v        model.RouteView
			geom     string
			evidence []byte
			dirIDs   []int64
		)
		if err := rows.Scan(
			&v.ID, &v.ScenarioID, &v.OwnerID, &v.OwnerName, &v.OwnerColor,
			&v.Confidence, &v.StartWellID, &v.EndWellID, &v.LengthM,
			&geom, &evidence, &v.StartWellNumber, &v.EndWellNumber,
			&dirIDs, &v.DirectionNumbers,
		); err != nil {
			return nil, mapError("scenario routes", err)
		}
		if geom != "" {
			if v.Geometry, err = parseLine([]byte(geom)); err != nil {
				return nil, fmt.Errorf("scenario routes: route %d: %w", v.ID, err)
			}
		}
		if len(evidence) > 0 {
			if err := json.Unmarshal(evidence, &v.Evidence); err != nil {
				return nil, fmt.Errorf("scenario routes: route %d evidence: %w", v.ID, err)
			}
		}
		for i, id := range dirIDs {
			v.Directions = append(v.Directions, model.RouteDirection{Seq: i + 1, DirectionID: id})
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("scenario routes", err)
	}
	return out, nil
}

func (p *Postgres) TotalUnaccounted(ctx context.Context) (int, error) {
	var total int
	if err := p.pool.QueryRow(ctx, selectTotalUnaccountedSQL).Scan(&total); err != nil {
		return 0, mapError("total unaccounted", err)
	}
	return total, nil
}

type pgTx struct {
	tx  pgx.Tx
	now func() time.Time
}

func (t *pgTx) ClearAll(ctx context.Context) error {
	for _, table := range []string{
		"assumed_cable_route_directions",
		"assumed_cable_routes",
		"assumed_cable_scenarios",
	} {
		if _, err := t.tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return mapError("clear "+table, err)
		}
	}
	return nil
}

func (t *pgTx) DeleteScenario(ctx context.Context, variant int) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM assumed_cable_scenarios WHERE variant_no = $1`, variant); err != nil {
		return mapError("delete scenario", err)
	}
	return nil
}

func (t *pgTx) CreateScenario(ctx context.Context, sc *model.Scenario) error {
	params := make(map[string]any, len(sc.Params)+1)
	for k, v := range sc.Params {
		params[k] = v
	}
	if sc.BuildID != "" {
		params[paramBuildID] = sc.BuildID
	}
	paramsJSON, err := marshalJSON(params)
	if err != nil {
		return fmt.Errorf("create scenario: params: %w", err)
	}
	statsJSON, err := marshalJSON(sc.Stats)
	if err != nil {
		return fmt.Errorf("create scenario: stats: %w", err)
	}
	if sc.BuiltAt.IsZero() {
		sc.BuiltAt = t.now()
	}
	err = t.tx.QueryRow(ctx, insertScenarioSQL, sc.VariantNo, sc.BuiltBy, sc.BuiltAt, paramsJSON, statsJSON).Scan(&sc.ID)
	if err != nil {
		return mapError("create scenario", err)
	}
	return nil
}

func (t *pgTx) InsertRoute(ctx context.Context, r *model.Route) error {
	geom := ""
	if len(r.Geometry) >= 2 {
		raw, err := geojson.NewGeometry(r.Geometry).MarshalJSON()
		if err != nil {
			return fmt.Errorf("insert route: geometry: %w", err)
		}
		geom = string(raw)
	}
	evidence, err := marshalJSON(r.Evidence)
	if err != nil {
		return fmt.Errorf("insert route: evidence: %w", err)
	}
	err = t.tx.QueryRow(ctx, insertRouteSQL,
		r.ScenarioID, r.OwnerID, r.Confidence,
		nullableID(r.StartWellID), nullableID(r.EndWellID),
		r.LengthM, geom, evidence,
	).Scan(&r.ID)
	if err != nil {
		return mapError("insert route", err)
	}

	if len(r.Directions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, d := range r.Directions {
		batch.Queue(insertRouteDirectionSQL, r.ID, d.Seq, d.DirectionID, d.LengthM)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapError("insert route directions", err)
	}
	return nil
}

func (t *pgTx) UpdateScenarioStats(ctx context.Context, scenarioID int64, stats model.ScenarioStats) error {
	raw, err := marshalJSON(stats)
	if err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	tag, err := t.tx.Exec(ctx, `UPDATE assumed_cable_scenarios SET stats_json = $1::jsonb WHERE id = $2`, raw, scenarioID)
	if err != nil {
		return mapError("update stats", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update stats: scenario %d: %w", scenarioID, ErrScenarioNotFound)
	}
	return nil
}

const paramBuildID = "build_id"

func marshalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func nullableID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

// mapError wraps err with the failing operation and turns a missing table
// into ErrSchemaMissing.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable {
		return fmt.Errorf("%s: %w: %s", op, ErrSchemaMissing, pgErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
