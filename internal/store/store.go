// Package store persists assumed cable scenarios and reads the inventory
// dataset they are built from.
package store

import (
	"context"

	"github.com/signalsfoundry/assumed-cables/model"
)

// DatasetSource loads everything a rebuild reads from the domain schema.
type DatasetSource interface {
	LoadDataset(ctx context.Context) (model.Dataset, error)
}

// ScenarioTx is the write side of one atomic scenario replacement.
type ScenarioTx interface {
	// ClearAll removes every scenario, route and route direction.
	ClearAll(ctx context.Context) error
	// DeleteScenario removes the scenario of a variant with its routes.
	DeleteScenario(ctx context.Context, variant int) error
	// CreateScenario inserts sc and sets sc.ID.
	CreateScenario(ctx context.Context, sc *model.Scenario) error
	// InsertRoute inserts r with its direction breakdown and sets r.ID.
	InsertRoute(ctx context.Context, r *model.Route) error
	UpdateScenarioStats(ctx context.Context, scenarioID int64, stats model.ScenarioStats) error
}

// ScenarioWriter runs fn inside one transaction. Nothing fn wrote is
// visible to readers unless fn returns nil and the commit succeeds.
type ScenarioWriter interface {
	ReplaceScenarios(ctx context.Context, fn func(tx ScenarioTx) error) error
}

// AuditLogger records administrative actions.
type AuditLogger interface {
	RecordAudit(ctx context.Context, entry model.AuditEntry) error
}

// ScenarioReader serves the read views from committed data.
type ScenarioReader interface {
	// LatestScenario returns the live scenario of a variant or
	// ErrScenarioNotFound.
	LatestScenario(ctx context.Context, variant int) (model.Scenario, error)
	// ScenarioRoutes lists a scenario's routes ordered by id.
	ScenarioRoutes(ctx context.Context, scenarioID int64) ([]model.RouteView, error)
	// TotalUnaccounted sums the current positive unaccounted cable counts.
	TotalUnaccounted(ctx context.Context) (int, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	DatasetSource
	ScenarioWriter
	ScenarioReader
	AuditLogger

	// CheckSchema returns ErrSchemaMissing when the scenario tables do not
	// exist.
	CheckSchema(ctx context.Context) error
	Close()
}
