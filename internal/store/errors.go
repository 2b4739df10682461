package store

import "errors"

var (
	// ErrSchemaMissing is returned when the scenario tables are not provisioned.
	ErrSchemaMissing = errors.New("assumed cable schema missing")
	// ErrScenarioNotFound is returned when no scenario exists for a variant.
	ErrScenarioNotFound = errors.New("scenario not found")
)
