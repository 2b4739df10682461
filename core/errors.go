package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDirection marks a direction excluded from the graph.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrMissingEndpoint indicates a direction without both end wells.
	ErrMissingEndpoint = fmt.Errorf("%w: missing endpoint", ErrInvalidDirection)
	// ErrSelfLoop indicates a direction whose end wells are the same.
	ErrSelfLoop = fmt.Errorf("%w: start and end well coincide", ErrInvalidDirection)
	// ErrBadGeometry indicates a polyline with fewer than two points.
	ErrBadGeometry = fmt.Errorf("%w: geometry needs at least two points", ErrInvalidDirection)
	// ErrZeroLength indicates a direction with no measurable length.
	ErrZeroLength = fmt.Errorf("%w: zero length", ErrInvalidDirection)
	// ErrDuplicateDirection indicates a direction id seen more than once.
	ErrDuplicateDirection = fmt.Errorf("%w: duplicate id", ErrInvalidDirection)
)
