package scenario

import "errors"

var (
	// ErrRebuildInProgress is returned when another rebuild holds the lock.
	ErrRebuildInProgress = errors.New("rebuild already in progress")
	// ErrInvalidVariant indicates a variant number with no strategy.
	ErrInvalidVariant = errors.New("invalid variant")
)
