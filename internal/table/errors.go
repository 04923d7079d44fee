package table

import "errors"

var (
	// ErrLockTimeout is returned when the advisory lock could not be taken
	// before the context ended.
	ErrLockTimeout = errors.New("table: lock not acquired")

	// ErrNotFound is returned by Get and Modify when no record has the id.
	ErrNotFound = errors.New("table: record not found")
)
