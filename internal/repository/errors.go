package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a write would violate a uniqueness constraint.
	ErrConflict = errors.New("entity already exists")

	// ErrStale is returned by conditional updates when the row no longer has the
	// expected status, i.e. a concurrent caller changed it first.
	ErrStale = errors.New("entity modified concurrently")
)
