// Package repository holds the MySQL and Redis persistence adapters. The
// sentinel errors below let services tell "nothing there" and "constraint
// hit" apart from infrastructure failures without importing driver types.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key, such as a
// taken username or a second WAITED/COMPLETED reservation for the same
// ticket order and ride.
var ErrDuplicate = errors.New("duplicate")

// ErrStaleState is returned when a guarded update finds the row no longer in
// the expected state.
var ErrStaleState = errors.New("stale state")
