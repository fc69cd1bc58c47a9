package storage

import "errors"

var ErrNotFound = errors.New("resource not found")
var ErrConflict = errors.New("resource conflict (e.g., duplicate key)")

// ErrStaleState is returned by guarded updates whose status precondition no longer holds.
var ErrStaleState = errors.New("row is no longer in the expected state")
