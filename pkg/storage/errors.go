package storage

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by Commit when a condition failed: the wallet version
// changed since it was read, a status moved on, or a unique key is already taken.
// The caller should reload and retry.
var ErrConflict = errors.New("concurrent modification conflict")
