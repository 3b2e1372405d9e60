package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness or concurrent-update conflict.
	ErrConflict = errors.New("repository: conflict")
	// ErrUnavailable indicates the backing store could not be reached.
	// Callers may retry the operation.
	ErrUnavailable = errors.New("repository: store unavailable")
)
