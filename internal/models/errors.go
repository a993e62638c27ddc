package models

import "errors"

var (
	// ErrInvalidArgument is returned for empty names and malformed coordinates.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfRange is returned for index-based access past the end of a list.
	ErrOutOfRange = errors.New("index out of range")

	// ErrNotFound is returned when a task id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned when location access is unavailable.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrPersistenceFailure wraps load/save errors from the backing store.
	ErrPersistenceFailure = errors.New("persistence failure")
)
