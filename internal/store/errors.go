package store

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist in the database.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would break a uniqueness rule.
	ErrConflict = errors.New("conflict")

	// ErrInvalid is returned when a record fails validation before it is written.
	ErrInvalid = errors.New("invalid record")

	// ErrActivePreset is returned when deleting the preset currently in use.
	ErrActivePreset = errors.New("preset is active")
)
