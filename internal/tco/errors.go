package tco

import "errors"

var (
	// ErrInvalidInput is returned when a required field is missing,
	// non-positive or non-finite once defaults have been applied.
	ErrInvalidInput = errors.New("invalid calculation input")

	// ErrNoActivePreset is returned when zero or several presets are active.
	ErrNoActivePreset = errors.New("no active rate preset")

	// ErrPresetNotFound is returned when a preset for a given year does not exist.
	ErrPresetNotFound = errors.New("rate preset not found")

	// ErrResolution is returned when a raw override value does not parse to a finite number.
	ErrResolution = errors.New("override does not resolve to a number")

	// ErrUnknownFuelType is returned for a fuel type outside diesel, bev, fcev and h2ice.
	ErrUnknownFuelType = errors.New("unknown fuel type")
)
