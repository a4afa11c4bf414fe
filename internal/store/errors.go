package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrUnknownZone is returned when an event references a zone instance
	// the store never created.
	ErrUnknownZone = errors.New("unknown zone instance")

	// ErrUnknownPlayer is returned when an alias update names a player id
	// the store never created.
	ErrUnknownPlayer = errors.New("unknown player")
)
