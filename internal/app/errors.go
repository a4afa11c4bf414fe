package app

import "errors"

// Sentinel errors for the app package.
var (
	// ErrInvalidAlias is returned when an alias is too long or contains
	// control characters.
	ErrInvalidAlias = errors.New("invalid alias")

	// ErrNoZonesSelected is returned by a session report without zone ids.
	ErrNoZonesSelected = errors.New("no zones selected")

	// ErrInvalidDate is returned when a log date is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid log date")

	// ErrNotRunning is returned when cancelling an import while none runs.
	ErrNotRunning = errors.New("no import running")
)
