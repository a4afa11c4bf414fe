package ingest

import "errors"

// Sentinel errors for the ingest package.
var (
	// ErrLogNotFound is returned when the log file does not exist.
	ErrLogNotFound = errors.New("log file not found")

	// ErrAlreadyRunning is returned by Streamer.Start while a stream is active.
	ErrAlreadyRunning = errors.New("stream already running")

	// ErrStopTimeout is returned by Streamer.Stop when the stream did not
	// finish its current line in time.
	ErrStopTimeout = errors.New("stream did not stop in time")

	// ErrLoadInProgress is returned when a batch load is started while
	// another one is active.
	ErrLoadInProgress = errors.New("batch load already in progress")
)
