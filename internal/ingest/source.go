// Package ingest feeds combat log lines into the event store, either by
// following a live log file or by importing a complete one.
package ingest

import (
	"context"
	"time"

	"github.com/graaaaa/anatomydps/internal/event"
	"github.com/graaaaa/anatomydps/internal/parser"
)

// LineSource abstracts line production for testing.
// Implementations should close both channels when ctx is cancelled or on fatal error.
type LineSource interface {
	// Start begins producing lines. Returns channels that close on ctx.Done().
	// The error channel may receive multiple non-fatal errors during operation.
	Start(ctx context.Context) (<-chan Line, <-chan error, error)
}

// Line is one complete log line and the byte offset just past it.
type Line struct {
	Text   string
	Offset int64
}

// Store is the subset of the event store ingestion needs.
type Store interface {
	parser.Store
	GetOrCreatePlayers(names []string) map[string]int64
	InsertDamageEvents(events []event.DamageEvent) int
	ExistingSignatures(logDate string) map[event.Signature]struct{}
}

// Clock provides time for deterministic testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// DefaultClock is used when no clock is configured.
var DefaultClock Clock = realClock{}
