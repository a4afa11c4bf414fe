package app

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/graaaaa/anatomydps/internal/event"
)

// StatsResult represents the response for the stats endpoint.
type StatsResult struct {
	Players      int     `json:"players"`
	Zones        int     `json:"zones"`
	Events       int     `json:"events"`
	Summary      string  `json:"summary"`
	LastDamageAt *string `json:"last_damage_at,omitempty"`
}

// StatsUsecase defines the interface for stats operations.
type StatsUsecase interface {
	GetStats(ctx context.Context) StatsResult
}

// StatsStore defines the interface for stats data access.
type StatsStore interface {
	Counts() event.Counts
	LatestDamageTime() (time.Time, bool)
}

// StatsService reports store totals.
type StatsService struct {
	store StatsStore
}

// NewStatsService creates a new StatsService.
func NewStatsService(store StatsStore) *StatsService {
	return &StatsService{store: store}
}

// GetStats returns the store totals.
func (s *StatsService) GetStats(ctx context.Context) StatsResult {
	c := s.store.Counts()
	res := StatsResult{
		Players: c.Players,
		Zones:   c.Zones,
		Events:  c.Events,
		Summary: humanize.Comma(int64(c.Events)) + " damage events in " +
			humanize.Comma(int64(c.Zones)) + " zones",
	}
	if ts, ok := s.store.LatestDamageTime(); ok {
		v := ts.Format(time.RFC3339)
		res.LastDamageAt = &v
	}
	return res
}
