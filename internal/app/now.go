package app

import (
	"context"
	"time"

	"github.com/graaaaa/anatomydps/internal/derive"
)

// NowResult represents the live session state.
type NowResult struct {
	Character    string           `json:"character,omitempty"`
	Zone         *derive.ZoneInfo `json:"zone,omitempty"`
	ZoneEvents   int              `json:"zone_events"`
	TotalEvents  int              `json:"total_events"`
	LastDamageAt *time.Time       `json:"last_damage_at,omitempty"`
	LastError    string           `json:"last_error,omitempty"`
}

// NowUsecase defines the live session use case.
type NowUsecase interface {
	GetNow(ctx context.Context) NowResult
}

// NowService implements the live session view by wrapping derive.State.
type NowService struct {
	State *derive.State
}

// GetNow returns the current character and zone.
func (s NowService) GetNow(ctx context.Context) NowResult {
	snap := s.State.Snapshot()
	res := NowResult{
		Character:   snap.Character,
		Zone:        snap.Zone,
		ZoneEvents:  snap.Events,
		TotalEvents: snap.TotalEvents,
		LastError:   snap.LastError,
	}
	if !snap.LastDamageAt.IsZero() {
		t := snap.LastDamageAt
		res.LastDamageAt = &t
	}
	return res
}
