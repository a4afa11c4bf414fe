// Package derive tracks live session state from streaming pipeline results.
// It remembers the active character and zone so reports can focus on them.
package derive

import (
	"sync"
	"time"

	"github.com/graaaaa/anatomydps/internal/event"
)

// ChangeType indicates what changed after processing a result.
type ChangeType int

const (
	// ChangeCharacter indicates a login switched the active character.
	ChangeCharacter ChangeType = iota + 1
	// ChangeZone indicates a new zone instance became current.
	ChangeZone
)

// Change represents a session state change.
type Change struct {
	Type     ChangeType
	Result   event.Result // Original result that triggered this
	PrevZone *ZoneInfo    // Previous zone (only for ChangeZone)
}

// ZoneInfo describes the current zone instance.
type ZoneInfo struct {
	ZoneID    int64     `json:"zone_id"`
	Name      string    `json:"name"`
	Character string    `json:"character,omitempty"`
	EnteredAt time.Time `json:"entered_at"`
}

// Snapshot is a point-in-time copy of the session.
type Snapshot struct {
	Character    string
	Zone         *ZoneInfo
	Events       int       // damage events since entering the current zone
	TotalEvents  int       // damage events since the session started
	LastDamageAt time.Time // zero when nothing was recorded
	LastError    string
}

// State tracks the current session derived from results.
// It is safe for concurrent use.
type State struct {
	mu          sync.RWMutex
	character   string
	zone        *ZoneInfo
	zoneEvents  int
	totalEvents int
	lastDamage  time.Time
	lastError   string
}

// New creates a new State.
func New() *State {
	return &State{}
}

// Update processes a result and returns the change it caused.
// Returns nil if the session did not change character or zone.
func (s *State) Update(r event.Result) *Change {
	if r == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := r.(type) {
	case event.CharacterDetected:
		return s.handleCharacter(v)
	case event.ZoneChanged:
		return s.handleZone(v)
	case event.DamageRecorded:
		s.handleDamage(v)
	case event.ErrorReported:
		s.lastError = v.Message
	}
	return nil
}

func (s *State) handleCharacter(r event.CharacterDetected) *Change {
	if r.Character == "" || r.Character == s.character {
		return nil
	}
	s.character = r.Character
	return &Change{Type: ChangeCharacter, Result: r}
}

func (s *State) handleZone(r event.ZoneChanged) *Change {
	if s.zone != nil && s.zone.ZoneID == r.ZoneID {
		return nil
	}

	prev := s.zone
	s.zone = &ZoneInfo{
		ZoneID:    r.ZoneID,
		Name:      r.Zone,
		Character: r.Character,
		EnteredAt: r.Ts,
	}
	if r.Character != "" {
		s.character = r.Character
	}
	s.zoneEvents = 0

	return &Change{Type: ChangeZone, Result: r, PrevZone: prev}
}

func (s *State) handleDamage(r event.DamageRecorded) {
	s.totalEvents++
	if s.zone != nil && r.Event.ZoneID == s.zone.ZoneID {
		s.zoneEvents++
	}
	if r.Event.Ts.After(s.lastDamage) {
		s.lastDamage = r.Event.Ts
	}
}

// CurrentZone returns a copy of the current zone (nil before any zone).
func (s *State) CurrentZone() *ZoneInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.zone == nil {
		return nil
	}
	cpy := *s.zone
	return &cpy
}

// Character returns the active character, or "".
func (s *State) Character() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.character
}

// Snapshot returns a copy of the whole session.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Character:    s.character,
		Events:       s.zoneEvents,
		TotalEvents:  s.totalEvents,
		LastDamageAt: s.lastDamage,
		LastError:    s.lastError,
	}
	if s.zone != nil {
		cpy := *s.zone
		snap.Zone = &cpy
	}
	return snap
}

// Reset forgets everything, e.g. after the store was cleared.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.character = ""
	s.zone = nil
	s.zoneEvents = 0
	s.totalEvents = 0
	s.lastDamage = time.Time{}
	s.lastError = ""
}
