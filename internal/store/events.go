package store

import (
	"fmt"

	"github.com/graaaaa/anatomydps/internal/event"
)

// InsertDamageEvent stores e and fills in its ID, PlayerID and ZoneName.
// Events without any damage are rejected with inserted=false and no error.
// When PlayerID is zero the player is resolved from PlayerName.
func (s *Store) InsertDamageEvent(e *event.DamageEvent) (inserted bool, err error) {
	if e == nil || e.Empty() {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(e)
}

// InsertDamageEvents stores a batch of events under one lock acquisition and
// returns how many were stored. Empty events and events naming an unknown
// zone are skipped.
func (s *Store) InsertDamageEvents(events []event.DamageEvent) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range events {
		if events[i].Empty() {
			continue
		}
		if ok, err := s.insertLocked(&events[i]); ok && err == nil {
			n++
		}
	}
	return n
}

func (s *Store) insertLocked(e *event.DamageEvent) (bool, error) {
	if e.ZoneID != 0 {
		if !s.zoneExistsLocked(e.ZoneID) {
			return false, fmt.Errorf("insert damage event for zone %d: %w", e.ZoneID, ErrUnknownZone)
		}
		z := &s.zones[e.ZoneID-1]
		e.ZoneName = z.Name
		if e.LogDate == "" {
			e.LogDate = z.LogDate
		}
	}
	if e.PlayerID <= 0 || e.PlayerID > int64(len(s.players)) {
		e.PlayerID = s.playerLocked(e.PlayerName)
	}
	e.PlayerName = s.players[e.PlayerID-1].OriginalName
	e.ID = int64(len(s.events) + 1)
	s.events = append(s.events, *e)
	return true, nil
}

// ExistingSignatures returns the signatures of every stored event imported
// with logDate. An empty logDate returns all signatures.
func (s *Store) ExistingSignatures(logDate string) map[event.Signature]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[event.Signature]struct{})
	for _, e := range s.events {
		if logDate != "" && e.LogDate != logDate {
			continue
		}
		out[e.Signature()] = struct{}{}
	}
	return out
}
