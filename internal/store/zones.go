package store

import (
	"sort"
	"time"

	"github.com/graaaaa/anatomydps/internal/event"
)

// CreateZoneInstance records that character entered zone name at ts and
// returns the id of the instance the character is now in.
//
// If an instance with the same zone, character and entry time already
// exists, as happens when a log is imported twice, its id is returned. If the
// character is already in an open instance of the same zone, that id is
// returned unchanged. Otherwise the character's open instance is closed at ts and a
// new open instance is created.
func (s *Store) CreateZoneInstance(name, character string, ts time.Time, logDate string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	visit := zoneVisit{name: name, character: character, entered: ts.UnixNano()}
	if id, ok := s.zoneVisits[visit]; ok {
		return id
	}
	if id, ok := s.openZones[character]; ok && s.zones[id-1].Name == name {
		return id
	}
	return s.openZoneLocked(name, character, ts, logDate)
}

// ReenterZoneInstance records a genuine re-entry: unlike CreateZoneInstance
// it opens a new instance even when the character is already in an open
// instance of the same zone. Replayed visits still resolve to their
// existing instance.
func (s *Store) ReenterZoneInstance(name, character string, ts time.Time, logDate string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openZoneLocked(name, character, ts, logDate)
}

func (s *Store) openZoneLocked(name, character string, ts time.Time, logDate string) int64 {
	visit := zoneVisit{name: name, character: character, entered: ts.UnixNano()}
	if id, ok := s.zoneVisits[visit]; ok {
		return id
	}

	if id, ok := s.openZones[character]; ok {
		left := ts
		s.zones[id-1].LeftAt = &left
	}

	id := int64(len(s.zones) + 1)
	s.zones = append(s.zones, event.ZoneInstance{
		ID:        id,
		Name:      name,
		Character: character,
		EnteredAt: ts,
		LogDate:   logDate,
	})
	s.openZones[character] = id
	s.zoneVisits[visit] = id
	return id
}

// CurrentOpenZone returns the open instance id for character.
func (s *Store) CurrentOpenZone(character string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.openZones[character]
	return id, ok
}

// Zone returns the zone instance with the given id.
func (s *Store) Zone(id int64) (event.ZoneInstance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.zoneExistsLocked(id) {
		return event.ZoneInstance{}, false
	}
	return copyZone(s.zones[id-1]), true
}

func (s *Store) zoneExistsLocked(id int64) bool {
	return id > 0 && id <= int64(len(s.zones))
}

// AddWisdom credits amount combat wisdom to a zone instance.
// Unknown zones and non-positive amounts are ignored.
func (s *Store) AddWisdom(zoneID, amount int64) {
	if amount <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.zoneExistsLocked(zoneID) {
		return
	}
	s.wisdom[zoneID] += amount
}

// ZoneFilter narrows ZoneInstances. Empty fields match everything.
type ZoneFilter struct {
	Name    string
	LogDate string
}

// ZoneInstances returns matching zone instances, most recently entered first.
func (s *Store) ZoneInstances(f ZoneFilter) []event.ZoneInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.ZoneInstance, 0)
	for _, z := range s.zones {
		if f.Name != "" && z.Name != f.Name {
			continue
		}
		if f.LogDate != "" && z.LogDate != f.LogDate {
			continue
		}
		out = append(out, copyZone(z))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EnteredAt.Equal(out[j].EnteredAt) {
			return out[i].EnteredAt.After(out[j].EnteredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ZoneNames returns the distinct zone names, sorted.
func (s *Store) ZoneNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, z := range s.zones {
		if _, ok := seen[z.Name]; ok {
			continue
		}
		seen[z.Name] = struct{}{}
		out = append(out, z.Name)
	}
	sort.Strings(out)
	return out
}

// LogDates returns the distinct non-empty log dates, newest first.
func (s *Store) LogDates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, z := range s.zones {
		if z.LogDate == "" {
			continue
		}
		if _, ok := seen[z.LogDate]; ok {
			continue
		}
		seen[z.LogDate] = struct{}{}
		out = append(out, z.LogDate)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// ZoneStats summarizes one zone instance. Kills counts distinct target ids.
func (s *Store) ZoneStats(zoneID int64) event.ZoneStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.catchUp(s.events)

	var st event.ZoneStats
	targets := make(map[int64]struct{})
	for _, i := range s.view.byZone[zoneID] {
		st.TotalDamage += s.view.health[i] + s.view.armor[i]
		targets[s.view.target[i]] = struct{}{}
	}
	st.Kills = len(targets)
	st.Wisdom = s.wisdom[zoneID]
	return st
}

func copyZone(z event.ZoneInstance) event.ZoneInstance {
	if z.LeftAt != nil {
		left := *z.LeftAt
		z.LeftAt = &left
	}
	return z
}
