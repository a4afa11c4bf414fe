package store

import (
	"sort"
	"time"

	"github.com/graaaaa/anatomydps/internal/event"
)

// DamageByZone aggregates the damage recorded in one zone instance.
func (s *Store) DamageByZone(zoneID int64) []event.DamageRow {
	return s.DamageByZones([]int64{zoneID})
}

// DamageByZones aggregates the damage recorded in any of the given zone
// instances. Duplicate ids are counted once.
func (s *Store) DamageByZones(zoneIDs []int64) []event.DamageRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.catchUp(s.events)

	agg := newAggregator()
	seen := make(map[int64]struct{}, len(zoneIDs))
	for _, id := range zoneIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		for _, i := range s.view.byZone[id] {
			agg.add(&s.view, i)
		}
	}
	return agg.rows(s.players, s.locationLocked())
}

// DamageInRange aggregates the damage with timestamps in [start, end].
// A non-empty character keeps only events logged by that character.
func (s *Store) DamageInRange(start, end time.Time, character string) []event.DamageRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.catchUp(s.events)

	lo, hi := start.UnixNano(), end.UnixNano()
	agg := newAggregator()
	for i, ts := range s.view.ts {
		if ts < lo || ts > hi {
			continue
		}
		if character != "" && s.events[i].Character != character {
			continue
		}
		agg.add(&s.view, i)
	}
	return agg.rows(s.players, s.locationLocked())
}

// LatestDamageTime returns the timestamp of the most recent damage event.
func (s *Store) LatestDamageTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.catchUp(s.events)
	if !s.view.hasLatest {
		return time.Time{}, false
	}
	return s.events[s.view.latestIdx].Ts, true
}

// CombatTimes returns the first and last damage timestamps and the number of
// distinct targets across the given zone instances.
func (s *Store) CombatTimes(zoneIDs ...int64) event.CombatTimes {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.catchUp(s.events)

	var ct event.CombatTimes
	var first, last int64
	found := false
	targets := make(map[int64]struct{})
	for _, id := range zoneIDs {
		for _, i := range s.view.byZone[id] {
			ts := s.view.ts[i]
			if !found || ts < first {
				first = ts
			}
			if !found || ts > last {
				last = ts
			}
			found = true
			targets[s.view.target[i]] = struct{}{}
		}
	}
	if !found {
		return ct
	}
	ct.First = time.Unix(0, first).In(s.locationLocked())
	ct.Last = time.Unix(0, last).In(s.locationLocked())
	ct.Targets = len(targets)
	return ct
}

// locationLocked returns the location log timestamps were parsed in.
func (s *Store) locationLocked() *time.Location {
	if len(s.events) > 0 {
		return s.events[0].Ts.Location()
	}
	return time.Local
}

type playerAgg struct {
	health, armor int64
	first, last   int64
	targets       map[int64]struct{}
}

type aggregator struct {
	byPlayer map[int64]*playerAgg
	order    []int64
}

func newAggregator() *aggregator {
	return &aggregator{byPlayer: make(map[int64]*playerAgg)}
}

func (a *aggregator) add(c *columns, i int) {
	pid := c.player[i]
	p, ok := a.byPlayer[pid]
	if !ok {
		p = &playerAgg{first: c.ts[i], last: c.ts[i], targets: make(map[int64]struct{})}
		a.byPlayer[pid] = p
		a.order = append(a.order, pid)
	}
	p.health += c.health[i]
	p.armor += c.armor[i]
	if c.ts[i] < p.first {
		p.first = c.ts[i]
	}
	if c.ts[i] > p.last {
		p.last = c.ts[i]
	}
	p.targets[c.target[i]] = struct{}{}
}

// rows resolves display names from players and sorts by total damage
// descending, then display name, then player id.
func (a *aggregator) rows(players []event.Player, loc *time.Location) []event.DamageRow {
	out := make([]event.DamageRow, 0, len(a.order))
	for _, pid := range a.order {
		p := a.byPlayer[pid]
		row := event.DamageRow{
			PlayerID:  pid,
			HealthDmg: p.health,
			ArmorDmg:  p.armor,
			TotalDmg:  p.health + p.armor,
			Kills:     len(p.targets),
			FirstHit:  time.Unix(0, p.first).In(loc),
			LastHit:   time.Unix(0, p.last).In(loc),
		}
		if pid > 0 && pid <= int64(len(players)) {
			row.OriginalName = players[pid-1].OriginalName
			row.Alias = players[pid-1].Alias
		}
		out = append(out, row)
	}
	SortRows(out)
	return out
}

// SortRows orders rows by total damage descending, then display name, then
// player id.
func SortRows(rows []event.DamageRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalDmg != rows[j].TotalDmg {
			return rows[i].TotalDmg > rows[j].TotalDmg
		}
		if a, b := rows[i].DisplayName(), rows[j].DisplayName(); a != b {
			return a < b
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
}
