package app

import (
	"context"
	"fmt"
	"time"

	"github.com/graaaaa/anatomydps/internal/alias"
	"github.com/graaaaa/anatomydps/internal/event"
)

// Report kinds.
const (
	ReportCurrent = "current"
	ReportRolling = "rolling"
	ReportSession = "session"
)

// DefaultRollingWindow is used when no window is configured or requested.
const DefaultRollingWindow = 5 * time.Minute

// minCombat is the floor applied to combat durations before dividing.
const minCombat = time.Second

// ReportStore defines store operations needed by ReportService.
type ReportStore interface {
	CurrentOpenZone(character string) (int64, bool)
	Zone(id int64) (event.ZoneInstance, bool)
	DamageByZone(zoneID int64) []event.DamageRow
	DamageByZones(zoneIDs []int64) []event.DamageRow
	DamageInRange(start, end time.Time, character string) []event.DamageRow
	LatestDamageTime() (time.Time, bool)
	CombatTimes(zoneIDs ...int64) event.CombatTimes
}

// CharacterSource reports the active character.
type CharacterSource interface {
	Character() string
}

// ReportRow is one grouped damage line with its rates.
type ReportRow struct {
	event.GroupedRow
	DPS     float64 `json:"dps"`
	Percent float64 `json:"percent"`
}

// Report is a damage table over some slice of the log.
type Report struct {
	Kind          string              `json:"kind"`
	Zone          *event.ZoneInstance `json:"zone,omitempty"`
	ZoneIDs       []int64             `json:"zone_ids,omitempty"`
	Start         *time.Time          `json:"start,omitempty"`
	End           *time.Time          `json:"end,omitempty"`
	CombatSeconds float64             `json:"combat_seconds"`
	Kills         int                 `json:"kills"`
	TotalDamage   int64               `json:"total_damage"`
	Rows          []ReportRow         `json:"rows"`
	Message       string              `json:"message,omitempty"`
}

// Compact renders one short line per row, e.g. "Alice: 12.3K 1.2K/s 61%".
func (r Report) Compact() []string {
	secs := r.CombatSeconds
	if secs <= 0 {
		secs = minCombat.Seconds()
	}
	out := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, fmt.Sprintf("%s: %s %s/s %.0f%%",
			TruncateName(row.DisplayName, 8),
			FormatDamageShort(row.TotalDmg),
			FormatDamageShort(int64(float64(row.TotalDmg)/secs)),
			row.Percent,
		))
	}
	return out
}

// ReportUsecase defines the damage report use cases.
type ReportUsecase interface {
	Current(ctx context.Context) Report
	Rolling(ctx context.Context, window time.Duration) Report
	Session(ctx context.Context, zoneIDs []int64) (Report, error)
}

// ReportService implements ReportUsecase.
type ReportService struct {
	Store         ReportStore
	Characters    CharacterSource
	RollingWindow time.Duration
}

// Current reports the open zone instance of the active character.
func (s ReportService) Current(ctx context.Context) Report {
	rep := Report{Kind: ReportCurrent, Rows: []ReportRow{}}

	character := ""
	if s.Characters != nil {
		character = s.Characters.Character()
	}
	if character == "" {
		rep.Message = "No character detected"
		return rep
	}

	zoneID, ok := s.Store.CurrentOpenZone(character)
	if !ok {
		rep.Message = "Not in a zone"
		return rep
	}
	if z, ok := s.Store.Zone(zoneID); ok {
		rep.Zone = &z
	}
	rep.ZoneIDs = []int64{zoneID}

	groups := alias.Group(s.Store.DamageByZone(zoneID))
	ct := s.Store.CombatTimes(zoneID)
	rep.Kills = ct.Targets

	combat := minCombat
	if ct.Targets > 0 {
		combat = floorCombat(ct.Duration())
	} else {
		rep.Message = "No kills yet"
	}
	fill(&rep, groups, combat)
	return rep
}

// Rolling reports the last window of log time, ending at the newest damage
// timestamp rather than the wall clock. A non-positive window uses the
// configured default.
func (s ReportService) Rolling(ctx context.Context, window time.Duration) Report {
	rep := Report{Kind: ReportRolling, Rows: []ReportRow{}}
	if window <= 0 {
		window = s.RollingWindow
	}
	if window <= 0 {
		window = DefaultRollingWindow
	}

	latest, ok := s.Store.LatestDamageTime()
	if !ok {
		rep.Message = "No damage data"
		return rep
	}
	start := latest.Add(-window)
	rep.Start, rep.End = &start, &latest

	groups := alias.Group(s.Store.DamageInRange(start, latest, ""))
	if len(groups) == 0 {
		rep.Message = fmt.Sprintf("No damage in last %.0f min of log", window.Minutes())
		return rep
	}

	var first, last time.Time
	for _, g := range groups {
		if !g.FirstHit.IsZero() && (first.IsZero() || g.FirstHit.Before(first)) {
			first = g.FirstHit
		}
		if g.LastHit.After(last) {
			last = g.LastHit
		}
	}

	combat := window
	if !first.IsZero() && !last.IsZero() {
		combat = floorCombat(last.Sub(first))
	}
	fill(&rep, groups, combat)
	return rep
}

// Session reports the union of the selected zone instances.
func (s ReportService) Session(ctx context.Context, zoneIDs []int64) (Report, error) {
	if len(zoneIDs) == 0 {
		return Report{}, ErrNoZonesSelected
	}
	rep := Report{Kind: ReportSession, ZoneIDs: zoneIDs, Rows: []ReportRow{}}
	if len(zoneIDs) == 1 {
		if z, ok := s.Store.Zone(zoneIDs[0]); ok {
			rep.Zone = &z
		}
	}

	groups := alias.Group(s.Store.DamageByZones(zoneIDs))
	if len(groups) == 0 {
		rep.Message = fmt.Sprintf("%d zone(s) selected - No damage data", len(zoneIDs))
		return rep, nil
	}

	ct := s.Store.CombatTimes(zoneIDs...)
	rep.Kills = ct.Targets
	combat := minCombat
	if !ct.First.IsZero() && !ct.Last.IsZero() {
		combat = floorCombat(ct.Duration())
	}
	fill(&rep, groups, combat)
	return rep, nil
}

func floorCombat(d time.Duration) time.Duration {
	if d < minCombat {
		return minCombat
	}
	return d
}

func fill(rep *Report, groups []event.GroupedRow, combat time.Duration) {
	rep.CombatSeconds = combat.Seconds()
	for _, g := range groups {
		rep.TotalDamage += g.TotalDmg
	}
	for _, g := range groups {
		row := ReportRow{
			GroupedRow: g,
			DPS:        float64(g.TotalDmg) / rep.CombatSeconds,
		}
		if rep.TotalDamage > 0 {
			row.Percent = float64(g.TotalDmg) / float64(rep.TotalDamage) * 100
		}
		rep.Rows = append(rep.Rows, row)
	}
}
