package app

import (
	"context"

	"github.com/graaaaa/anatomydps/internal/event"
	"github.com/graaaaa/anatomydps/internal/store"
)

// ZoneStore defines store operations needed by ZonesService.
type ZoneStore interface {
	ZoneInstances(f store.ZoneFilter) []event.ZoneInstance
	ZoneStats(zoneID int64) event.ZoneStats
	ZoneNames() []string
	LogDates() []string
}

// ZoneQuery filters the zone run listing. Empty fields match everything.
type ZoneQuery struct {
	Name      string
	LogDate   string
	MinWisdom int64
}

// ZoneRun is one zone instance with its summary.
type ZoneRun struct {
	event.ZoneInstance
	Stats event.ZoneStats `json:"stats"`
}

// ZoneFilters lists the values the zone run listing can be filtered by.
type ZoneFilters struct {
	Names    []string `json:"names"`
	LogDates []string `json:"log_dates"`
}

// ZonesUsecase defines the zone run listing use case.
type ZonesUsecase interface {
	List(ctx context.Context, q ZoneQuery) []ZoneRun
	Filters(ctx context.Context) ZoneFilters
}

// ZonesService lists zone runs.
type ZonesService struct {
	Store ZoneStore
}

// List returns zone runs, most recent first, dropping runs that earned
// less wisdom than q.MinWisdom.
func (s ZonesService) List(ctx context.Context, q ZoneQuery) []ZoneRun {
	zones := s.Store.ZoneInstances(store.ZoneFilter{Name: q.Name, LogDate: q.LogDate})
	out := make([]ZoneRun, 0, len(zones))
	for _, z := range zones {
		st := s.Store.ZoneStats(z.ID)
		if st.Wisdom < q.MinWisdom {
			continue
		}
		out = append(out, ZoneRun{ZoneInstance: z, Stats: st})
	}
	return out
}

// Filters returns the distinct zone names and log dates.
func (s ZonesService) Filters(ctx context.Context) ZoneFilters {
	return ZoneFilters{
		Names:    s.Store.ZoneNames(),
		LogDates: s.Store.LogDates(),
	}
}
