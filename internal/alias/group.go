package alias

import (
	"sort"

	"github.com/graaaaa/anatomydps/internal/event"
)

// Group merges rows that share a display name. Sums add up, first and last
// hits widen, and member ids and names are kept in ascending order. The
// result is sorted by total damage descending, then display name, and does
// not depend on the order of rows.
func Group(rows []event.DamageRow) []event.GroupedRow {
	byName := make(map[string]*event.GroupedRow)
	order := make([]string, 0)

	for _, r := range rows {
		name := r.DisplayName()
		g, ok := byName[name]
		if !ok {
			g = &event.GroupedRow{
				DisplayName: name,
				FirstHit:    r.FirstHit,
				LastHit:     r.LastHit,
			}
			byName[name] = g
			order = append(order, name)
		}
		g.PlayerIDs = append(g.PlayerIDs, r.PlayerID)
		g.OriginalNames = append(g.OriginalNames, r.OriginalName)
		g.HealthDmg += r.HealthDmg
		g.ArmorDmg += r.ArmorDmg
		g.TotalDmg += r.TotalDmg
		g.Kills += r.Kills
		if r.FirstHit.Before(g.FirstHit) {
			g.FirstHit = r.FirstHit
		}
		if r.LastHit.After(g.LastHit) {
			g.LastHit = r.LastHit
		}
	}

	out := make([]event.GroupedRow, 0, len(order))
	for _, name := range order {
		g := byName[name]
		sort.Slice(g.PlayerIDs, func(i, j int) bool { return g.PlayerIDs[i] < g.PlayerIDs[j] })
		sort.Strings(g.OriginalNames)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDmg != out[j].TotalDmg {
			return out[i].TotalDmg > out[j].TotalDmg
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out
}
