package event

import (
	"time"

	"github.com/goccy/go-json"
)

// DamageRow is the aggregated damage of one player over a set of events.
type DamageRow struct {
	PlayerID     int64     `json:"player_id"`
	OriginalName string    `json:"original_name"`
	Alias        string    `json:"alias,omitempty"`
	HealthDmg    int64     `json:"health_dmg"`
	ArmorDmg     int64     `json:"armor_dmg"`
	TotalDmg     int64     `json:"total_dmg"`
	Kills        int       `json:"kills"`
	FirstHit     time.Time `json:"first_hit"`
	LastHit      time.Time `json:"last_hit"`
}

// DisplayName returns the alias when set, otherwise the original name.
func (r DamageRow) DisplayName() string {
	if r.Alias != "" {
		return r.Alias
	}
	return r.OriginalName
}

// MarshalJSON adds display_name to the row's fields.
func (r DamageRow) MarshalJSON() ([]byte, error) {
	type fields DamageRow
	return json.Marshal(struct {
		fields
		DisplayName string `json:"display_name"`
	}{fields(r), r.DisplayName()})
}

// GroupedRow merges the rows of every player sharing one display name.
type GroupedRow struct {
	DisplayName   string    `json:"display_name"`
	PlayerIDs     []int64   `json:"player_ids"`
	OriginalNames []string  `json:"original_names"`
	HealthDmg     int64     `json:"health_dmg"`
	ArmorDmg      int64     `json:"armor_dmg"`
	TotalDmg      int64     `json:"total_dmg"`
	Kills         int       `json:"kills"`
	FirstHit      time.Time `json:"first_hit"`
	LastHit       time.Time `json:"last_hit"`
}

// CombatTimes spans the damage recorded in one or more zone instances.
type CombatTimes struct {
	First   time.Time `json:"first"`
	Last    time.Time `json:"last"`
	Targets int       `json:"targets"`
}

// Duration returns Last minus First, or zero when nothing was recorded.
func (c CombatTimes) Duration() time.Duration {
	if c.First.IsZero() || c.Last.IsZero() {
		return 0
	}
	return c.Last.Sub(c.First)
}

// ZoneStats summarizes one zone instance.
// Kills counts distinct target ids, which the game may reuse.
type ZoneStats struct {
	Kills       int   `json:"kills"`
	TotalDamage int64 `json:"total_damage"`
	Wisdom      int64 `json:"wisdom"`
}

// Counts reports the sizes of the store collections.
type Counts struct {
	Players int `json:"players"`
	Zones   int `json:"zones"`
	Events  int `json:"events"`
}
