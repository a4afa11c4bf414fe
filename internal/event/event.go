// Package event provides the shared domain records for AnatomyDPS.
// This package is used by the parser, store, alias, ingest and api packages.
package event

import "time"

// Player is one distinct combatant name seen in the log.
type Player struct {
	ID           int64  `json:"id"`
	OriginalName string `json:"original_name"`
	Alias        string `json:"alias,omitempty"`
}

// DisplayName returns the alias when set, otherwise the original name.
func (p Player) DisplayName() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.OriginalName
}

// ZoneInstance is one visit of a character to a zone.
// LeftAt is nil while the visit is still open.
type ZoneInstance struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Character string     `json:"character,omitempty"`
	EnteredAt time.Time  `json:"entered_at"`
	LeftAt    *time.Time `json:"left_at,omitempty"`
	LogDate   string     `json:"log_date,omitempty"`
}

// Open reports whether the character is still inside the instance.
func (z ZoneInstance) Open() bool {
	return z.LeftAt == nil
}

// DamageEvent is one player's contribution to one kill.
// ZoneID is zero when the damage could not be attributed to a zone instance.
type DamageEvent struct {
	ID         int64     `json:"id"`
	ZoneID     int64     `json:"zone_id,omitempty"`
	ZoneName   string    `json:"zone_name,omitempty"`
	TargetID   int64     `json:"target_id"`
	TargetName string    `json:"target_name"`
	PlayerID   int64     `json:"player_id,omitempty"`
	PlayerName string    `json:"player_name"`
	HealthDmg  int64     `json:"health_dmg"`
	ArmorDmg   int64     `json:"armor_dmg"`
	Aggro      *float64  `json:"aggro,omitempty"`
	Ts         time.Time `json:"ts"`
	Character  string    `json:"character,omitempty"`
	LogDate    string    `json:"log_date,omitempty"`
}

// Total returns health plus armor damage.
func (e DamageEvent) Total() int64 {
	return e.HealthDmg + e.ArmorDmg
}

// Empty reports whether the event carries no damage at all.
// Empty events are never stored.
func (e DamageEvent) Empty() bool {
	return e.HealthDmg == 0 && e.ArmorDmg == 0
}

// Signature returns the deduplication key of the event.
func (e DamageEvent) Signature() Signature {
	return Signature{
		ZoneID:    e.ZoneID,
		TargetID:  e.TargetID,
		PlayerID:  e.PlayerID,
		HealthDmg: e.HealthDmg,
		ArmorDmg:  e.ArmorDmg,
	}
}

// WisdomAward records combat wisdom earned inside a zone instance.
type WisdomAward struct {
	ZoneID int64 `json:"zone_id"`
	Amount int64 `json:"amount"`
}

// Signature identifies a damage event across imports of the same log.
type Signature struct {
	ZoneID    int64
	TargetID  int64
	PlayerID  int64
	HealthDmg int64
	ArmorDmg  int64
}

// Float64Ptr returns a pointer to the given value.
// Useful for setting optional fields.
func Float64Ptr(v float64) *float64 {
	return &v
}
