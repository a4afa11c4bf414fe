package event

import "time"

// Result kind constants, used as SSE event names.
const (
	KindCharacter = "character"
	KindZone      = "zone"
	KindDamage    = "damage"
	KindError     = "error"
)

// Result is something the streaming pipeline reports to its listener.
// The concrete types are CharacterDetected, ZoneChanged, DamageRecorded
// and ErrorReported.
type Result interface {
	Kind() string
	isResult()
}

// CharacterDetected reports a character login.
type CharacterDetected struct {
	Character string `json:"character"`
}

// ZoneChanged reports that a new zone instance was opened.
type ZoneChanged struct {
	Zone      string    `json:"zone"`
	ZoneID    int64     `json:"zone_id"`
	Character string    `json:"character,omitempty"`
	Ts        time.Time `json:"ts"`
}

// DamageRecorded reports a stored damage event.
type DamageRecorded struct {
	Event DamageEvent `json:"event"`
}

// ErrorReported reports a terminal pipeline error.
type ErrorReported struct {
	Message string `json:"message"`
}

func (CharacterDetected) Kind() string { return KindCharacter }
func (ZoneChanged) Kind() string       { return KindZone }
func (DamageRecorded) Kind() string    { return KindDamage }
func (ErrorReported) Kind() string     { return KindError }

func (CharacterDetected) isResult() {}
func (ZoneChanged) isResult()       {}
func (DamageRecorded) isResult()    {}
func (ErrorReported) isResult()     {}
