package ingest

import (
	"github.com/graaaaa/anatomydps/internal/event"
	"github.com/graaaaa/anatomydps/internal/parser"
)

// ZoneLookup finds the instance a character is inside.
type ZoneLookup interface {
	CurrentOpenZone(character string) (int64, bool)
	Zone(id int64) (event.ZoneInstance, bool)
}

// Resume is where a follow picks up after an import of the same file.
type Resume struct {
	Offset   int64
	Position parser.Position
}

// ResumeAfter derives the follow offset and parser position from a finished
// import. The zone is the character's open instance in zones.
func ResumeAfter(c Completion, zones ZoneLookup) Resume {
	r := Resume{Offset: c.Offset, Position: parser.Position{Character: c.Character}}
	if c.Character == "" {
		return r
	}
	id, ok := zones.CurrentOpenZone(c.Character)
	if !ok {
		return r
	}
	if z, ok := zones.Zone(id); ok {
		r.Position.Zone = z.Name
		r.Position.ZoneID = z.ID
		r.Position.EnteredAt = z.EnteredAt
	}
	return r
}

// Results returns the session results the resumed position implies, for
// consumers that track the active character and zone.
func (r Resume) Results() []event.Result {
	p := r.Position
	if p.Character == "" {
		return nil
	}
	out := []event.Result{event.CharacterDetected{Character: p.Character}}
	if p.ZoneID != 0 {
		out = append(out, event.ZoneChanged{Zone: p.Zone, ZoneID: p.ZoneID, Character: p.Character, Ts: p.EnteredAt})
	}
	return out
}
