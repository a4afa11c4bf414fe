// Package store provides the in-memory event store for AnatomyDPS.
//
// The store owns every player, zone instance, damage event and wisdom award
// together with their id counters. Collections are append-only slices indexed
// by hash maps; ids are slice positions plus one. All methods are safe for
// concurrent use.
package store

import (
	"strings"
	"sync"

	"github.com/graaaaa/anatomydps/internal/event"
)

// AliasBook is the original name to alias mapping consulted by the store.
// It must be safe for concurrent use: SetAlias runs without the store lock
// so a book that persists never stalls ingestion.
type AliasBook interface {
	// Alias returns the alias for name, or "" when none is set.
	Alias(name string) string
	// SetAlias records alias for name. An empty alias clears it.
	SetAlias(name, alias string)
}

// Store holds all ingested combat data in memory.
type Store struct {
	mu      sync.Mutex
	aliases AliasBook

	players      []event.Player
	playerByName map[string]int64

	zones      []event.ZoneInstance
	openZones  map[string]int64 // character -> open zone id
	zoneVisits map[zoneVisit]int64

	events []event.DamageEvent
	wisdom map[int64]int64

	view columns
}

// zoneVisit identifies one entry into a zone, so re-importing a log
// resolves to the instances the first import created.
type zoneVisit struct {
	name      string
	character string
	entered   int64
}

// Option configures a Store.
type Option func(*Store)

// WithAliasBook sets the alias mapping. Without it the store keeps aliases
// in a private map.
func WithAliasBook(b AliasBook) Option {
	return func(s *Store) {
		if b != nil {
			s.aliases = b
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{aliases: newMapBook(nil)}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked()
	return s
}

// Clear removes every player, zone instance, event and wisdom award and
// resets the id counters. Aliases survive because they live in the book.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Store) resetLocked() {
	s.players = nil
	s.playerByName = make(map[string]int64)
	s.zones = nil
	s.openZones = make(map[string]int64)
	s.zoneVisits = make(map[zoneVisit]int64)
	s.events = nil
	s.wisdom = make(map[int64]int64)
	s.view.reset()
}

// Counts returns the number of players, zone instances and damage events.
func (s *Store) Counts() event.Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return event.Counts{
		Players: len(s.players),
		Zones:   len(s.zones),
		Events:  len(s.events),
	}
}

// mapBook is the default AliasBook.
type mapBook struct {
	mu sync.RWMutex
	m  map[string]string
}

func newMapBook(initial map[string]string) *mapBook {
	b := &mapBook{m: make(map[string]string, len(initial))}
	for k, v := range initial {
		b.m[k] = v
	}
	return b
}

func (b *mapBook) Alias(name string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m[name]
}

func (b *mapBook) SetAlias(name, alias string) {
	alias = strings.TrimSpace(alias)
	b.mu.Lock()
	defer b.mu.Unlock()
	if alias == "" {
		delete(b.m, name)
		return
	}
	b.m[name] = alias
}
