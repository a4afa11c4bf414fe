package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/graaaaa/anatomydps/internal/event"
)

// GetOrCreatePlayer returns the id for name, creating the player on first sight.
func (s *Store) GetOrCreatePlayer(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerLocked(name)
}

// GetOrCreatePlayers resolves many names under one lock acquisition.
func (s *Store) GetOrCreatePlayers(names []string) map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]int64, len(names))
	for _, name := range names {
		if _, ok := ids[name]; ok {
			continue
		}
		ids[name] = s.playerLocked(name)
	}
	return ids
}

func (s *Store) playerLocked(name string) int64 {
	if id, ok := s.playerByName[name]; ok {
		return id
	}
	id := int64(len(s.players) + 1)
	s.players = append(s.players, event.Player{
		ID:           id,
		OriginalName: name,
		Alias:        s.aliases.Alias(name),
	})
	s.playerByName[name] = id
	return id
}

// Player returns the player with the given id.
func (s *Store) Player(id int64) (event.Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id <= 0 || id > int64(len(s.players)) {
		return event.Player{}, false
	}
	return s.players[id-1], true
}

// UpdateAlias sets the alias of a player and writes it through to the alias
// book. An empty alias clears it. Every query issued afterwards reflects the
// new display name. An unknown id returns ErrUnknownPlayer.
func (s *Store) UpdateAlias(id int64, alias string) error {
	s.mu.Lock()
	if id <= 0 || id > int64(len(s.players)) {
		s.mu.Unlock()
		return fmt.Errorf("update alias for player %d: %w", id, ErrUnknownPlayer)
	}
	name := s.players[id-1].OriginalName
	s.mu.Unlock()

	s.setAlias(name, alias)
	return nil
}

// UpdateAliasByName sets the alias for an original name whether or not the
// player has been seen yet.
func (s *Store) UpdateAliasByName(name, alias string) {
	s.setAlias(name, alias)
}

// setAlias writes the book outside the store lock, then refreshes the
// player's cached alias. A player created in between already reads the new
// alias from the book.
func (s *Store) setAlias(name, alias string) {
	s.aliases.SetAlias(name, alias)

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.playerByName[name]; ok {
		s.players[id-1].Alias = s.aliases.Alias(name)
	}
}

// Players returns the players who dealt damage, sorted by original name.
// A non-empty filter keeps players whose original name or alias contains it,
// ignoring case.
func (s *Store) Players(filter string) []event.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.catchUp(s.events)

	filter = strings.ToLower(strings.TrimSpace(filter))
	out := make([]event.Player, 0)
	for _, p := range s.players {
		if _, dealt := s.view.byPlayer[p.ID]; !dealt {
			continue
		}
		if filter != "" &&
			!strings.Contains(strings.ToLower(p.OriginalName), filter) &&
			!strings.Contains(strings.ToLower(p.Alias), filter) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].OriginalName), strings.ToLower(out[j].OriginalName)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}
