package app

import (
	"context"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/graaaaa/anatomydps/internal/alias"
	"github.com/graaaaa/anatomydps/internal/event"
)

// MaxAliasLength is the longest alias accepted, in runes.
const MaxAliasLength = 64

// PlayerStore defines store operations needed by PlayersService.
type PlayerStore interface {
	Players(filter string) []event.Player
	Player(id int64) (event.Player, bool)
	UpdateAlias(id int64, alias string) error
}

// PlayersUsecase defines the player listing and alias editing use case.
type PlayersUsecase interface {
	List(ctx context.Context, filter string) []event.Player
	SetAlias(ctx context.Context, id int64, alias string) (event.Player, error)
}

// PlayersService lists players and edits their aliases.
type PlayersService struct {
	Store PlayerStore
}

// List returns players who dealt damage, optionally filtered.
func (s PlayersService) List(ctx context.Context, filter string) []event.Player {
	return s.Store.Players(filter)
}

// SetAlias sets or, with an empty alias, clears the alias of a player and
// returns the updated player.
func (s PlayersService) SetAlias(ctx context.Context, id int64, name string) (event.Player, error) {
	name = alias.Normalize(name)
	if err := validateAlias(name); err != nil {
		return event.Player{}, err
	}
	if err := s.Store.UpdateAlias(id, name); err != nil {
		return event.Player{}, err
	}
	p, _ := s.Store.Player(id)
	return p, nil
}

func validateAlias(name string) error {
	if n := utf8.RuneCountInString(name); n > MaxAliasLength {
		return fmt.Errorf("%w: %d characters, at most %d allowed", ErrInvalidAlias, n, MaxAliasLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character %U", ErrInvalidAlias, r)
		}
	}
	return nil
}
