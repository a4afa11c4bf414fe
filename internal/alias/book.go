// Package alias maps original player names to display aliases and groups
// damage rows by display name.
package alias

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Persister is notified of every alias change so it can be saved.
type Persister interface {
	SaveAlias(name, alias string) error
}

// Book is a thread-safe original name to alias mapping.
// Reads are shared; writes are serialized.
type Book struct {
	mu      sync.RWMutex
	aliases map[string]string
	persist Persister
	logger  *slog.Logger
}

// Option configures a Book.
type Option func(*Book)

// WithPersister sets the hook called after each change.
func WithPersister(p Persister) Option {
	return func(b *Book) {
		b.persist = p
	}
}

// WithLogger sets the logger for persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Book) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBook creates a Book seeded with initial. The map is copied.
func NewBook(initial map[string]string, opts ...Option) *Book {
	b := &Book{
		aliases: make(map[string]string, len(initial)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	for name, a := range initial {
		if a = Normalize(a); a != "" {
			b.aliases[name] = a
		}
	}
	return b
}

// Normalize trims an alias and converts it to Unicode NFC so visually equal
// aliases compare equal.
func Normalize(alias string) string {
	return norm.NFC.String(strings.TrimSpace(alias))
}

// Alias returns the alias for name, or "".
func (b *Book) Alias(name string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.aliases[name]
}

// SetAlias records alias for name; an empty alias removes the entry.
// Persistence errors are logged and do not undo the change.
func (b *Book) SetAlias(name, alias string) {
	alias = Normalize(alias)

	b.mu.Lock()
	if alias == "" {
		delete(b.aliases, name)
	} else {
		b.aliases[name] = alias
	}
	b.mu.Unlock()

	if b.persist == nil {
		return
	}
	if err := b.persist.SaveAlias(name, alias); err != nil {
		b.logger.Warn("failed to persist alias", "name", name, "error", err)
	}
}

// Snapshot returns a copy of the mapping.
func (b *Book) Snapshot() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.aliases))
	for k, v := range b.aliases {
		out[k] = v
	}
	return out
}

// Names returns the original names that have an alias, sorted.
func (b *Book) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.aliases))
	for k := range b.aliases {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
