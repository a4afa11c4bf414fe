// Package parser turns classified log lines into combat events.
//
// A Context is the cursor over one log stream. It remembers the current
// character and zone, the last corpse searched, and the calendar day the
// HH:MM:SS timestamps belong to. Each line yields at most one damage event.
package parser

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/graaaaa/anatomydps/internal/event"
	"github.com/graaaaa/anatomydps/internal/logline"
)

// DefaultZoneDebounce is how long a repeated transition into the same zone
// is treated as the same visit.
const DefaultZoneDebounce = 30 * time.Second

// DateLayout is the layout of log dates.
const DateLayout = "2006-01-02"

// Mode selects how damage events leave the context.
type Mode uint8

const (
	// Streaming writes every event to the store immediately and reports
	// results to the listener.
	Streaming Mode = iota
	// Batch hands events to the batch sink and reports nothing.
	Batch
)

// Store is the subset of the event store the parser writes to.
type Store interface {
	CreateZoneInstance(name, character string, ts time.Time, logDate string) int64
	ReenterZoneInstance(name, character string, ts time.Time, logDate string) int64
	InsertDamageEvent(e *event.DamageEvent) (bool, error)
	AddWisdom(zoneID, amount int64)
}

// Listener receives results in streaming mode.
type Listener func(event.Result)

type corpse struct {
	id   int64
	name string
	ts   time.Time
}

type zoneKey struct {
	name      string
	character string
}

// Position is where a stream resumes: the active character and the zone
// instance they are inside. A zero ZoneID means no open zone.
type Position struct {
	Character string
	Zone      string
	ZoneID    int64
	EnteredAt time.Time
}

// Context is the per-stream parsing state. It is not safe for concurrent use.
type Context struct {
	store    Store
	mode     Mode
	listener Listener
	sink     func(event.DamageEvent)
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
	debounce time.Duration

	logDate string
	day     time.Time
	last    time.Time
	hasLast bool

	character string
	zone      string
	zoneID    int64

	lastZone   string
	lastZoneAt time.Time
	hasZone    bool

	pending *corpse

	// entered holds the distinct zone and character pairs a batch opened
	// an instance for; it only feeds the completion summary.
	entered map[zoneKey]struct{}
}

// Option configures a Context.
type Option func(*Context)

// WithMode selects streaming or batch mode.
func WithMode(m Mode) Option {
	return func(c *Context) {
		c.mode = m
	}
}

// WithListener sets the streaming result listener.
func WithListener(l Listener) Option {
	return func(c *Context) {
		c.listener = l
	}
}

// WithBatchSink sets where batch mode damage events go.
func WithBatchSink(fn func(event.DamageEvent)) Option {
	return func(c *Context) {
		c.sink = fn
	}
}

// WithLogDate anchors timestamps to the given YYYY-MM-DD date.
// Invalid dates are ignored.
func WithLogDate(date string) Option {
	return func(c *Context) {
		c.logDate = date
	}
}

// WithLocation sets the time zone log timestamps are in.
func WithLocation(loc *time.Location) Option {
	return func(c *Context) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithClock sets the time source used for the default anchor day.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		if now != nil {
			c.now = now
		}
	}
}

// WithZoneDebounce overrides DefaultZoneDebounce.
func WithZoneDebounce(d time.Duration) Option {
	return func(c *Context) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

// WithPosition resumes from p, e.g. after an import of the same file.
// The resumed zone counts as entered at p.EnteredAt for debouncing.
func WithPosition(p Position) Option {
	return func(c *Context) {
		c.character = p.Character
		if p.ZoneID == 0 {
			return
		}
		c.zone, c.zoneID = p.Zone, p.ZoneID
		c.lastZone, c.lastZoneAt, c.hasZone = p.Zone, p.EnteredAt, true
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Context writing to store.
func New(store Store, opts ...Option) *Context {
	c := &Context{
		store:    store,
		logger:   slog.Default(),
		loc:      time.Local,
		now:      time.Now,
		debounce: DefaultZoneDebounce,
		entered:  make(map[zoneKey]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logDate != "" {
		if d, err := time.ParseInLocation(DateLayout, c.logDate, c.loc); err == nil {
			c.day = d
		} else {
			c.logger.Warn("invalid log date, using today", "log_date", c.logDate, "error", err)
			c.logDate = ""
		}
	}
	if c.day.IsZero() {
		n := c.now().In(c.loc)
		c.day = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, c.loc)
	}
	if c.logDate == "" {
		c.logDate = c.day.Format(DateLayout)
	}
	return c
}

// LogDate returns the date zone instances are tagged with.
func (c *Context) LogDate() string { return c.logDate }

// Character returns the last character that logged in.
func (c *Context) Character() string { return c.character }

// Zone returns the current zone name and instance id.
func (c *Context) Zone() (string, int64) { return c.zone, c.zoneID }

// ParseLine consumes one raw line and returns the damage event it produced,
// or nil. In streaming mode the event has already been stored.
func (c *Context) ParseLine(line string) *event.DamageEvent {
	l := logline.Classify(line)

	switch l.Category {
	case logline.CharacterLogin:
		c.character = l.Character
		c.emit(event.CharacterDetected{Character: c.character})
	case logline.ZoneTransition:
		c.enterZone(l)
	case logline.CorpseSearch:
		c.searchCorpse(l)
	case logline.DamageReport:
		return c.damage(l)
	case logline.WisdomAward:
		c.wisdom(l)
	}
	return nil
}

// timestamp converts HH:MM:SS to an absolute time on the anchor day.
// A time earlier than the previous one means the log crossed midnight.
func (c *Context) timestamp(hms string) (time.Time, bool) {
	clock, err := time.Parse("15:04:05", hms)
	if err != nil {
		return time.Time{}, false
	}
	ts := c.onDay(clock)
	if c.hasLast && ts.Before(c.last) {
		c.day = c.day.AddDate(0, 0, 1)
		ts = c.onDay(clock)
	}
	c.last = ts
	c.hasLast = true
	return ts, true
}

func (c *Context) onDay(clock time.Time) time.Time {
	return time.Date(c.day.Year(), c.day.Month(), c.day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, c.loc)
}

// current returns the last produced timestamp, or the start of the anchor day.
func (c *Context) current() time.Time {
	if c.hasLast {
		return c.last
	}
	return c.day
}

func (c *Context) enterZone(l logline.Line) {
	ts, ok := c.timestamp(l.Time)
	if !ok {
		return
	}

	// A kill searched before the transition never belongs to the zone
	// entered, reload or not.
	c.pending = nil

	repeat := c.hasZone && c.lastZone == l.Zone
	if repeat && ts.Sub(c.lastZoneAt) < c.debounce {
		c.zone = l.Zone
		return
	}

	c.zone = l.Zone
	c.lastZone = l.Zone
	c.lastZoneAt = ts
	c.hasZone = true

	if repeat {
		c.zoneID = c.store.ReenterZoneInstance(l.Zone, c.character, ts, c.logDate)
	} else {
		c.zoneID = c.store.CreateZoneInstance(l.Zone, c.character, ts, c.logDate)
	}

	if c.mode == Batch {
		c.entered[zoneKey{name: l.Zone, character: c.character}] = struct{}{}
		return
	}
	c.emit(event.ZoneChanged{Zone: l.Zone, ZoneID: c.zoneID, Character: c.character, Ts: ts})
}

// ZonesEntered returns how many distinct zone and character pairs a batch
// context has entered.
func (c *Context) ZonesEntered() int {
	return len(c.entered)
}

func (c *Context) searchCorpse(l logline.Line) {
	id, err := strconv.ParseInt(l.TargetID, 10, 64)
	if err != nil {
		return
	}
	ts := c.current()
	if l.Time != "" {
		if parsed, ok := c.timestamp(l.Time); ok {
			ts = parsed
		}
	}
	c.pending = &corpse{id: id, name: l.TargetName, ts: ts}
}

func (c *Context) damage(l logline.Line) *event.DamageEvent {
	if c.pending == nil {
		return nil
	}
	health := parseAmount(l.Health)
	armor := parseAmount(l.Armor)
	if health == 0 && armor == 0 {
		return nil
	}

	e := event.DamageEvent{
		ZoneID:     c.zoneID,
		ZoneName:   c.zone,
		TargetID:   c.pending.id,
		TargetName: c.pending.name,
		PlayerName: l.Player,
		HealthDmg:  health,
		ArmorDmg:   armor,
		Ts:         c.pending.ts,
		Character:  c.character,
		LogDate:    c.logDate,
	}
	if l.Aggro != "" {
		if v, err := strconv.ParseFloat(l.Aggro, 64); err == nil {
			e.Aggro = event.Float64Ptr(v)
		}
	}

	if c.mode == Batch {
		if c.sink != nil {
			c.sink(e)
		}
		return &e
	}

	inserted, err := c.store.InsertDamageEvent(&e)
	if err != nil {
		c.logger.Debug("damage event rejected", "player", e.PlayerName, "error", err)
		return nil
	}
	if inserted {
		c.emit(event.DamageRecorded{Event: e})
	}
	return &e
}

func (c *Context) wisdom(l logline.Line) {
	if c.zoneID == 0 {
		return
	}
	if n := parseAmount(l.Wisdom); n > 0 {
		c.store.AddWisdom(c.zoneID, n)
	}
}

func (c *Context) emit(r event.Result) {
	if c.mode == Batch || c.listener == nil {
		return
	}
	c.listener(r)
}

func parseAmount(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
