package store

import "github.com/graaaaa/anatomydps/internal/event"

// columns is a columnar copy of the damage events used by queries.
// Events are append-only, so the view only ever catches up with the tail
// it has not indexed yet. It is discarded only when the store is cleared.
type columns struct {
	n int

	zone   []int64
	target []int64
	player []int64
	health []int64
	armor  []int64
	ts     []int64

	byZone   map[int64][]int
	byPlayer map[int64]struct{}

	latest    int64
	latestIdx int
	hasLatest bool
}

func (c *columns) reset() {
	*c = columns{
		byZone:   make(map[int64][]int),
		byPlayer: make(map[int64]struct{}),
	}
}

// catchUp indexes events[c.n:].
func (c *columns) catchUp(events []event.DamageEvent) {
	for i := c.n; i < len(events); i++ {
		e := &events[i]
		ts := e.Ts.UnixNano()
		c.zone = append(c.zone, e.ZoneID)
		c.target = append(c.target, e.TargetID)
		c.player = append(c.player, e.PlayerID)
		c.health = append(c.health, e.HealthDmg)
		c.armor = append(c.armor, e.ArmorDmg)
		c.ts = append(c.ts, ts)
		if e.ZoneID != 0 {
			c.byZone[e.ZoneID] = append(c.byZone[e.ZoneID], i)
		}
		c.byPlayer[e.PlayerID] = struct{}{}
		if !c.hasLatest || ts > c.latest {
			c.latest = ts
			c.latestIdx = i
			c.hasLatest = true
		}
	}
	c.n = len(events)
}
