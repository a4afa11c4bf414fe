package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/graaaaa/anatomydps/internal/event"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return base.Add(time.Duration(sec) * time.Second)
}

func insert(t *testing.T, s *Store, e event.DamageEvent) int64 {
	t.Helper()
	ok, err := s.InsertDamageEvent(&e)
	if err != nil {
		t.Fatalf("InsertDamageEvent: %v", err)
	}
	if !ok {
		t.Fatalf("InsertDamageEvent(%+v) not inserted", e)
	}
	return e.ID
}

type recordingBook struct {
	*mapBook
	sets []string
}

func (b *recordingBook) SetAlias(name, alias string) {
	b.sets = append(b.sets, name+"="+alias)
	b.mapBook.SetAlias(name, alias)
}

func TestGetOrCreatePlayer_Idempotent(t *testing.T) {
	s := New()

	a := s.GetOrCreatePlayer("Alice")
	b := s.GetOrCreatePlayer("Bob")
	again := s.GetOrCreatePlayer("Alice")

	if a != 1 || b != 2 {
		t.Errorf("ids = %d, %d, want 1, 2", a, b)
	}
	if again != a {
		t.Errorf("second lookup = %d, want %d", again, a)
	}

	ids := s.GetOrCreatePlayers([]string{"Bob", "Carol", "Carol"})
	if ids["Bob"] != b || ids["Carol"] != 3 {
		t.Errorf("batch ids = %v", ids)
	}
	if got := s.Counts().Players; got != 3 {
		t.Errorf("players = %d, want 3", got)
	}
}

func TestNewPlayer_TakesAliasFromBook(t *testing.T) {
	book := &recordingBook{mapBook: newMapBook(map[string]string{"Alice": "Main"})}
	s := New(WithAliasBook(book))

	id := s.GetOrCreatePlayer("Alice")
	p, ok := s.Player(id)
	if !ok {
		t.Fatal("player not found")
	}
	if p.DisplayName() != "Main" {
		t.Errorf("display name = %q, want Main", p.DisplayName())
	}
}

func TestUpdateAlias_ReflectedInQueries(t *testing.T) {
	book := &recordingBook{mapBook: newMapBook(nil)}
	s := New(WithAliasBook(book))
	zone := s.CreateZoneInstance("AreaForest", "Hero", at(0), "")
	insert(t, s, event.DamageEvent{ZoneID: zone, TargetID: 1, PlayerName: "Alice", HealthDmg: 10, Ts: at(1)})

	// Populate the view before the alias changes.
	_ = s.DamageByZone(zone)

	pid := s.GetOrCreatePlayer("Alice")
	if err := s.UpdateAlias(pid, "  Tank  "); err != nil {
		t.Fatalf("UpdateAlias: %v", err)
	}

	rows := s.DamageByZone(zone)
	if len(rows) != 1 || rows[0].DisplayName() != "Tank" {
		t.Fatalf("rows = %+v, want display name Tank", rows)
	}
	if len(book.sets) != 1 || book.sets[0] != "Alice=  Tank  " {
		t.Errorf("book writes = %v", book.sets)
	}

	if err := s.UpdateAlias(pid, ""); err != nil {
		t.Fatalf("clear alias: %v", err)
	}
	if rows := s.DamageByZone(zone); rows[0].DisplayName() != "Alice" {
		t.Errorf("after clear display name = %q, want Alice", rows[0].DisplayName())
	}
}

// slowBook blocks SetAlias until released, like a persister on a slow disk.
type slowBook struct {
	*mapBook
	started chan struct{}
	release chan struct{}
}

func (b *slowBook) SetAlias(name, alias string) {
	close(b.started)
	<-b.release
	b.mapBook.SetAlias(name, alias)
}

func TestUpdateAlias_DoesNotBlockIngestion(t *testing.T) {
	book := &slowBook{mapBook: newMapBook(nil), started: make(chan struct{}), release: make(chan struct{})}
	s := New(WithAliasBook(book))
	zone := s.CreateZoneInstance("AreaForest", "Hero", at(0), "")
	pid := s.GetOrCreatePlayer("Alice")

	updated := make(chan error, 1)
	go func() { updated <- s.UpdateAlias(pid, "Tank") }()
	<-book.started

	inserted := make(chan struct{})
	go func() {
		_, _ = s.InsertDamageEvent(&event.DamageEvent{ZoneID: zone, TargetID: 1, PlayerName: "Bob", HealthDmg: 5, Ts: at(1)})
		_ = s.Counts()
		close(inserted)
	}()

	select {
	case <-inserted:
	case <-time.After(2 * time.Second):
		close(book.release)
		t.Fatal("insert waited for the alias book")
	}

	close(book.release)
	if err := <-updated; err != nil {
		t.Fatalf("UpdateAlias: %v", err)
	}
	if p, _ := s.Player(pid); p.Alias != "Tank" {
		t.Errorf("alias = %q, want Tank", p.Alias)
	}
}

func TestUpdateAlias_UnknownPlayer(t *testing.T) {
	s := New()
	err := s.UpdateAlias(42, "x")
	if !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("err = %v, want ErrUnknownPlayer", err)
	}
	if s.Counts().Players != 0 {
		t.Error("unknown player update must not create a player")
	}
}

func TestUpdateAliasByName(t *testing.T) {
	s := New()
	s.UpdateAliasByName("Bob", "Healer")

	id := s.GetOrCreatePlayer("Bob")
	p, _ := s.Player(id)
	if p.Alias != "Healer" {
		t.Errorf("alias = %q, want Healer", p.Alias)
	}

	s.UpdateAliasByName("Bob", "Support")
	p, _ = s.Player(id)
	if p.Alias != "Support" {
		t.Errorf("alias = %q, want Support", p.Alias)
	}
}

func TestCreateZoneInstance_Lifecycle(t *testing.T) {
	s := New()

	forest := s.CreateZoneInstance("AreaForest", "Hero", at(0), "2024-03-01")
	if again := s.CreateZoneInstance("AreaForest", "Hero", at(60), "2024-03-01"); again != forest {
		t.Errorf("re-entry id = %d, want %d", again, forest)
	}

	city := s.CreateZoneInstance("AreaCity", "Hero", at(120), "2024-03-01")
	if city == forest {
		t.Fatal("new zone should get a new id")
	}

	z, _ := s.Zone(forest)
	if z.Open() {
		t.Error("previous zone should be closed")
	}
	if !z.LeftAt.Equal(at(120)) {
		t.Errorf("left at = %v, want %v", z.LeftAt, at(120))
	}

	open, ok := s.CurrentOpenZone("Hero")
	if !ok || open != city {
		t.Errorf("open zone = %d, %v, want %d", open, ok, city)
	}

	other := s.CreateZoneInstance("AreaForest", "Sidekick", at(130), "2024-03-01")
	if other == forest {
		t.Error("another character must get its own instance")
	}
	if open, _ := s.CurrentOpenZone("Hero"); open != city {
		t.Error("another character's entry must not close Hero's zone")
	}
}

func TestCreateZoneInstance_SameVisitReturnsExisting(t *testing.T) {
	s := New()
	forest := s.CreateZoneInstance("AreaForest", "Hero", at(0), "d")
	city := s.CreateZoneInstance("AreaCity", "Hero", at(100), "d")

	if got := s.CreateZoneInstance("AreaForest", "Hero", at(0), "d"); got != forest {
		t.Errorf("replayed visit = %d, want %d", got, forest)
	}
	if got := s.CreateZoneInstance("AreaCity", "Hero", at(100), "d"); got != city {
		t.Errorf("replayed visit = %d, want %d", got, city)
	}
	if n := s.Counts().Zones; n != 2 {
		t.Errorf("zones = %d, want 2", n)
	}
}

func TestInsertDamageEvent_RejectsEmpty(t *testing.T) {
	s := New()
	e := event.DamageEvent{TargetID: 1, PlayerName: "Alice", Ts: at(0)}
	ok, err := s.InsertDamageEvent(&e)
	if err != nil || ok {
		t.Errorf("InsertDamageEvent(empty) = %v, %v, want false, nil", ok, err)
	}
	if s.Counts().Events != 0 || s.Counts().Players != 0 {
		t.Error("empty event must not touch the store")
	}
}

func TestInsertDamageEvent_UnknownZone(t *testing.T) {
	s := New()
	e := event.DamageEvent{ZoneID: 9, TargetID: 1, PlayerName: "Alice", HealthDmg: 1, Ts: at(0)}
	ok, err := s.InsertDamageEvent(&e)
	if ok || !errors.Is(err, ErrUnknownZone) {
		t.Errorf("got %v, %v, want false, ErrUnknownZone", ok, err)
	}
}

func TestInsertDamageEvent_FillsDerivedFields(t *testing.T) {
	s := New()
	zone := s.CreateZoneInstance("AreaForest", "Hero", at(0), "2024-03-01")
	e := event.DamageEvent{ZoneID: zone, TargetID: 1, PlayerName: "Alice", ArmorDmg: 5, Ts: at(1)}
	if _, err := s.InsertDamageEvent(&e); err != nil {
		t.Fatal(err)
	}
	if e.ID != 1 || e.PlayerID != 1 || e.ZoneName != "AreaForest" || e.LogDate != "2024-03-01" {
		t.Errorf("event = %+v", e)
	}
}

func TestInsertDamageEvents_Batch(t *testing.T) {
	s := New()
	zone := s.CreateZoneInstance("AreaForest", "Hero", at(0), "")
	n := s.InsertDamageEvents([]event.DamageEvent{
		{ZoneID: zone, TargetID: 1, PlayerName: "Alice", HealthDmg: 5, Ts: at(1)},
		{ZoneID: zone, TargetID: 1, PlayerName: "Bob", Ts: at(1)},
		{ZoneID: 99, TargetID: 1, PlayerName: "Bob", HealthDmg: 5, Ts: at(1)},
		{TargetID: 2, PlayerName: "Bob", HealthDmg: 7, Ts: at(2)},
	})
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}
}

func TestExistingSignatures_FiltersByLogDate(t *testing.T) {
	s := New()
	day1 := s.CreateZoneInstance("AreaForest", "Hero", at(0), "2024-03-01")
	day2 := s.CreateZoneInstance("AreaCity", "Hero", at(100), "2024-03-02")
	insert(t, s, event.DamageEvent{ZoneID: day1, TargetID: 1, PlayerName: "Alice", HealthDmg: 5, Ts: at(1)})
	insert(t, s, event.DamageEvent{ZoneID: day2, TargetID: 2, PlayerName: "Alice", HealthDmg: 6, Ts: at(101)})

	sigs := s.ExistingSignatures("2024-03-01")
	if len(sigs) != 1 {
		t.Fatalf("signatures = %v, want 1", sigs)
	}
	want := event.Signature{ZoneID: day1, TargetID: 1, PlayerID: 1, HealthDmg: 5}
	if _, ok := sigs[want]; !ok {
		t.Errorf("missing signature %+v in %v", want, sigs)
	}
	if all := s.ExistingSignatures(""); len(all) != 2 {
		t.Errorf("all signatures = %d, want 2", len(all))
	}
}

func TestAddWisdomAndZoneStats(t *testing.T) {
	s := New()
	zone := s.CreateZoneInstance("AreaForest", "Hero", at(0), "")
	insert(t, s, event.DamageEvent{ZoneID: zone, TargetID: 42, PlayerName: "Alice", HealthDmg: 50, ArmorDmg: 10, Ts: at(5)})
	insert(t, s, event.DamageEvent{ZoneID: zone, TargetID: 42, PlayerName: "Bob", HealthDmg: 30, Ts: at(5)})
	insert(t, s, event.DamageEvent{ZoneID: zone, TargetID: 43, PlayerName: "Alice", HealthDmg: 100, Ts: at(10)})

	s.AddWisdom(zone, 5)
	s.AddWisdom(zone, 7)
	s.AddWisdom(zone, -1)
	s.AddWisdom(99, 100)

	st := s.ZoneStats(zone)
	want := event.ZoneStats{Kills: 2, TotalDamage: 190, Wisdom: 12}
	if st != want {
		t.Errorf("ZoneStats = %+v, want %+v", st, want)
	}
}

func TestClear_KeepsAliases(t *testing.T) {
	s := New()
	zone := s.CreateZoneInstance("AreaForest", "Hero", at(0), "")
	insert(t, s, event.DamageEvent{ZoneID: zone, TargetID: 1, PlayerName: "Alice", HealthDmg: 5, Ts: at(1)})
	s.UpdateAliasByName("Alice", "Tank")

	s.Clear()

	if c := s.Counts(); c != (event.Counts{}) {
		t.Errorf("counts after clear = %+v", c)
	}
	if _, ok := s.CurrentOpenZone("Hero"); ok {
		t.Error("open zones should be cleared")
	}
	if _, ok := s.LatestDamageTime(); ok {
		t.Error("latest damage time should be cleared")
	}

	id := s.GetOrCreatePlayer("Alice")
	if id != 1 {
		t.Errorf("id counter not reset: %d", id)
	}
	p, _ := s.Player(id)
	if p.Alias != "Tank" {
		t.Errorf("alias lost across clear: %q", p.Alias)
	}
}

func TestStore_ConcurrentWritersAndReaders(t *testing.T) {
	s := New()
	zone := s.CreateZoneInstance("AreaForest", "Hero", at(0), "")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				e := event.DamageEvent{
					ZoneID:     zone,
					TargetID:   int64(i),
					PlayerName: fmt.Sprintf("P%d", w),
					HealthDmg:  1,
					Ts:         at(i),
				}
				if _, err := s.InsertDamageEvent(&e); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = s.DamageByZone(zone)
				_ = s.DamageInRange(at(0), at(300), "")
			}
		}()
	}
	wg.Wait()

	rows := s.DamageByZone(zone)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	for _, r := range rows {
		if r.TotalDmg != 250 || r.Kills != 250 {
			t.Errorf("row %+v, want total 250 and 250 kills", r)
		}
	}
}

func TestReenterZoneInstance_OpensNewInstance(t *testing.T) {
	s := New()
	first := s.CreateZoneInstance("AreaForest", "Hero", at(0), "d")
	second := s.ReenterZoneInstance("AreaForest", "Hero", at(30), "d")
	if second == first {
		t.Fatal("re-entry should open a new instance")
	}
	z, _ := s.Zone(first)
	if z.Open() {
		t.Error("first instance should be closed by the re-entry")
	}
	if again := s.ReenterZoneInstance("AreaForest", "Hero", at(30), "d"); again != second {
		t.Errorf("replayed re-entry = %d, want %d", again, second)
	}
}

func TestCreateZoneInstance_ReplayIgnoresLaterOpenVisit(t *testing.T) {
	s := New()
	first := s.CreateZoneInstance("AreaForest", "Hero", at(0), "d")
	s.CreateZoneInstance("AreaCity", "Hero", at(300), "d")
	last := s.CreateZoneInstance("AreaForest", "Hero", at(600), "d")

	if got := s.CreateZoneInstance("AreaForest", "Hero", at(0), "d"); got != first {
		t.Errorf("replayed first visit = %d, want %d (open visit is %d)", got, first, last)
	}
}
