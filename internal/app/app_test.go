package app

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/graaaaa/anatomydps/internal/derive"
	"github.com/graaaaa/anatomydps/internal/event"
	"github.com/graaaaa/anatomydps/internal/ingest"
	"github.com/graaaaa/anatomydps/internal/store"
)

var base = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return base.Add(time.Duration(sec) * time.Second) }

func mustInsert(t *testing.T, s *store.Store, e event.DamageEvent) {
	t.Helper()
	if _, err := s.InsertDamageEvent(&e); err != nil {
		t.Fatalf("InsertDamageEvent: %v", err)
	}
}

// seed builds two runs of one zone for character Hero. Alice and Bob deal
// damage in the first; Alice alone in the second, which is still open.
func seed(t *testing.T) (*store.Store, int64, int64) {
	t.Helper()
	s := store.New()
	first := s.CreateZoneInstance("Crypt", "Hero", at(0), "2024-03-01")
	mustInsert(t, s, event.DamageEvent{ZoneID: first, TargetID: 1, PlayerName: "Alice", HealthDmg: 300, Ts: at(10)})
	mustInsert(t, s, event.DamageEvent{ZoneID: first, TargetID: 1, PlayerName: "Bob", HealthDmg: 100, Ts: at(10)})
	mustInsert(t, s, event.DamageEvent{ZoneID: first, TargetID: 2, PlayerName: "Alice", HealthDmg: 400, ArmorDmg: 200, Ts: at(20)})
	s.AddWisdom(first, 900)

	second := s.ReenterZoneInstance("Crypt", "Hero", at(100), "2024-03-01")
	mustInsert(t, s, event.DamageEvent{ZoneID: second, TargetID: 7, PlayerName: "Alice", HealthDmg: 50, Ts: at(130)})
	return s, first, second
}

type fixedCharacter string

func (c fixedCharacter) Character() string { return string(c) }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestReportService_Current(t *testing.T) {
	s, _, second := seed(t)
	svc := ReportService{Store: s, Characters: fixedCharacter("Hero")}

	rep := svc.Current(context.Background())

	if rep.Zone == nil || rep.Zone.ID != second {
		t.Fatalf("zone = %+v, want id %d", rep.Zone, second)
	}
	if rep.Kills != 1 {
		t.Errorf("kills = %d, want 1", rep.Kills)
	}
	// A single hit spans zero seconds; the floor keeps DPS finite.
	if rep.CombatSeconds != 1 {
		t.Errorf("combat seconds = %v, want 1", rep.CombatSeconds)
	}
	if len(rep.Rows) != 1 || rep.Rows[0].DisplayName != "Alice" || rep.Rows[0].DPS != 50 {
		t.Errorf("rows = %+v", rep.Rows)
	}
	if rep.Rows[0].Percent != 100 {
		t.Errorf("percent = %v, want 100", rep.Rows[0].Percent)
	}
}

func TestReportService_CurrentWithoutCharacterOrZone(t *testing.T) {
	s, _, _ := seed(t)

	rep := ReportService{Store: s}.Current(context.Background())
	if rep.Message != "No character detected" || len(rep.Rows) != 0 {
		t.Errorf("no session: %+v", rep)
	}

	rep = ReportService{Store: s, Characters: fixedCharacter("Stranger")}.Current(context.Background())
	if rep.Message != "Not in a zone" {
		t.Errorf("unknown character: %+v", rep)
	}
}

func TestReportService_CurrentNoKillsYet(t *testing.T) {
	s := store.New()
	s.CreateZoneInstance("Keep", "Hero", at(0), "2024-03-01")

	rep := ReportService{Store: s, Characters: fixedCharacter("Hero")}.Current(context.Background())
	if rep.Message != "No kills yet" || rep.CombatSeconds != 1 || rep.Rows == nil {
		t.Errorf("report = %+v", rep)
	}
}

func TestReportService_Session(t *testing.T) {
	s, first, second := seed(t)
	svc := ReportService{Store: s}

	rep, err := svc.Session(context.Background(), []int64{first, second})
	if err != nil {
		t.Fatal(err)
	}

	if rep.TotalDamage != 1050 {
		t.Errorf("total = %d, want 1050", rep.TotalDamage)
	}
	if rep.Kills != 3 {
		t.Errorf("kills = %d, want 3", rep.Kills)
	}
	// First hit at 10s, last at 130s.
	if rep.CombatSeconds != 120 {
		t.Errorf("combat seconds = %v, want 120", rep.CombatSeconds)
	}
	if len(rep.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rep.Rows))
	}
	alice, bob := rep.Rows[0], rep.Rows[1]
	if alice.DisplayName != "Alice" || alice.TotalDmg != 950 {
		t.Errorf("alice = %+v", alice)
	}
	if !near(alice.DPS, 950.0/120) || !near(bob.DPS, 100.0/120) {
		t.Errorf("dps = %v, %v", alice.DPS, bob.DPS)
	}
	if !near(alice.Percent+bob.Percent, 100) {
		t.Errorf("percent sum = %v", alice.Percent+bob.Percent)
	}
}

func TestReportService_SessionGroupsAliases(t *testing.T) {
	s, first, _ := seed(t)
	bob := s.GetOrCreatePlayer("Bob")
	alice := s.GetOrCreatePlayer("Alice")
	if err := s.UpdateAlias(bob, "Main"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateAlias(alice, "Main"); err != nil {
		t.Fatal(err)
	}

	rep, err := ReportService{Store: s}.Session(context.Background(), []int64{first})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Rows) != 1 {
		t.Fatalf("rows = %+v", rep.Rows)
	}
	row := rep.Rows[0]
	if row.DisplayName != "Main" || row.TotalDmg != 1000 || len(row.PlayerIDs) != 2 {
		t.Errorf("grouped row = %+v", row)
	}
}

func TestReportService_SessionErrors(t *testing.T) {
	s, _, _ := seed(t)
	svc := ReportService{Store: s}

	if _, err := svc.Session(context.Background(), nil); !errors.Is(err, ErrNoZonesSelected) {
		t.Errorf("err = %v, want ErrNoZonesSelected", err)
	}

	rep, err := svc.Session(context.Background(), []int64{999})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Message == "" || len(rep.Rows) != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestReportService_RollingUsesLogTime(t *testing.T) {
	s, _, _ := seed(t)
	svc := ReportService{Store: s, RollingWindow: time.Minute}

	// Latest damage is at 130s, so the window is [70s, 130s].
	rep := svc.Rolling(context.Background(), 0)
	if rep.End == nil || !rep.End.Equal(at(130)) || !rep.Start.Equal(at(70)) {
		t.Fatalf("window = %v..%v", rep.Start, rep.End)
	}
	if rep.TotalDamage != 50 {
		t.Errorf("total = %d, want 50", rep.TotalDamage)
	}

	rep = svc.Rolling(context.Background(), 5*time.Minute)
	if rep.TotalDamage != 1050 {
		t.Errorf("total over 5m = %d, want 1050", rep.TotalDamage)
	}
	if rep.CombatSeconds != 120 {
		t.Errorf("combat seconds = %v, want 120", rep.CombatSeconds)
	}
}

func TestReportService_RollingEmpty(t *testing.T) {
	rep := ReportService{Store: store.New()}.Rolling(context.Background(), time.Minute)
	if rep.Message != "No damage data" {
		t.Errorf("message = %q", rep.Message)
	}
}

func TestReport_Compact(t *testing.T) {
	rep := Report{CombatSeconds: 10, Rows: []ReportRow{
		{GroupedRow: event.GroupedRow{DisplayName: "Bartholomew", TotalDmg: 12_300}, Percent: 61.4},
		{GroupedRow: event.GroupedRow{DisplayName: "Al", TotalDmg: 900}, Percent: 4.4},
	}}

	got := rep.Compact()
	want := []string{"Bartholo: 12.3K 1.2K/s 61%", "Al: 900 90/s 4%"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFormatDamageShort(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1_000, "1.0K"},
		{12_345, "12.3K"},
		{999_999, "1000.0K"},
		{1_000_000, "1.0M"},
		{2_550_000, "2.5M"},
	}
	for _, tt := range tests {
		if got := FormatDamageShort(tt.in); got != tt.want {
			t.Errorf("FormatDamageShort(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := FormatDamage(1234567); got != "1,234,567" {
		t.Errorf("FormatDamage = %q", got)
	}
}

func TestZonesService(t *testing.T) {
	s, first, second := seed(t)
	s.CreateZoneInstance("Keep", "Hero", at(200), "2024-03-02")
	svc := ZonesService{Store: s}

	runs := svc.List(context.Background(), ZoneQuery{Name: "Crypt"})
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != first {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[1].Stats.Kills != 2 || runs[1].Stats.TotalDamage != 1000 || runs[1].Stats.Wisdom != 900 {
		t.Errorf("stats = %+v", runs[1].Stats)
	}

	runs = svc.List(context.Background(), ZoneQuery{MinWisdom: 100})
	if len(runs) != 1 || runs[0].ID != first {
		t.Errorf("min wisdom runs = %+v", runs)
	}

	runs = svc.List(context.Background(), ZoneQuery{LogDate: "2024-03-02"})
	if len(runs) != 1 || runs[0].Name != "Keep" {
		t.Errorf("date runs = %+v", runs)
	}

	f := svc.Filters(context.Background())
	if len(f.Names) != 2 || f.Names[0] != "Crypt" || f.LogDates[0] != "2024-03-02" {
		t.Errorf("filters = %+v", f)
	}
}

func TestPlayersService_SetAlias(t *testing.T) {
	s, _, _ := seed(t)
	svc := PlayersService{Store: s}
	bob := s.GetOrCreatePlayer("Bob")

	p, err := svc.SetAlias(context.Background(), bob, "  Healer  ")
	if err != nil {
		t.Fatal(err)
	}
	if p.Alias != "Healer" || p.DisplayName() != "Healer" {
		t.Errorf("player = %+v", p)
	}

	players := svc.List(context.Background(), "heal")
	if len(players) != 1 || players[0].ID != bob {
		t.Errorf("filtered = %+v", players)
	}

	p, err = svc.SetAlias(context.Background(), bob, "")
	if err != nil || p.Alias != "" {
		t.Errorf("clear alias: %+v, %v", p, err)
	}
}

func TestPlayersService_SetAliasErrors(t *testing.T) {
	s, _, _ := seed(t)
	svc := PlayersService{Store: s}
	bob := s.GetOrCreatePlayer("Bob")

	long := make([]rune, MaxAliasLength+1)
	for i := range long {
		long[i] = 'x'
	}
	tests := []struct {
		name  string
		id    int64
		alias string
		want  error
	}{
		{"too long", bob, string(long), ErrInvalidAlias},
		{"control char", bob, "bad\x07name", ErrInvalidAlias},
		{"unknown player", 999, "Ghost", store.ErrUnknownPlayer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.SetAlias(context.Background(), tt.id, tt.alias); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

type stubLoader struct {
	active  bool
	started []ingest.Request
	startFn func() error
	ctxErr  error
	cancels int
}

func (l *stubLoader) Start(ctx context.Context, req ingest.Request, sinks ingest.Sinks) error {
	l.ctxErr = ctx.Err()
	if l.startFn != nil {
		if err := l.startFn(); err != nil {
			return err
		}
	}
	l.started = append(l.started, req)
	return nil
}

func (l *stubLoader) Active() bool { return l.active }
func (l *stubLoader) Cancel()      { l.cancels++ }

type countingClearer struct{ n int }

func (c *countingClearer) Clear() { c.n++ }

func TestImportService_Start(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Player.log")
	if err := os.WriteFile(path, []byte("line\n"), 0600); err != nil {
		t.Fatal(err)
	}
	loader := &stubLoader{}
	svc := ImportService{Loader: loader, DefaultPath: path, Store: &countingClearer{}}

	// The import must outlive the request context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.Start(ctx, ingest.Request{LogDate: "2024-03-01"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != path || len(loader.started) != 1 || loader.started[0].Path != path {
		t.Errorf("result = %+v, started = %+v", res, loader.started)
	}
	if loader.ctxErr != nil {
		t.Errorf("loader got a cancelled context: %v", loader.ctxErr)
	}
}

func TestImportService_StartErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Player.log")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		req    ingest.Request
		loader *stubLoader
		want   error
	}{
		{"missing file", ingest.Request{Path: filepath.Join(dir, "nope.log")}, &stubLoader{}, ingest.ErrLogNotFound},
		{"directory", ingest.Request{Path: dir}, &stubLoader{}, ingest.ErrLogNotFound},
		{"bad date", ingest.Request{Path: path, LogDate: "03/01/2024"}, &stubLoader{}, ErrInvalidDate},
		{"busy", ingest.Request{Path: path}, &stubLoader{startFn: func() error { return ingest.ErrLoadInProgress }}, ingest.ErrLoadInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := ImportService{Loader: tt.loader}
			if _, err := svc.Start(context.Background(), tt.req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestImportService_CancelAndClear(t *testing.T) {
	loader := &stubLoader{}
	clearer := &countingClearer{}
	state := derive.New()
	state.Update(event.CharacterDetected{Character: "Hero"})
	svc := ImportService{Loader: loader, Store: clearer, Session: state}

	if err := svc.Cancel(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("cancel idle: %v", err)
	}

	loader.active = true
	if err := svc.Cancel(context.Background()); err != nil || loader.cancels != 1 {
		t.Errorf("cancel active: err=%v cancels=%d", err, loader.cancels)
	}
	if err := svc.Clear(context.Background()); !errors.Is(err, ingest.ErrLoadInProgress) {
		t.Errorf("clear while loading: %v", err)
	}

	loader.active = false
	if err := svc.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	if clearer.n != 1 || state.Character() != "" {
		t.Errorf("clear: n=%d character=%q", clearer.n, state.Character())
	}
}

type stubActivity struct{ following, importing bool }

func (a stubActivity) Following() bool { return a.following }
func (a stubActivity) Importing() bool { return a.importing }

func TestHealthService(t *testing.T) {
	res, err := HealthService{Version: "1.2.3", Activity: stubActivity{following: true}}.Handle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "ok" || res.Version != "1.2.3" || !res.Following || res.Importing {
		t.Errorf("health = %+v", res)
	}
}

func TestStatsService(t *testing.T) {
	s, _, _ := seed(t)
	res := NewStatsService(s).GetStats(context.Background())
	if res.Players != 2 || res.Zones != 2 || res.Events != 4 {
		t.Errorf("stats = %+v", res)
	}
	if res.Summary != "4 damage events in 2 zones" {
		t.Errorf("summary = %q", res.Summary)
	}
	if res.LastDamageAt == nil || *res.LastDamageAt != at(130).Format(time.RFC3339) {
		t.Errorf("last damage = %v", res.LastDamageAt)
	}

	empty := NewStatsService(store.New()).GetStats(context.Background())
	if empty.LastDamageAt != nil {
		t.Errorf("empty store last damage = %v", *empty.LastDamageAt)
	}
}

func TestNowService(t *testing.T) {
	state := derive.New()
	svc := NowService{State: state}

	if res := svc.GetNow(context.Background()); res.Zone != nil || res.LastDamageAt != nil {
		t.Errorf("empty = %+v", res)
	}

	state.Update(event.ZoneChanged{Zone: "Crypt", ZoneID: 3, Character: "Hero", Ts: at(0)})
	state.Update(event.DamageRecorded{Event: event.DamageEvent{ZoneID: 3, Ts: at(5)}})

	res := svc.GetNow(context.Background())
	if res.Character != "Hero" || res.Zone == nil || res.Zone.ZoneID != 3 || res.ZoneEvents != 1 {
		t.Errorf("now = %+v", res)
	}
	if res.LastDamageAt == nil || !res.LastDamageAt.Equal(at(5)) {
		t.Errorf("last damage = %v", res.LastDamageAt)
	}
}
