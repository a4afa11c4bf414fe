//go:build integration

// Package integration provides end-to-end tests that drive the AnatomyDPS
// API over HTTP against a real log file and alias database.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/graaaaa/anatomydps/internal/alias"
	"github.com/graaaaa/anatomydps/internal/aliasdb"
	"github.com/graaaaa/anatomydps/internal/api"
	"github.com/graaaaa/anatomydps/internal/app"
	"github.com/graaaaa/anatomydps/internal/derive"
	"github.com/graaaaa/anatomydps/internal/ingest"
	"github.com/graaaaa/anatomydps/internal/parser"
	"github.com/graaaaa/anatomydps/internal/store"
)

const (
	testLogDate = "2024-03-01"
	testOrigin  = "http://127.0.0.1:8080"
)

// encounter visits the forest, the city and the forest again.
var encounter = []string{
	"[09:59:00] Vivox - LoginAsync(Hero)",
	"[10:00:00] LOADING LEVEL AreaForest",
	"[10:00:05] ProcessTalkScreen(42, Search Corpse of Goblin, x)",
	"[10:00:05] Alice: 50 health dmg 10 armor dmg Aggro (at death): 100.0%",
	"[10:00:05] Bob: 30 health dmg",
	"[10:00:10] ProcessTalkScreen(43, Search Corpse of Orc, x)",
	"[10:00:10] Alice: 100 health dmg",
	"[10:00:20] You earned 5 Combat Wisdom",
	"[10:05:00] LOADING LEVEL AreaCity",
	"[10:05:10] ProcessTalkScreen(44, Search Corpse of Rat, x)",
	"[10:05:10] Bob: 7 armor dmg",
	"[10:10:00] LOADING LEVEL AreaForest",
	"[10:10:10] ProcessTalkScreen(42, Search Corpse of Goblin, x)",
	"[10:10:10] Alice: 50 health dmg 10 armor dmg",
}

// TestApp holds all dependencies for integration tests.
type TestApp struct {
	Server  *httptest.Server
	Store   *store.Store
	Hub     *api.Hub
	Loader  *ingest.Loader
	DB      *aliasdb.DB
	DBPath  string
	LogPath string

	cleanup func()
}

// NewTestApp wires the store, alias database, loader and API together.
func NewTestApp(t *testing.T) *TestApp {
	t.Helper()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "Player.log")
	if err := os.WriteFile(logPath, []byte(strings.Join(encounter, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(dir, "aliases.sqlite")
	db, err := aliasdb.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open alias database: %v", err)
	}
	initial, err := db.Load(context.Background())
	if err != nil {
		t.Fatalf("failed to load aliases: %v", err)
	}
	book := alias.NewBook(initial, alias.WithPersister(aliasdb.Persister{DB: db}))

	st := store.New(store.WithAliasBook(book))
	state := derive.New()
	hub := api.NewHub()
	go hub.Run()

	loader := ingest.NewLoader(st, ingest.WithLoaderParserOptions(parser.WithLocation(time.UTC)))

	server := api.NewServer("127.0.0.1:0", app.HealthService{Version: "integration"},
		api.WithHub(hub),
		api.WithStatsUsecase(app.NewStatsService(st)),
		api.WithReportUsecase(app.ReportService{Store: st, Characters: state}),
		api.WithZonesUsecase(app.ZonesService{Store: st}),
		api.WithPlayersUsecase(app.PlayersService{Store: st}),
		api.WithImportUsecase(app.ImportService{
			Loader:      loader,
			DefaultPath: logPath,
			Sinks:       api.ImportSinks(hub, nil),
			Store:       st,
			Session:     state,
		}),
	)
	ts := httptest.NewServer(server.Handler())

	return &TestApp{
		Server:  ts,
		Store:   st,
		Hub:     hub,
		Loader:  loader,
		DB:      db,
		DBPath:  dbPath,
		LogPath: logPath,
		cleanup: func() {
			ts.Close()
			loader.Cancel()
			loader.Wait()
			hub.Stop()
			db.Close()
		},
	}
}

// Close releases all resources.
func (a *TestApp) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

// URL returns the base URL of the test server.
func (a *TestApp) URL() string {
	return a.Server.URL
}

// Do sends a request with a same-origin header and decodes a JSON reply
// into out when out is non-nil.
func (a *TestApp) Do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.URL()+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if method != http.MethodGet {
		req.Header.Set("Origin", testOrigin)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// Import starts an import over HTTP and waits for its completion message.
func (a *TestApp) Import(t *testing.T) ingest.Completion {
	t.Helper()

	sub := a.Hub.Subscribe()
	defer a.Hub.Unsubscribe(sub)

	code := a.Do(t, http.MethodPost, "/api/v1/imports", ingest.Request{Path: a.LogPath, LogDate: testLogDate}, nil)
	if code != http.StatusAccepted {
		t.Fatalf("POST /api/v1/imports = %d", code)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case m := <-sub.Events():
			if m.Kind == api.KindImportComplete {
				// The loader releases its slot after publishing.
				a.Loader.Wait()
				return m.Data.(ingest.Completion)
			}
		case <-timeout:
			t.Fatal("timeout waiting for import completion")
		}
	}
}
