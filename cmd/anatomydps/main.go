// Package main provides the entry point for AnatomyDPS.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/graaaaa/anatomydps/internal/alias"
	"github.com/graaaaa/anatomydps/internal/aliasdb"
	"github.com/graaaaa/anatomydps/internal/api"
	"github.com/graaaaa/anatomydps/internal/app"
	"github.com/graaaaa/anatomydps/internal/appinfo"
	"github.com/graaaaa/anatomydps/internal/config"
	"github.com/graaaaa/anatomydps/internal/derive"
	"github.com/graaaaa/anatomydps/internal/event"
	"github.com/graaaaa/anatomydps/internal/ingest"
	"github.com/graaaaa/anatomydps/internal/notify"
	"github.com/graaaaa/anatomydps/internal/parser"
	"github.com/graaaaa/anatomydps/internal/singleinstance"
	"github.com/graaaaa/anatomydps/internal/store"
	"github.com/graaaaa/anatomydps/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Single instance check
	lockPath, err := config.LockFilePath()
	if err != nil {
		slog.Error("failed to resolve lock path", "error", err)
		return 1
	}
	release, ok, err := singleinstance.AcquireLock(lockPath)
	if err != nil {
		slog.Error("failed to acquire lock", "error", err)
		return 1
	}
	if !ok {
		slog.Error("another instance is already running")
		return 1
	}
	defer release()

	// 2. Load configuration (corrupt config falls back to defaults with warning)
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Warn("config unavailable, using defaults", "error", err)
	}
	if cfg, err = config.ApplyEnvOverrides(cfg); err != nil {
		slog.Warn("ignoring environment overrides", "error", err)
	}

	// 3. Parse flags (override config and environment)
	port := flag.Int("port", cfg.Port, "HTTP server port")
	logPath := flag.String("log", cfg.LogPath, "path to Player.log")
	logDate := flag.String("date", "", "log date for the import (YYYY-MM-DD, default file modification date)")
	noImport := flag.Bool("no-import", !cfg.AutoImport, "do not import the log at startup")
	noFollow := flag.Bool("no-follow", !cfg.Follow, "do not follow the log for new lines")
	flag.Parse()

	// 4. Logger
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// 5. Alias database
	if _, err := config.EnsureDataDir(); err != nil {
		logger.Error("failed to ensure data directory", "error", err)
		return 1
	}
	dbPath, err := config.AliasDatabasePath()
	if err != nil {
		logger.Error("failed to resolve alias database path", "error", err)
		return 1
	}
	db, err := aliasdb.Open(dbPath)
	if err != nil {
		logger.Error("failed to open alias database", "path", dbPath, "error", err)
		return 1
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initial, err := db.Load(ctx)
	if err != nil {
		logger.Warn("failed to load aliases, starting without", "error", err)
	}
	book := alias.NewBook(initial, alias.WithPersister(aliasdb.Persister{DB: db}), alias.WithLogger(logger))
	logger.Info("aliases loaded", "count", len(initial))

	// 6. Store, session state and SSE hub
	st := store.New(store.WithAliasBook(book))
	state := derive.New()

	hub := api.NewHub(api.WithHubLogger(logger))
	go hub.Run()

	reports := app.ReportService{
		Store:         st,
		Characters:    state,
		RollingWindow: time.Duration(cfg.RollingWindowMin) * time.Minute,
	}

	// 7. Discord summaries
	var notifier *notify.Notifier
	if !cfg.DiscordWebhookURL.IsEmpty() {
		sender := notify.NewDiscordSender(cfg.DiscordWebhookURL, notify.WithSenderLogger(logger))
		notifier = notify.NewNotifier(sender, cfg.DiscordBatchSec,
			notify.FilterConfig{ZoneRuns: true, Imports: true},
			notify.WithNotifierLogger(logger),
		)
		go notifier.Run(ctx)
		logger.Info("discord notifications enabled")
	} else {
		logger.Debug("discord webhook not configured, notifications disabled")
	}

	// 8. Loader and streamer
	debounce := parser.WithZoneDebounce(time.Duration(cfg.ZoneDebounceSec) * time.Second)
	loader := ingest.NewLoader(st,
		ingest.WithLoaderLogger(logger),
		ingest.WithFlushSize(cfg.FlushSize),
		ingest.WithProgressEvery(cfg.ProgressEvery),
		ingest.WithLoaderParserOptions(debounce),
	)
	sinks := api.ImportSinks(hub, func(c ingest.Completion) {
		if notifier != nil {
			notifier.Enqueue(notify.ImportSummary(c, time.Now()))
		}
	})
	streamer := ingest.NewStreamer(*logPath, st,
		ingest.WithStreamLogger(logger),
		ingest.WithStreamParserOptions(debounce),
	)

	go forward(ctx, streamer.Results(), state, hub, func(prev derive.ZoneInfo) {
		if notifier == nil {
			return
		}
		rep, err := reports.Session(ctx, []int64{prev.ZoneID})
		if err != nil {
			return
		}
		if s, ok := notify.ZoneRunSummary(rep); ok {
			notifier.Enqueue(s)
		}
	})

	// 9. API server
	addr := api.LoopbackAddr(*port)
	health := app.HealthService{
		Version:  version.String(),
		Activity: activity{streamer: streamer, loader: loader},
	}
	limiter := api.NewRateLimiter(api.DefaultRateLimiterConfig())
	defer limiter.Stop()

	configPath, err := config.ConfigPath()
	if err != nil {
		logger.Warn("config path unavailable", "error", err)
	}

	serverOpts := []api.ServerOption{
		api.WithLogger(logger),
		api.WithHub(hub),
		api.WithRateLimiter(limiter),
		api.WithStatsUsecase(app.NewStatsService(st)),
		api.WithNowUsecase(app.NowService{State: state}),
		api.WithReportUsecase(reports),
		api.WithZonesUsecase(app.ZonesService{Store: st}),
		api.WithPlayersUsecase(app.PlayersService{Store: st}),
		api.WithImportUsecase(app.ImportService{
			Loader:      loader,
			DefaultPath: *logPath,
			Sinks:       sinks,
			Store:       st,
			Session:     state,
		}),
	}
	if configPath != "" {
		serverOpts = append(serverOpts, api.WithConfigUsecase(app.ConfigService{ConfigPath: configPath}))
	}
	server := api.NewServer(addr, health, serverOpts...)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting "+appinfo.AppName, "version", version.String(), "addr", addr)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 10. Auto start: import, then follow from where the import ended
	boot := startup{
		logger:   logger,
		loader:   loader,
		streamer: streamer,
		zones:    st,
		sinks:    sinks,
		seed: func(r event.Result) {
			state.Update(r)
			hub.Publish(r.Kind(), r)
		},
	}
	go boot.run(ctx, ingest.Request{Path: *logPath, LogDate: *logDate}, !*noImport, !*noFollow)

	// Wait for shutdown signal or server error
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-done:
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server error", "error", err)
		exitCode = 1
	}

	// 11. Graceful shutdown: stop producers before their consumers
	cancel()
	if err := streamer.Stop(); err != nil {
		logger.Warn("streamer stop", "error", err)
	}
	loader.Cancel()
	loader.Wait()

	if notifier != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := notifier.Stop(stopCtx); err != nil {
			logger.Warn("notifier stop", "error", err)
		}
		stopCancel()
	}

	hub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}

	logger.Info("stopped")
	return exitCode
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// startup imports the log and then follows it from where the import ended.
type startup struct {
	logger   *slog.Logger
	loader   *ingest.Loader
	streamer *ingest.Streamer
	zones    ingest.ZoneLookup
	sinks    ingest.Sinks
	seed     func(event.Result) // receives the character and zone the import ended in
}

func (s startup) run(ctx context.Context, req ingest.Request, doImport, doFollow bool) {
	var (
		c   ingest.Completion
		err error
	)
	if doImport {
		c, err = s.loader.Load(ctx, req, s.sinks)
		if err != nil {
			s.logger.Warn("startup import failed", "path", req.Path, "error", err)
		} else {
			s.logger.Info("startup import finished",
				"outcome", c.Outcome.String(),
				"lines", humanize.Comma(int64(c.Lines)),
				"events", humanize.Comma(int64(c.Events)),
				"elapsed", c.Elapsed.Round(time.Millisecond),
			)
		}
	}
	if !doFollow || ctx.Err() != nil {
		return
	}
	// Archives never grow.
	if strings.HasSuffix(strings.ToLower(req.Path), ".gz") {
		s.logger.Info("not following compressed log", "path", req.Path)
		return
	}

	var (
		offset int64
		resume []parser.Option
	)
	if doImport && err == nil && c.Outcome == ingest.OutcomeSucceeded {
		r := ingest.ResumeAfter(c, s.zones)
		for _, res := range r.Results() {
			s.seed(res)
		}
		offset = r.Offset
		resume = append(resume, parser.WithPosition(r.Position))
	} else {
		end, err := ingest.EndOffset(req.Path)
		if err != nil {
			s.logger.Warn("cannot follow log", "path", req.Path, "error", err)
			return
		}
		offset = end
	}

	if err := s.streamer.Start(ctx, offset, resume...); err != nil {
		s.logger.Warn("cannot follow log", "path", req.Path, "error", err)
		return
	}
	s.logger.Info("following log", "path", req.Path, "offset", offset)
}

// forward applies stream results to the session state and publishes them.
// zoneDone runs for the zone that was left on each zone change.
func forward(ctx context.Context, results <-chan event.Result, state *derive.State, hub *api.Hub, zoneDone func(derive.ZoneInfo)) {
	for {
		select {
		case r := <-results:
			change := state.Update(r)
			hub.Publish(r.Kind(), r)
			if change != nil && change.Type == derive.ChangeZone && change.PrevZone != nil {
				zoneDone(*change.PrevZone)
			}
		case <-ctx.Done():
			return
		}
	}
}

// activity reports pipeline state for the health check.
type activity struct {
	streamer *ingest.Streamer
	loader   *ingest.Loader
}

func (a activity) Following() bool { return a.streamer.Running() }
func (a activity) Importing() bool { return a.loader.Active() }
