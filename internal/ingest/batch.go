package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/graaaaa/anatomydps/internal/event"
	"github.com/graaaaa/anatomydps/internal/parser"
)

// Batch defaults.
const (
	DefaultFlushSize     = 1000
	DefaultProgressEvery = 10000

	maxLineSize = 1 << 20
)

// Outcome is how a batch load ended.
type Outcome uint8

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText encodes the outcome as its name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Request names the file to import and the date its timestamps belong to.
// An empty LogDate uses the file's modification date.
type Request struct {
	Path    string `json:"path"`
	LogDate string `json:"log_date,omitempty"`
}

// Completion summarizes a finished batch load.
type Completion struct {
	RunID     string        `json:"run_id"`
	Outcome   Outcome       `json:"outcome"`
	Message   string        `json:"message"`
	Path      string        `json:"path"`
	LogDate   string        `json:"log_date"`
	Lines     int           `json:"lines"`
	Events    int           `json:"events"`
	Zones     int           `json:"zones"`
	Offset    int64         `json:"offset"`
	Character string        `json:"character,omitempty"`
	Zone      string        `json:"zone,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// ProgressFunc receives a percentage in [0, 100] and a status message.
type ProgressFunc func(percent int, message string)

// CompleteFunc receives the summary of a finished load.
type CompleteFunc func(Completion)

// Sinks are the callbacks of a load. Nil callbacks are skipped.
type Sinks struct {
	Progress ProgressFunc
	Complete CompleteFunc
}

func (s Sinks) progress(percent int, msg string) {
	if s.Progress != nil {
		s.Progress(percent, msg)
	}
}

func (s Sinks) complete(c Completion) {
	if s.Complete != nil {
		s.Complete(c)
	}
}

// Loader imports complete log files with deduplication against events
// already in the store. At most one load runs at a time.
type Loader struct {
	store         Store
	logger        *slog.Logger
	clock         Clock
	flushSize     int
	progressEvery int
	parserOpts    []parser.Option

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger for the Loader.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLoaderClock sets the clock for the Loader (for testing).
func WithLoaderClock(clock Clock) LoaderOption {
	return func(l *Loader) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithFlushSize sets how many buffered events trigger a store write.
func WithFlushSize(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.flushSize = n
		}
	}
}

// WithProgressEvery sets how many lines pass between progress reports and
// cancellation checks.
func WithProgressEvery(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.progressEvery = n
		}
	}
}

// WithLoaderParserOptions passes options to each load's parser context.
func WithLoaderParserOptions(opts ...parser.Option) LoaderOption {
	return func(l *Loader) { l.parserOpts = append(l.parserOpts, opts...) }
}

// NewLoader creates a Loader writing to store.
func NewLoader(store Store, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:         store,
		logger:        slog.Default(),
		clock:         DefaultClock,
		flushSize:     DefaultFlushSize,
		progressEvery: DefaultProgressEvery,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Active reports whether a load is running.
func (l *Loader) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Start runs a load in the background and returns immediately.
// It returns ErrLoadInProgress while another load is active.
func (l *Loader) Start(ctx context.Context, req Request, sinks Sinks) error {
	runCtx, done, err := l.acquire(ctx)
	if err != nil {
		return err
	}
	go func() {
		l.run(runCtx, req, sinks)
		l.release(done)
	}()
	return nil
}

// Load runs a load synchronously and returns its summary.
// It returns ErrLoadInProgress while another load is active.
func (l *Loader) Load(ctx context.Context, req Request, sinks Sinks) (Completion, error) {
	runCtx, done, err := l.acquire(ctx)
	if err != nil {
		return Completion{}, err
	}
	defer l.release(done)
	return l.run(runCtx, req, sinks), nil
}

// Cancel asks the active load to stop. The load observes the request at its
// next progress checkpoint and reports OutcomeCancelled.
func (l *Loader) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
}

// Wait blocks until the active load, if any, has finished.
func (l *Loader) Wait() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (l *Loader) acquire(ctx context.Context) (context.Context, chan struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return nil, nil, ErrLoadInProgress
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	return runCtx, l.done, nil
}

func (l *Loader) release(done chan struct{}) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()
	close(done)
}

// job is the state of one load.
type job struct {
	Completion
	seen    map[event.Signature]struct{}
	pending []event.DamageEvent
}

func (l *Loader) run(ctx context.Context, req Request, sinks Sinks) Completion {
	started := l.clock.Now()
	j := &job{Completion: Completion{RunID: uuid.NewString(), Path: req.Path, LogDate: req.LogDate}}
	logger := l.logger.With("run_id", j.RunID, "path", req.Path)

	finish := func(outcome Outcome, msg string) Completion {
		j.Outcome = outcome
		j.Message = msg
		j.Elapsed = l.clock.Now().Sub(started)
		logger.Info("batch load finished",
			"outcome", outcome.String(),
			"lines", j.Lines,
			"events", j.Events,
			"elapsed", j.Elapsed,
		)
		sinks.complete(j.Completion)
		return j.Completion
	}

	f, err := os.Open(req.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return finish(OutcomeFailed, fmt.Sprintf("%s: %s", ErrLogNotFound, req.Path))
		}
		return finish(OutcomeFailed, fmt.Sprintf("open log: %v", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return finish(OutcomeFailed, fmt.Sprintf("stat log: %v", err))
	}
	if j.LogDate == "" {
		j.LogDate = info.ModTime().Format(parser.DateLayout)
	}

	sinks.progress(0, "Checking for duplicates...")
	j.seen = l.store.ExistingSignatures(j.LogDate)

	sinks.progress(0, "Loading log file...")
	counted := &countingReader{r: f}
	var r io.Reader = counted
	compressed := strings.HasSuffix(strings.ToLower(req.Path), ".gz")
	if compressed {
		gz, err := gzip.NewReader(counted)
		if err != nil {
			return finish(OutcomeFailed, fmt.Sprintf("open gzip log: %v", err))
		}
		defer gz.Close()
		r = gz
	}

	opts := append([]parser.Option{
		parser.WithMode(parser.Batch),
		parser.WithLogDate(j.LogDate),
		parser.WithLogger(logger),
		parser.WithBatchSink(func(e event.DamageEvent) {
			j.pending = append(j.pending, e)
			if len(j.pending) >= l.flushSize {
				l.flush(j)
			}
		}),
	}, l.parserOpts...)
	pc := parser.New(l.store, opts...)

	logger.Info("batch load started", "log_date", j.LogDate, "size", info.Size(), "seen", len(j.seen))

	// A live log may end in a line the game is still writing. It is left
	// for the follower, which starts at Offset. Archives are complete.
	var consumed int64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	scanner.Split(completeLines(compressed, &consumed))
	for scanner.Scan() {
		if !compressed {
			j.Offset = consumed
		}
		j.Lines++
		handleLine(logger, pc, scanner.Text())

		if j.Lines%l.progressEvery != 0 {
			continue
		}
		if ctx.Err() != nil {
			j.pending = nil
			return finish(OutcomeCancelled, "Cancelled")
		}
		sinks.progress(percentOf(counted.n, info.Size()), fmt.Sprintf("Processing... %s lines, %s damage events",
			humanize.Comma(int64(j.Lines)), humanize.Comma(int64(j.Events+len(j.pending)))))
	}
	if err := scanner.Err(); err != nil {
		j.pending = nil
		return finish(OutcomeFailed, fmt.Sprintf("read log: %v", err))
	}
	if ctx.Err() != nil {
		j.pending = nil
		return finish(OutcomeCancelled, "Cancelled")
	}

	sinks.progress(95, "Finalizing...")
	l.flush(j)

	j.Character = pc.Character()
	j.Zone, _ = pc.Zone()
	j.Zones = pc.ZonesEntered()
	sinks.progress(100, "Complete!")
	return finish(OutcomeSucceeded, fmt.Sprintf("Loaded %s lines, %s damage events",
		humanize.Comma(int64(j.Lines)), humanize.Comma(int64(j.Events))))
}

// flush resolves players for the pending events, drops those whose
// signature was already seen and stores the rest.
func (l *Loader) flush(j *job) {
	if len(j.pending) == 0 {
		return
	}

	names := make([]string, 0, len(j.pending))
	for _, e := range j.pending {
		names = append(names, e.PlayerName)
	}
	ids := l.store.GetOrCreatePlayers(names)

	fresh := make([]event.DamageEvent, 0, len(j.pending))
	for _, e := range j.pending {
		e.PlayerID = ids[e.PlayerName]
		sig := e.Signature()
		if _, dup := j.seen[sig]; dup {
			continue
		}
		j.seen[sig] = struct{}{}
		fresh = append(fresh, e)
	}
	j.Events += l.store.InsertDamageEvents(fresh)
	j.pending = j.pending[:0]
}

// completeLines splits like bufio.ScanLines and adds the bytes of every
// returned line, terminator included, to consumed. Unless partial is set,
// trailing bytes without a newline are never returned.
func completeLines(partial bool, consumed *int64) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		if atEOF && !partial && bytes.IndexByte(data, '\n') < 0 {
			return 0, nil, nil
		}
		advance, token, err := bufio.ScanLines(data, atEOF)
		if token != nil {
			*consumed += int64(advance)
		}
		return advance, token, err
	}
}

// percentOf reports read as a percentage of size, capped below the
// finalizing step.
func percentOf(read, size int64) int {
	if size <= 0 {
		return 0
	}
	p := int(read * 100 / size)
	if p > 94 {
		p = 94
	}
	return p
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
