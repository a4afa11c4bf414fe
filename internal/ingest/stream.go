package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/graaaaa/anatomydps/internal/event"
	"github.com/graaaaa/anatomydps/internal/parser"
)

// Streaming defaults.
const (
	DefaultResultBufferSize = 256
	DefaultStopTimeout      = 2 * time.Second
)

// SourceFactory builds the line source for a stream starting at offset.
type SourceFactory func(path string, offset int64) LineSource

// Streamer follows a live log file and writes each event to the store as
// soon as its line is read. Results are queued for an asynchronous listener.
type Streamer struct {
	path        string
	store       parser.Store
	newSource   SourceFactory
	logger      *slog.Logger
	parserOpts  []parser.Option
	stopTimeout time.Duration

	results  chan event.Result
	dropped  atomic.Int64
	dropWarn rate.Sometimes

	offset atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// StreamOption configures a Streamer.
type StreamOption func(*Streamer)

// WithStreamLogger sets the logger for the Streamer.
func WithStreamLogger(logger *slog.Logger) StreamOption {
	return func(s *Streamer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSourceFactory replaces the nxadm/tail source (for testing).
func WithSourceFactory(f SourceFactory) StreamOption {
	return func(s *Streamer) {
		if f != nil {
			s.newSource = f
		}
	}
}

// WithStreamParserOptions passes options to the stream's parser context.
func WithStreamParserOptions(opts ...parser.Option) StreamOption {
	return func(s *Streamer) { s.parserOpts = append(s.parserOpts, opts...) }
}

// WithStopTimeout bounds how long Stop waits for the current line.
func WithStopTimeout(d time.Duration) StreamOption {
	return func(s *Streamer) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithResultBufferSize sets the result queue capacity.
func WithResultBufferSize(n int) StreamOption {
	return func(s *Streamer) {
		if n > 0 {
			s.results = make(chan event.Result, n)
		}
	}
}

// NewStreamer creates a Streamer for the log at path.
func NewStreamer(path string, store parser.Store, opts ...StreamOption) *Streamer {
	s := &Streamer{
		path:        path,
		store:       store,
		logger:      slog.Default(),
		stopTimeout: DefaultStopTimeout,
		results:     make(chan event.Result, DefaultResultBufferSize),
		dropWarn:    rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newSource == nil {
		logger := s.logger
		s.newSource = func(path string, offset int64) LineSource {
			return NewTailSource(path, offset, WithSourceLogger(logger))
		}
	}
	return s
}

// Results returns the queue of results produced by the stream.
// The channel is never closed.
func (s *Streamer) Results() <-chan event.Result {
	return s.results
}

// Path returns the followed file.
func (s *Streamer) Path() string {
	return s.path
}

// Offset returns the byte offset just past the last processed line.
func (s *Streamer) Offset() int64 {
	return s.offset.Load()
}

// Running reports whether a stream is active.
func (s *Streamer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Start begins following the file from offset with a fresh parser context.
// Extra options, such as parser.WithPosition, apply to that context only.
// It returns ErrAlreadyRunning while another stream is active. A missing file
// is reported once on the result queue and returned as ErrLogNotFound.
func (s *Streamer) Start(ctx context.Context, offset int64, extra ...parser.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	lines, errs, err := s.newSource(s.path, offset).Start(runCtx)
	if err != nil {
		cancel()
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrLogNotFound, s.path)
		}
		s.publish(event.ErrorReported{Message: err.Error()})
		return err
	}
	if lines == nil || errs == nil {
		cancel()
		return errors.New("source returned nil channel")
	}

	s.offset.Store(offset)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done

	opts := append([]parser.Option{
		parser.WithMode(parser.Streaming),
		parser.WithListener(s.publish),
		parser.WithLogger(s.logger),
	}, s.parserOpts...)
	opts = append(opts, extra...)
	pc := parser.New(s.store, opts...)

	go s.run(runCtx, pc, lines, errs, done)
	return nil
}

// Stop ends the stream. It is safe to call concurrently and more than once.
// The line being processed is always finished; Stop waits at most the stop
// timeout for that and returns ErrStopTimeout when it expires.
func (s *Streamer) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-time.After(s.stopTimeout):
		return ErrStopTimeout
	}
}

// run consumes lines until ctx is cancelled or the source closes.
func (s *Streamer) run(ctx context.Context, pc *parser.Context, lines <-chan Line, errs <-chan error, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.cancel = nil
		s.done = nil
		s.mu.Unlock()
	}()

	s.logger.Info("stream started", "path", s.path, "offset", s.Offset())
	defer func() { s.logger.Info("stream stopped", "path", s.path, "offset", s.Offset()) }()

	// Use nil-channel pattern: nil each channel when closed, exit when both are nil.
	linesCh := lines
	errsCh := errs
	for linesCh != nil || errsCh != nil {
		select {
		case l, ok := <-linesCh:
			if !ok {
				linesCh = nil
				continue
			}
			handleLine(s.logger, pc, l.Text)
			s.offset.Store(l.Offset)
		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			s.logger.Warn("source error", "path", s.path, "error", err)
		case <-ctx.Done():
			return
		}
	}
}

// publish queues r without blocking; a full queue drops it.
func (s *Streamer) publish(r event.Result) {
	select {
	case s.results <- r:
	default:
		n := s.dropped.Add(1)
		s.dropWarn.Do(func() {
			s.logger.Warn("result queue full, dropping results", "dropped", n)
		})
	}
}

// handleLine parses one line. A panic while parsing is recovered and the
// line is treated as unrecognized.
func handleLine(logger *slog.Logger, pc *parser.Context, text string) (e *event.DamageEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("line handling panicked", "panic", r, "line_length", len(text))
			e = nil
		}
	}()
	return pc.ParseLine(text)
}
