package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nxadm/tail"
)

// Default buffer sizes for channels.
const (
	DefaultLineBufferSize  = 256
	DefaultErrorBufferSize = 16
)

// TailSource implements LineSource by following a file with nxadm/tail.
type TailSource struct {
	path            string
	offset          int64
	poll            bool
	logger          *slog.Logger
	lineBufferSize  int
	errorBufferSize int
}

// SourceOption configures TailSource.
type SourceOption func(*TailSource)

// WithSourceLogger sets the logger for the source.
// If logger is nil, it is ignored and the default logger is retained.
func WithSourceLogger(logger *slog.Logger) SourceOption {
	return func(s *TailSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPolling selects the polling watcher instead of filesystem notifications.
// Game clients on Windows often write logs in ways notifications miss.
func WithPolling(poll bool) SourceOption {
	return func(s *TailSource) { s.poll = poll }
}

// WithLineBufferSize sets the line channel buffer size.
func WithLineBufferSize(size int) SourceOption {
	return func(s *TailSource) { s.lineBufferSize = size }
}

// NewTailSource creates a source that follows path starting at offset.
func NewTailSource(path string, offset int64, opts ...SourceOption) *TailSource {
	s := &TailSource{
		path:            path,
		offset:          offset,
		poll:            true,
		logger:          slog.Default(),
		lineBufferSize:  DefaultLineBufferSize,
		errorBufferSize: DefaultErrorBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lineBufferSize < 1 {
		s.lineBufferSize = 1
	}
	if s.errorBufferSize < 1 {
		s.errorBufferSize = 1
	}
	if s.offset < 0 {
		s.offset = 0
	}
	return s
}

// Start opens the file and begins following it.
// A missing file fails immediately.
func (s *TailSource) Start(ctx context.Context) (<-chan Line, <-chan error, error) {
	t, err := tail.TailFile(s.path, tail.Config{
		Location:      &tail.SeekInfo{Offset: s.offset, Whence: io.SeekStart},
		Follow:        true,
		MustExist:     true,
		Poll:          s.poll,
		CompleteLines: true,
		Logger:        tail.DiscardingLogger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("tail %s: %w", s.path, err)
	}

	s.logger.Info("following log file", "path", s.path, "offset", s.offset, "poll", s.poll)

	lineCh := make(chan Line, s.lineBufferSize)
	errCh := make(chan error, s.errorBufferSize)

	logger := s.logger
	go func() {
		defer close(lineCh)
		defer close(errCh)
		defer t.Cleanup()

		var droppedErrors int64
		defer func() {
			if droppedErrors > 0 {
				logger.Warn("errors dropped due to full buffer", "count", droppedErrors)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				_ = t.Stop()
				return
			case l, ok := <-t.Lines:
				if !ok {
					if err := t.Err(); err != nil {
						select {
						case errCh <- err:
						default:
							droppedErrors++
						}
					}
					return
				}
				if l.Err != nil {
					select {
					case errCh <- l.Err:
					default:
						droppedErrors++
					}
					continue
				}
				select {
				case lineCh <- Line{Text: l.Text, Offset: l.SeekInfo.Offset}:
				case <-ctx.Done():
					_ = t.Stop()
					return
				}
			}
		}
	}()

	return lineCh, errCh, nil
}
