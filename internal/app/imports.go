package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/graaaaa/anatomydps/internal/ingest"
	"github.com/graaaaa/anatomydps/internal/parser"
)

// Loader defines the batch loader operations ImportService needs.
type Loader interface {
	Start(ctx context.Context, req ingest.Request, sinks ingest.Sinks) error
	Active() bool
	Cancel()
}

// Clearer empties the store.
type Clearer interface {
	Clear()
}

// Resetter forgets derived session state.
type Resetter interface {
	Reset()
}

// ImportResult is returned when a background import was accepted.
type ImportResult struct {
	Path    string `json:"path"`
	LogDate string `json:"log_date,omitempty"`
}

// ImportUsecase defines the batch import use case.
type ImportUsecase interface {
	Start(ctx context.Context, req ingest.Request) (ImportResult, error)
	Cancel(ctx context.Context) error
	Clear(ctx context.Context) error
}

// ImportService starts, cancels and clears batch imports.
type ImportService struct {
	Loader      Loader
	DefaultPath string
	Sinks       ingest.Sinks
	Store       Clearer
	Session     Resetter // optional
}

// Start validates req and begins a background import. An empty path uses
// DefaultPath; an empty date uses the file's modification date.
// The import outlives ctx; use Cancel to stop it.
func (s ImportService) Start(ctx context.Context, req ingest.Request) (ImportResult, error) {
	if req.Path == "" {
		req.Path = s.DefaultPath
	}
	if req.LogDate != "" {
		if _, err := time.Parse(parser.DateLayout, req.LogDate); err != nil {
			return ImportResult{}, fmt.Errorf("%w: %q", ErrInvalidDate, req.LogDate)
		}
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ImportResult{}, fmt.Errorf("%w: %s", ingest.ErrLogNotFound, req.Path)
		}
		return ImportResult{}, fmt.Errorf("stat log: %w", err)
	}
	if info.IsDir() {
		return ImportResult{}, fmt.Errorf("%w: %s is a directory", ingest.ErrLogNotFound, req.Path)
	}

	if err := s.Loader.Start(context.WithoutCancel(ctx), req, s.Sinks); err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Path: req.Path, LogDate: req.LogDate}, nil
}

// Cancel stops the running import.
func (s ImportService) Cancel(ctx context.Context) error {
	if !s.Loader.Active() {
		return ErrNotRunning
	}
	s.Loader.Cancel()
	return nil
}

// Clear drops all ingested data. Aliases survive. It refuses while an
// import is writing to the store.
func (s ImportService) Clear(ctx context.Context) error {
	if s.Loader.Active() {
		return ingest.ErrLoadInProgress
	}
	s.Store.Clear()
	if s.Session != nil {
		s.Session.Reset()
	}
	return nil
}
