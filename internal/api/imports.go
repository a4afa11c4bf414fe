package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/graaaaa/anatomydps/internal/app"
	"github.com/graaaaa/anatomydps/internal/ingest"
)

// handleStartImport handles POST /api/v1/imports.
// The body is optional; an empty body imports the configured log.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	var req ingest.Request
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	res, err := s.imports.Start(r.Context(), req)
	switch {
	case errors.Is(err, ingest.ErrLogNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, app.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ingest.ErrLoadInProgress):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	default:
		writeJSON(w, http.StatusAccepted, res)
	}
}

// handleCancelImport handles DELETE /api/v1/imports.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	if err := s.imports.Cancel(r.Context()); err != nil {
		if errors.Is(err, app.ErrNotRunning) {
			writeError(w, http.StatusConflict, err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearData handles DELETE /api/v1/data.
func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	if err := s.imports.Clear(r.Context()); err != nil {
		if errors.Is(err, ingest.ErrLoadInProgress) {
			writeError(w, http.StatusConflict, err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}
	s.logger.Info("all combat data cleared")
	w.WriteHeader(http.StatusNoContent)
}

// ImportProgress is the payload of import_progress messages.
type ImportProgress struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// ImportSinks returns load callbacks that publish progress and completion
// to hub. then, if non-nil, runs after each completion is published.
func ImportSinks(hub *Hub, then ingest.CompleteFunc) ingest.Sinks {
	return ingest.Sinks{
		Progress: func(percent int, msg string) {
			hub.Publish(KindImportProgress, ImportProgress{Percent: percent, Message: msg})
		},
		Complete: func(c ingest.Completion) {
			hub.Publish(KindImportComplete, c)
			if then != nil {
				then(c)
			}
		},
	}
}
