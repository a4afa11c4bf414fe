package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/graaaaa/anatomydps/internal/app"
	"github.com/graaaaa/anatomydps/internal/event"
	"github.com/graaaaa/anatomydps/internal/store"
)

// playersResponse represents the response for the players endpoint.
type playersResponse struct {
	Items []event.Player `json:"items"`
}

// aliasRequest is the body of PUT /api/v1/players/{id}/alias.
// An empty alias clears it.
type aliasRequest struct {
	Alias string `json:"alias"`
}

// handlePlayers handles GET /api/v1/players?filter=
func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, playersResponse{Items: s.players.List(r.Context(), r.URL.Query().Get("filter"))})
}

// handleSetAlias handles PUT /api/v1/players/{id}/alias.
func (s *Server) handleSetAlias(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid player id", nil)
		return
	}

	var req aliasRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	p, err := s.players.SetAlias(r.Context(), id, req.Alias)
	switch {
	case errors.Is(err, app.ErrInvalidAlias):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, store.ErrUnknownPlayer):
		writeError(w, http.StatusNotFound, "player not found", nil)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	default:
		s.logger.Info("alias updated", "player_id", p.ID, "name", p.OriginalName, "alias", p.Alias)
		writeJSON(w, http.StatusOK, p)
	}
}
