package api

import (
	"net/http"
)

// handleStats handles GET /api/v1/stats requests.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.GetStats(r.Context()))
}
