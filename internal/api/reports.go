package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/graaaaa/anatomydps/internal/app"
)

// maxSessionZones bounds the zone ids accepted by one session report.
const maxSessionZones = 500

// compactResponse is the short text form of a report.
type compactResponse struct {
	Lines []string `json:"lines"`
}

// writeReport writes rep, or its compact lines with ?format=compact.
func writeReport(w http.ResponseWriter, r *http.Request, rep app.Report) {
	if r.URL.Query().Get("format") == "compact" {
		writeJSON(w, http.StatusOK, compactResponse{Lines: rep.Compact()})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleCurrentReport handles GET /api/v1/reports/current.
func (s *Server) handleCurrentReport(w http.ResponseWriter, r *http.Request) {
	writeReport(w, r, s.reports.Current(r.Context()))
}

// handleRollingReport handles GET /api/v1/reports/rolling?minutes=N.
// Without minutes the configured window is used.
func (s *Server) handleRollingReport(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if v := r.URL.Query().Get("minutes"); v != "" {
		minutes, err := strconv.ParseFloat(v, 64)
		if err != nil || minutes <= 0 || minutes > 24*60 {
			writeError(w, http.StatusBadRequest, "invalid minutes", nil)
			return
		}
		window = time.Duration(minutes * float64(time.Minute))
	}
	writeReport(w, r, s.reports.Rolling(r.Context(), window))
}

// handleSessionReport handles GET /api/v1/reports/session?zone_ids=1,2,3.
func (s *Server) handleSessionReport(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDList(r.URL.Query().Get("zone_ids"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	rep, err := s.reports.Session(r.Context(), ids)
	if err != nil {
		if errors.Is(err, app.ErrNoZonesSelected) {
			writeError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}
	writeReport(w, r, rep)
}

// parseIDList parses a comma-separated list of positive ids.
func parseIDList(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) > maxSessionZones {
		return nil, fmt.Errorf("at most %d zone ids allowed", maxSessionZones)
	}
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid zone id: %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
