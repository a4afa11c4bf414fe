package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/graaaaa/anatomydps/internal/app"
	"github.com/graaaaa/anatomydps/internal/parser"
)

// zonesResponse represents the response for the zones endpoint.
type zonesResponse struct {
	Items []app.ZoneRun `json:"items"`
}

// handleZones handles GET /api/v1/zones?name=&date=&min_wisdom=
func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	q, err := parseZoneQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, zonesResponse{Items: s.zones.List(r.Context(), q)})
}

// handleZoneFilters handles GET /api/v1/zones/filters.
func (s *Server) handleZoneFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.zones.Filters(r.Context()))
}

// parseZoneQuery parses query parameters into a ZoneQuery.
func parseZoneQuery(r *http.Request) (app.ZoneQuery, error) {
	params := r.URL.Query()
	q := app.ZoneQuery{Name: params.Get("name")}

	if d := params.Get("date"); d != "" {
		if _, err := time.Parse(parser.DateLayout, d); err != nil {
			return q, errInvalidParam("date")
		}
		q.LogDate = d
	}

	if m := params.Get("min_wisdom"); m != "" {
		n, err := strconv.ParseInt(m, 10, 64)
		if err != nil || n < 0 {
			return q, errInvalidParam("min_wisdom")
		}
		q.MinWisdom = n
	}

	return q, nil
}

type errInvalidParam string

func (e errInvalidParam) Error() string { return "invalid " + string(e) }
