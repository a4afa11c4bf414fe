// Package api provides HTTP API server functionality.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/graaaaa/anatomydps/internal/app"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger

	// Use case dependencies
	health  app.HealthUsecase
	stats   app.StatsUsecase
	now     app.NowUsecase
	reports app.ReportUsecase
	zones   app.ZonesUsecase
	players app.PlayersUsecase
	imports app.ImportUsecase
	cfg     app.ConfigUsecase

	// SSE hub
	hub *Hub

	cors         CORSConfig
	allowedHosts []string
	limiter      *RateLimiter
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithStatsUsecase sets the stats use case.
func WithStatsUsecase(stats app.StatsUsecase) ServerOption {
	return func(s *Server) { s.stats = stats }
}

// WithNowUsecase sets the live session use case.
func WithNowUsecase(now app.NowUsecase) ServerOption {
	return func(s *Server) { s.now = now }
}

// WithReportUsecase sets the damage report use case.
func WithReportUsecase(reports app.ReportUsecase) ServerOption {
	return func(s *Server) { s.reports = reports }
}

// WithZonesUsecase sets the zone run listing use case.
func WithZonesUsecase(zones app.ZonesUsecase) ServerOption {
	return func(s *Server) { s.zones = zones }
}

// WithPlayersUsecase sets the player and alias use case.
func WithPlayersUsecase(players app.PlayersUsecase) ServerOption {
	return func(s *Server) { s.players = players }
}

// WithImportUsecase sets the batch import use case.
func WithImportUsecase(imports app.ImportUsecase) ServerOption {
	return func(s *Server) { s.imports = imports }
}

// WithConfigUsecase sets the config use case.
func WithConfigUsecase(cfg app.ConfigUsecase) ServerOption {
	return func(s *Server) { s.cfg = cfg }
}

// WithHub sets the SSE hub.
func WithHub(hub *Hub) ServerOption {
	return func(s *Server) { s.hub = hub }
}

// WithCORS allows browser dashboards served from other origins.
func WithCORS(cfg CORSConfig) ServerOption {
	return func(s *Server) { s.cors = cfg }
}

// WithAllowedHosts adds hosts accepted by the CSRF check besides loopback.
func WithAllowedHosts(hosts ...string) ServerOption {
	return func(s *Server) { s.allowedHosts = append(s.allowedHosts, hosts...) }
}

// WithRateLimiter throttles the state-changing routes.
func WithRateLimiter(rl *RateLimiter) ServerOption {
	return func(s *Server) { s.limiter = rl }
}

// WithLogger sets the logger for the Server.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new API server with the given dependencies.
// addr should be a loopback address; the API has no authentication.
func NewServer(addr string, health app.HealthUsecase, opts ...ServerOption) *Server {
	mux := http.NewServeMux()
	s := &Server{
		mux:    mux,
		health: health,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // Disable for SSE (long-lived connections)
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	return s
}

// LoopbackAddr returns the loopback listen address for port.
func LoopbackAddr(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = csrfMiddleware(s.allowedHosts)(h)
	if len(s.cors.AllowedOrigins) > 0 {
		h = corsMiddleware(s.cors)(h)
	}
	return securityHeadersMiddleware(h)
}

// write wraps a state-changing handler with the rate limiter if configured.
func (s *Server) write(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Middleware(h)
}

// registerRoutes sets up the API routes. Routes whose use case was not
// configured are not registered.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	if s.stats != nil {
		s.mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	}
	if s.now != nil {
		s.mux.HandleFunc("GET /api/v1/now", s.handleNow)
	}
	if s.cfg != nil {
		s.mux.HandleFunc("GET /api/v1/config", s.handleGetConfig)
		s.mux.Handle("PUT /api/v1/config", s.write(s.handlePutConfig))
	}
	if s.reports != nil {
		s.mux.HandleFunc("GET /api/v1/reports/current", s.handleCurrentReport)
		s.mux.HandleFunc("GET /api/v1/reports/rolling", s.handleRollingReport)
		s.mux.HandleFunc("GET /api/v1/reports/session", s.handleSessionReport)
	}
	if s.zones != nil {
		s.mux.HandleFunc("GET /api/v1/zones", s.handleZones)
		s.mux.HandleFunc("GET /api/v1/zones/filters", s.handleZoneFilters)
	}
	if s.players != nil {
		s.mux.HandleFunc("GET /api/v1/players", s.handlePlayers)
		s.mux.Handle("PUT /api/v1/players/{id}/alias", s.write(s.handleSetAlias))
	}
	if s.imports != nil {
		s.mux.Handle("POST /api/v1/imports", s.write(s.handleStartImport))
		s.mux.Handle("DELETE /api/v1/imports", s.write(s.handleCancelImport))
		s.mux.Handle("DELETE /api/v1/data", s.write(s.handleClearData))
	}
	if s.hub != nil {
		s.mux.HandleFunc("GET /api/v1/stream", s.handleStream)
	}
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	result, err := s.health.Handle(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Serve serves on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	return s.httpServer.Serve(l)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
