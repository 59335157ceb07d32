package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/friend-location-relay/internal/domain"
	"github.com/couchcryptid/friend-location-relay/internal/relay"
	"github.com/couchcryptid/friend-location-relay/internal/simulator"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RelayService is the location relay behind the REST routes.
type RelayService interface {
	UpsertLocation(ctx context.Context, update domain.LocationUpdate) (domain.LocationRecord, error)
	GetLocation(ctx context.Context, entityID string) (domain.LocationRecord, error)
	ListLocations(ctx context.Context) ([]domain.LocationRecord, error)
	DeleteLocation(ctx context.Context, entityID string) error
	UpsertWeather(ctx context.Context, snap domain.WeatherSnapshot) (domain.WeatherSnapshot, error)
	GetWeather(ctx context.Context, entityID string) (domain.WeatherSnapshot, error)
	UpsertStorm(ctx context.Context, update domain.StormUpdate) (domain.StormRecord, error)
	ListActiveStorms(ctx context.Context) ([]domain.StormRecord, error)
	HealthCheck(ctx context.Context) relay.Health
	CheckReadiness(ctx context.Context) error
}

// Simulations starts and stops background movement simulations.
type Simulations interface {
	Start(route simulator.Route) (string, error)
	Stop(id string) bool
	Active() []simulator.Status
}

// Server exposes the relay REST API alongside health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	svc        RelayService
	sims       Simulations
	prefix     string
}

// Option customizes a Server.
type Option func(*Server)

// WithPathPrefix mounts the REST routes under prefix, e.g. "/make-server-aedf23c8".
// Ops endpoints stay at the root.
func WithPathPrefix(prefix string) Option {
	return func(s *Server) { s.prefix = prefix }
}

// WithSimulations enables the simulation control routes.
func WithSimulations(sims Simulations) Option {
	return func(s *Server) { s.sims = sims }
}

// NewServer creates an HTTP server for svc listening on addr.
func NewServer(addr string, svc RelayService, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		logger: logger,
		svc:    svc,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      cors(s.logRequests(mux)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	p := s.prefix

	mux.HandleFunc("GET "+p+"/health", s.handleHealth)
	mux.HandleFunc("GET "+p+"/friends/locations", s.handleListLocations)
	mux.HandleFunc("GET "+p+"/friends/locations.geojson", s.handleLocationsGeoJSON)
	mux.HandleFunc("POST "+p+"/friends/location", s.handleUpsertLocation)
	mux.HandleFunc("GET "+p+"/friends/location/{friendId}", s.handleGetLocation)
	mux.HandleFunc("DELETE "+p+"/friends/location/{friendId}", s.handleDeleteLocation)
	mux.HandleFunc("GET "+p+"/friends/weather/{friendId}", s.handleGetWeather)
	mux.HandleFunc("POST "+p+"/friends/weather", s.handleUpsertWeather)
	mux.HandleFunc("GET "+p+"/storms/active", s.handleListStorms)
	mux.HandleFunc("GET "+p+"/storms/active.geojson", s.handleStormsGeoJSON)
	mux.HandleFunc("POST "+p+"/storms", s.handleUpsertStorm)

	if s.sims != nil {
		mux.HandleFunc("GET "+p+"/friends/simulate", s.handleListSimulations)
		mux.HandleFunc("POST "+p+"/friends/simulate", s.handleStartSimulation)
		mux.HandleFunc("DELETE "+p+"/friends/simulate/{id}", s.handleStopSimulation)
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(s.svc))
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr, "prefix", s.prefix)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
