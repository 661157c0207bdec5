// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	repository "github.com/okian/ladder/internal/adapters/repository"
	"github.com/okian/ladder/internal/domain/dedupe"
	"github.com/okian/ladder/internal/domain/matchmaking"
	"github.com/okian/ladder/internal/domain/skill"
	"github.com/okian/ladder/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PlayerDependencies
	LeaderboardDependencies
}

// Standing and Entry mirror the read shapes returned by the service.
type (
	Standing = types.Standing
	Entry    = types.Entry
)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	playerHandler      *PlayerHandler
	leaderboardHandler *LeaderboardHandler
}

// ServerOption configures NewServer.
type ServerOption func(*serverSettings)

type serverSettings struct {
	deduper dedupe.Deduper
}

// WithDeduper sets the store of outcome idempotency keys.
func WithDeduper(d dedupe.Deduper) ServerOption {
	return func(s *serverSettings) {
		if d != nil {
			s.deduper = d
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	var cfg serverSettings
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.deduper == nil {
		cfg.deduper = dedupe.NewInMemoryDeduper()
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		playerHandler:      NewPlayerHandler(deps, cfg.deduper),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLeaderboardLimit),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(RequestID)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Method(http.MethodGet, "/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Get("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)

	r.Route("/players", func(r chi.Router) {
		r.Post("/", s.playerHandler.HandleCreate)
		r.Route("/{name}/{surname}", func(r chi.Router) {
			r.Get("/", s.playerHandler.HandleGet)
			r.Post("/opponent", s.playerHandler.HandleChooseOpponent)
			r.Post("/outcome", s.playerHandler.HandleRecordOutcome)
		})
	})
}

// Handler returns a chi router with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps domain errors onto HTTP status codes.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, skill.ErrUnknownOutcome),
		errors.Is(err, repository.ErrInvalidRecord):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, matchmaking.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, ErrInFlight):
		return http.StatusConflict, "in_flight"
	case errors.Is(err, matchmaking.ErrPrecondition),
		errors.Is(err, matchmaking.ErrNoOpponents):
		return http.StatusConflict, "precondition_failed"
	case errors.Is(err, matchmaking.ErrStoreIO):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
