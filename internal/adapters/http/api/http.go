// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vitalislabs/vitalis/internal/adapters/repository"
	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle
// keeps the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	// IngestLabPanel stores a parsed lab panel and queues an evaluation.
	IngestLabPanel(ctx context.Context, userID, uploadID string, readings []model.BiomarkerReading) error

	// IngestWearable stores raw samples and queues an evaluation.
	IngestWearable(ctx context.Context, userID, metricType string, samples []model.WearableSample) error

	// Refresh runs a synchronous evaluation.
	Refresh(ctx context.Context, userID string) (model.BrainOutput, error)

	// LatestOutput returns the most recent evaluation snapshot.
	LatestOutput(ctx context.Context, userID string) (model.BrainOutput, error)

	// Published returns the current published velocity state.
	Published(ctx context.Context, userID string) (model.PublishedVelocityState, error)
}

// StatsProvider exposes service statistics.
type StatsProvider interface {
	Stats() map[string]any
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	ingestHandler   *IngestHandler
	evaluateHandler *EvaluateHandler
	usersHandler    *UsersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	cfg := serverConfig{refreshPerMinute: defaultRefreshPerMinute}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		ingestHandler:   NewIngestHandler(deps),
		evaluateHandler: NewEvaluateHandler(deps, cfg.refreshPerMinute),
		usersHandler:    NewUsersHandler(deps),
	}
}

type serverConfig struct {
	refreshPerMinute int
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*serverConfig)

// WithRefreshPerMinute caps synchronous re-evaluations per user.
func WithRefreshPerMinute(n int) ServerOption {
	return func(c *serverConfig) {
		if n > 0 {
			c.refreshPerMinute = n
		}
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/ingest/labs", MetricsMiddleware(s.ingestHandler.HandlePostLabs, "ingest_labs"))
	mux.HandleFunc("/ingest/wearable", MetricsMiddleware(s.ingestHandler.HandlePostWearable, "ingest_wearable"))
	mux.HandleFunc("/evaluate", MetricsMiddleware(s.evaluateHandler.HandlePostEvaluate, "evaluate"))
	mux.HandleFunc("/users/", MetricsMiddleware(s.usersHandler.HandleGetUser, "users"))
}

type ackResponse struct {
	Status string `json:"status"`
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

// isNotFound translates upstream not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
