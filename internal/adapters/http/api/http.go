// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/prepline/internal/domain/model"
	"github.com/okian/prepline/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Trigger starts (or replays) a pipeline run for an inbound event.
	Trigger(ctx context.Context, event model.LearningEvent) (pipelineID string, duplicate bool, err error)

	// PipelineStatus reports the state of one run.
	PipelineStatus(ctx context.Context, pipelineID string) (types.PipelineStatus, error)

	// Dashboard serves the pre-materialized read model.
	Dashboard(ctx context.Context, userID string) (types.Dashboard, error)

	// DueRevisions lists a user's due spaced-repetition entries.
	DueRevisions(ctx context.Context, userID string, limit int) ([]types.RevisionDue, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	eventsHandler    *EventsHandler
	pipelinesHandler *PipelinesHandler
	dashboardHandler *DashboardHandler
	revisionsHandler *RevisionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		eventsHandler:    NewEventsHandler(deps),
		pipelinesHandler: NewPipelinesHandler(deps),
		dashboardHandler: NewDashboardHandler(deps),
		revisionsHandler: NewRevisionsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/pipelines/", MetricsMiddleware(s.pipelinesHandler.HandleGetPipeline, "pipelines"))
	mux.HandleFunc("/dashboard/", MetricsMiddleware(s.dashboardHandler.HandleGetDashboard, "dashboard"))
	mux.HandleFunc("/revisions/", MetricsMiddleware(s.revisionsHandler.HandleGetRevisions, "revisions"))
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
