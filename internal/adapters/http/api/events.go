// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	service "github.com/okian/prepline/internal/app"
	"github.com/okian/prepline/internal/domain/model"
)

// EventsHandler handles inbound learning events.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// eventRequest mirrors the POST /events body.
type eventRequest struct {
	EventID    string           `json:"event_id"`
	UserID     string           `json:"user_id"`
	TopicID    string           `json:"topic_id"`
	Kind       string           `json:"kind"`
	Attempts   []attemptRequest `json:"attempts"`
	OccurredAt string           `json:"occurred_at,omitempty"`
}

type attemptRequest struct {
	Correct    bool    `json:"correct"`
	Difficulty int     `json:"difficulty"`
	HintsUsed  int     `json:"hints_used"`
	TimeFactor float64 `json:"time_factor"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return errors.New("missing event_id")
	case strings.TrimSpace(e.UserID) == "":
		return errors.New("missing user_id")
	case strings.TrimSpace(e.TopicID) == "":
		return errors.New("missing topic_id")
	case !model.EventKind(e.Kind).Valid():
		return errors.New("kind must be submission or session_complete")
	}
	if e.OccurredAt != "" {
		if _, err := time.Parse(time.RFC3339, e.OccurredAt); err != nil {
			return errors.New("invalid occurred_at; must be RFC3339")
		}
	}
	return nil
}

func (e eventRequest) toModel() model.LearningEvent {
	occurred := time.Now()
	if e.OccurredAt != "" {
		if ts, err := time.Parse(time.RFC3339, e.OccurredAt); err == nil {
			occurred = ts
		}
	}
	attempts := make([]model.Attempt, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		attempts = append(attempts, model.Attempt{
			Correct:    a.Correct,
			Difficulty: a.Difficulty,
			HintsUsed:  a.HintsUsed,
			TimeFactor: a.TimeFactor,
		})
	}
	return model.LearningEvent{
		EventID:    e.EventID,
		UserID:     e.UserID,
		TopicID:    e.TopicID,
		Kind:       model.EventKind(e.Kind),
		Attempts:   attempts,
		OccurredAt: occurred,
	}
}

type ackResponse struct {
	Status     string `json:"status"`
	PipelineID string `json:"pipeline_id"`
	Duplicate  bool   `json:"duplicate"`
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	pipelineID, duplicate, err := h.deps.Trigger(r.Context(), req.toModel())
	switch {
	case errors.Is(err, service.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", ErrBackpressure)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", PipelineID: pipelineID, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", PipelineID: pipelineID})
}
