// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/prepline/internal/app"
)

// PipelinesHandler handles pipeline status requests.
type PipelinesHandler struct {
	deps Dependencies
}

// NewPipelinesHandler creates a new pipelines handler.
func NewPipelinesHandler(deps Dependencies) *PipelinesHandler {
	return &PipelinesHandler{deps: deps}
}

// HandleGetPipeline handles GET /pipelines/{pipeline_id} requests.
func (h *PipelinesHandler) HandleGetPipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/pipelines/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	status, err := h.deps.PipelineStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPipelineNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
