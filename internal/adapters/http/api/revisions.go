// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"
	"strings"
)

// RevisionsHandler serves the due-revision queue.
type RevisionsHandler struct {
	deps Dependencies
}

// NewRevisionsHandler creates a new revisions handler.
func NewRevisionsHandler(deps Dependencies) *RevisionsHandler {
	return &RevisionsHandler{deps: deps}
}

// HandleGetRevisions handles GET /revisions/{user_id}?limit=N requests.
func (h *RevisionsHandler) HandleGetRevisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID := strings.TrimPrefix(r.URL.Path, "/revisions/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		limit = n
	}

	due, err := h.deps.DueRevisions(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, due)
}
