package api

import (
	"net/http"
	"strconv"

	"github.com/roverlink/gnsslaunch/internal/history"
)

// handleProcessStatus returns a snapshot of the supervised driver.
func (s *Server) handleProcessStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.driver.Stats())
}

// handleProcessRestart stops the running driver and starts a fresh
// instance under a new session.
func (s *Server) handleProcessRestart(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("manual restart requested",
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	if err := s.driver.Restart(r.Context()); err != nil {
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "restarted",
		"session": s.driver.Session(),
	})
}

// handleListEvents returns the persisted lifecycle event history,
// most recent first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "event history not available")
		return
	}

	filter := history.Filter{
		Session: r.URL.Query().Get("session"),
		Type:    r.URL.Query().Get("type"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing events failed", "error", err)
		writeInternalError(w, "listing events failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
