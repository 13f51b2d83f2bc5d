package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/fauxswitch/internal/runner"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 200
)

// switchListResponse wraps the switch list.
type switchListResponse struct {
	Switches []runner.Status `json:"switches"`
	Count    int             `json:"count"`
}

// handleListSwitches returns every running switch.
func (s *Server) handleListSwitches(w http.ResponseWriter, _ *http.Request) {
	statuses := s.switches.Statuses()
	writeJSON(w, http.StatusOK, switchListResponse{Switches: statuses, Count: len(statuses)})
}

// handleGetSwitch returns one switch by friendly name.
func (s *Server) handleGetSwitch(w http.ResponseWriter, r *http.Request) {
	name := switchName(r)
	st, ok := s.switches.Status(name)
	if !ok {
		writeNotFound(w, "switch not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleGetSwitchEvents returns recent recorded actions of a switch.
func (s *Server) handleGetSwitchEvents(w http.ResponseWriter, r *http.Request) {
	name := switchName(r)
	if _, ok := s.switches.Status(name); !ok {
		writeNotFound(w, "switch not found")
		return
	}
	if s.events == nil {
		writeServiceUnavailable(w, "event history is not enabled")
		return
	}

	limit, err := parseEventLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	events, err := s.events.Recent(r.Context(), name, limit)
	if err != nil {
		s.logger.Error("loading switch events failed", "switch", name, "error", err)
		writeInternalError(w, "failed to load switch events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"switch": name,
		"events": events,
		"count":  len(events),
	})
}

// switchName returns the unescaped {name} path parameter.
func switchName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

// parseEventLimit parses ?limit=. Empty means the default; values above the
// maximum are clamped.
func parseEventLimit(raw string) (int, error) {
	if raw == "" {
		return defaultEventLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	return limit, nil
}
