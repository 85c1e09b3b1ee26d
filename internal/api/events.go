package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/JakeFAU/clipdl/internal/progress"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

type eventsResponse struct {
	Index  int              `json:"index"`
	Ready  bool             `json:"ready"`
	Events []progress.Event `json:"events"`
}

// listEvents handles GET /events?since=&limit=. It returns events with a
// sequence number greater than since, oldest first, keeping the newest
// limit entries when more are buffered.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.writeError(w, http.StatusServiceUnavailable, "event feed unavailable")
		return
	}
	since, limit, err := parseSinceLimit(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events := s.events.Since(since, limit)
	if events == nil {
		events = []progress.Event{}
	}
	s.writeJSON(w, http.StatusOK, eventsResponse{
		Index:  s.events.Index(),
		Ready:  s.events.Ready(),
		Events: events,
	})
}

func parseSinceLimit(r *http.Request) (uint64, int, error) {
	q := r.URL.Query()
	var since uint64
	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid since: %q", raw)
		}
		since = v
	}
	limit := defaultEventLimit
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return 0, 0, fmt.Errorf("invalid limit: %q", raw)
		}
		limit = min(v, maxEventLimit)
	}
	return since, limit, nil
}
