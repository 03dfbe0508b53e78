package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wastewatch/internal/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultHistoryLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, r, &domain.ValidationError{Msg: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	start, err := parseDate(q.Get("start_date"), false)
	if err != nil {
		s.writeError(w, r, &domain.ValidationError{Msg: "invalid start_date"})
		return
	}
	end, err := parseDate(q.Get("end_date"), true)
	if err != nil {
		s.writeError(w, r, &domain.ValidationError{Msg: "invalid end_date"})
		return
	}

	entries, err := s.service.History(r.Context(), limit, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// parseDate accepts RFC 3339 or a bare calendar date. A bare end date is
// widened to the end of that day so date ranges behave inclusively.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts, nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("unrecognized date %q: %w", raw, err)
	}
	if endOfDay {
		ts = ts.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &ts, nil
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, &domain.ValidationError{Msg: "invalid entry id"})
		return
	}

	entry, err := s.service.Entry(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entry == nil {
		s.writeError(w, r, &domain.NotFoundError{ID: id})
		return
	}

	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, &domain.ValidationError{Msg: "invalid entry id"})
		return
	}

	if err := s.service.DeleteEntry(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("entry %d deleted", id),
	})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearAll(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "all entries cleared",
	})
}
