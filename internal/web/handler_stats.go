package web

import "net/http"

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.service.Statistics(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.service.Suggestions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleRecentSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.service.RecentSuggestions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}
