package server

import (
	"net/http"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.deps.Sessions.Count(),
		"draining":        s.deps.Sessions.Draining(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.deps.Store.ListSessions(),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	dump, ok := s.deps.Store.Dump(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, dump)
}
