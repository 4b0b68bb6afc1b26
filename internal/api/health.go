package api

import (
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
	Spaces int    `json:"spaces"`
	Runs   int    `json:"runs"`
}

// handleHealthz reports ok while the run store answers queries.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetRunStats(r.Context())
	if err != nil {
		s.logger.Error("healthz store check", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Spaces: len(s.registry.List()),
		Runs:   stats.Total,
	})
}
