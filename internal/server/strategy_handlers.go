package server

import (
	"net/http"

	"github.com/ahlab/ahlab/internal/modules/discovery"
)

// handleStrategies lists discovered strategies, best fitness first
// GET /api/strategies?run_id=&limit=
func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	entries, err := s.container.Store.List(r.Context(), discovery.ListFilter{
		RunID: r.URL.Query().Get("run_id"),
		Limit: queryInt(r, "limit", 100),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list strategies")
		s.writeError(w, http.StatusInternalServerError, "failed to list strategies")
		return
	}
	if entries == nil {
		entries = []discovery.Entry{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": entries,
		"count":      len(entries),
	})
}

// handleRuns lists recorded optimizer runs, newest first
// GET /api/runs?limit=
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.container.Store.Runs(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list runs")
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []discovery.Run{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}
