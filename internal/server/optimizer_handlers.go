package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ahlab/ahlab/internal/modules/optimizer"
)

// handleOptimizerStatus returns the engine status
// GET /api/optimizer
func (s *Server) handleOptimizerStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.container.Engine.Status())
}

// handleOptimizerStart starts a run. The body, if any, holds optimizer
// overrides.
// POST /api/optimizer/start
func (s *Server) handleOptimizerStart(w http.ResponseWriter, r *http.Request) {
	var overrides optimizer.Overrides
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid overrides: "+err.Error())
		return
	}

	// the run outlives the request
	runID, err := s.container.Engine.Start(context.Background(), overrides)
	switch {
	case errors.Is(err, optimizer.ErrAlreadyRunning):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, optimizer.ErrInvalidConfig):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log.Error().Err(err).Msg("Failed to start optimizer")
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"run_id": runID,
	})
}

// handleOptimizerStop requests a stop of the active run
// POST /api/optimizer/stop
func (s *Server) handleOptimizerStop(w http.ResponseWriter, r *http.Request) {
	stopped := s.container.Engine.Stop()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"stopped": stopped,
		"status":  s.container.Engine.Status(),
	})
}
