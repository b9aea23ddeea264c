package server

import (
	"net/http"
)

// handleCacheStats returns per-table hit/miss counters
// GET /api/cache
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.container.Cache.Stats())
}

// handleCacheClear empties every cache table
// DELETE /api/cache
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.container.Cache.ClearAll()
	s.log.Info().Msg("Cache cleared via API")
	s.writeJSON(w, http.StatusOK, s.container.Cache.Stats())
}
