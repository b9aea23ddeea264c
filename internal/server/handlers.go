package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shirou/gopsutil/v3/mem"
)

// handleHealth reports database health and host memory
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	dbStatus := "ok"
	if err := s.container.DB.HealthCheck(r.Context()); err != nil {
		s.log.Warn().Err(err).Msg("Database health check failed")
		dbStatus = err.Error()
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":   status,
		"service":  "ahlab",
		"database": dbStatus,
		"matches":  len(s.container.Matches),
		"factors":  s.container.Catalog.Len(),
		"running":  s.container.Engine.Status().IsRunning,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		response["memory"] = map[string]interface{}{
			"used_percent": vm.UsedPercent,
			"available_mb": vm.Available / 1024 / 1024,
			"total_mb":     vm.Total / 1024 / 1024,
		}
	}

	s.writeJSON(w, code, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes {"error": message}
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// queryInt reads a positive integer query parameter
func queryInt(r *http.Request, name string, fallback int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && v > 0 {
		return v
	}
	return fallback
}
