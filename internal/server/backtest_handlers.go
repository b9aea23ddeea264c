package server

import (
	"encoding/json"
	"net/http"

	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/internal/modules/backtest"
	"github.com/ahlab/ahlab/internal/modules/performance"
)

// BacktestRequest names factors by identity (role|category|key) or by
// category.key
type BacktestRequest struct {
	Side        string   `json:"side"`
	Size        string   `json:"size"`
	Predicates  []string `json:"predicates"`
	IncludeBets bool     `json:"include_bets"`
}

// BacktestResponse is one strategy's backtest
type BacktestResponse struct {
	Factors []string                `json:"factors"`
	Summary performance.Summary     `json:"summary"`
	Risk    performance.RiskMetrics `json:"risk"`
	Bets    []domain.BetRecord      `json:"bets,omitempty"`
}

// handleBacktest runs a single strategy over all loaded matches
// POST /api/backtest
func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	strategy, err := backtest.ResolveStrategy(s.container.Catalog, req.Side, req.Size, req.Predicates)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report := s.container.Backtest.Run(strategy)

	resp := BacktestResponse{
		Factors: strategy.Labels(),
		Summary: report.Summary,
		Risk:    report.Risk,
	}
	if req.IncludeBets {
		resp.Bets = report.Bets
	}
	s.writeJSON(w, http.StatusOK, resp)
}
