// Package performance reduces settled bets into summary and risk metrics.
package performance

import (
	"github.com/ahlab/ahlab/internal/domain"
)

// Summary holds totals and rates over a bet set
type Summary struct {
	TotalBets   int     `json:"total_bets"`
	TotalStake  float64 `json:"total_stake"`
	TotalPayout float64 `json:"total_payout"`
	TotalProfit float64 `json:"total_profit"`
	ROI         float64 `json:"roi"`      // Percentage of stake
	WinRate     float64 `json:"win_rate"` // Percentage of bets
	Wins        int     `json:"wins"`     // Includes half-wins
	Losses      int     `json:"losses"`   // Includes half-losses
	Pushes      int     `json:"pushes"`
	HalfWins    int     `json:"half_wins"`
	HalfLosses  int     `json:"half_losses"`
}

// Summarize totals a bet set. An empty set yields a zero summary.
func Summarize(bets []domain.BetRecord) Summary {
	var s Summary
	s.TotalBets = len(bets)

	for _, bet := range bets {
		s.TotalStake += bet.Stake
		s.TotalPayout += bet.Payout
		s.TotalProfit += bet.Profit

		switch bet.Outcome {
		case domain.OutcomeWin:
			s.Wins++
		case domain.OutcomeHalfWin:
			s.Wins++
			s.HalfWins++
		case domain.OutcomeLoss:
			s.Losses++
		case domain.OutcomeHalfLoss:
			s.Losses++
			s.HalfLosses++
		case domain.OutcomePush:
			s.Pushes++
		}
	}

	if s.TotalStake > 0 {
		s.ROI = s.TotalProfit / s.TotalStake * 100
	}
	if s.TotalBets > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalBets) * 100
	}
	return s
}
