package performance

import (
	"math"

	"github.com/ahlab/ahlab/internal/domain"
	"github.com/ahlab/ahlab/pkg/formulas"
)

const (
	// RecoverySentinel stands in for an unbounded ratio (no drawdown, or no
	// losing bets)
	RecoverySentinel = 999.0

	// InitialCapital is the larger of these two notional bankrolls
	stakeMultipleForCapital = 50.0
	turnoverShareForCapital = 0.2
)

// RiskMetrics describes the path a bet sequence took
type RiskMetrics struct {
	MaxDrawdown          float64 `json:"max_drawdown"`
	MaxDrawdownPercent   float64 `json:"max_drawdown_percent"`
	RecoveryFactor       float64 `json:"recovery_factor"`
	ProfitFactor         float64 `json:"profit_factor"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	Volatility           float64 `json:"volatility"` // Stddev of per-bet returns, percent
	TimeToRecovery       int     `json:"time_to_recovery"`
	InitialCapital       float64 `json:"initial_capital"`
}

// Risk computes risk metrics over bets already sorted by date
func Risk(bets []domain.BetRecord) RiskMetrics {
	var m RiskMetrics
	if len(bets) == 0 {
		return m
	}

	profits := make([]float64, len(bets))
	var totalStake, grossWin, grossLoss float64
	run := 0
	for i, bet := range bets {
		profits[i] = bet.Profit
		totalStake += bet.Stake

		if bet.Profit > 0 {
			grossWin += bet.Profit
		} else if bet.Profit < 0 {
			grossLoss += -bet.Profit
		}

		if bet.Profit < 0 {
			run++
			if run > m.MaxConsecutiveLosses {
				m.MaxConsecutiveLosses = run
			}
		} else {
			run = 0
		}
	}

	avgStake := totalStake / float64(len(bets))
	m.InitialCapital = math.Max(stakeMultipleForCapital*avgStake, turnoverShareForCapital*totalStake)

	curve := formulas.Cumulative(profits)
	totalProfit := curve[len(curve)-1]

	dd := formulas.CalculateCurveDrawdown(curve)
	m.MaxDrawdown = dd.MaxDrawdown
	m.TimeToRecovery = dd.LongestRecovery
	if base := m.InitialCapital + dd.PeakAtMax; dd.MaxDrawdown > 0 && base > 0 {
		m.MaxDrawdownPercent = dd.MaxDrawdown / base * 100
	}

	switch {
	case m.MaxDrawdown > 0:
		m.RecoveryFactor = totalProfit / m.MaxDrawdown
	case totalProfit > 0:
		m.RecoveryFactor = RecoverySentinel
	}

	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		m.ProfitFactor = RecoverySentinel
	}

	returns := bankrollReturns(profits, m.InitialCapital)
	m.Volatility = formulas.StdDev(returns) * 100
	m.SharpeRatio = formulas.CalculateSharpeRatio(returns)
	return m
}

// bankrollReturns gives each bet's profit relative to the bankroll before
// it. Returns stop once the bankroll is exhausted.
func bankrollReturns(profits []float64, initial float64) []float64 {
	returns := make([]float64, 0, len(profits))
	bankroll := initial
	for _, p := range profits {
		if bankroll <= 0 {
			break
		}
		returns = append(returns, p/bankroll)
		bankroll += p
	}
	return returns
}
