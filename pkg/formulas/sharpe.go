package formulas

// CalculateSharpeRatio returns mean(returns)/stddev(returns) with a zero
// risk-free rate and no annualization. Bets are not evenly spaced in time,
// so the ratio is expressed per bet. Returns 0 when dispersion is zero.
func CalculateSharpeRatio(returns []float64) float64 {
	stdDev := StdDev(returns)
	if stdDev == 0 {
		return 0
	}
	return Mean(returns) / stdDev
}
