package formulas

// DrawdownMetrics describes the drawdown profile of a cumulative profit curve
type DrawdownMetrics struct {
	MaxDrawdown     float64 // Largest peak-minus-current gap (absolute units)
	PeakAtMax       float64 // Peak value in force when MaxDrawdown was observed
	TroughIndex     int     // Index at which MaxDrawdown was observed (-1 if none)
	LongestRecovery int     // Longest index span spent below a prior peak
}

// CalculateCurveDrawdown measures drawdown over a cumulative profit series.
//
// The running peak starts at 0 (the curve's origin) so a series that never
// goes positive still registers its losses as drawdown. A drawdown episode
// opens on the first point below the peak and closes on the first point
// that regains it; an episode still open at the end is counted to the end.
func CalculateCurveDrawdown(curve []float64) DrawdownMetrics {
	metrics := DrawdownMetrics{TroughIndex: -1}

	peak := 0.0
	episodeStart := -1

	for i, value := range curve {
		if value >= peak {
			if episodeStart >= 0 {
				if span := i - episodeStart; span > metrics.LongestRecovery {
					metrics.LongestRecovery = span
				}
				episodeStart = -1
			}
			peak = value
			continue
		}

		if episodeStart < 0 {
			episodeStart = i
		}

		if drawdown := peak - value; drawdown > metrics.MaxDrawdown {
			metrics.MaxDrawdown = drawdown
			metrics.PeakAtMax = peak
			metrics.TroughIndex = i
		}
	}

	if episodeStart >= 0 {
		if span := len(curve) - episodeStart; span > metrics.LongestRecovery {
			metrics.LongestRecovery = span
		}
	}

	return metrics
}
