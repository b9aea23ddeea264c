package optimizer

import (
	"math"

	"github.com/ahlab/ahlab/internal/modules/backtest"
)

// Score shapes a backtest report into a scalar fitness.
//
// Too few bets or too little ROI disqualify outright. Above the floors,
// ROI plus a log sample bonus is boosted by a steadiness term that grows
// as drawdown shrinks and compounds at every ROI tier passed, and drawdown
// past the penalty start costs quadratically.
func (fc FitnessConfig) Score(report backtest.Report) float64 {
	n := report.Summary.TotalBets
	if n < fc.MinSampleSize {
		return fc.DisqualifiedFitness + float64(n)
	}

	roi := report.Summary.ROI
	if roi < fc.MinROI {
		return fc.ROIFloorFitness + roi
	}

	base := roi
	if n > 0 {
		base += fc.SampleWeight * math.Log10(float64(n))
	}

	dd := report.Risk.MaxDrawdownPercent
	steadiness := fc.SteadinessWeight * roi / math.Max(dd, fc.DrawdownFloor)
	for _, tier := range fc.ROITiers {
		if roi >= tier {
			steadiness *= fc.TierMultiplier
		}
	}

	penalty := 0.0
	if dd > fc.DrawdownPenaltyStart {
		excess := dd - fc.DrawdownPenaltyStart
		penalty = fc.DrawdownPenaltyWeight * excess * excess
	}

	return base + steadiness - penalty
}

// Qualifies reports whether a report meets the discovery thresholds
func (fc FitnessConfig) Qualifies(report backtest.Report) bool {
	return report.Summary.TotalBets >= fc.MinSampleSize && report.Summary.ROI >= fc.MinROI
}
