package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahlab/ahlab/internal/modules/backtest"
	"github.com/ahlab/ahlab/internal/modules/performance"
)

func report(bets int, roi, ddPct float64) backtest.Report {
	return backtest.Report{
		Summary: performance.Summary{TotalBets: bets, ROI: roi},
		Risk:    performance.RiskMetrics{MaxDrawdownPercent: ddPct},
	}
}

func TestScore(t *testing.T) {
	fc := DefaultFitnessConfig()

	tests := []struct {
		name   string
		report backtest.Report
		want   float64
	}{
		{"small sample", report(8, 40, 5), -992},
		{"no bets", report(0, 0, 0), -1000},
		{"roi below floor", report(100, 3, 5), -497},
		{"negative roi", report(100, -100, 90), -600},
		// 25 + 2*2 + 10*25/10*1.25^2
		{"two tiers", report(100, 25, 10), 68.0625},
		// 29 + 250/30*1.5625 - 0.5*10^2
		{"drawdown penalty", report(100, 25, 30), 29 + 250.0/30*1.5625 - 50},
		// drawdown floor of 1 caps the steadiness term
		{"zero drawdown", report(100, 6, 0), 6 + 4 + 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, fc.Score(tt.report), 1e-9)
		})
	}
}

func TestScore_Ordering(t *testing.T) {
	fc := DefaultFitnessConfig()

	// qualified beats an ROI failure, which beats a small sample
	assert.Greater(t, fc.Score(report(40, 5, 20)), fc.Score(report(1000, 4.9, 0)))
	assert.Greater(t, fc.Score(report(40, -100, 0)), fc.Score(report(39, 50, 0)))

	// at equal ROI the steadier strategy wins
	assert.Greater(t, fc.Score(report(100, 15, 5)), fc.Score(report(100, 15, 15)))
}

func TestQualifies(t *testing.T) {
	fc := DefaultFitnessConfig()
	assert.True(t, fc.Qualifies(report(40, 5, 0)))
	assert.False(t, fc.Qualifies(report(39, 50, 0)))
	assert.False(t, fc.Qualifies(report(400, 4.99, 0)))
}

func ptr[T any](v T) *T { return &v }

func TestConfig_Merge(t *testing.T) {
	base := DefaultConfig()
	merged := base.Merge(Overrides{
		PopulationSize: ptr(20),
		Seed:           ptr(int64(9)),
		Fitness: &FitnessOverrides{
			MinSampleSize: ptr(10),
			ROITiers:      []float64{15},
		},
	})

	assert.Equal(t, 20, merged.PopulationSize)
	assert.Equal(t, int64(9), merged.Seed)
	assert.Equal(t, base.MaxGenerations, merged.MaxGenerations)
	assert.Equal(t, 10, merged.Fitness.MinSampleSize)
	assert.Equal(t, []float64{15}, merged.Fitness.ROITiers)
	assert.Equal(t, base.Fitness.MinROI, merged.Fitness.MinROI)

	merged.Fitness.ROITiers[0] = 99
	assert.Equal(t, []float64{10, 20, 30}, DefaultConfig().Fitness.ROITiers)
}

func TestOverrides_Apply(t *testing.T) {
	file := Overrides{PopulationSize: ptr(30), MaxGenerations: ptr(10)}
	flags := Overrides{MaxGenerations: ptr(3)}

	o := file.Apply(flags)
	require.NotNil(t, o.PopulationSize)
	assert.Equal(t, 30, *o.PopulationSize)
	assert.Equal(t, 3, *o.MaxGenerations)
}

func TestOverrides_ApplyMergesFitness(t *testing.T) {
	file := Overrides{Fitness: &FitnessOverrides{
		SteadinessWeight: ptr(25.0),
		MinSampleSize:    ptr(60),
		MinROI:           ptr(3.0),
	}}
	flags := Overrides{Fitness: &FitnessOverrides{MinROI: ptr(8.0)}}

	merged := file.Apply(flags)
	cfg := DefaultConfig().Merge(merged)
	assert.Equal(t, 25.0, cfg.Fitness.SteadinessWeight)
	assert.Equal(t, 60, cfg.Fitness.MinSampleSize)
	assert.Equal(t, 8.0, cfg.Fitness.MinROI)
	assert.Equal(t, 3.0, *file.Fitness.MinROI, "base overrides untouched")

	onlyFlags := Overrides{}.Apply(flags)
	require.NotNil(t, onlyFlags.Fitness)
	assert.Equal(t, 8.0, *onlyFlags.Fitness.MinROI)
	assert.Nil(t, onlyFlags.Fitness.SteadinessWeight)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	broken := []Overrides{
		{PopulationSize: ptr(1)},
		{MaxGenerations: ptr(0)},
		{MutationRate: ptr(1.5)},
		{CrossoverRate: ptr(-0.1)},
		{EliteSize: ptr(50)},
		{MinFactors: ptr(4), MaxFactors: ptr(2)},
		{TournamentSize: ptr(0)},
		{Fitness: &FitnessOverrides{DrawdownFloor: ptr(0.0)}},
	}
	for _, o := range broken {
		assert.ErrorIs(t, DefaultConfig().Merge(o).Validate(), ErrInvalidConfig)
	}
}
