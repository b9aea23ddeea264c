package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanAndStdDev(t *testing.T) {
	tests := []struct {
		name         string
		data         []float64
		expectedMean float64
		expectedStd  float64
	}{
		{"empty", []float64{}, 0, 0},
		{"single value", []float64{5}, 5, 0},
		{"constant", []float64{2, 2, 2}, 2, 0},
		{"spread", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 5, 2.138},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expectedMean, Mean(tt.data), 0.001)
			assert.InDelta(t, tt.expectedStd, StdDev(tt.data), 0.001)
		})
	}
}

func TestCumulative(t *testing.T) {
	assert.Equal(t, []float64{-100, -200, -300, 0}, Cumulative([]float64{-100, -100, -100, 300}))
	assert.Empty(t, Cumulative(nil))
}

func TestCalculateCurveDrawdown_LossesThenRecovery(t *testing.T) {
	dd := CalculateCurveDrawdown([]float64{-100, -200, -300, 0})

	assert.Equal(t, 300.0, dd.MaxDrawdown)
	assert.Equal(t, 0.0, dd.PeakAtMax)
	assert.Equal(t, 2, dd.TroughIndex)
	assert.Equal(t, 3, dd.LongestRecovery)
}

func TestCalculateCurveDrawdown_Unrecovered(t *testing.T) {
	dd := CalculateCurveDrawdown([]float64{50, 100, 80, 60, 90})

	assert.Equal(t, 40.0, dd.MaxDrawdown)
	assert.Equal(t, 100.0, dd.PeakAtMax)
	assert.Equal(t, 3, dd.LongestRecovery)
}

func TestCalculateCurveDrawdown_MonotonicGain(t *testing.T) {
	dd := CalculateCurveDrawdown([]float64{10, 20, 30})

	assert.Equal(t, 0.0, dd.MaxDrawdown)
	assert.Equal(t, -1, dd.TroughIndex)
	assert.Equal(t, 0, dd.LongestRecovery)
}

func TestCalculateSharpeRatio(t *testing.T) {
	assert.Equal(t, 0.0, CalculateSharpeRatio([]float64{0.1, 0.1, 0.1}))
	assert.Equal(t, 0.0, CalculateSharpeRatio(nil))

	sharpe := CalculateSharpeRatio([]float64{0.1, -0.05, 0.2, 0.0})
	assert.Greater(t, sharpe, 0.0)
}
