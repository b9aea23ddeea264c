// Package formulas holds the numeric building blocks behind the
// performance and risk metrics.
package formulas

import (
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values.
// Fewer than two observations have no dispersion and return 0.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Cumulative returns the running sum of data
func Cumulative(data []float64) []float64 {
	out := make([]float64, len(data))
	running := 0.0
	for i, v := range data {
		running += v
		out[i] = running
	}
	return out
}
