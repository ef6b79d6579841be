// Package stats holds small statistical helpers shared across the pipeline.
package stats

import "math"

// PercentileLinear computes the pct-percentile (0 to 100) of an ascending
// sorted series with linear interpolation between order statistics. This is
// the linear (R-7) quantile convention; gonum's stat.Quantile implements a
// different family.
func PercentileLinear(sorted []float64, pct float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}
