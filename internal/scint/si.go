// Package scint computes scintillation indices from intensity time series
// and quantifies their uncertainty by bootstrap resampling.
package scint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Method identifies which aperture produced an intensity series.
type Method string

const (
	MethodFixed    Method = "fixed"
	MethodTracking Method = "tracking"
	MethodRaw      Method = "raw"
)

// DegenerateSeriesError reports a series on which the scintillation index
// is undefined: fewer than two samples, or a non-positive mean.
type DegenerateSeriesError struct {
	Method Method
	N      int
	Mean   float64
}

func (e *DegenerateSeriesError) Error() string {
	if e.N < 2 {
		return fmt.Sprintf("%s intensity series degenerate: %d samples, need at least 2", e.Method, e.N)
	}
	return fmt.Sprintf("%s intensity series degenerate: mean %.4g is not positive", e.Method, e.Mean)
}

// Result is the scintillation index of one intensity series together with
// the moments it was derived from.
type Result struct {
	Method      Method
	SI          float64
	Mean        float64
	Variance    float64
	SampleCount int
}

// Index computes the scintillation index Var(I)/Mean(I)² of an intensity
// series. Variance is the population variance.
func Index(method Method, series []float64) (Result, error) {
	n := len(series)
	if n < 2 {
		return Result{}, &DegenerateSeriesError{Method: method, N: n}
	}

	mean := stat.Mean(series, nil)
	if mean <= 0 {
		return Result{}, &DegenerateSeriesError{Method: method, N: n, Mean: mean}
	}

	variance := stat.MomentAbout(2, series, mean, nil)
	return Result{
		Method:      method,
		SI:          variance / (mean * mean),
		Mean:        mean,
		Variance:    variance,
		SampleCount: n,
	}, nil
}

// SI is the resampling statistic used by the bootstrap estimator. It returns
// NaN-free values only for non-degenerate resamples; degenerate resamples
// cannot occur when the source series itself is non-degenerate and strictly
// positive, which Index has already verified by the time bootstrap runs.
func SI(series []float64) float64 {
	mean := stat.Mean(series, nil)
	return stat.MomentAbout(2, series, mean, nil) / (mean * mean)
}

// Wander is the apparent scintillation contributed by beam motion rather
// than atmospheric intensity fluctuation.
type Wander struct {
	// Component is fixed SI minus tracking SI.
	Component float64

	// Fraction is Component relative to the fixed SI, NaN when the fixed
	// SI is zero.
	Fraction        float64
	FractionDefined bool

	// Anomalous is set when tracking SI exceeds fixed SI, which indicates
	// tracking failure or insufficient wander rather than a real negative
	// contribution.
	Anomalous bool
}

// WanderMetrics decomposes the fixed-aperture SI into the wander component
// isolated by comparison against the tracking-aperture SI.
func WanderMetrics(fixed, tracking Result) Wander {
	w := Wander{Component: fixed.SI - tracking.SI, Fraction: math.NaN()}
	if fixed.SI != 0 {
		w.Fraction = w.Component / fixed.SI
		w.FractionDefined = true
	}
	w.Anomalous = w.Component < 0
	return w
}
