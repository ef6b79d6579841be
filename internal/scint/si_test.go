package scint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex(t *testing.T) {
	t.Run("known series", func(t *testing.T) {
		// Series 2, 4, 6: mean 4, population variance 8/3.
		res, err := Index(MethodFixed, []float64{2, 4, 6})
		require.NoError(t, err)

		assert.Equal(t, MethodFixed, res.Method)
		assert.InDelta(t, 4.0, res.Mean, 1e-12)
		assert.InDelta(t, 8.0/3.0, res.Variance, 1e-12)
		assert.InDelta(t, (8.0/3.0)/16.0, res.SI, 1e-12)
		assert.Equal(t, 3, res.SampleCount)
	})

	t.Run("constant series has zero SI", func(t *testing.T) {
		res, err := Index(MethodRaw, []float64{5, 5, 5, 5})
		require.NoError(t, err)
		assert.Zero(t, res.SI)
	})

	t.Run("scale invariance", func(t *testing.T) {
		series := []float64{3, 7, 5, 9, 4, 6, 8}
		scaled := make([]float64, len(series))
		for i, v := range series {
			scaled[i] = v * 1000
		}

		base, err := Index(MethodTracking, series)
		require.NoError(t, err)
		up, err := Index(MethodTracking, scaled)
		require.NoError(t, err)

		assert.InDelta(t, base.SI, up.SI, 1e-12)
	})

	t.Run("degenerate series", func(t *testing.T) {
		testCases := []struct {
			name   string
			series []float64
		}{
			{"empty", nil},
			{"single sample", []float64{1}},
			{"zero mean", []float64{1, -1}},
			{"negative mean", []float64{-2, -4}},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := Index(MethodFixed, tc.series)

				var degenerate *DegenerateSeriesError
				require.ErrorAs(t, err, &degenerate)
				assert.Equal(t, MethodFixed, degenerate.Method)
			})
		}
	})
}

func TestWanderMetrics(t *testing.T) {
	t.Run("wander isolated", func(t *testing.T) {
		fixed := Result{Method: MethodFixed, SI: 0.5}
		tracking := Result{Method: MethodTracking, SI: 0.2}

		w := WanderMetrics(fixed, tracking)
		assert.InDelta(t, 0.3, w.Component, 1e-12)
		require.True(t, w.FractionDefined)
		assert.InDelta(t, 0.6, w.Fraction, 1e-12)
		assert.False(t, w.Anomalous)
	})

	t.Run("anomalous when tracking exceeds fixed", func(t *testing.T) {
		w := WanderMetrics(Result{SI: 0.1}, Result{SI: 0.4})
		assert.True(t, w.Anomalous)
		assert.InDelta(t, -0.3, w.Component, 1e-12)
	})

	t.Run("fraction undefined for zero fixed SI", func(t *testing.T) {
		w := WanderMetrics(Result{SI: 0}, Result{SI: 0})
		assert.False(t, w.FractionDefined)
		assert.True(t, math.IsNaN(w.Fraction))
	})
}
