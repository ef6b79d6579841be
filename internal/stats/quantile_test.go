package stats

import (
	"math"
	"testing"
)

func TestPercentileLinear(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	testCases := []struct {
		name   string
		series []float64
		pct    float64
		want   float64
	}{
		{"minimum", sorted, 0, 1},
		{"median", sorted, 50, 3},
		{"maximum", sorted, 100, 5},
		{"interpolated lower tail", sorted, 2.5, 1.1},
		{"interpolated upper tail", sorted, 97.5, 4.9},
		{"single element", []float64{7}, 97.5, 7},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := PercentileLinear(tc.series, tc.pct)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("Expected %g, got %g", tc.want, got)
			}
		})
	}
}
