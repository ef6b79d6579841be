package quality

import "sort"

// DetectRampIndex locates the start of the stable illumination period in an
// ordered series of per-frame summary statistics.
//
// The steady-state level is estimated as the median of the upper half of the
// series; the stability threshold is ratio times that level. The result is
// the position of the first element at or above the threshold whose following
// sustain-window elements (truncated at the series end) all stay at or above
// it. For a clean step the returned position is exactly the step position.
//
// ok is false when no sustained crossing exists.
func DetectRampIndex(summaries []float64, sustain int, ratio float64) (at int, ok bool) {
	n := len(summaries)
	if n == 0 {
		return 0, false
	}
	if sustain <= 0 {
		sustain = 1
	}

	threshold := ratio * steadyStateLevel(summaries)

	for i := 0; i < n; i++ {
		end := i + sustain
		if end > n {
			end = n
		}

		sustained := true
		for j := i; j < end; j++ {
			if summaries[j] < threshold {
				sustained = false
				break
			}
		}
		if sustained {
			return i, true
		}
	}

	return 0, false
}

// steadyStateLevel returns the median of the upper half of the series, a
// robust estimate of the post-ramp illumination level.
func steadyStateLevel(summaries []float64) float64 {
	sorted := make([]float64, len(summaries))
	copy(sorted, summaries)
	sort.Float64s(sorted)

	upper := sorted[len(sorted)/2:]
	return upper[len(upper)/2]
}
