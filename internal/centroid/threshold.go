// Package centroid localizes the dominant bright spot in each frame and
// accumulates the resulting trajectory.
package centroid

import (
	"fmt"
	"math"
	"sort"

	"github.com/beamlab/scintillometry/internal/stats"
)

// Mode selects the foreground classification policy.
type Mode string

const (
	// ModePercentile marks pixels at or above a global percentile of the
	// in-region nonzero intensity as foreground.
	ModePercentile Mode = "percentile"

	// ModeAdaptive thresholds each sub-block against its own local mean,
	// tolerating spatially varying illumination.
	ModeAdaptive Mode = "adaptive"
)

// Threshold is the tagged foreground policy consumed by ComputeMask.
type Threshold struct {
	Mode       Mode
	Percentile float64 // ModePercentile: percentile in [0, 100]
	BlockSize  int     // ModeAdaptive: sub-block size in pixels, odd
	Offset     float64 // ModeAdaptive: added to the block mean, 0..255 scale
}

// Percentile returns a global percentile threshold policy.
func Percentile(pct float64) Threshold {
	return Threshold{Mode: ModePercentile, Percentile: pct}
}

// Adaptive returns a block-wise local threshold policy. An offset of 10
// reproduces the reference behavior on the normalized 0..255 scale.
func Adaptive(blockSize int, offset float64) Threshold {
	return Threshold{Mode: ModeAdaptive, BlockSize: blockSize, Offset: offset}
}

// Validate reports configuration errors in the policy.
func (t Threshold) Validate() error {
	switch t.Mode {
	case ModePercentile:
		if t.Percentile < 0 || t.Percentile > 100 {
			return fmt.Errorf("threshold percentile %.1f outside [0, 100]", t.Percentile)
		}
	case ModeAdaptive:
		if t.BlockSize < 3 || t.BlockSize%2 == 0 {
			return fmt.Errorf("adaptive block size %d: must be odd and at least 3", t.BlockSize)
		}
	default:
		return fmt.Errorf("unknown threshold mode '%s'", t.Mode)
	}
	return nil
}

// Exclusion is the circular edge exclusion applied before thresholding: only
// pixels inside maxRadius − Radius from the region center are candidates.
// This suppresses bright ring artifacts at the edge of the optical field.
type Exclusion struct {
	Enabled bool
	Radius  int // Pixels from the edge to exclude; 0 auto-selects 15% of the smaller ROI dimension
}

// autoEdgeExclusionFraction is the fraction of the smaller ROI dimension
// excluded when no explicit radius is configured.
const autoEdgeExclusionFraction = 0.15

// ComputeMask classifies the pixels of a region as foreground. pix is the
// region intensity grid (row-major, w×h); the returned mask is aligned with
// it. The function is pure: identical inputs always yield identical masks.
func ComputeMask(pix []float64, w, h int, excl Exclusion, thr Threshold) ([]bool, error) {
	if err := thr.Validate(); err != nil {
		return nil, err
	}

	include := includeMask(w, h, excl)

	switch thr.Mode {
	case ModePercentile:
		return percentileMask(pix, include, thr.Percentile), nil
	default:
		return adaptiveMask(pix, w, h, include, thr.BlockSize, thr.Offset), nil
	}
}

// includeMask marks the candidate pixels after circular edge exclusion.
func includeMask(w, h int, excl Exclusion) []bool {
	include := make([]bool, w*h)
	if !excl.Enabled {
		for i := range include {
			include[i] = true
		}
		return include
	}

	radius := excl.Radius
	if radius <= 0 {
		radius = int(float64(min(w, h)) * autoEdgeExclusionFraction)
	}

	cx, cy := w/2, h/2
	maxRadius := min(cx, cy, w-cx, h-cy)
	inner := float64(maxRadius - radius)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x-cx), float64(y-cy)
			include[y*w+x] = math.Sqrt(dx*dx+dy*dy) < inner
		}
	}
	return include
}

func percentileMask(pix []float64, include []bool, pct float64) []bool {
	// The threshold is taken over included nonzero pixels so that the
	// excluded (zeroed) region does not drag the percentile down.
	candidates := make([]float64, 0, len(pix))
	for i, v := range pix {
		if include[i] && v > 0 {
			candidates = append(candidates, v)
		}
	}

	mask := make([]bool, len(pix))
	if len(candidates) == 0 {
		return mask
	}

	sort.Float64s(candidates)
	threshold := stats.PercentileLinear(candidates, pct)

	for i, v := range pix {
		mask[i] = include[i] && v > threshold
	}
	return mask
}

func adaptiveMask(pix []float64, w, h int, include []bool, blockSize int, offset float64) []bool {
	normalized := normalize255(pix, include)

	mask := make([]bool, len(pix))
	for by := 0; by < h; by += blockSize {
		for bx := 0; bx < w; bx += blockSize {
			yEnd := min(by+blockSize, h)
			xEnd := min(bx+blockSize, w)

			var sum float64
			var count int
			for y := by; y < yEnd; y++ {
				for x := bx; x < xEnd; x++ {
					if include[y*w+x] {
						sum += normalized[y*w+x]
						count++
					}
				}
			}
			if count == 0 {
				continue
			}

			threshold := sum/float64(count) + offset
			for y := by; y < yEnd; y++ {
				for x := bx; x < xEnd; x++ {
					i := y*w + x
					mask[i] = include[i] && normalized[i] > threshold
				}
			}
		}
	}
	return mask
}

// normalize255 rescales the included pixels to [0, 255] min-max.
func normalize255(pix []float64, include []bool) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range pix {
		if !include[i] {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make([]float64, len(pix))
	if hi <= lo {
		return out
	}
	scale := 255 / (hi - lo)
	for i, v := range pix {
		if include[i] {
			out[i] = (v - lo) * scale
		}
	}
	return out
}
