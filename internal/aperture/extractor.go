// Package aperture integrates frame intensity inside circular measurement
// apertures: a fixed aperture anchored at the trajectory reference, a
// tracking aperture re-centered on each frame's centroid, and the raw
// full-ROI integral as the unrestricted upper bound.
package aperture

import (
	"fmt"
	"math"

	"github.com/beamlab/scintillometry/internal/centroid"
	"github.com/beamlab/scintillometry/internal/video"
)

// Config holds the run-wide aperture geometry. Radii are in pixels.
type Config struct {
	// Radius of the circular aperture.
	Radius float64

	// EdgeExclusionPercent shrinks the tracking aperture's effective outer
	// radius by this percentage to avoid bright-ring clipping artifacts.
	EdgeExclusionPercent float64

	// InnerRadius excludes a core around the aperture center from the
	// fixed and tracking integrals (saturated center pixels).
	InnerRadius float64

	// ROI over which the raw integral is taken.
	ROI video.ROI
}

// Defaults applied by the configuration layer when a field is unset.
const (
	DefaultEdgeExclusionPercent = 15
	DefaultInnerRadius          = 5
)

// Sample is the per-frame intensity triplet. All three values derive from
// the same frame and are mask means: the aperture integral divided by the
// contributing pixel count, which keeps values comparable when an aperture
// clips at the frame edge.
type Sample struct {
	FrameIndex int
	Fixed      float64
	Tracking   float64
	Raw        float64

	// Clipped is set when either aperture extends past the frame bounds.
	// The mask is clamped, never wrapped; clipped frames are counted and
	// reported by the caller.
	Clipped bool
}

// Valid reports whether all three intensities are defined.
func (s Sample) Valid() bool {
	return !math.IsNaN(s.Fixed) && !math.IsNaN(s.Tracking) && !math.IsNaN(s.Raw)
}

// Extractor integrates intensities for one run's geometry.
type Extractor struct {
	cfg            Config
	trackingRadius float64
}

// New validates the aperture geometry.
func New(cfg Config) (*Extractor, error) {
	if cfg.Radius <= 0 {
		return nil, fmt.Errorf("aperture radius %.1f: must be positive", cfg.Radius)
	}
	if cfg.EdgeExclusionPercent < 0 || cfg.EdgeExclusionPercent >= 100 {
		return nil, fmt.Errorf("edge exclusion %.1f%%: must be in [0, 100)", cfg.EdgeExclusionPercent)
	}
	if cfg.InnerRadius < 0 || cfg.InnerRadius >= cfg.Radius {
		return nil, fmt.Errorf("inner exclusion radius %.1f: must be in [0, aperture radius)", cfg.InnerRadius)
	}

	trackingRadius := cfg.Radius * (1 - cfg.EdgeExclusionPercent/100)
	if trackingRadius <= cfg.InnerRadius {
		return nil, fmt.Errorf("edge exclusion %.1f%% leaves no tracking aperture area", cfg.EdgeExclusionPercent)
	}

	return &Extractor{cfg: cfg, trackingRadius: trackingRadius}, nil
}

// Extract measures the intensity triplet for one frame. The tracking
// aperture is centered at the frame's centroid; the fixed aperture at the
// trajectory reference (refX, refY).
func (e *Extractor) Extract(frame *video.Frame, c centroid.Centroid, refX, refY float64) Sample {
	fixed, fixedClipped := ringMean(frame, refX, refY, e.cfg.InnerRadius, e.cfg.Radius)
	tracking, trackClipped := ringMean(frame, c.X, c.Y, e.cfg.InnerRadius, e.trackingRadius)

	return Sample{
		FrameIndex: frame.Index,
		Fixed:      fixed,
		Tracking:   tracking,
		Raw:        roiMean(frame, e.cfg.ROI),
		Clipped:    fixedClipped || trackClipped,
	}
}

// ringMean returns the mean intensity over rMin < dist ≤ rMax around
// (cx, cy), clamped to the frame bounds. NaN when no pixel contributes.
func ringMean(frame *video.Frame, cx, cy, rMin, rMax float64) (mean float64, clipped bool) {
	x0 := int(math.Floor(cx - rMax))
	x1 := int(math.Ceil(cx + rMax))
	y0 := int(math.Floor(cy - rMax))
	y1 := int(math.Ceil(cy + rMax))

	if x0 < 0 || y0 < 0 || x1 >= frame.Width || y1 >= frame.Height {
		clipped = true
	}

	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, frame.Width-1), min(y1, frame.Height-1)

	var sum float64
	var count int
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			d := math.Hypot(float64(x)-cx, float64(y)-cy)
			if d <= rMax && d > rMin {
				sum += frame.At(x, y)
				count++
			}
		}
	}

	if count == 0 {
		return math.NaN(), clipped
	}
	return sum / float64(count), clipped
}

// roiMean returns the mean intensity of the full ROI with no aperture
// restriction and no edge exclusion.
func roiMean(frame *video.Frame, roi video.ROI) float64 {
	if roi.Width <= 0 || roi.Height <= 0 {
		return math.NaN()
	}

	var sum float64
	for y := roi.Y; y < roi.Y+roi.Height; y++ {
		for x := roi.X; x < roi.X+roi.Width; x++ {
			sum += frame.At(x, y)
		}
	}
	return sum / float64(roi.Width*roi.Height)
}
