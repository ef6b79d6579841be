package centroid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/beamlab/scintillometry/internal/video"
)

// Centroid is the localized spot position for one frame, in frame
// coordinates with sub-pixel precision. Mass is the total foreground
// intensity behind the estimate. An invalid centroid means no pixel was
// classified foreground; such frames are excluded from the trajectory.
type Centroid struct {
	FrameIndex int
	X          float64
	Y          float64
	Mass       float64
	Valid      bool
}

// Config holds the tracker settings, fixed for a run.
type Config struct {
	ROI       video.ROI
	Threshold Threshold
	Exclusion Exclusion

	// Denoise applies a 3×3 median filter to the region before
	// thresholding and weighting.
	Denoise bool
}

// Tracker computes intensity-weighted centroids inside the configured ROI.
// Track is pure and deterministic: identical frame and configuration always
// yield the identical centroid, enabling test replay.
type Tracker struct {
	cfg Config
}

// NewTracker validates the configuration. The ROI must already be resolved
// (non-zero); bounds against the frame are checked per frame.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Threshold.Validate(); err != nil {
		return nil, err
	}
	if cfg.ROI.Width <= 0 || cfg.ROI.Height <= 0 {
		return nil, fmt.Errorf("invalid ROI %dx%d", cfg.ROI.Width, cfg.ROI.Height)
	}
	return &Tracker{cfg: cfg}, nil
}

// Track localizes the bright spot on one frame. The returned centroid is in
// frame coordinates. Frames with no foreground pixels yield Valid == false.
func (t *Tracker) Track(frame *video.Frame) (Centroid, error) {
	roi := t.cfg.ROI
	if !roi.Within(frame.Width, frame.Height) {
		return Centroid{}, fmt.Errorf("ROI (%d,%d %dx%d) outside frame bounds %dx%d",
			roi.X, roi.Y, roi.Width, roi.Height, frame.Width, frame.Height)
	}

	pix := extractRegion(frame, roi)
	if t.cfg.Denoise {
		pix = medianDenoise3(pix, roi.Width, roi.Height)
	}

	mask, err := ComputeMask(pix, roi.Width, roi.Height, t.cfg.Exclusion, t.cfg.Threshold)
	if err != nil {
		return Centroid{}, err
	}

	var sumI, sumX, sumY float64
	for y := 0; y < roi.Height; y++ {
		for x := 0; x < roi.Width; x++ {
			i := y*roi.Width + x
			if !mask[i] {
				continue
			}
			v := pix[i]
			sumI += v
			sumX += v * float64(x)
			sumY += v * float64(y)
		}
	}

	if sumI <= 0 {
		return Centroid{FrameIndex: frame.Index}, nil
	}

	return Centroid{
		FrameIndex: frame.Index,
		X:          sumX/sumI + float64(roi.X),
		Y:          sumY/sumI + float64(roi.Y),
		Mass:       sumI,
		Valid:      true,
	}, nil
}

func extractRegion(frame *video.Frame, roi video.ROI) []float64 {
	pix := make([]float64, roi.Width*roi.Height)
	for y := 0; y < roi.Height; y++ {
		row := (roi.Y + y) * frame.Width
		copy(pix[y*roi.Width:(y+1)*roi.Width], frame.Pix[row+roi.X:row+roi.X+roi.Width])
	}
	return pix
}

// Displacement is a centroid's offset from the trajectory reference.
type Displacement struct {
	FrameIndex int
	DX         float64
	DY         float64
	Magnitude  float64
}

// Trajectory is the insertion-ordered centroid sequence of a run. The first
// valid centroid becomes the reference; it is fixed once set and anchors
// both displacement computation and the fixed aperture.
type Trajectory struct {
	centroids []Centroid
	refX      float64
	refY      float64
	hasRef    bool
}

// Append adds a valid centroid. Invalid centroids must be filtered out by
// the caller (they are tallied, not stored). Centroids must be appended in
// increasing frame order.
func (tr *Trajectory) Append(c Centroid) {
	if !c.Valid {
		return
	}
	if !tr.hasRef {
		tr.refX, tr.refY = c.X, c.Y
		tr.hasRef = true
	}
	tr.centroids = append(tr.centroids, c)
}

// Reference returns the reference centroid position. ok is false when the
// trajectory is empty.
func (tr *Trajectory) Reference() (x, y float64, ok bool) {
	return tr.refX, tr.refY, tr.hasRef
}

// Centroids returns the ordered centroid sequence.
func (tr *Trajectory) Centroids() []Centroid {
	return tr.centroids
}

// Len returns the number of tracked centroids.
func (tr *Trajectory) Len() int { return len(tr.centroids) }

// Displacements returns each centroid's offset from the reference.
func (tr *Trajectory) Displacements() []Displacement {
	out := make([]Displacement, len(tr.centroids))
	for i, c := range tr.centroids {
		dx, dy := c.X-tr.refX, c.Y-tr.refY
		out[i] = Displacement{
			FrameIndex: c.FrameIndex,
			DX:         dx,
			DY:         dy,
			Magnitude:  math.Hypot(dx, dy),
		}
	}
	return out
}

// Stats summarizes the trajectory. Standard deviations are population
// standard deviations, consistent with the SI convention used elsewhere.
type Stats struct {
	Count            int
	MeanX            float64
	MeanY            float64
	StdX             float64
	StdY             float64
	MaxDisplacement  float64
	MeanDisplacement float64
}

// Stats computes the run summary statistics of the trajectory.
func (tr *Trajectory) Stats() Stats {
	n := len(tr.centroids)
	if n == 0 {
		return Stats{}
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, c := range tr.centroids {
		xs[i] = c.X
		ys[i] = c.Y
	}

	meanX := stat.Mean(xs, nil)
	meanY := stat.Mean(ys, nil)

	s := Stats{
		Count: n,
		MeanX: meanX,
		MeanY: meanY,
		StdX:  math.Sqrt(stat.MomentAbout(2, xs, meanX, nil)),
		StdY:  math.Sqrt(stat.MomentAbout(2, ys, meanY, nil)),
	}

	var sum float64
	for _, d := range tr.Displacements() {
		sum += d.Magnitude
		if d.Magnitude > s.MaxDisplacement {
			s.MaxDisplacement = d.Magnitude
		}
	}
	s.MeanDisplacement = sum / float64(n)
	return s
}
