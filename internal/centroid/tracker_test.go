package centroid

import (
	"math"
	"testing"

	"github.com/beamlab/scintillometry/internal/video"
)

// diskFrame builds a w×h frame with a bright disk of the given radius at
// (cx, cy) over a uniform background.
func diskFrame(w, h int, cx, cy, radius, peak, background float64) *video.Frame {
	pix := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if math.Hypot(float64(x)-cx, float64(y)-cy) <= radius {
				pix[y*w+x] = peak
			} else {
				pix[y*w+x] = background
			}
		}
	}
	return &video.Frame{Width: w, Height: h, Pix: pix}
}

func TestTracker_LocatesDisk(t *testing.T) {
	testCases := []struct {
		name       string
		percentile float64
	}{
		{"percentile 50", 50},
		{"percentile 70", 70},
		{"percentile 90", 90},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame := diskFrame(64, 64, 40, 24, 5, 200, 10)

			tracker, err := NewTracker(Config{
				ROI:       video.FullFrame(64, 64),
				Threshold: Percentile(tc.percentile),
			})
			if err != nil {
				t.Fatalf("Failed to create tracker: %v", err)
			}

			c, err := tracker.Track(frame)
			if err != nil {
				t.Fatalf("Track failed: %v", err)
			}
			if !c.Valid {
				t.Fatal("Expected a valid centroid")
			}

			// A symmetric disk centers within half a pixel regardless of
			// the threshold level.
			if math.Abs(c.X-40) > 0.5 || math.Abs(c.Y-24) > 0.5 {
				t.Errorf("Expected centroid near (40, 24), got (%.2f, %.2f)", c.X, c.Y)
			}
		})
	}
}

func TestTracker_ROICoordinates(t *testing.T) {
	// Disk inside an offset ROI: the centroid must come back in frame
	// coordinates, not ROI-local ones.
	frame := diskFrame(128, 128, 70, 80, 4, 200, 5)

	tracker, err := NewTracker(Config{
		ROI:       video.ROI{X: 50, Y: 60, Width: 50, Height: 50},
		Threshold: Percentile(60),
	})
	if err != nil {
		t.Fatalf("Failed to create tracker: %v", err)
	}

	c, err := tracker.Track(frame)
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if !c.Valid {
		t.Fatal("Expected a valid centroid")
	}
	if math.Abs(c.X-70) > 0.5 || math.Abs(c.Y-80) > 0.5 {
		t.Errorf("Expected centroid near (70, 80), got (%.2f, %.2f)", c.X, c.Y)
	}
}

func TestTracker_Deterministic(t *testing.T) {
	frame := diskFrame(64, 64, 30, 30, 6, 180, 20)
	tracker, err := NewTracker(Config{
		ROI:       video.FullFrame(64, 64),
		Threshold: Percentile(75),
		Denoise:   true,
	})
	if err != nil {
		t.Fatalf("Failed to create tracker: %v", err)
	}

	first, err := tracker.Track(frame)
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		c, err := tracker.Track(frame)
		if err != nil {
			t.Fatalf("Track failed on repeat %d: %v", i, err)
		}
		if c != first {
			t.Fatalf("Repeat %d diverged: %+v vs %+v", i, c, first)
		}
	}
}

func TestTracker_AllDarkFrame(t *testing.T) {
	frame := &video.Frame{Width: 16, Height: 16, Pix: make([]float64, 256)}

	tracker, err := NewTracker(Config{
		ROI:       video.FullFrame(16, 16),
		Threshold: Percentile(50),
	})
	if err != nil {
		t.Fatalf("Failed to create tracker: %v", err)
	}

	c, err := tracker.Track(frame)
	if err != nil {
		t.Fatalf("Track failed: %v", err)
	}
	if c.Valid {
		t.Error("Expected invalid centroid for an all-dark frame")
	}
}

func TestTracker_ROIOutsideFrame(t *testing.T) {
	frame := diskFrame(32, 32, 16, 16, 4, 100, 0)

	tracker, err := NewTracker(Config{
		ROI:       video.ROI{X: 20, Y: 20, Width: 20, Height: 20},
		Threshold: Percentile(50),
	})
	if err != nil {
		t.Fatalf("Failed to create tracker: %v", err)
	}

	if _, err = tracker.Track(frame); err == nil {
		t.Error("Expected error for ROI extending past the frame")
	}
}

func TestComputeMask_EdgeExclusion(t *testing.T) {
	// A bright ring at the region edge must be excluded; only the center
	// disk survives.
	w, h := 64, 64
	pix := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x-32), float64(y-32))
			switch {
			case d <= 4:
				pix[y*w+x] = 200
			case d >= 28:
				pix[y*w+x] = 250
			default:
				pix[y*w+x] = 1
			}
		}
	}

	mask, err := ComputeMask(pix, w, h, Exclusion{Enabled: true, Radius: 10}, Percentile(50))
	if err != nil {
		t.Fatalf("ComputeMask failed: %v", err)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x-32), float64(y-32))
			if d >= 28 && mask[y*w+x] {
				t.Fatalf("Edge ring pixel (%d, %d) must be excluded", x, y)
			}
		}
	}

	if !mask[32*w+32] {
		t.Error("Center disk pixel must stay foreground")
	}
}

func TestThreshold_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		thr     Threshold
		wantErr bool
	}{
		{"valid percentile", Percentile(75), false},
		{"percentile above 100", Percentile(101), true},
		{"negative percentile", Percentile(-1), true},
		{"valid adaptive", Adaptive(11, 10), false},
		{"even block size", Adaptive(10, 10), true},
		{"tiny block size", Adaptive(1, 10), true},
		{"unknown mode", Threshold{Mode: "otsu"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.thr.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}
}

func TestTrajectory_Displacements(t *testing.T) {
	var tr Trajectory
	tr.Append(Centroid{FrameIndex: 0, X: 10, Y: 20, Valid: true})
	tr.Append(Centroid{FrameIndex: 1, X: 13, Y: 24, Valid: true})
	tr.Append(Centroid{FrameIndex: 2, Valid: false})
	tr.Append(Centroid{FrameIndex: 3, X: 10, Y: 20, Valid: true})

	if tr.Len() != 3 {
		t.Fatalf("Expected 3 centroids, invalid ones dropped, got %d", tr.Len())
	}

	refX, refY, ok := tr.Reference()
	if !ok || refX != 10 || refY != 20 {
		t.Fatalf("Expected reference (10, 20), got (%g, %g)", refX, refY)
	}

	d := tr.Displacements()
	if d[0].Magnitude != 0 {
		t.Errorf("Expected zero displacement at reference, got %g", d[0].Magnitude)
	}
	if d[1].DX != 3 || d[1].DY != 4 || d[1].Magnitude != 5 {
		t.Errorf("Expected displacement (3, 4, 5), got (%g, %g, %g)", d[1].DX, d[1].DY, d[1].Magnitude)
	}

	stats := tr.Stats()
	if stats.Count != 3 {
		t.Errorf("Expected count 3, got %d", stats.Count)
	}
	if stats.MaxDisplacement != 5 {
		t.Errorf("Expected max displacement 5, got %g", stats.MaxDisplacement)
	}
}

func TestMedianDenoise_RemovesSaltNoise(t *testing.T) {
	pix := make([]float64, 25)
	for i := range pix {
		pix[i] = 10
	}
	pix[12] = 1000 // hot pixel in the middle of a 5x5 grid

	out := medianDenoise3(pix, 5, 5)
	if out[12] != 10 {
		t.Errorf("Expected hot pixel suppressed to 10, got %g", out[12])
	}
}
