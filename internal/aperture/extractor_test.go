package aperture

import (
	"math"
	"testing"

	"github.com/beamlab/scintillometry/internal/centroid"
	"github.com/beamlab/scintillometry/internal/video"
)

func uniformFrame(w, h int, v float64) *video.Frame {
	pix := make([]float64, w*h)
	for i := range pix {
		pix[i] = v
	}
	return &video.Frame{Width: w, Height: h, Pix: pix}
}

func TestNew_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Radius: 30, EdgeExclusionPercent: 15, InnerRadius: 5}, false},
		{"zero radius", Config{Radius: 0}, true},
		{"exclusion at 100", Config{Radius: 30, EdgeExclusionPercent: 100}, true},
		{"inner exceeds radius", Config{Radius: 10, InnerRadius: 10}, true},
		{"exclusion leaves no area", Config{Radius: 10, EdgeExclusionPercent: 95, InnerRadius: 5}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg)
			if tc.wantErr && err == nil {
				t.Error("Expected configuration error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestExtract_UniformFrame(t *testing.T) {
	// On a uniform frame every mask mean equals the pixel value, whatever
	// the aperture geometry.
	frame := uniformFrame(128, 128, 42)

	extractor, err := New(Config{
		Radius:               20,
		EdgeExclusionPercent: 15,
		InnerRadius:          5,
		ROI:                  video.FullFrame(128, 128),
	})
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	c := centroid.Centroid{FrameIndex: 3, X: 64, Y: 64, Valid: true}
	sample := extractor.Extract(frame, c, 60, 60)

	if sample.FrameIndex != 3 {
		t.Errorf("Expected frame index 3, got %d", sample.FrameIndex)
	}
	if sample.Fixed != 42 || sample.Tracking != 42 || sample.Raw != 42 {
		t.Errorf("Expected all means 42, got fixed=%g tracking=%g raw=%g",
			sample.Fixed, sample.Tracking, sample.Raw)
	}
	if sample.Clipped {
		t.Error("Interior apertures must not report clipping")
	}
	if !sample.Valid() {
		t.Error("Expected a valid sample")
	}
}

func TestExtract_SeparatesApertures(t *testing.T) {
	// Bright spot at the tracking centroid, dark at the fixed reference:
	// the tracking mean must exceed the fixed mean.
	w, h := 128, 128
	pix := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if math.Hypot(float64(x)-90, float64(y)-90) <= 15 {
				pix[y*w+x] = 200
			} else {
				pix[y*w+x] = 10
			}
		}
	}
	frame := &video.Frame{Width: w, Height: h, Pix: pix}

	extractor, err := New(Config{Radius: 10, InnerRadius: 2, ROI: video.FullFrame(w, h)})
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	c := centroid.Centroid{X: 90, Y: 90, Valid: true}
	sample := extractor.Extract(frame, c, 30, 30)

	if sample.Tracking <= sample.Fixed {
		t.Errorf("Expected tracking mean above fixed mean, got %g <= %g", sample.Tracking, sample.Fixed)
	}
	if sample.Fixed != 10 {
		t.Errorf("Expected fixed mean 10, got %g", sample.Fixed)
	}
	if sample.Tracking != 200 {
		t.Errorf("Expected tracking mean 200, got %g", sample.Tracking)
	}
}

func TestExtract_ClampsAtFrameEdge(t *testing.T) {
	frame := uniformFrame(64, 64, 7)

	extractor, err := New(Config{Radius: 20, ROI: video.FullFrame(64, 64)})
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	// Centroid near the corner: the aperture clips but the mean over the
	// clamped mask is still defined.
	c := centroid.Centroid{X: 3, Y: 3, Valid: true}
	sample := extractor.Extract(frame, c, 32, 32)

	if !sample.Clipped {
		t.Error("Expected the clipped flag for an edge aperture")
	}
	if sample.Tracking != 7 {
		t.Errorf("Expected clamped tracking mean 7, got %g", sample.Tracking)
	}
	if sample.Fixed != 7 {
		t.Errorf("Expected fixed mean 7, got %g", sample.Fixed)
	}
}

func TestExtract_InnerExclusion(t *testing.T) {
	// Saturated core inside the inner exclusion radius must not affect the
	// aperture mean.
	w, h := 64, 64
	pix := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if math.Hypot(float64(x)-32, float64(y)-32) <= 3 {
				pix[y*w+x] = 10000
			} else {
				pix[y*w+x] = 50
			}
		}
	}
	frame := &video.Frame{Width: w, Height: h, Pix: pix}

	extractor, err := New(Config{Radius: 15, InnerRadius: 4, ROI: video.FullFrame(w, h)})
	if err != nil {
		t.Fatalf("Failed to create extractor: %v", err)
	}

	c := centroid.Centroid{X: 32, Y: 32, Valid: true}
	sample := extractor.Extract(frame, c, 32, 32)

	if sample.Fixed != 50 {
		t.Errorf("Expected saturated core excluded, fixed mean 50, got %g", sample.Fixed)
	}
}
