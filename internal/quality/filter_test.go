package quality

import (
	"context"
	"errors"
	"testing"

	"github.com/beamlab/scintillometry/internal/video"
)

// uniformFrame builds a 4x4 frame with every pixel set to v.
func uniformFrame(v float64) *video.Frame {
	pix := make([]float64, 16)
	for i := range pix {
		pix[i] = v
	}
	return &video.Frame{Width: 4, Height: 4, Pix: pix}
}

func uniformFrames(levels ...float64) []*video.Frame {
	frames := make([]*video.Frame, len(levels))
	for i, v := range levels {
		frames[i] = uniformFrame(v)
	}
	return frames
}

func TestDetectRampIndex_StepInput(t *testing.T) {
	// 20 low frames then a sustained step to 100. The steady-state level is
	// the median of the upper half, so the threshold sits at 50 and the
	// first sustained crossing is exactly the step index.
	summaries := make([]float64, 60)
	for i := range summaries {
		if i < 20 {
			summaries[i] = 5
		} else {
			summaries[i] = 100
		}
	}

	at, ok := DetectRampIndex(summaries, 10, 0.5)
	if !ok {
		t.Fatal("Expected a sustained crossing to be found")
	}
	if at != 20 {
		t.Errorf("Expected crossing at index 20, got %d", at)
	}
}

func TestDetectRampIndex_TransientSpike(t *testing.T) {
	// A single-frame spike before the real ramp must not count as
	// sustained.
	summaries := make([]float64, 50)
	for i := range summaries {
		summaries[i] = 5
	}
	summaries[10] = 100
	for i := 30; i < 50; i++ {
		summaries[i] = 100
	}

	at, ok := DetectRampIndex(summaries, 5, 0.5)
	if !ok {
		t.Fatal("Expected a sustained crossing to be found")
	}
	if at != 30 {
		t.Errorf("Expected crossing at index 30, got %d", at)
	}
}

func TestDetectRampIndex_WindowTruncatesAtEnd(t *testing.T) {
	// The sustain window is longer than the remaining frames, but the level
	// holds through the end of the recording, so the crossing counts.
	summaries := []float64{1, 1, 1, 1, 8, 8, 8, 8}

	at, ok := DetectRampIndex(summaries, 10, 0.5)
	if !ok {
		t.Fatal("Expected a sustained crossing to be found")
	}
	if at != 4 {
		t.Errorf("Expected crossing at index 4, got %d", at)
	}
}

func TestScan_DarkFrames(t *testing.T) {
	src := video.NewMemorySource(0, uniformFrames(1, 2, 50, 60, 70))
	filter := New(Config{DarkThreshold: 10})

	res, err := filter.Scan(context.Background(), src)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if res.DarkFrames != 2 {
		t.Errorf("Expected 2 dark frames, got %d", res.DarkFrames)
	}
	if len(res.ValidIndices) != 3 {
		t.Fatalf("Expected 3 valid frames, got %d", len(res.ValidIndices))
	}
	if res.ValidIndices[0] != 2 {
		t.Errorf("Expected first valid index 2, got %d", res.ValidIndices[0])
	}
	if res.Acceptances[0].Reason != ReasonDark {
		t.Errorf("Expected frame 0 rejected as dark, got %s", res.Acceptances[0].Reason)
	}
	if res.Acceptances[2].Reason != ReasonAccepted {
		t.Errorf("Expected frame 2 accepted, got %s", res.Acceptances[2].Reason)
	}
}

func TestScan_NoValidFrames(t *testing.T) {
	src := video.NewMemorySource(0, uniformFrames(1, 2, 3))
	filter := New(Config{DarkThreshold: 10})

	_, err := filter.Scan(context.Background(), src)
	if !errors.Is(err, ErrNoValidFrames) {
		t.Fatalf("Expected ErrNoValidFrames, got %v", err)
	}
}

func TestScan_DecodeFailures(t *testing.T) {
	t.Run("tolerated", func(t *testing.T) {
		src := video.NewMemorySource(0, uniformFrames(50, 50, 50, 50, 50))
		src.FailFrame(1)

		filter := New(Config{DarkThreshold: 10, MaxDecodeFailureFrac: 0.3})
		res, err := filter.Scan(context.Background(), src)
		if err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if res.DecodeFailures != 1 {
			t.Errorf("Expected 1 decode failure, got %d", res.DecodeFailures)
		}
		if len(res.ValidIndices) != 4 {
			t.Errorf("Expected 4 valid frames, got %d", len(res.ValidIndices))
		}
	})

	t.Run("aborted", func(t *testing.T) {
		src := video.NewMemorySource(0, uniformFrames(50, 50, 50, 50))
		src.FailFrame(0)
		src.FailFrame(1)

		filter := New(Config{DarkThreshold: 10, MaxDecodeFailureFrac: 0.3})
		_, err := filter.Scan(context.Background(), src)
		if !errors.Is(err, ErrTooManyDecodeFailures) {
			t.Fatalf("Expected ErrTooManyDecodeFailures, got %v", err)
		}
	})
}

func TestScan_RampRelabelsPreRampFrames(t *testing.T) {
	levels := make([]float64, 50)
	for i := range levels {
		if i < 15 {
			levels[i] = 20
		} else {
			levels[i] = 100
		}
	}
	src := video.NewMemorySource(0, uniformFrames(levels...))

	filter := New(Config{DarkThreshold: 10, DetectRamp: true, SustainWindow: 10, RampRatio: 0.5})
	res, err := filter.Scan(context.Background(), src)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if res.RampFrame != 15 {
		t.Errorf("Expected ramp at frame 15, got %d", res.RampFrame)
	}
	if res.PreRampFrames != 15 {
		t.Errorf("Expected 15 pre-ramp frames, got %d", res.PreRampFrames)
	}
	if len(res.ValidIndices) != 35 {
		t.Errorf("Expected 35 valid frames after ramp, got %d", len(res.ValidIndices))
	}
	if res.ValidIndices[0] != 15 {
		t.Errorf("Expected first valid index 15, got %d", res.ValidIndices[0])
	}
	if res.Acceptances[5].Reason != ReasonPreRamp {
		t.Errorf("Expected frame 5 relabeled pre-ramp, got %s", res.Acceptances[5].Reason)
	}
	if res.Acceptances[5].Accepted {
		t.Error("Pre-ramp frame must not stay accepted")
	}
}

func TestScan_ContextCancellation(t *testing.T) {
	src := video.NewMemorySource(0, uniformFrames(50, 50))
	filter := New(Config{DarkThreshold: 10})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := filter.Scan(ctx, src); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}
