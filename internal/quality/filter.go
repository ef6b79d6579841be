// Package quality classifies frames against a dark threshold and locates
// the start of the stable illumination period (laser ramp-up detection),
// establishing the valid frame range for analysis.
package quality

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/beamlab/scintillometry/internal/video"
)

// ErrNoValidFrames is returned when zero frames pass the dark threshold.
// It is fatal for the run and surfaced to the caller.
var ErrNoValidFrames = errors.New("no frames above dark threshold")

// ErrTooManyDecodeFailures is returned when the fraction of frames that could
// not be decoded exceeds the configured limit.
var ErrTooManyDecodeFailures = errors.New("too many frame decode failures")

// Reason explains why a frame was rejected.
type Reason string

const (
	ReasonAccepted     Reason = "accepted"
	ReasonDark         Reason = "dark"
	ReasonPreRamp      Reason = "pre-ramp"
	ReasonDecodeFailed Reason = "decode-failed"
)

// Acceptance is the quality decision for a single frame. It is computed once
// and does not mutate.
type Acceptance struct {
	Index    int
	Summary  float64
	Accepted bool
	Reason   Reason
}

// Config holds the quality filter settings for a run.
type Config struct {
	// DarkThreshold is the minimum mean pixel intensity for a frame to be
	// considered illuminated.
	DarkThreshold float64

	// DetectRamp enables locating the start of the stable illumination
	// period. When disabled, all frames above the dark threshold are
	// accepted from the first valid frame.
	DetectRamp bool

	// SustainWindow is the number of consecutive frames that must stay
	// above the stability threshold for a crossing to count as sustained.
	// The window truncates at the end of the recording, so a crossing
	// holding through the final frames still counts.
	SustainWindow int

	// RampRatio is the fraction of the steady-state level used as the
	// stability threshold.
	RampRatio float64

	// MaxDecodeFailureFrac is the maximum tolerated fraction of frames
	// failing to decode before the run is aborted.
	MaxDecodeFailureFrac float64
}

const (
	defaultSustainWindow        = 30
	defaultRampRatio            = 0.5
	defaultMaxDecodeFailureFrac = 0.2
)

// WithLogger sets the logger for the filter.
func WithLogger(logger *slog.Logger) func(*Filter) {
	return func(f *Filter) {
		f.logger = logger
	}
}

// WithProgress sets a callback invoked every 100 scanned frames.
func WithProgress(fn func(done, total int)) func(*Filter) {
	return func(f *Filter) {
		f.progress = fn
	}
}

// Filter scans a frame source and produces per-frame acceptance decisions.
type Filter struct {
	cfg      Config
	logger   *slog.Logger
	progress func(done, total int)
}

// New creates a Filter with a discard logger.
func New(cfg Config, options ...func(*Filter)) *Filter {
	if cfg.SustainWindow <= 0 {
		cfg.SustainWindow = defaultSustainWindow
	}
	if cfg.RampRatio <= 0 {
		cfg.RampRatio = defaultRampRatio
	}
	if cfg.MaxDecodeFailureFrac <= 0 {
		cfg.MaxDecodeFailureFrac = defaultMaxDecodeFailureFrac
	}

	f := Filter{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(&f)
	}
	return &f
}

// ScanResult is the outcome of scanning a full frame source.
type ScanResult struct {
	// Acceptances holds one decision per scanned frame, in frame order.
	Acceptances []Acceptance

	// ValidIndices are the frame indices accepted for analysis, in order.
	ValidIndices []int

	// Summaries are the per-frame summary statistics of the valid frames,
	// aligned with ValidIndices.
	Summaries []float64

	// RampFrame is the frame index where stable illumination begins, or -1
	// when ramp detection is disabled or found no sustained crossing.
	RampFrame int

	DarkFrames     int
	PreRampFrames  int
	DecodeFailures int
}

// Scan classifies every frame in the source. It returns ErrNoValidFrames if
// nothing passes the dark threshold and ErrTooManyDecodeFailures if decode
// failures exceed the configured fraction.
func (f *Filter) Scan(ctx context.Context, src video.Source) (*ScanResult, error) {
	first, last := src.FrameRange()
	total := last - first + 1

	res := ScanResult{
		Acceptances: make([]Acceptance, 0, total),
		RampFrame:   -1,
	}

	for index := first; index <= last; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		done := index - first
		if f.progress != nil && done%100 == 0 {
			f.progress(done, total)
		}

		frame, err := src.Frame(ctx, index)
		if err != nil {
			var decodeErr *video.DecodeError
			if errors.As(err, &decodeErr) {
				f.logger.Warn("skipping undecodable frame", slog.Int("frame", index))
				res.DecodeFailures++
				res.Acceptances = append(res.Acceptances, Acceptance{Index: index, Reason: ReasonDecodeFailed})
				continue
			}
			return nil, err
		}

		summary := Summarize(frame)
		if summary < f.cfg.DarkThreshold {
			res.DarkFrames++
			res.Acceptances = append(res.Acceptances, Acceptance{Index: index, Summary: summary, Reason: ReasonDark})
			continue
		}

		res.Acceptances = append(res.Acceptances, Acceptance{Index: index, Summary: summary, Accepted: true, Reason: ReasonAccepted})
		res.ValidIndices = append(res.ValidIndices, index)
		res.Summaries = append(res.Summaries, summary)
	}

	if failureFrac := float64(res.DecodeFailures) / float64(total); failureFrac > f.cfg.MaxDecodeFailureFrac {
		return nil, fmt.Errorf("%w: %d of %d frames", ErrTooManyDecodeFailures, res.DecodeFailures, total)
	}
	if len(res.ValidIndices) == 0 {
		return nil, ErrNoValidFrames
	}

	if f.cfg.DetectRamp {
		f.applyRamp(&res)
	}

	return &res, nil
}

// applyRamp drops valid frames preceding the first sustained crossing of the
// stability threshold and re-labels their acceptances.
func (f *Filter) applyRamp(res *ScanResult) {
	at, ok := DetectRampIndex(res.Summaries, f.cfg.SustainWindow, f.cfg.RampRatio)
	if !ok {
		f.logger.Warn("no sustained illumination level found, keeping all valid frames")
		return
	}
	res.RampFrame = res.ValidIndices[at]
	if at == 0 {
		return
	}

	f.logger.Info("detected illumination ramp",
		slog.Int("frame", res.RampFrame),
		slog.Int("droppedFrames", at))

	dropped := make(map[int]struct{}, at)
	for _, index := range res.ValidIndices[:at] {
		dropped[index] = struct{}{}
	}
	for i := range res.Acceptances {
		if _, ok := dropped[res.Acceptances[i].Index]; ok {
			res.Acceptances[i].Accepted = false
			res.Acceptances[i].Reason = ReasonPreRamp
		}
	}

	res.PreRampFrames = at
	res.ValidIndices = res.ValidIndices[at:]
	res.Summaries = res.Summaries[at:]
}

// Summarize reduces a frame to the summary statistic used for dark-frame
// classification and ramp detection: the mean pixel intensity.
func Summarize(frame *video.Frame) float64 {
	return frame.Mean()
}
