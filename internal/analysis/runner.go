// Package analysis orchestrates a full measurement run: quality filtering,
// centroid tracking, aperture intensity extraction and scintillation index
// computation.
package analysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/beamlab/scintillometry/internal/aperture"
	"github.com/beamlab/scintillometry/internal/centroid"
	"github.com/beamlab/scintillometry/internal/quality"
	"github.com/beamlab/scintillometry/internal/scint"
	"github.com/beamlab/scintillometry/internal/video"
)

// Config holds the complete pipeline configuration for a run.
type Config struct {
	Quality  quality.Config
	Tracker  centroid.Config
	Aperture aperture.Config

	// Workers caps the goroutines of the centroid pass. Zero means
	// GOMAXPROCS.
	Workers int

	// CacheFrames bounds the frame cache shared by the centroid and
	// aperture passes. Zero selects a default sized for typical runs.
	CacheFrames int
}

const defaultCacheFrames = 2048

// RunResult is everything a completed run produced.
type RunResult struct {
	Scan       *quality.ScanResult
	Trajectory *centroid.Trajectory

	// Samples holds the intensity triplet of every analyzed frame, in
	// frame order. A frame is analyzed when it passed quality filtering
	// and produced a valid centroid.
	Samples []aperture.Sample

	// Results holds the scintillation index per method. Methods whose
	// series was degenerate are absent; see SeriesErrors.
	Results map[scint.Method]scint.Result

	// SeriesErrors records per-method SI failures. A failure of one
	// method does not abort the others.
	SeriesErrors map[scint.Method]error

	Wander *scint.Wander

	// Preview is the first analyzed frame, kept for diagnostic rendering.
	Preview *video.Frame

	CentroidNotFound int
	ClippedFrames    int
}

// Series returns the intensity series of one method, aligned with Samples.
func (r *RunResult) Series(method scint.Method) []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		switch method {
		case scint.MethodFixed:
			out[i] = s.Fixed
		case scint.MethodTracking:
			out[i] = s.Tracking
		default:
			out[i] = s.Raw
		}
	}
	return out
}

// WithLogger sets the logger for the runner.
func WithLogger(logger *slog.Logger) func(*Runner) {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithObserver sets the stage progress observer.
func WithObserver(obs Observer) func(*Runner) {
	return func(r *Runner) {
		r.observer = obs
	}
}

// Runner executes the pipeline over one frame source.
type Runner struct {
	cfg      Config
	logger   *slog.Logger
	observer Observer
}

// NewRunner validates the configuration and creates a Runner with a discard
// logger.
func NewRunner(cfg Config, options ...func(*Runner)) (*Runner, error) {
	if _, err := centroid.NewTracker(cfg.Tracker); err != nil {
		return nil, fmt.Errorf("tracker config: %w", err)
	}
	if _, err := aperture.New(cfg.Aperture); err != nil {
		return nil, fmt.Errorf("aperture config: %w", err)
	}
	if cfg.CacheFrames <= 0 {
		cfg.CacheFrames = defaultCacheFrames
	}

	r := Runner{
		cfg:      cfg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer: nopObserver{},
	}
	for _, option := range options {
		option(&r)
	}
	return &r, nil
}

// Run executes the pipeline. It takes ownership of src and closes it on all
// paths.
func (r *Runner) Run(ctx context.Context, src video.Source) (result *RunResult, err error) {
	defer func() {
		if cErr := src.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing frame source: %w", cErr)
		}
	}()

	cached, err := video.NewCache(src, r.cfg.CacheFrames)
	if err != nil {
		return nil, err
	}

	filter := quality.New(r.cfg.Quality,
		quality.WithLogger(r.logger),
		quality.WithProgress(func(done, total int) {
			r.observer.Stage("quality", done, total)
		}))

	scan, err := filter.Scan(ctx, cached)
	if err != nil {
		return nil, fmt.Errorf("quality scan: %w", err)
	}

	r.logger.Info("quality scan complete",
		slog.Int("valid", len(scan.ValidIndices)),
		slog.Int("dark", scan.DarkFrames),
		slog.Int("preRamp", scan.PreRampFrames),
		slog.Int("decodeFailures", scan.DecodeFailures))

	centroids, err := r.trackCentroids(ctx, cached, scan.ValidIndices)
	if err != nil {
		return nil, fmt.Errorf("centroid pass: %w", err)
	}

	result = &RunResult{
		Scan:         scan,
		Trajectory:   &centroid.Trajectory{},
		Results:      make(map[scint.Method]scint.Result, 3),
		SeriesErrors: make(map[scint.Method]error),
	}
	for _, c := range centroids {
		if !c.Valid {
			result.CentroidNotFound++
			continue
		}
		result.Trajectory.Append(c)
	}

	refX, refY, ok := result.Trajectory.Reference()
	if !ok {
		return nil, fmt.Errorf("centroid pass: no frame produced a valid centroid")
	}

	if err = r.extractSamples(ctx, cached, result, refX, refY); err != nil {
		return nil, fmt.Errorf("aperture pass: %w", err)
	}

	hits, misses := cached.Stats()
	r.logger.Debug("frame cache", slog.Int64("hits", hits), slog.Int64("misses", misses))

	r.computeIndices(result)
	return result, nil
}

// trackCentroids runs the tracker over the valid frames, in parallel when
// configured. The output is ordered by frame regardless of worker count.
func (r *Runner) trackCentroids(ctx context.Context, src video.Source, indices []int) ([]centroid.Centroid, error) {
	tracker, err := centroid.NewTracker(r.cfg.Tracker)
	if err != nil {
		return nil, err
	}

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(indices) {
		workers = len(indices)
	}

	centroids := make([]centroid.Centroid, len(indices))
	errs := make([]error, workers)
	chunk := (len(indices) + workers - 1) / workers

	var completed sync.Mutex
	done := 0

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, len(indices))
		if start >= end {
			break
		}

		wg.Add(1)
		go func(worker, start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					errs[worker] = ctx.Err()
					return
				}

				frame, err := src.Frame(ctx, indices[i])
				if err != nil {
					errs[worker] = fmt.Errorf("frame %d: %w", indices[i], err)
					return
				}
				c, err := tracker.Track(frame)
				if err != nil {
					errs[worker] = fmt.Errorf("frame %d: %w", indices[i], err)
					return
				}
				centroids[i] = c

				completed.Lock()
				done++
				if done%100 == 0 {
					r.observer.Stage("centroid", done, len(indices))
				}
				completed.Unlock()
			}
		}(w, start, end)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return centroids, nil
}

// extractSamples measures the intensity triplet of every frame that has a
// valid centroid. Aperture extraction is sequential; the frame cache makes
// the second read of each frame cheap.
func (r *Runner) extractSamples(ctx context.Context, src video.Source, result *RunResult, refX, refY float64) error {
	extractor, err := aperture.New(r.cfg.Aperture)
	if err != nil {
		return err
	}

	centroids := result.Trajectory.Centroids()
	result.Samples = make([]aperture.Sample, 0, len(centroids))

	for i, c := range centroids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i%100 == 0 {
			r.observer.Stage("aperture", i, len(centroids))
		}

		frame, err := src.Frame(ctx, c.FrameIndex)
		if err != nil {
			return fmt.Errorf("frame %d: %w", c.FrameIndex, err)
		}

		if result.Preview == nil {
			result.Preview = frame
		}

		sample := extractor.Extract(frame, c, refX, refY)
		if sample.Clipped {
			result.ClippedFrames++
		}
		if !sample.Valid() {
			r.logger.Warn("empty aperture mask, dropping frame", slog.Int("frame", c.FrameIndex))
			continue
		}
		result.Samples = append(result.Samples, sample)
	}
	return nil
}

// computeIndices derives the three scintillation indices with per-method
// error isolation, then the wander decomposition when both aperture indices
// are available.
func (r *Runner) computeIndices(result *RunResult) {
	for _, method := range []scint.Method{scint.MethodFixed, scint.MethodTracking, scint.MethodRaw} {
		res, err := scint.Index(method, result.Series(method))
		if err != nil {
			r.logger.Warn("scintillation index unavailable",
				slog.String("method", string(method)),
				slog.String("error", err.Error()))
			result.SeriesErrors[method] = err
			continue
		}
		result.Results[method] = res
	}

	fixed, okF := result.Results[scint.MethodFixed]
	tracking, okT := result.Results[scint.MethodTracking]
	if okF && okT {
		w := scint.WanderMetrics(fixed, tracking)
		result.Wander = &w
		if w.Anomalous {
			r.logger.Warn("tracking SI exceeds fixed SI, wander component is negative",
				slog.Float64("fixedSI", fixed.SI),
				slog.Float64("trackingSI", tracking.SI))
		}
	}
}
