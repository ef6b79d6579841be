package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/beamlab/scintillometry/internal/analysis"
	"github.com/beamlab/scintillometry/internal/export"
	"github.com/beamlab/scintillometry/internal/quality"
	"github.com/beamlab/scintillometry/internal/scint"
	"github.com/beamlab/scintillometry/internal/storage"
	"github.com/beamlab/scintillometry/internal/video"
)

const storageDir = "data"

// Run executes one measurement run: analyze the recording, persist the
// results and write the configured exports.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()

	src, err := openSource(&config.Video)
	if err != nil {
		return fmt.Errorf("failed to open frame source: %w", err)
	}

	first, _ := src.FrameRange()
	probe, err := src.Frame(ctx, first)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("probing first frame: %w", err)
	}

	logger.Info("opened recording",
		slog.String("path", config.Video.Path),
		slog.String("format", config.Video.Format),
		slog.String("frames", humanize.Comma(int64(src.FrameCount()))),
		slog.Int("width", probe.Width),
		slog.Int("height", probe.Height),
		slog.Float64("peak", probe.Max()))

	roi := config.trackerROI(probe.Width, probe.Height)

	runnerCfg := analysis.Config{
		Quality: quality.Config{
			DarkThreshold:        config.Quality.DarkThreshold,
			DetectRamp:           config.Quality.DetectRamp,
			SustainWindow:        config.Quality.SustainWindow,
			RampRatio:            config.Quality.RampRatio,
			MaxDecodeFailureFrac: config.Quality.MaxDecodeFailureFrac,
		},
		Tracker:  config.trackerConfig(roi),
		Aperture: config.apertureConfig(roi),
		Workers:  config.Workers,
	}

	runner, err := analysis.NewRunner(runnerCfg,
		analysis.WithLogger(logger),
		analysis.WithObserver(analysis.ObserverFunc(func(name string, done, total int) {
			logger.Debug("pipeline progress",
				slog.String("stage", name),
				slog.Int("done", done),
				slog.Int("total", total))
		})))
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	started := time.Now()
	result, err := runner.Run(ctx, src)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	logger.Info("analysis complete",
		slog.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
		slog.String("analyzedFrames", humanize.Comma(int64(len(result.Samples)))),
		slog.Int("darkFrames", result.Scan.DarkFrames),
		slog.Int("preRampFrames", result.Scan.PreRampFrames),
		slog.Int("centroidNotFound", result.CentroidNotFound),
		slog.Int("clippedFrames", result.ClippedFrames))

	for _, method := range []scint.Method{scint.MethodFixed, scint.MethodTracking, scint.MethodRaw} {
		if res, ok := result.Results[method]; ok {
			logger.Info("scintillation index",
				slog.String("method", string(method)),
				slog.Float64("si", res.SI),
				slog.Float64("mean", res.Mean),
				slog.Int("samples", res.SampleCount))
		}
	}
	if result.Wander != nil {
		logger.Info("wander decomposition",
			slog.Float64("component", result.Wander.Component),
			slog.Bool("anomalous", result.Wander.Anomalous))
	}

	dists, err := runBootstrap(ctx, config, result, logger)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	runID, err := persist(ctx, store, config, result, dists)
	if err != nil {
		return fmt.Errorf("failed to persist run: %w", err)
	}
	logger.Info("run persisted", slog.Int64("runID", runID))

	if err = writeExports(config, result, dists, logger); err != nil {
		return fmt.Errorf("failed to write exports: %w", err)
	}

	return nil
}

func openSource(config *VideoConfig) (video.Source, error) {
	var src video.Source
	var err error

	switch config.Format {
	case FormatRaw8, FormatRaw16:
		bitDepth := 8
		if config.Format == FormatRaw16 {
			bitDepth = 16
		}
		src, err = video.NewRawSource(video.RawConfig{
			Path:     config.Path,
			Width:    config.Width,
			Height:   config.Height,
			BitDepth: bitDepth,
		})

	case FormatPNGDir:
		src, err = video.NewDirSource(config.Path, 0)

	default:
		return nil, fmt.Errorf("unknown video format '%s'", config.Format)
	}
	if err != nil {
		return nil, err
	}

	if config.SkipInitialFrames > 0 {
		skipped, skipErr := video.SkipFrames(src, config.SkipInitialFrames)
		if skipErr != nil {
			_ = src.Close()
			return nil, skipErr
		}
		src = skipped
	}
	return src, nil
}

// runBootstrap resamples every method that produced a valid index.
func runBootstrap(ctx context.Context, config *Config, result *analysis.RunResult, logger *slog.Logger) (map[scint.Method]*scint.Distribution, error) {
	if config.Bootstrap.Iterations == 0 {
		return nil, nil
	}

	estimator := scint.Estimator{
		Iterations: config.Bootstrap.Iterations,
		Seed:       config.Bootstrap.Seed,
		BlockSize:  config.Bootstrap.BlockSize,
		Workers:    config.Bootstrap.Workers,
	}

	dists := make(map[scint.Method]*scint.Distribution, len(result.Results))
	for method := range result.Results {
		dist, err := estimator.Resample(ctx, string(method), result.Series(method), scint.SI)
		if err != nil {
			return nil, fmt.Errorf("resampling %s series: %w", method, err)
		}
		dists[method] = dist

		logger.Info("bootstrap estimate",
			slog.String("method", string(method)),
			slog.Float64("mean", dist.Mean),
			slog.Float64("ciLow", dist.CILow),
			slog.Float64("ciHigh", dist.CIHigh))
	}
	return dists, nil
}

func persist(ctx context.Context, store *storage.Store, config *Config, result *analysis.RunResult, dists map[scint.Method]*scint.Distribution) (runID int64, err error) {
	runID, err = store.CreateRun(ctx, config.Condition, config.Video.Path, config)
	if err != nil {
		return 0, err
	}

	if err = store.StoreTrajectory(ctx, runID, trajectoryPoints(result)); err != nil {
		return 0, err
	}

	samples := make([]storage.ApertureSample, len(result.Samples))
	for i, s := range result.Samples {
		fixed, tracking, raw := s.Fixed, s.Tracking, s.Raw
		samples[i] = storage.ApertureSample{
			FrameIndex: s.FrameIndex,
			Fixed:      &fixed,
			Tracking:   &tracking,
			Raw:        &raw,
			Clipped:    s.Clipped,
		}
	}
	if err = store.StoreApertureSamples(ctx, runID, samples); err != nil {
		return 0, err
	}

	results := make([]storage.SIResult, 0, len(result.Results))
	for _, res := range result.Results {
		results = append(results, storage.SIResult{
			Method:      string(res.Method),
			SI:          res.SI,
			Mean:        res.Mean,
			Variance:    res.Variance,
			SampleCount: res.SampleCount,
		})
	}
	if err = store.StoreSIResults(ctx, runID, results); err != nil {
		return 0, err
	}

	for method, dist := range dists {
		err = store.StoreBootstrap(ctx, runID, storage.BootstrapResult{
			Method:        string(method),
			Iterations:    dist.Iterations,
			Seed:          dist.Seed,
			PointEstimate: dist.PointEstimate,
			Mean:          dist.Mean,
			StdDev:        dist.StdDev,
			CILow:         dist.CILow,
			CIHigh:        dist.CIHigh,
		})
		if err != nil {
			return 0, err
		}
	}

	return runID, nil
}

func trajectoryPoints(result *analysis.RunResult) []storage.TrajectoryPoint {
	displacements := result.Trajectory.Displacements()
	points := make([]storage.TrajectoryPoint, len(displacements))
	for i, d := range displacements {
		c := result.Trajectory.Centroids()[i]
		points[i] = storage.TrajectoryPoint{
			FrameIndex:  i,
			FrameNumber: c.FrameIndex,
			X:           c.X,
			Y:           c.Y,
			DX:          d.DX,
			DY:          d.DY,
			Magnitude:   d.Magnitude,
		}
	}
	return points
}

func writeExports(config *Config, result *analysis.RunResult, dists map[scint.Method]*scint.Distribution, logger *slog.Logger) error {
	dir := config.Output.Directory
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if config.Output.WriteCSV {
		points := trajectoryPoints(result)
		trajectory := make([]export.TrajectoryRecord, len(points))
		for i, p := range points {
			trajectory[i] = export.TrajectoryRecord{
				FrameIndex:  p.FrameIndex,
				FrameNumber: p.FrameNumber,
				X:           p.X,
				Y:           p.Y,
				DX:          p.DX,
				DY:          p.DY,
				Magnitude:   p.Magnitude,
			}
		}
		path := filepath.Join(dir, "trajectory.csv")
		if err := export.WriteTrajectoryCSV(path, trajectory); err != nil {
			return err
		}
		logger.Info("wrote trajectory", slog.String("path", path))

		intensities := make([]export.IntensityRecord, len(result.Samples))
		for i, s := range result.Samples {
			intensities[i] = export.IntensityRecord{
				FrameIndex: s.FrameIndex,
				Fixed:      s.Fixed,
				Tracking:   s.Tracking,
				Raw:        s.Raw,
			}
		}
		path = filepath.Join(dir, "intensity.csv")
		if err := export.WriteIntensityCSV(path, intensities); err != nil {
			return err
		}
		logger.Info("wrote intensities", slog.String("path", path))
	}

	if config.Output.WriteJSON {
		path := filepath.Join(dir, "summary.json")
		if err := export.WriteRunSummary(path, buildSummary(config, result, dists)); err != nil {
			return err
		}
		logger.Info("wrote summary", slog.String("path", path))
	}

	if config.Output.Overlay.Enabled {
		path := filepath.Join(dir, "overlay.png")
		if err := writeOverlay(path, config, result); err != nil {
			return err
		}
		logger.Info("wrote overlay", slog.String("path", path))
	}

	return nil
}

func buildSummary(config *Config, result *analysis.RunResult, dists map[scint.Method]*scint.Distribution) *export.RunSummary {
	summary := export.RunSummary{
		Label:     config.Condition,
		Source:    config.Video.Path,
		StartTime: time.Now().UTC(),
		Frames: export.FrameCounts{
			Total:            len(result.Scan.Acceptances),
			Analyzed:         len(result.Samples),
			Dark:             result.Scan.DarkFrames,
			PreRamp:          result.Scan.PreRampFrames,
			DecodeFailed:     result.Scan.DecodeFailures,
			CentroidNotFound: result.CentroidNotFound,
			Clipped:          result.ClippedFrames,
		},
		SI: make(map[string]export.SIEntry, len(result.Results)),
	}

	if stats := result.Trajectory.Stats(); stats.Count > 0 {
		summary.Trajectory = &export.TrajectoryEntry{
			Count:            stats.Count,
			MeanX:            stats.MeanX,
			MeanY:            stats.MeanY,
			StdX:             stats.StdX,
			StdY:             stats.StdY,
			MeanDisplacement: stats.MeanDisplacement,
			MaxDisplacement:  stats.MaxDisplacement,
		}
	}

	for method, res := range result.Results {
		summary.SI[string(method)] = export.SIEntry{
			SI:          res.SI,
			Mean:        res.Mean,
			Variance:    res.Variance,
			SampleCount: res.SampleCount,
		}
	}

	if result.Wander != nil {
		entry := export.WanderEntry{
			Component: result.Wander.Component,
			Anomalous: result.Wander.Anomalous,
		}
		if result.Wander.FractionDefined {
			fraction := result.Wander.Fraction
			entry.Fraction = &fraction
		}
		summary.Wander = &entry
	}

	if len(dists) > 0 {
		summary.Bootstrap = make(map[string]export.BootstrapEntry, len(dists))
		for method, dist := range dists {
			summary.Bootstrap[string(method)] = export.BootstrapEntry{
				Iterations:    dist.Iterations,
				Seed:          dist.Seed,
				PointEstimate: dist.PointEstimate,
				Mean:          dist.Mean,
				StdDev:        dist.StdDev,
				CILow:         dist.CILow,
				CIHigh:        dist.CIHigh,
			}
		}
	}

	if result.Scan.RampFrame >= 0 {
		rampFrame := result.Scan.RampFrame
		summary.RampFrame = &rampFrame
	}

	return &summary
}

func createStorage(config *StorageConfig) (*storage.Store, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current working directory: %w", err)
	}

	var dbPath string
	if config.DataDirectory != "" {
		dbPath = filepath.Join(wd, config.DataDirectory)
	} else {
		dbPath = filepath.Join(wd, storageDir)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("si_run_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.New(dbPath), nil
}
