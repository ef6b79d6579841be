package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/beamlab/scintillometry/internal/compare"
	"github.com/beamlab/scintillometry/internal/export"
	"github.com/beamlab/scintillometry/internal/scint"
	"github.com/beamlab/scintillometry/internal/storage"
)

// condition is one loaded run with everything the report needs.
type condition struct {
	run      *storage.Run
	label    string
	tracking []float64
	points   []storage.TrajectoryPoint
	dist     *scint.Distribution
}

// Run builds the comparison report: load each run's tracking intensity
// series, bootstrap it, aggregate against the baseline and print the table.
// The first configured run is the baseline.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.New(config.DBPath)
	defer store.Close()

	estimator := scint.Estimator{
		Iterations: config.Iterations,
		Seed:       config.Seed,
		BlockSize:  config.BlockSize,
		Workers:    config.Workers,
	}

	var conditions []*condition
	for i, runID := range config.RunIDs {
		cond, err := loadCondition(ctx, store, runID, &estimator, logger)
		if err != nil {
			// The baseline anchors every comparison; a failed secondary
			// condition only drops that row.
			if i == 0 {
				return fmt.Errorf("loading baseline run %d: %w", runID, err)
			}
			logger.Warn("skipping run",
				slog.Int64("runID", runID),
				slog.String("error", err.Error()))
			continue
		}
		conditions = append(conditions, cond)
	}
	if len(conditions) == 0 {
		return fmt.Errorf("no runs could be loaded")
	}

	dists := make([]*scint.Distribution, len(conditions))
	for i, cond := range conditions {
		dists[i] = cond.dist
	}

	summaries, err := compare.Aggregate(dists, conditions[0].label)
	if err != nil {
		return fmt.Errorf("aggregating conditions: %w", err)
	}

	printStatistics(summaries)

	if err = os.MkdirAll(config.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	csvPath := filepath.Join(config.OutputDir, "comparison.csv")
	if err = export.WriteComparisonCSV(csvPath, comparisonRecords(summaries)); err != nil {
		return fmt.Errorf("writing comparison: %w", err)
	}
	logger.Info("wrote comparison", slog.String("path", csvPath))

	if config.Plots {
		if err = renderPlots(config.OutputDir, conditions, logger); err != nil {
			return fmt.Errorf("rendering plots: %w", err)
		}
	}

	return nil
}

func comparisonRecords(summaries []compare.Summary) []export.ComparisonRecord {
	records := make([]export.ComparisonRecord, len(summaries))
	for i, s := range summaries {
		records[i] = export.ComparisonRecord{
			Label:              s.Label,
			Mean:               s.Mean,
			StdDev:             s.StdDev,
			CILow:              s.CILow,
			CIHigh:             s.CIHigh,
			PercentIncrease:    s.PercentIncrease,
			IsBaseline:         s.IsBaseline,
			OverlapsBaselineCI: s.OverlapsBaselineCI,
		}
	}
	return records
}

func loadCondition(ctx context.Context, store *storage.Store, runID int64, estimator *scint.Estimator, logger *slog.Logger) (*condition, error) {
	run, err := store.Run(ctx, runID)
	if err != nil {
		return nil, err
	}

	tracking, err := trackingSeries(ctx, store, runID)
	if err != nil {
		return nil, err
	}

	points, err := store.Trajectory(ctx, runID)
	if err != nil {
		return nil, err
	}

	// Distinct labels keep baseline matching unambiguous when conditions
	// were recorded under the same name.
	label := fmt.Sprintf("%s #%d", run.Label, run.ID)

	logger.Debug("loaded run",
		slog.Int64("runID", runID),
		slog.String("label", label),
		slog.String("samples", humanize.Comma(int64(len(tracking)))))

	dist, err := estimator.Resample(ctx, label, tracking, scint.SI)
	if err != nil {
		return nil, err
	}

	return &condition{
		run:      run,
		label:    label,
		tracking: tracking,
		points:   points,
		dist:     dist,
	}, nil
}

// trackingSeries streams the tracking aperture intensities of one run.
func trackingSeries(ctx context.Context, store *storage.Store, runID int64) (series []float64, err error) {
	iter, err := store.Samples(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cErr := iter.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	for iter.Next() {
		sample := iter.Current()
		if sample.Tracking != nil {
			series = append(series, *sample.Tracking)
		}
	}
	if err = iter.Error(); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("run %d holds no aperture samples", runID)
	}
	return series, nil
}

func printStatistics(summaries []compare.Summary) {
	fmt.Printf("%-28s %12s %12s %26s %10s %8s\n",
		"Condition", "Mean SI", "Std Dev", "95% CI", "vs Base", "Overlap")
	fmt.Println(divider(100))

	for _, s := range summaries {
		ci := fmt.Sprintf("[%.6f, %.6f]", s.CILow, s.CIHigh)

		var vsBase, overlap string
		if s.IsBaseline {
			vsBase = "baseline"
			overlap = "-"
		} else {
			vsBase = fmt.Sprintf("%+.1f%%", s.PercentIncrease)
			if s.OverlapsBaselineCI {
				overlap = "yes"
			} else {
				overlap = "no"
			}
		}

		fmt.Printf("%-28s %12.6f %12.6f %26s %10s %8s\n",
			s.Label, s.Mean, s.StdDev, ci, vsBase, overlap)
	}
}

func divider(width int) string {
	d := make([]byte, width)
	for i := range d {
		d[i] = '-'
	}
	return string(d)
}

func plotPath(dir, name string) string {
	return filepath.Join(dir, name)
}
