// Package export writes and reads the flat-file outputs of a measurement
// run: trajectory and intensity CSV files and the JSON run summary.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// TrajectoryRecord is one row of a trajectory CSV file.
type TrajectoryRecord struct {
	FrameIndex  int
	FrameNumber int
	X           float64
	Y           float64
	DX          float64
	DY          float64
	Magnitude   float64
}

// IntensityRecord is one row of an intensity CSV file. NaN values round-trip
// through the empty cell.
type IntensityRecord struct {
	FrameIndex int
	Fixed      float64
	Tracking   float64
	Raw        float64
}

// ComparisonRecord is one row of the multi-condition comparison CSV.
type ComparisonRecord struct {
	Label              string
	Mean               float64
	StdDev             float64
	CILow              float64
	CIHigh             float64
	PercentIncrease    float64
	IsBaseline         bool
	OverlapsBaselineCI bool
}

var trajectoryHeader = []string{
	"frame_index",
	"actual_frame_number",
	"centroid_x",
	"centroid_y",
	"displacement_x",
	"displacement_y",
	"displacement_magnitude",
}

var intensityHeader = []string{
	"frame_index",
	"fixed_aperture_intensity",
	"tracking_aperture_intensity",
	"raw_centroid_intensity",
}

// WriteTrajectoryCSV writes the trajectory records to path.
func WriteTrajectoryCSV(path string, records []TrajectoryRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	w := csv.NewWriter(f)
	if err = w.Write(trajectoryHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, r := range records {
		row := []string{
			strconv.Itoa(r.FrameIndex),
			strconv.Itoa(r.FrameNumber),
			formatFloat(r.X),
			formatFloat(r.Y),
			formatFloat(r.DX),
			formatFloat(r.DY),
			formatFloat(r.Magnitude),
		}
		if err = w.Write(row); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// ReadTrajectoryCSV reads a trajectory CSV file written by WriteTrajectoryCSV.
func ReadTrajectoryCSV(path string) (records []TrajectoryRecord, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	r := csv.NewReader(f)
	if _, err = r.Read(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	for {
		row, readErr := r.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading record: %w", readErr)
		}
		if len(row) != len(trajectoryHeader) {
			return nil, fmt.Errorf("trajectory record has %d fields, want %d", len(row), len(trajectoryHeader))
		}

		var rec TrajectoryRecord
		if rec.FrameIndex, err = strconv.Atoi(row[0]); err != nil {
			return nil, fmt.Errorf("parsing frame index: %w", err)
		}
		if rec.FrameNumber, err = strconv.Atoi(row[1]); err != nil {
			return nil, fmt.Errorf("parsing frame number: %w", err)
		}
		fields := []*float64{&rec.X, &rec.Y, &rec.DX, &rec.DY, &rec.Magnitude}
		for i, dst := range fields {
			if *dst, err = parseFloat(row[2+i]); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", trajectoryHeader[2+i], err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteIntensityCSV writes the intensity records to path.
func WriteIntensityCSV(path string, records []IntensityRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	w := csv.NewWriter(f)
	if err = w.Write(intensityHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, r := range records {
		row := []string{
			strconv.Itoa(r.FrameIndex),
			formatFloat(r.Fixed),
			formatFloat(r.Tracking),
			formatFloat(r.Raw),
		}
		if err = w.Write(row); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// ReadIntensityCSV reads an intensity CSV file written by WriteIntensityCSV.
func ReadIntensityCSV(path string) (records []IntensityRecord, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	r := csv.NewReader(f)
	if _, err = r.Read(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	for {
		row, readErr := r.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading record: %w", readErr)
		}
		if len(row) != len(intensityHeader) {
			return nil, fmt.Errorf("intensity record has %d fields, want %d", len(row), len(intensityHeader))
		}

		var rec IntensityRecord
		if rec.FrameIndex, err = strconv.Atoi(row[0]); err != nil {
			return nil, fmt.Errorf("parsing frame index: %w", err)
		}
		fields := []*float64{&rec.Fixed, &rec.Tracking, &rec.Raw}
		for i, dst := range fields {
			if *dst, err = parseFloat(row[1+i]); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", intensityHeader[1+i], err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

var comparisonHeader = []string{
	"condition",
	"mean_si",
	"std_dev",
	"ci_low",
	"ci_high",
	"percent_increase_vs_baseline",
	"is_baseline",
	"overlaps_baseline_ci",
}

// WriteComparisonCSV writes the multi-condition comparison to path. The
// percent increase cell is empty on the baseline row.
func WriteComparisonCSV(path string, records []ComparisonRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	w := csv.NewWriter(f)
	if err = w.Write(comparisonHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, r := range records {
		increase := ""
		if !r.IsBaseline {
			increase = formatFloat(r.PercentIncrease)
		}
		row := []string{
			r.Label,
			formatFloat(r.Mean),
			formatFloat(r.StdDev),
			formatFloat(r.CILow),
			formatFloat(r.CIHigh),
			increase,
			strconv.FormatBool(r.IsBaseline),
			strconv.FormatBool(r.OverlapsBaselineCI),
		}
		if err = w.Write(row); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// formatFloat renders a float with the shortest representation that parses
// back to the identical value, so re-analysis from CSV reproduces the stored
// statistics exactly. NaN becomes the empty cell.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}
