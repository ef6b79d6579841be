package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SIEntry is one scintillation index in the JSON run summary.
type SIEntry struct {
	SI          float64 `json:"si"`
	Mean        float64 `json:"mean"`
	Variance    float64 `json:"variance"`
	SampleCount int     `json:"sample_count"`
}

// BootstrapEntry is one bootstrap summary in the JSON run summary.
type BootstrapEntry struct {
	Iterations    int     `json:"iterations"`
	Seed          uint64  `json:"seed"`
	PointEstimate float64 `json:"point_estimate"`
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"std_dev"`
	CILow         float64 `json:"ci_low"`
	CIHigh        float64 `json:"ci_high"`
}

// FrameCounts tallies what happened to the source frames during a run.
type FrameCounts struct {
	Total            int `json:"total"`
	Analyzed         int `json:"analyzed"`
	Dark             int `json:"dark"`
	PreRamp          int `json:"pre_ramp"`
	DecodeFailed     int `json:"decode_failed"`
	CentroidNotFound int `json:"centroid_not_found"`
	Clipped          int `json:"clipped"`
}

// TrajectoryEntry reports the trajectory statistics in the JSON run summary.
type TrajectoryEntry struct {
	Count            int     `json:"count"`
	MeanX            float64 `json:"mean_x"`
	MeanY            float64 `json:"mean_y"`
	StdX             float64 `json:"std_x"`
	StdY             float64 `json:"std_y"`
	MeanDisplacement float64 `json:"mean_displacement"`
	MaxDisplacement  float64 `json:"max_displacement"`
}

// WanderEntry reports the wander decomposition in the JSON run summary.
type WanderEntry struct {
	Component float64  `json:"component"`
	Fraction  *float64 `json:"fraction,omitempty"`
	Anomalous bool     `json:"anomalous"`
}

// RunSummary is the top-level JSON document written after a run.
type RunSummary struct {
	Label     string    `json:"label"`
	Source    string    `json:"source"`
	StartTime time.Time `json:"start_time"`

	Frames     FrameCounts      `json:"frames"`
	Trajectory *TrajectoryEntry `json:"trajectory,omitempty"`

	// SI maps method name (fixed, tracking, raw) to its index.
	SI map[string]SIEntry `json:"si"`

	Wander *WanderEntry `json:"wander,omitempty"`

	// Bootstrap maps method name to its bootstrap summary, present only
	// for methods that were resampled.
	Bootstrap map[string]BootstrapEntry `json:"bootstrap,omitempty"`

	RampFrame *int `json:"ramp_frame,omitempty"`
}

// WriteRunSummary writes the summary to path as indented JSON.
func WriteRunSummary(path string, summary *RunSummary) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(summary); err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return
}

// ReadRunSummary reads a summary written by WriteRunSummary.
func ReadRunSummary(path string) (summary *RunSummary, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	var s RunSummary
	if err = json.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}
	return &s, nil
}
