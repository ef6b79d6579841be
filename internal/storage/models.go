package storage

import "time"

// Run is one recorded measurement run. Config carries the run configuration
// serialized as JSON for later inspection.
type Run struct {
	ID        int64
	StartTime time.Time
	Label     string
	Source    string
	Config    *string
}

// TrajectoryPoint is one stored centroid with its displacement from the run
// reference. FrameIndex counts accepted frames from zero; FrameNumber is the
// original frame index in the source video.
type TrajectoryPoint struct {
	FrameIndex  int
	FrameNumber int
	X           float64
	Y           float64
	DX          float64
	DY          float64
	Magnitude   float64
}

// ApertureSample is one stored per-frame intensity triplet. Nil intensities
// mark frames where the corresponding aperture mask was empty.
type ApertureSample struct {
	FrameIndex int
	Fixed      *float64
	Tracking   *float64
	Raw        *float64
	Clipped    bool
}

// SIResult is one stored scintillation index row.
type SIResult struct {
	Method      string
	SI          float64
	Mean        float64
	Variance    float64
	SampleCount int
}

// BootstrapResult is one stored bootstrap summary row.
type BootstrapResult struct {
	Method        string
	Iterations    int
	Seed          uint64
	PointEstimate float64
	Mean          float64
	StdDev        float64
	CILow         float64
	CIHigh        float64
}
