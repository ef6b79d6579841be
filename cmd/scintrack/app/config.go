package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/beamlab/scintillometry/internal/aperture"
	"github.com/beamlab/scintillometry/internal/centroid"
	"github.com/beamlab/scintillometry/internal/video"
)

const (
	FormatRaw8   = "raw8"
	FormatRaw16  = "raw16"
	FormatPNGDir = "png-dir"
)

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Condition string          `yaml:"condition"`
	Video     VideoConfig     `yaml:"video"`
	Quality   QualityConfig   `yaml:"quality"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Aperture  ApertureConfig  `yaml:"aperture"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Storage   StorageConfig   `yaml:"storage"`
	Output    OutputConfig    `yaml:"output"`

	// Workers caps the centroid pass goroutines, 0 for all CPUs.
	Workers int `yaml:"workers"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// VideoConfig describes the input recording.
type VideoConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`

	// Width and Height are required for the raw formats and ignored for
	// image directories.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// SkipInitialFrames drops the given number of frames from the start of
	// the recording before any analysis.
	SkipInitialFrames int `yaml:"skipInitialFrames"`
}

// QualityConfig configures frame quality filtering.
type QualityConfig struct {
	DarkThreshold        float64 `yaml:"darkThreshold"`
	DetectRamp           bool    `yaml:"detectRamp"`
	SustainWindow        int     `yaml:"sustainWindow"`
	RampRatio            float64 `yaml:"rampRatio"`
	MaxDecodeFailureFrac float64 `yaml:"maxDecodeFailureFrac"`
}

// ROIConfig is an explicit analysis region. When absent, the full frame is
// used.
type ROIConfig struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// AdaptiveConfig enables block-adaptive thresholding instead of the global
// percentile.
type AdaptiveConfig struct {
	Enabled   bool    `yaml:"enabled"`
	BlockSize int     `yaml:"blockSize"`
	Offset    float64 `yaml:"offset"`
}

// TrackingConfig configures centroid tracking.
type TrackingConfig struct {
	ROI                 *ROIConfig     `yaml:"roi"`
	ThresholdPercentile float64        `yaml:"thresholdPercentile"`
	Adaptive            AdaptiveConfig `yaml:"adaptive"`
	Denoise             bool           `yaml:"denoise"`
	ExcludeOuterRing    bool           `yaml:"excludeOuterRing"`
	EdgeExclusionRadius int            `yaml:"edgeExclusionRadius"`
}

// ApertureConfig configures intensity extraction.
type ApertureConfig struct {
	Radius               float64 `yaml:"radius"`
	EdgeExclusionPercent float64 `yaml:"edgeExclusionPercent"`
	InnerRadius          float64 `yaml:"innerRadius"`
}

// BootstrapConfig configures uncertainty estimation for the run.
type BootstrapConfig struct {
	Iterations int    `yaml:"iterations"`
	Seed       uint64 `yaml:"seed"`
	BlockSize  int    `yaml:"blockSize"`
	Workers    int    `yaml:"workers"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
}

// OverlayConfig configures the annotated diagnostic frame.
type OverlayConfig struct {
	Enabled  bool   `yaml:"enabled"`
	FontPath string `yaml:"fontPath"`
}

// OutputConfig configures the flat-file exports.
type OutputConfig struct {
	Directory string        `yaml:"directory"`
	WriteCSV  bool          `yaml:"writeCSV"`
	WriteJSON bool          `yaml:"writeJSON"`
	Overlay   OverlayConfig `yaml:"overlay"`
}

var validFormats = map[string]struct{}{
	FormatRaw8:   {},
	FormatRaw16:  {},
	FormatPNGDir: {},
}

// LoadConfig reads and validates the YAML configuration at path.
func LoadConfig(path string) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(p, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate fails fast on invalid settings so that no analysis work starts
// with a broken configuration.
func (c *Config) Validate() error {
	if c.Condition == "" {
		return fmt.Errorf("condition label is required")
	}
	if c.Video.Path == "" {
		return fmt.Errorf("video path is required")
	}
	if _, ok := validFormats[c.Video.Format]; !ok {
		return fmt.Errorf("invalid video format '%s'", c.Video.Format)
	}
	if c.Video.Format != FormatPNGDir && (c.Video.Width <= 0 || c.Video.Height <= 0) {
		return fmt.Errorf("video dimensions are required for format '%s'", c.Video.Format)
	}
	if c.Video.SkipInitialFrames < 0 {
		return fmt.Errorf("skipInitialFrames must not be negative")
	}
	if c.Quality.DarkThreshold < 0 {
		return fmt.Errorf("darkThreshold must not be negative")
	}
	if c.Aperture.Radius <= 0 {
		return fmt.Errorf("aperture radius is required")
	}
	if c.Tracking.Adaptive.Enabled {
		if c.Tracking.Adaptive.BlockSize < 3 || c.Tracking.Adaptive.BlockSize%2 == 0 {
			return fmt.Errorf("adaptive block size must be odd and at least 3")
		}
	} else if c.Tracking.ThresholdPercentile < 0 || c.Tracking.ThresholdPercentile > 100 {
		return fmt.Errorf("threshold percentile must be within [0, 100]")
	}
	if c.Bootstrap.Iterations < 0 {
		return fmt.Errorf("bootstrap iterations must not be negative")
	}
	return nil
}

// threshold builds the centroid threshold policy from the configuration.
func (c *Config) threshold() centroid.Threshold {
	if c.Tracking.Adaptive.Enabled {
		offset := c.Tracking.Adaptive.Offset
		if offset == 0 {
			offset = 10
		}
		return centroid.Adaptive(c.Tracking.Adaptive.BlockSize, offset)
	}
	return centroid.Percentile(c.Tracking.ThresholdPercentile)
}

// trackerConfig builds the centroid tracker configuration for the resolved
// analysis region.
func (c *Config) trackerConfig(roi video.ROI) centroid.Config {
	return centroid.Config{
		ROI:       roi,
		Threshold: c.threshold(),
		Exclusion: centroid.Exclusion{
			Enabled: c.Tracking.ExcludeOuterRing,
			Radius:  c.Tracking.EdgeExclusionRadius,
		},
		Denoise: c.Tracking.Denoise,
	}
}

// trackerROI resolves the analysis region against the frame dimensions.
func (c *Config) trackerROI(width, height int) video.ROI {
	if c.Tracking.ROI == nil {
		return video.FullFrame(width, height)
	}
	r := c.Tracking.ROI
	return video.ROI{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// apertureConfig builds the extraction geometry, applying defaults for the
// optional exclusions.
func (c *Config) apertureConfig(roi video.ROI) aperture.Config {
	cfg := aperture.Config{
		Radius:               c.Aperture.Radius,
		EdgeExclusionPercent: c.Aperture.EdgeExclusionPercent,
		InnerRadius:          c.Aperture.InnerRadius,
		ROI:                  roi,
	}
	if cfg.EdgeExclusionPercent == 0 {
		cfg.EdgeExclusionPercent = aperture.DefaultEdgeExclusionPercent
	}
	if cfg.InnerRadius == 0 {
		cfg.InnerRadius = aperture.DefaultInnerRadius
	}
	return cfg
}
