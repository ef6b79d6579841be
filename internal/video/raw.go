package video

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// RawConfig describes a raw binary frame sequence: fixed-size grayscale
// frames concatenated in a single file, 8-bit or 16-bit little-endian.
type RawConfig struct {
	Path       string `yaml:"path"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	BitDepth   int    `yaml:"bitDepth"`   // 8 or 16
	FirstFrame int    `yaml:"firstFrame"` // Index assigned to the first frame in the file
}

// RawSource reads frames from a raw binary sequence file. Reads use ReadAt
// and are safe for concurrent use.
type RawSource struct {
	f         *os.File
	cfg       RawConfig
	frameSize int // bytes per frame
	count     int
}

// NewRawSource opens a raw sequence file and validates its geometry against
// the file size.
func NewRawSource(cfg RawConfig) (*RawSource, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.BitDepth != 8 && cfg.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d: must be 8 or 16", cfg.BitDepth)
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening raw sequence: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("reading raw sequence size: %w", err)
	}

	frameSize := cfg.Width * cfg.Height * cfg.BitDepth / 8
	count := int(stat.Size() / int64(frameSize))
	if count == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("raw sequence '%s' holds no complete %dx%d frames", cfg.Path, cfg.Width, cfg.Height)
	}

	return &RawSource{f: f, cfg: cfg, frameSize: frameSize, count: count}, nil
}

func (s *RawSource) Frame(ctx context.Context, index int) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	first, last := s.FrameRange()
	if index < first || index > last {
		return nil, &DecodeError{Index: index, Err: fmt.Errorf("index outside range [%d, %d]", first, last)}
	}

	buf := make([]byte, s.frameSize)
	offset := int64(index-first) * int64(s.frameSize)
	if _, err := s.f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, &DecodeError{Index: index, Err: err}
	}

	pix := make([]float64, s.cfg.Width*s.cfg.Height)
	switch s.cfg.BitDepth {
	case 8:
		for i, b := range buf {
			pix[i] = float64(b)
		}
	case 16:
		for i := range pix {
			pix[i] = float64(binary.LittleEndian.Uint16(buf[2*i:]))
		}
	}

	return &Frame{
		Index:  index,
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
		Pix:    pix,
	}, nil
}

func (s *RawSource) FrameCount() int { return s.count }

func (s *RawSource) FrameRange() (first, last int) {
	return s.cfg.FirstFrame, s.cfg.FirstFrame + s.count - 1
}

func (s *RawSource) Close() error { return s.f.Close() }
