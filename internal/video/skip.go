package video

import (
	"context"
	"fmt"
)

// SkipFrames trims n frames from the start of a source. Recordings often
// begin before the laser is switched on; skipping avoids wasting the quality
// scan on frames known to be dark.
func SkipFrames(src Source, n int) (Source, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid skip count %d", n)
	}
	if n == 0 {
		return src, nil
	}
	if n >= src.FrameCount() {
		return nil, fmt.Errorf("skipping %d frames leaves none of %d", n, src.FrameCount())
	}
	return &skipSource{src: src, skip: n}, nil
}

type skipSource struct {
	src  Source
	skip int
}

func (s *skipSource) Frame(ctx context.Context, index int) (*Frame, error) {
	first, last := s.FrameRange()
	if index < first || index > last {
		return nil, &DecodeError{Index: index, Err: fmt.Errorf("index outside range [%d, %d]", first, last)}
	}
	return s.src.Frame(ctx, index)
}

func (s *skipSource) FrameCount() int { return s.src.FrameCount() - s.skip }

func (s *skipSource) FrameRange() (first, last int) {
	first, last = s.src.FrameRange()
	return first + s.skip, last
}

func (s *skipSource) Close() error { return s.src.Close() }
