package video

import (
	"context"
	"fmt"
)

// Source yields ordered intensity frames by frame index. Implementations
// must be safe for concurrent use by multiple goroutines: the analysis
// pipeline reads frames from parallel workers.
//
// A Source is a scoped resource: it is acquired once per run and must be
// released with Close on all exit paths.
type Source interface {
	// Frame returns the frame with the given index. The index must lie
	// within FrameRange. A frame that cannot be read yields a *DecodeError.
	Frame(ctx context.Context, index int) (*Frame, error)

	// FrameCount returns the number of frames available.
	FrameCount() int

	// FrameRange returns the first and last frame index, inclusive.
	FrameRange() (first, last int)

	Close() error
}

// DecodeError indicates that a single frame could not be read. Callers skip
// the frame and count the failure; it is non-fatal unless failures exceed a
// configured fraction of the run.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding frame %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
