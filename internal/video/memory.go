package video

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// MemorySource serves frames held in memory. It exists for synthetic inputs
// in tests and supports injecting per-frame decode failures.
type MemorySource struct {
	frames     []*Frame
	firstFrame int

	mu     sync.Mutex
	broken map[int]error
}

// NewMemorySource wraps the given frames, assigning indices starting at
// firstFrame in slice order.
func NewMemorySource(firstFrame int, frames []*Frame) *MemorySource {
	for i, f := range frames {
		f.Index = firstFrame + i
	}
	return &MemorySource{
		frames:     frames,
		firstFrame: firstFrame,
		broken:     make(map[int]error),
	}
}

// FailFrame makes subsequent reads of the given index return a DecodeError.
func (s *MemorySource) FailFrame(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken[index] = errors.New("injected decode failure")
}

func (s *MemorySource) Frame(ctx context.Context, index int) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	first, last := s.FrameRange()
	if index < first || index > last {
		return nil, &DecodeError{Index: index, Err: fmt.Errorf("index outside range [%d, %d]", first, last)}
	}

	s.mu.Lock()
	err := s.broken[index]
	s.mu.Unlock()
	if err != nil {
		return nil, &DecodeError{Index: index, Err: err}
	}

	return s.frames[index-first], nil
}

func (s *MemorySource) FrameCount() int { return len(s.frames) }

func (s *MemorySource) FrameRange() (first, last int) {
	return s.firstFrame, s.firstFrame + len(s.frames) - 1
}

func (s *MemorySource) Close() error { return nil }
