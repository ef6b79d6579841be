package video

import (
	"context"
	"fmt"
	"sync"
)

// Cache is a thread-safe bounded frame cache wrapping a Source. The analysis
// pipeline reads every valid frame twice (centroid pass, then aperture pass);
// the cache keeps the most recently decoded frames so the second pass avoids
// re-decoding when the working set fits.
//
// Eviction is FIFO: when the cache reaches capacity, the oldest cached frame
// is dropped.
type Cache struct {
	src      Source
	capacity int

	mu     sync.Mutex
	frames map[int]*Frame
	order  []int

	hits   int64
	misses int64
}

// NewCache wraps src with a cache holding up to capacity frames.
func NewCache(src Source, capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid cache capacity %d", capacity)
	}
	return &Cache{
		src:      src,
		capacity: capacity,
		frames:   make(map[int]*Frame, capacity),
	}, nil
}

func (c *Cache) Frame(ctx context.Context, index int) (*Frame, error) {
	c.mu.Lock()
	if f, ok := c.frames[index]; ok {
		c.hits++
		c.mu.Unlock()
		return f, nil
	}
	c.misses++
	c.mu.Unlock()

	f, err := c.src.Frame(ctx, index)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.frames[index]; !ok {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.frames, oldest)
		}
		c.frames[index] = f
		c.order = append(c.order, index)
	}
	return f, nil
}

func (c *Cache) FrameCount() int { return c.src.FrameCount() }

func (c *Cache) FrameRange() (first, last int) { return c.src.FrameRange() }

// Stats returns the cache hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cache) Close() error { return c.src.Close() }
