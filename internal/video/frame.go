package video

import "math"

// Frame is a single decoded intensity image. Pixel values are raw sensor
// counts stored row-major as float64, non-negative. Frames are immutable
// once produced by a Source.
type Frame struct {
	Index  int       // Frame number within the recording
	Width  int       // Width in pixels
	Height int       // Height in pixels
	Pix    []float64 // Row-major intensity grid, len = Width*Height
}

// At returns the intensity at pixel (x, y). No bounds checking.
func (f *Frame) At(x, y int) float64 {
	return f.Pix[y*f.Width+x]
}

// Mean returns the mean pixel intensity of the frame.
func (f *Frame) Mean() float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	var sum float64
	for _, v := range f.Pix {
		sum += v
	}
	return sum / float64(len(f.Pix))
}

// Max returns the maximum pixel intensity of the frame.
func (f *Frame) Max() float64 {
	m := math.Inf(-1)
	for _, v := range f.Pix {
		if v > m {
			m = v
		}
	}
	return m
}

// ROI is a rectangular region of a frame, fixed for the duration of a run.
type ROI struct {
	X      int
	Y      int
	Width  int
	Height int
}

// FullFrame returns an ROI covering the whole frame.
func FullFrame(width, height int) ROI {
	return ROI{X: 0, Y: 0, Width: width, Height: height}
}

// Within reports whether the ROI is fully contained in a frame of the
// given dimensions.
func (r ROI) Within(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.Width > 0 && r.Height > 0 &&
		r.X+r.Width <= width && r.Y+r.Height <= height
}

// Center returns the ROI center in ROI-local coordinates.
func (r ROI) Center() (cx, cy int) {
	return r.Width / 2, r.Height / 2
}
