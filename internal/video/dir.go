package video

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
)

// DirSource reads frames from a directory of PNG images, one file per frame,
// ordered lexically by file name. Images are converted to grayscale
// intensity; 16-bit grayscale PNGs keep their full range.
type DirSource struct {
	files      []string
	firstFrame int
}

// NewDirSource lists the PNG files in dir. An empty directory is an error.
func NewDirSource(dir string, firstFrame int) (*DirSource, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return nil, fmt.Errorf("listing frame directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no PNG frames found in '%s'", dir)
	}
	sort.Strings(files)

	return &DirSource{files: files, firstFrame: firstFrame}, nil
}

func (s *DirSource) Frame(ctx context.Context, index int) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	first, last := s.FrameRange()
	if index < first || index > last {
		return nil, &DecodeError{Index: index, Err: fmt.Errorf("index outside range [%d, %d]", first, last)}
	}

	path := s.files[index-first]
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Index: index, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &DecodeError{Index: index, Err: err}
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pix := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			pix[y*w+x] = float64(g.Y)
		}
	}

	return &Frame{Index: index, Width: w, Height: h, Pix: pix}, nil
}

func (s *DirSource) FrameCount() int { return len(s.files) }

func (s *DirSource) FrameRange() (first, last int) {
	return s.firstFrame, s.firstFrame + len(s.files) - 1
}

func (s *DirSource) Close() error { return nil }
