package app

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/golang/freetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/beamlab/scintillometry/internal/analysis"
	"github.com/beamlab/scintillometry/internal/video"
)

const (
	dpi      float64 = 72
	fontSize float64 = 14
)

var (
	roiColor       = color.RGBA{R: 0x00, G: 0xff, B: 0x00, A: 0xff}
	referenceColor = color.RGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff}
	meanColor      = color.RGBA{R: 0x00, G: 0xa0, B: 0xff, A: 0xff}
)

// writeOverlay renders the first analyzed frame with the analysis region,
// the reference position and the mean centroid marked, for a quick visual
// check that the tracker locked onto the right spot.
func writeOverlay(path string, config *Config, result *analysis.RunResult) (err error) {
	if result.Preview == nil {
		return fmt.Errorf("no analyzed frame available for overlay")
	}

	img := grayToRGBA(result.Preview)

	roi := config.trackerROI(result.Preview.Width, result.Preview.Height)
	drawRect(img, roi, roiColor)

	refX, refY, _ := result.Trajectory.Reference()
	drawCross(img, int(refX), int(refY), 8, referenceColor)

	stats := result.Trajectory.Stats()
	drawCross(img, int(stats.MeanX), int(stats.MeanY), 8, meanColor)

	caption := fmt.Sprintf("%s: %d frames, mean displacement %.2f px",
		config.Condition, stats.Count, stats.MeanDisplacement)
	if err = drawCaption(img, caption, config.Output.Overlay.FontPath); err != nil {
		return fmt.Errorf("drawing caption: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	return png.Encode(f, img)
}

// grayToRGBA renders the frame min-max normalized so dim recordings stay
// visible.
func grayToRGBA(frame *video.Frame) *image.RGBA {
	lo, hi := frame.Pix[0], frame.Pix[0]
	for _, v := range frame.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		for x := 0; x < frame.Width; x++ {
			g := uint8((frame.At(x, y) - lo) * scale)
			img.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 0xff})
		}
	}
	return img
}

func drawRect(img *image.RGBA, roi video.ROI, c color.RGBA) {
	for x := roi.X; x < roi.X+roi.Width; x++ {
		img.SetRGBA(x, roi.Y, c)
		img.SetRGBA(x, roi.Y+roi.Height-1, c)
	}
	for y := roi.Y; y < roi.Y+roi.Height; y++ {
		img.SetRGBA(roi.X, y, c)
		img.SetRGBA(roi.X+roi.Width-1, y, c)
	}
}

func drawCross(img *image.RGBA, cx, cy, arm int, c color.RGBA) {
	bounds := img.Bounds()
	for d := -arm; d <= arm; d++ {
		if x := cx + d; x >= bounds.Min.X && x < bounds.Max.X {
			img.SetRGBA(x, cy, c)
		}
		if y := cy + d; y >= bounds.Min.Y && y < bounds.Max.Y {
			img.SetRGBA(cx, y, c)
		}
	}
}

// drawCaption writes the caption in the top-left corner using the configured
// TrueType font, falling back to the built-in bitmap face when none is set.
func drawCaption(img *image.RGBA, caption, fontPath string) error {
	if fontPath == "" {
		d := font.Drawer{
			Dst:  img,
			Src:  image.White,
			Face: basicfont.Face7x13,
			Dot:  fixed.P(5, 16),
		}
		d.DrawString(caption)
		return nil
	}

	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return fmt.Errorf("reading font: %w", err)
	}
	parsedFont, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(fontSize)
	context.SetSrc(image.White)
	context.SetHinting(font.HintingFull)
	context.SetClip(img.Bounds())
	context.SetDst(img)

	_, err = context.DrawString(caption, freetype.Pt(5, 20))
	return err
}
