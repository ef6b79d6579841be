package app

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const histogramBins = 40

// renderPlots writes the comparison figures: the bootstrap SI distributions,
// the centroid trajectories, the displacement magnitude series and the
// tracking intensity series of every condition.
func renderPlots(dir string, conditions []*condition, logger *slog.Logger) error {
	plots := []struct {
		name string
		fn   func([]*condition) (*plot.Plot, error)
	}{
		{"si_distributions.png", plotDistributions},
		{"trajectories.png", plotTrajectories},
		{"displacement_series.png", plotDisplacementSeries},
		{"intensity_series.png", plotIntensitySeries},
	}

	for _, pl := range plots {
		p, err := pl.fn(conditions)
		if err != nil {
			return fmt.Errorf("building %s: %w", pl.name, err)
		}

		path := plotPath(dir, pl.name)
		if err = p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
			return fmt.Errorf("saving %s: %w", pl.name, err)
		}
		logger.Info("wrote plot", slog.String("path", path))
	}

	return nil
}

func plotDistributions(conditions []*condition) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Bootstrap SI distributions"
	p.X.Label.Text = "Scintillation index"
	p.Y.Label.Text = "Count"

	for i, cond := range conditions {
		h, err := plotter.NewHist(plotter.Values(cond.dist.Values), histogramBins)
		if err != nil {
			return nil, err
		}
		h.FillColor = nil
		h.LineStyle.Color = plotutil.Color(i)

		p.Add(h)
		p.Legend.Add(cond.label, h)
	}

	return p, nil
}

func plotTrajectories(conditions []*condition) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Centroid trajectories"
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"

	for i, cond := range conditions {
		pts := make(plotter.XYs, len(cond.points))
		for j, point := range cond.points {
			pts[j].X = point.X
			pts[j].Y = point.Y
		}

		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Color = plotutil.Color(i)
		s.GlyphStyle.Radius = vg.Points(1)

		p.Add(s)
		p.Legend.Add(cond.label, s)
	}

	return p, nil
}

func plotDisplacementSeries(conditions []*condition) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Centroid displacement"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Displacement (px)"

	for i, cond := range conditions {
		pts := make(plotter.XYs, len(cond.points))
		for j, point := range cond.points {
			pts[j].X = float64(point.FrameIndex)
			pts[j].Y = point.Magnitude
		}

		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		l.LineStyle.Color = plotutil.Color(i)

		p.Add(l)
		p.Legend.Add(cond.label, l)
	}

	return p, nil
}

func plotIntensitySeries(conditions []*condition) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Tracking aperture intensity"
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Mean intensity"

	for i, cond := range conditions {
		pts := make(plotter.XYs, len(cond.tracking))
		for j, v := range cond.tracking {
			pts[j].X = float64(j)
			pts[j].Y = v
		}

		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		l.LineStyle.Color = plotutil.Color(i)

		p.Add(l)
		p.Legend.Add(cond.label, l)
	}

	return p, nil
}
