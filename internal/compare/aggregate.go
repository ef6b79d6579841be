// Package compare aggregates bootstrap distributions from multiple
// measurement conditions against a designated baseline.
package compare

import (
	"fmt"

	"github.com/beamlab/scintillometry/internal/scint"
)

// Summary is one condition's aggregate row in a comparison table.
type Summary struct {
	Label  string
	Mean   float64
	StdDev float64
	CILow  float64
	CIHigh float64

	// PercentIncrease is the mean's change relative to the baseline mean.
	// Zero for the baseline row itself.
	PercentIncrease float64

	IsBaseline bool

	// OverlapsBaselineCI reports whether this condition's confidence
	// interval intersects the baseline's. Overlap is an interpretive
	// signal that the conditions may not differ, not a significance test.
	OverlapsBaselineCI bool
}

// Aggregate builds per-condition summaries relative to the named baseline.
// The baseline must be present among the distributions and have a positive
// mean for percent increases to be defined.
func Aggregate(dists []*scint.Distribution, baselineLabel string) ([]Summary, error) {
	if len(dists) == 0 {
		return nil, fmt.Errorf("no distributions to aggregate")
	}

	var baseline *scint.Distribution
	for _, d := range dists {
		if d.Label == baselineLabel {
			baseline = d
			break
		}
	}
	if baseline == nil {
		return nil, fmt.Errorf("baseline condition '%s' not among distributions", baselineLabel)
	}
	if baseline.Mean <= 0 {
		return nil, fmt.Errorf("baseline condition '%s' has non-positive mean SI %.4g", baselineLabel, baseline.Mean)
	}

	summaries := make([]Summary, len(dists))
	for i, d := range dists {
		s := Summary{
			Label:      d.Label,
			Mean:       d.Mean,
			StdDev:     d.StdDev,
			CILow:      d.CILow,
			CIHigh:     d.CIHigh,
			IsBaseline: d == baseline,
		}
		if !s.IsBaseline {
			s.PercentIncrease = (d.Mean - baseline.Mean) / baseline.Mean * 100
			s.OverlapsBaselineCI = d.CILow <= baseline.CIHigh && baseline.CILow <= d.CIHigh
		}
		summaries[i] = s
	}
	return summaries, nil
}
