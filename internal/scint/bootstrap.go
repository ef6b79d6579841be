package scint

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/beamlab/scintillometry/internal/stats"
)

// Estimator resamples an intensity series to build the sampling distribution
// of a statistic. Results are fully determined by Iterations, Seed and
// BlockSize; the worker count changes only the wall time.
type Estimator struct {
	// Iterations is the number of bootstrap resamples.
	Iterations int

	// Seed anchors the per-iteration random streams.
	Seed uint64

	// BlockSize enables moving-block resampling when greater than 1,
	// preserving short-range temporal correlation in the series.
	BlockSize int

	// Workers caps the resampling goroutines. Zero means GOMAXPROCS.
	Workers int

	// Progress, when set, is invoked every 100 completed iterations.
	Progress func(done, total int)
}

const (
	defaultIterations = 1000

	// ciLevel bounds the reported confidence interval at 95%.
	ciLowPct  = 2.5
	ciHighPct = 97.5
)

// Distribution is the bootstrap sampling distribution of a statistic.
type Distribution struct {
	Label string

	// Values holds the resampled statistic, ascending.
	Values []float64

	// PointEstimate is the statistic of the original, unresampled series.
	PointEstimate float64

	Mean   float64
	StdDev float64

	// CILow and CIHigh bound the 95% percentile confidence interval.
	CILow  float64
	CIHigh float64

	Iterations int
	Seed       uint64
}

// Resample builds the bootstrap distribution of stat over the series. The
// same seed always produces the same distribution regardless of worker
// count, because each iteration draws from its own stream keyed on the
// iteration number.
func (e Estimator) Resample(ctx context.Context, label string, series []float64, statFn func([]float64) float64) (*Distribution, error) {
	n := len(series)
	if n < 2 {
		return nil, &DegenerateSeriesError{Method: Method(label), N: n}
	}

	iterations := e.Iterations
	if iterations <= 0 {
		iterations = defaultIterations
	}
	if e.BlockSize > n {
		return nil, fmt.Errorf("block size %d exceeds series length %d", e.BlockSize, n)
	}

	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > iterations {
		workers = iterations
	}

	values := make([]float64, iterations)
	chunk := (iterations + workers - 1) / workers

	var wg sync.WaitGroup
	var done sync.Mutex
	completed := 0

	for w := 0; w < workers; w++ {
		start := w * chunk
		end := min(start+chunk, iterations)
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()

			resample := make([]float64, n)
			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return
				}

				rng := rand.New(rand.NewPCG(e.Seed, uint64(i)))
				if e.BlockSize > 1 {
					blockResample(rng, series, e.BlockSize, resample)
				} else {
					for j := range resample {
						resample[j] = series[rng.IntN(n)]
					}
				}
				values[i] = statFn(resample)

				done.Lock()
				completed++
				if e.Progress != nil && completed%100 == 0 {
					e.Progress(completed, iterations)
				}
				done.Unlock()
			}
		}(start, end)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Float64s(values)
	mean := stat.Mean(values, nil)

	return &Distribution{
		Label:         label,
		Values:        values,
		PointEstimate: statFn(series),
		Mean:          mean,
		StdDev:        stat.StdDev(values, nil),
		CILow:         stats.PercentileLinear(values, ciLowPct),
		CIHigh:        stats.PercentileLinear(values, ciHighPct),
		Iterations:    iterations,
		Seed:          e.Seed,
	}, nil
}

// blockResample fills out with contiguous blocks drawn from series, trimming
// the final block to the series length. Blocks may start anywhere, so the
// last BlockSize-1 positions wrap via truncation at the series end.
func blockResample(rng *rand.Rand, series []float64, blockSize int, out []float64) {
	n := len(series)
	pos := 0
	for pos < n {
		start := rng.IntN(n)
		end := min(start+blockSize, n)
		copied := copy(out[pos:], series[start:end])
		pos += copied
	}
}
