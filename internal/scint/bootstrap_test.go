package scint

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noisySeries(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, 0))
	series := make([]float64, n)
	for i := range series {
		series[i] = 100 + 10*rng.NormFloat64()
	}
	return series
}

func TestResample_Deterministic(t *testing.T) {
	series := noisySeries(200, 1)
	est := Estimator{Iterations: 500, Seed: 42}

	first, err := est.Resample(context.Background(), "a", series, SI)
	require.NoError(t, err)
	second, err := est.Resample(context.Background(), "a", series, SI)
	require.NoError(t, err)

	assert.Equal(t, first.Values, second.Values)
	assert.Equal(t, first.CILow, second.CILow)
	assert.Equal(t, first.CIHigh, second.CIHigh)
}

func TestResample_WorkerCountInvariant(t *testing.T) {
	series := noisySeries(150, 2)

	sequential := Estimator{Iterations: 400, Seed: 7, Workers: 1}
	parallel := Estimator{Iterations: 400, Seed: 7, Workers: 8}

	seq, err := sequential.Resample(context.Background(), "a", series, SI)
	require.NoError(t, err)
	par, err := parallel.Resample(context.Background(), "a", series, SI)
	require.NoError(t, err)

	assert.Equal(t, seq.Values, par.Values)
}

func TestResample_SeedChangesDistribution(t *testing.T) {
	series := noisySeries(150, 3)

	a, err := Estimator{Iterations: 300, Seed: 1}.Resample(context.Background(), "a", series, SI)
	require.NoError(t, err)
	b, err := Estimator{Iterations: 300, Seed: 2}.Resample(context.Background(), "a", series, SI)
	require.NoError(t, err)

	assert.NotEqual(t, a.Values, b.Values)
}

func TestResample_CIBracketsPointEstimate(t *testing.T) {
	series := noisySeries(300, 4)
	est := Estimator{Iterations: 1000, Seed: 9}

	dist, err := est.Resample(context.Background(), "a", series, SI)
	require.NoError(t, err)

	assert.LessOrEqual(t, dist.CILow, dist.CIHigh)
	assert.GreaterOrEqual(t, dist.PointEstimate, dist.CILow)
	assert.LessOrEqual(t, dist.PointEstimate, dist.CIHigh)
	assert.Len(t, dist.Values, 1000)
}

func TestResample_CINarrowsWithLongerSeries(t *testing.T) {
	// Bootstrap CI width tracks the sampling uncertainty, which shrinks
	// with the series length.
	short, err := Estimator{Iterations: 800, Seed: 5}.Resample(context.Background(), "a", noisySeries(50, 6), SI)
	require.NoError(t, err)
	long, err := Estimator{Iterations: 800, Seed: 5}.Resample(context.Background(), "a", noisySeries(5000, 6), SI)
	require.NoError(t, err)

	assert.Less(t, long.CIHigh-long.CILow, short.CIHigh-short.CILow)
}

func TestResample_BlockBootstrap(t *testing.T) {
	series := noisySeries(120, 7)
	est := Estimator{Iterations: 200, Seed: 3, BlockSize: 10}

	dist, err := est.Resample(context.Background(), "a", series, SI)
	require.NoError(t, err)
	assert.Len(t, dist.Values, 200)

	iid := Estimator{Iterations: 200, Seed: 3}
	plain, err := iid.Resample(context.Background(), "a", series, SI)
	require.NoError(t, err)
	assert.NotEqual(t, plain.Values, dist.Values)
}

func TestResample_Errors(t *testing.T) {
	t.Run("degenerate series", func(t *testing.T) {
		est := Estimator{Iterations: 100, Seed: 1}
		_, err := est.Resample(context.Background(), "a", []float64{1}, SI)

		var degenerate *DegenerateSeriesError
		require.ErrorAs(t, err, &degenerate)
	})

	t.Run("block larger than series", func(t *testing.T) {
		est := Estimator{Iterations: 100, Seed: 1, BlockSize: 10}
		_, err := est.Resample(context.Background(), "a", []float64{1, 2, 3}, SI)
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		est := Estimator{Iterations: 10000, Seed: 1}
		_, err := est.Resample(ctx, "a", noisySeries(100, 8), SI)
		require.ErrorIs(t, err, context.Canceled)
	})
}
