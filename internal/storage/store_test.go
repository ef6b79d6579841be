package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store := New(filepath.Join(t.TempDir(), "test.sqlite"))
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return store
}

func TestStore_RunRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	type runConfig struct {
		Radius float64 `json:"radius"`
	}

	runID, err := store.CreateRun(ctx, "still air", "/data/run01.raw", runConfig{Radius: 30})
	require.NoError(t, err)
	require.Positive(t, runID)

	run, err := store.Run(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "still air", run.Label)
	assert.Equal(t, "/data/run01.raw", run.Source)
	require.NotNil(t, run.Config)
	assert.JSONEq(t, `{"radius": 30}`, *run.Config)

	secondID, err := store.CreateRun(ctx, "heat source", "/data/run02.raw", nil)
	require.NoError(t, err)

	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, secondID, runs[1].ID)
	assert.Nil(t, runs[1].Config)
}

func TestStore_TrajectoryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "test", "src", nil)
	require.NoError(t, err)

	points := []TrajectoryPoint{
		{FrameIndex: 0, FrameNumber: 10, X: 64.5, Y: 63.25, DX: 0, DY: 0, Magnitude: 0},
		{FrameIndex: 1, FrameNumber: 11, X: 65.5, Y: 63.25, DX: 1, DY: 0, Magnitude: 1},
	}
	require.NoError(t, store.StoreTrajectory(ctx, runID, points))

	got, err := store.Trajectory(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, points, got)
}

func TestStore_SIResultsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "test", "src", nil)
	require.NoError(t, err)

	results := []SIResult{
		{Method: "fixed", SI: 0.05, Mean: 100, Variance: 500, SampleCount: 4000},
		{Method: "tracking", SI: 0.03, Mean: 101, Variance: 306.03, SampleCount: 4000},
	}
	require.NoError(t, store.StoreSIResults(ctx, runID, results))

	got, err := store.SIResults(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, results, got)
}

func TestStore_BootstrapRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "test", "src", nil)
	require.NoError(t, err)

	b := BootstrapResult{
		Method:        "tracking",
		Iterations:    1000,
		Seed:          42,
		PointEstimate: 0.031,
		Mean:          0.0305,
		StdDev:        0.002,
		CILow:         0.027,
		CIHigh:        0.035,
	}
	require.NoError(t, store.StoreBootstrap(ctx, runID, b))

	got, err := store.BootstrapResults(ctx, runID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b, got[0])
}

func TestSampleIterator(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, "test", "src", nil)
	require.NoError(t, err)

	samples := make([]ApertureSample, 10)
	for i := range samples {
		fixed := 100.0 + float64(i)
		tracking := 99.0 + float64(i)
		raw := 50.0 + float64(i)
		samples[i] = ApertureSample{
			FrameIndex: i,
			Fixed:      &fixed,
			Tracking:   &tracking,
			Raw:        &raw,
			Clipped:    i == 7,
		}
	}
	require.NoError(t, store.StoreApertureSamples(ctx, runID, samples))

	t.Run("full range", func(t *testing.T) {
		iter, err := store.Samples(ctx, runID)
		require.NoError(t, err)
		defer iter.Close()

		var got []ApertureSample
		for iter.Next() {
			got = append(got, iter.Current())
		}
		require.NoError(t, iter.Error())
		assert.Equal(t, samples, got)
	})

	t.Run("frame range filter", func(t *testing.T) {
		iter, err := store.Samples(ctx, runID, WithFrameRange(3, 5))
		require.NoError(t, err)
		defer iter.Close()

		var indices []int
		for iter.Next() {
			indices = append(indices, iter.Current().FrameIndex)
		}
		require.NoError(t, iter.Error())
		assert.Equal(t, []int{3, 4, 5}, indices)
	})

	t.Run("nil intensities", func(t *testing.T) {
		secondRun, err := store.CreateRun(ctx, "sparse", "src", nil)
		require.NoError(t, err)

		require.NoError(t, store.StoreApertureSamples(ctx, secondRun, []ApertureSample{
			{FrameIndex: 0, Clipped: true},
		}))

		iter, err := store.Samples(ctx, secondRun)
		require.NoError(t, err)
		defer iter.Close()

		require.True(t, iter.Next())
		sample := iter.Current()
		assert.Nil(t, sample.Fixed)
		assert.Nil(t, sample.Tracking)
		assert.Nil(t, sample.Raw)
		assert.True(t, sample.Clipped)
		assert.False(t, iter.Next())
		require.NoError(t, iter.Error())
	})
}
