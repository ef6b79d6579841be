package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// WithMinFrame restricts the iterator to frames at or after index.
func WithMinFrame(index int) func(*SampleIterator) {
	return func(i *SampleIterator) {
		i.minFrame = &index
	}
}

// WithMaxFrame restricts the iterator to frames at or before index.
func WithMaxFrame(index int) func(*SampleIterator) {
	return func(i *SampleIterator) {
		i.maxFrame = &index
	}
}

// WithFrameRange restricts the iterator to the inclusive frame index range.
func WithFrameRange(minIndex, maxIndex int) func(*SampleIterator) {
	return func(i *SampleIterator) {
		i.minFrame = &minIndex
		i.maxFrame = &maxIndex
	}
}

// SampleIterator streams one run's aperture samples in frame order without
// loading the full series into memory. Each iterator instance must be used
// from a single goroutine and closed after use.
type SampleIterator struct {
	db       *sql.DB
	runID    int64
	minFrame *int
	maxFrame *int

	current ApertureSample
	rows    *sql.Rows
	err     error
}

func (si *SampleIterator) init(ctx context.Context) error {
	if err := si.initRange(ctx); err != nil {
		return fmt.Errorf("resolving frame range: %w", err)
	}
	if err := si.initQuery(ctx); err != nil {
		return fmt.Errorf("setting up query: %w", err)
	}
	return nil
}

func (si *SampleIterator) initRange(ctx context.Context) error {
	if si.minFrame != nil && si.maxFrame != nil {
		return nil
	}

	stmt, err := si.db.PrepareContext(ctx, selectSampleRangeSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var minFrame, maxFrame sql.NullInt64
	if err = stmt.QueryRowContext(ctx, si.runID).Scan(&minFrame, &maxFrame); err != nil {
		return err
	}

	if si.minFrame == nil {
		v := int(minFrame.Int64)
		si.minFrame = &v
	}
	if si.maxFrame == nil {
		v := int(maxFrame.Int64)
		si.maxFrame = &v
	}
	return nil
}

func (si *SampleIterator) initQuery(ctx context.Context) error {
	stmt, err := si.db.PrepareContext(ctx, selectApertureSamplesSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, si.runID, si.minFrame, si.maxFrame)
	if err != nil {
		return err
	}

	si.rows = rows
	return nil
}

// Next advances to the next sample. It returns false at the end of the run
// or on error; check Error after the loop.
func (si *SampleIterator) Next() bool {
	if si.err != nil || !si.rows.Next() {
		return false
	}

	var fixed, tracking, raw sql.NullFloat64
	var sample ApertureSample
	if err := si.rows.Scan(&sample.FrameIndex, &fixed, &tracking, &raw, &sample.Clipped); err != nil {
		si.err = err
		return false
	}

	sample.Fixed = nullableFloat(fixed.Float64, fixed.Valid)
	sample.Tracking = nullableFloat(tracking.Float64, tracking.Valid)
	sample.Raw = nullableFloat(raw.Float64, raw.Valid)

	si.current = sample
	return true
}

// Current returns the sample Next advanced to.
func (si *SampleIterator) Current() ApertureSample {
	return si.current
}

// Error returns any error that occurred during iteration.
func (si *SampleIterator) Error() error {
	if si.err != nil {
		return si.err
	}
	return si.rows.Err()
}

// Close releases the database resources.
func (si *SampleIterator) Close() error {
	return si.rows.Close()
}
