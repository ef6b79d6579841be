// Package storage persists measurement runs, centroid trajectories, aperture
// intensity samples and scintillation statistics in a SQLite database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store handles database operations. Writes go through a WAL connection that
// is initialized with the schema on first use; reads use a separate read-only
// connection.
type Store struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a Store for the database at dbPath. Connections are opened
// lazily, so New itself never touches the filesystem.
func New(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateRun records a new measurement run and returns its ID. The config is
// stored as JSON unless it already is a string or raw bytes.
func (s *Store) CreateRun(ctx context.Context, label, source string, config any) (runID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch c := config.(type) {
		case string:
			configData.Valid = true
			configData.String = c

		case []byte:
			configData.Valid = true
			configData.String = string(c)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertRunSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, label, source, configData)
	if err != nil {
		err = fmt.Errorf("inserting run: %w", err)
		return
	}

	runID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting run ID: %w", err)
	}
	return
}

// Run returns a run by its ID.
func (s *Store) Run(ctx context.Context, id int64) (run *Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectRunSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var r Run
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, id).Scan(&r.ID, &r.StartTime, &r.Label, &r.Source, &config); err != nil {
		err = fmt.Errorf("scanning run: %w", err)
		return
	}
	if config.Valid {
		r.Config = &config.String
	}

	return &r, nil
}

// Runs returns all recorded runs in ID order.
func (s *Store) Runs(ctx context.Context) (runs []*Run, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectRunsSQL)
	if err != nil {
		err = fmt.Errorf("querying runs: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r Run
		var config sql.NullString
		if err = rows.Scan(&r.ID, &r.StartTime, &r.Label, &r.Source, &config); err != nil {
			err = fmt.Errorf("scanning run: %w", err)
			return
		}
		if config.Valid {
			r.Config = &config.String
		}
		runs = append(runs, &r)
	}
	return
}

// StoreTrajectory inserts all trajectory points of a run in one transaction.
func (s *Store) StoreTrajectory(ctx context.Context, runID int64, points []TrajectoryPoint) (err error) {
	if len(points) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, insertTrajectoryPointSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, p := range points {
		_, err = stmt.ExecContext(ctx, runID, p.FrameIndex, p.FrameNumber, p.X, p.Y, p.DX, p.DY, p.Magnitude)
		if err != nil {
			return fmt.Errorf("inserting trajectory point: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return
}

// Trajectory returns the stored trajectory of a run in frame order.
func (s *Store) Trajectory(ctx context.Context, runID int64) (points []TrajectoryPoint, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectTrajectorySQL, runID)
	if err != nil {
		err = fmt.Errorf("querying trajectory: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var p TrajectoryPoint
		if err = rows.Scan(&p.FrameIndex, &p.FrameNumber, &p.X, &p.Y, &p.DX, &p.DY, &p.Magnitude); err != nil {
			err = fmt.Errorf("scanning trajectory point: %w", err)
			return
		}
		points = append(points, p)
	}
	return
}

// StoreApertureSamples inserts all intensity samples of a run in one
// transaction.
func (s *Store) StoreApertureSamples(ctx context.Context, runID int64, samples []ApertureSample) (err error) {
	if len(samples) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, insertApertureSampleSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, sample := range samples {
		_, err = stmt.ExecContext(ctx,
			runID,
			sample.FrameIndex,
			sample.Fixed,
			sample.Tracking,
			sample.Raw,
			sample.Clipped,
		)
		if err != nil {
			return fmt.Errorf("inserting aperture sample: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return
}

// StoreSIResults inserts the scintillation index rows of a run.
func (s *Store) StoreSIResults(ctx context.Context, runID int64, results []SIResult) (err error) {
	if len(results) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	stmt, err := tx.PrepareContext(ctx, insertSIResultSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, r := range results {
		_, err = stmt.ExecContext(ctx, runID, r.Method, r.SI, r.Mean, r.Variance, r.SampleCount)
		if err != nil {
			return fmt.Errorf("inserting SI result: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return
}

// SIResults returns the stored scintillation index rows of a run.
func (s *Store) SIResults(ctx context.Context, runID int64) (results []SIResult, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSIResultsSQL, runID)
	if err != nil {
		err = fmt.Errorf("querying SI results: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r SIResult
		if err = rows.Scan(&r.Method, &r.SI, &r.Mean, &r.Variance, &r.SampleCount); err != nil {
			err = fmt.Errorf("scanning SI result: %w", err)
			return
		}
		results = append(results, r)
	}
	return
}

// StoreBootstrap inserts a bootstrap summary row for a run.
func (s *Store) StoreBootstrap(ctx context.Context, runID int64, b BootstrapResult) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertBootstrapSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	_, err = stmt.ExecContext(ctx,
		runID,
		b.Method,
		b.Iterations,
		int64(b.Seed),
		b.PointEstimate,
		b.Mean,
		b.StdDev,
		b.CILow,
		b.CIHigh,
	)
	if err != nil {
		return fmt.Errorf("inserting bootstrap result: %w", err)
	}
	return
}

// BootstrapResults returns the stored bootstrap rows of a run.
func (s *Store) BootstrapResults(ctx context.Context, runID int64) (results []BootstrapResult, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectBootstrapSQL, runID)
	if err != nil {
		err = fmt.Errorf("querying bootstrap results: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var b BootstrapResult
		var seed int64
		if err = rows.Scan(&b.Method, &b.Iterations, &seed, &b.PointEstimate, &b.Mean, &b.StdDev, &b.CILow, &b.CIHigh); err != nil {
			err = fmt.Errorf("scanning bootstrap result: %w", err)
			return
		}
		b.Seed = uint64(seed)
		results = append(results, b)
	}
	return
}

// Samples creates an iterator over a run's aperture samples. The iterator
// must be closed after use. Options narrow the frame range.
func (s *Store) Samples(ctx context.Context, runID int64, options ...func(*SampleIterator)) (*SampleIterator, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}

	iter := &SampleIterator{db: db, runID: runID}
	for _, option := range options {
		option(iter)
	}

	return iter, iter.init(ctx)
}

// Close closes both database connections. The write connection gets its
// indexes built before closing so that readers of a finished run benefit.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}
