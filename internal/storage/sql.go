package storage

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time TIMESTAMP NOT NULL,
    label      TEXT      NOT NULL,
    source     TEXT      NOT NULL,
    config     TEXT
);

CREATE TABLE IF NOT EXISTS trajectory_points (
    run_id                 INTEGER NOT NULL REFERENCES runs (id),
    frame_index            INTEGER NOT NULL,
    frame_number           INTEGER NOT NULL,
    centroid_x             REAL    NOT NULL,
    centroid_y             REAL    NOT NULL,
    displacement_x         REAL    NOT NULL,
    displacement_y         REAL    NOT NULL,
    displacement_magnitude REAL    NOT NULL,
    PRIMARY KEY (run_id, frame_index)
);

CREATE TABLE IF NOT EXISTS aperture_samples (
    run_id       INTEGER NOT NULL REFERENCES runs (id),
    frame_index  INTEGER NOT NULL,
    fixed_mean   REAL,
    tracking_mean REAL,
    raw_mean     REAL,
    clipped      INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, frame_index)
);

CREATE TABLE IF NOT EXISTS si_results (
    run_id       INTEGER NOT NULL REFERENCES runs (id),
    method       TEXT    NOT NULL,
    si           REAL    NOT NULL,
    mean         REAL    NOT NULL,
    variance     REAL    NOT NULL,
    sample_count INTEGER NOT NULL,
    PRIMARY KEY (run_id, method)
);

CREATE TABLE IF NOT EXISTS bootstrap_results (
    run_id         INTEGER NOT NULL REFERENCES runs (id),
    method         TEXT    NOT NULL,
    iterations     INTEGER NOT NULL,
    seed           INTEGER NOT NULL,
    point_estimate REAL    NOT NULL,
    mean           REAL    NOT NULL,
    std_dev        REAL    NOT NULL,
    ci_low         REAL    NOT NULL,
    ci_high        REAL    NOT NULL,
    PRIMARY KEY (run_id, method)
);
`

const initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_trajectory_run ON trajectory_points (run_id);
CREATE INDEX IF NOT EXISTS idx_samples_run ON aperture_samples (run_id);
`

const insertRunSQL = `
INSERT INTO runs (start_time, label, source, config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

const selectRunSQL = `
SELECT
    id,
    start_time,
    label,
    source,
    config
FROM runs
WHERE
    id = ?`

const selectRunsSQL = `
SELECT
    id,
    start_time,
    label,
    source,
    config
FROM runs
ORDER BY id`

const insertTrajectoryPointSQL = `
INSERT INTO trajectory_points (run_id,
                               frame_index,
                               frame_number,
                               centroid_x,
                               centroid_y,
                               displacement_x,
                               displacement_y,
                               displacement_magnitude)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const selectTrajectorySQL = `
SELECT
    frame_index,
    frame_number,
    centroid_x,
    centroid_y,
    displacement_x,
    displacement_y,
    displacement_magnitude
FROM trajectory_points
WHERE
    run_id = ?
ORDER BY frame_index
`

const insertApertureSampleSQL = `
INSERT INTO aperture_samples (run_id,
                              frame_index,
                              fixed_mean,
                              tracking_mean,
                              raw_mean,
                              clipped)
VALUES (?, ?, ?, ?, ?, ?)
`

const selectApertureSamplesSQL = `
SELECT
    frame_index,
    fixed_mean,
    tracking_mean,
    raw_mean,
    clipped
FROM aperture_samples
WHERE
    run_id = ?
  AND frame_index BETWEEN ? AND ?
ORDER BY frame_index
`

const selectSampleRangeSQL = `
SELECT
    MIN(frame_index),
    MAX(frame_index)
FROM aperture_samples
WHERE run_id = ?
`

const insertSIResultSQL = `
INSERT INTO si_results (run_id,
                        method,
                        si,
                        mean,
                        variance,
                        sample_count)
VALUES (?, ?, ?, ?, ?, ?)
`

const selectSIResultsSQL = `
SELECT
    method,
    si,
    mean,
    variance,
    sample_count
FROM si_results
WHERE
    run_id = ?
ORDER BY method
`

const insertBootstrapSQL = `
INSERT INTO bootstrap_results (run_id,
                               method,
                               iterations,
                               seed,
                               point_estimate,
                               mean,
                               std_dev,
                               ci_low,
                               ci_high)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectBootstrapSQL = `
SELECT
    method,
    iterations,
    seed,
    point_estimate,
    mean,
    std_dev,
    ci_low,
    ci_high
FROM bootstrap_results
WHERE
    run_id = ?
ORDER BY method
`
