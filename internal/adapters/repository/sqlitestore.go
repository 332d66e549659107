package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/vitalislabs/vitalis/internal/domain/model"
)

// SQLiteStore implements Store on a single sqlite database file. The
// snapshot table is append-only JSON blobs; the published table is one
// row per user with a version column checked in the UPDATE for
// optimistic concurrency.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	snapshot_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	evaluated_at DATETIME NOT NULL,
	pipeline_version TEXT NOT NULL,
	body TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS published_velocity (
	user_id TEXT PRIMARY KEY,
	velocity REAL NOT NULL,
	days_gained_bucket INTEGER NOT NULL,
	published_at DATETIME NOT NULL,
	pipeline_version TEXT NOT NULL,
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS baselines (
	user_id TEXT NOT NULL,
	biomarker_key TEXT NOT NULL,
	personal_mean REAL NOT NULL,
	personal_sd REAL NOT NULL,
	draw_count INTEGER NOT NULL,
	trend TEXT NOT NULL,
	trend_confidence REAL NOT NULL,
	last_value REAL NOT NULL,
	last_date DATETIME NOT NULL,
	PRIMARY KEY (user_id, biomarker_key)
);

CREATE TABLE IF NOT EXISTS lab_readings (
	user_id TEXT NOT NULL,
	biomarker_key TEXT NOT NULL,
	value REAL NOT NULL,
	unit TEXT NOT NULL,
	flag TEXT,
	test_date DATETIME NOT NULL,
	upload_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS wearable_samples (
	user_id TEXT NOT NULL,
	metric_type TEXT NOT NULL,
	date DATETIME NOT NULL,
	value REAL NOT NULL,
	source TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_user ON snapshots(user_id, evaluated_at DESC);
CREATE INDEX IF NOT EXISTS idx_readings_user ON lab_readings(user_id, test_date);
CREATE INDEX IF NOT EXISTS idx_samples_user ON wearable_samples(user_id, metric_type, date);
`

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures the schema exists. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// A single writer keeps the version-checked UPDATE race free.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendSnapshot persists one immutable evaluation result as JSON.
func (s *SQLiteStore) AppendSnapshot(ctx context.Context, out model.BrainOutput) error {
	body, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, user_id, evaluated_at, pipeline_version, body) VALUES (?, ?, ?, ?, ?)`,
		out.SnapshotID, out.UserID, out.EvaluatedAt.UTC(), out.PipelineVersion, string(body))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot for a user.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, userID string) (model.BrainOutput, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM snapshots WHERE user_id = ? ORDER BY evaluated_at DESC LIMIT 1`,
		userID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BrainOutput{}, ErrNotFound
	}
	if err != nil {
		return model.BrainOutput{}, fmt.Errorf("query snapshot: %w", err)
	}
	var out model.BrainOutput
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return model.BrainOutput{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return out, nil
}

// SnapshotCount returns the number of snapshots stored for a user.
func (s *SQLiteStore) SnapshotCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshots WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

// GetPublished returns the user's current published state.
func (s *SQLiteStore) GetPublished(ctx context.Context, userID string) (model.PublishedVelocityState, error) {
	var st model.PublishedVelocityState
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, velocity, days_gained_bucket, published_at, pipeline_version, version
		 FROM published_velocity WHERE user_id = ?`, userID).
		Scan(&st.UserID, &st.Velocity, &st.DaysGainedBucket, &st.PublishedAt, &st.PipelineVersion, &st.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PublishedVelocityState{}, ErrNotFound
	}
	if err != nil {
		return model.PublishedVelocityState{}, fmt.Errorf("query published state: %w", err)
	}
	return st, nil
}

// PutPublished writes the state if the stored version still matches.
func (s *SQLiteStore) PutPublished(ctx context.Context, state model.PublishedVelocityState, expectedVersion int64) (model.PublishedVelocityState, error) {
	state.Version = expectedVersion + 1

	var (
		res sql.Result
		err error
	)
	if expectedVersion == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO published_velocity (user_id, velocity, days_gained_bucket, published_at, pipeline_version, version)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(user_id) DO NOTHING`,
			state.UserID, state.Velocity, state.DaysGainedBucket, state.PublishedAt.UTC(), state.PipelineVersion, state.Version)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE published_velocity
			 SET velocity = ?, days_gained_bucket = ?, published_at = ?, pipeline_version = ?, version = ?
			 WHERE user_id = ? AND version = ?`,
			state.Velocity, state.DaysGainedBucket, state.PublishedAt.UTC(), state.PipelineVersion, state.Version,
			state.UserID, expectedVersion)
	}
	if err != nil {
		return model.PublishedVelocityState{}, fmt.Errorf("write published state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.PublishedVelocityState{}, fmt.Errorf("write published state: %w", err)
	}
	if affected == 0 {
		return model.PublishedVelocityState{}, ErrVersionConflict
	}
	return state, nil
}

// Baselines returns all baselines for a user keyed by biomarker.
func (s *SQLiteStore) Baselines(ctx context.Context, userID string) (map[string]model.PersonalBaseline, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT biomarker_key, personal_mean, personal_sd, draw_count, trend, trend_confidence, last_value, last_date
		 FROM baselines WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query baselines: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.PersonalBaseline)
	for rows.Next() {
		var b model.PersonalBaseline
		var trend string
		if err := rows.Scan(&b.BiomarkerKey, &b.PersonalMean, &b.PersonalSD, &b.DrawCount, &trend, &b.TrendConfidence, &b.LastValue, &b.LastDate); err != nil {
			return nil, fmt.Errorf("scan baseline: %w", err)
		}
		b.Trend = model.TrendDirection(trend)
		out[b.BiomarkerKey] = b
	}
	return out, rows.Err()
}

// PutBaseline supersedes the baseline for its biomarker in place.
func (s *SQLiteStore) PutBaseline(ctx context.Context, userID string, b model.PersonalBaseline) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO baselines (user_id, biomarker_key, personal_mean, personal_sd, draw_count, trend, trend_confidence, last_value, last_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, biomarker_key) DO UPDATE SET
			personal_mean = excluded.personal_mean,
			personal_sd = excluded.personal_sd,
			draw_count = excluded.draw_count,
			trend = excluded.trend,
			trend_confidence = excluded.trend_confidence,
			last_value = excluded.last_value,
			last_date = excluded.last_date`,
		userID, b.BiomarkerKey, b.PersonalMean, b.PersonalSD, b.DrawCount, string(b.Trend), b.TrendConfidence, b.LastValue, b.LastDate.UTC())
	if err != nil {
		return fmt.Errorf("upsert baseline: %w", err)
	}
	return nil
}

// AppendReadings persists a parsed lab panel.
func (s *SQLiteStore) AppendReadings(ctx context.Context, userID string, readings []model.BiomarkerReading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin readings tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, r := range readings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lab_readings (user_id, biomarker_key, value, unit, flag, test_date, upload_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID, r.BiomarkerKey, r.Value, r.Unit, r.Flag, r.TestDate.UTC(), r.UploadID); err != nil {
			return fmt.Errorf("insert reading: %w", err)
		}
	}
	return tx.Commit()
}

// Readings returns all readings for a user ordered by test date.
func (s *SQLiteStore) Readings(ctx context.Context, userID string) ([]model.BiomarkerReading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT biomarker_key, value, unit, flag, test_date, upload_id
		 FROM lab_readings WHERE user_id = ? ORDER BY test_date`, userID)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var out []model.BiomarkerReading
	for rows.Next() {
		var r model.BiomarkerReading
		var flag sql.NullString
		if err := rows.Scan(&r.BiomarkerKey, &r.Value, &r.Unit, &flag, &r.TestDate, &r.UploadID); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Flag = flag.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// AppendSamples persists raw samples for one metric type.
func (s *SQLiteStore) AppendSamples(ctx context.Context, userID, metricType string, samples []model.WearableSample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin samples tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	for _, sm := range samples {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO wearable_samples (user_id, metric_type, date, value, source) VALUES (?, ?, ?, ?, ?)`,
			userID, metricType, sm.Date.UTC(), sm.Value, sm.Source); err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
	}
	return tx.Commit()
}

// Samples returns raw samples per metric type within the date range.
func (s *SQLiteStore) Samples(ctx context.Context, userID string, metricTypes []string, from, to time.Time) (map[string][]model.WearableSample, error) {
	out := make(map[string][]model.WearableSample)
	for _, mt := range metricTypes {
		rows, err := s.db.QueryContext(ctx,
			`SELECT date, value, source FROM wearable_samples
			 WHERE user_id = ? AND metric_type = ? AND date >= ? AND date <= ?
			 ORDER BY date`, userID, mt, from.UTC(), to.UTC())
		if err != nil {
			return nil, fmt.Errorf("query samples: %w", err)
		}
		for rows.Next() {
			var sm model.WearableSample
			if err := rows.Scan(&sm.Date, &sm.Value, &sm.Source); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan sample: %w", err)
			}
			out[mt] = append(out[mt], sm)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate samples: %w", err)
		}
		rows.Close()
	}
	return out, nil
}
