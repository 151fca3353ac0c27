// Package store is the opt-in SQLite audit log of insight runs and release
// verification outcomes. Nothing read from it ever feeds back into scoring.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS insight_runs (
	run_id            TEXT PRIMARY KEY,
	input_sha256      TEXT NOT NULL,
	input_text        TEXT NOT NULL,
	lang              TEXT,
	source            TEXT,
	template_id       TEXT NOT NULL,
	dominant          TEXT NOT NULL,
	secondary         TEXT,
	composite         TEXT,
	confidence        REAL NOT NULL,
	sdt_pass          INTEGER NOT NULL,
	violations_json   TEXT NOT NULL,
	manifest_version  TEXT,
	created_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_insight_runs_created ON insight_runs(created_at);

CREATE TABLE IF NOT EXISTS integrity_log (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	manifest_version  TEXT,
	manifest_source   TEXT,
	outcome           TEXT NOT NULL,
	reason            TEXT,
	artifact_key      TEXT,
	created_at        TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// Store manages the audit log in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. ":memory:" gives a
// private in-process database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region record-run
// RecordRun appends a run. A missing RunID or CreatedAt is filled in.
func (s *Store) RecordRun(rec RunRecord) (RunRecord, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	violations := rec.Violations
	if violations == nil {
		violations = []string{}
	}
	vJSON, err := json.Marshal(violations)
	if err != nil {
		return RunRecord{}, fmt.Errorf("marshal violations: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO insight_runs (run_id, input_sha256, input_text, lang, source, template_id, dominant,
		 secondary, composite, confidence, sdt_pass, violations_json, manifest_version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.InputSHA256, rec.InputText, nullIfEmpty(rec.Lang), nullIfEmpty(rec.Source),
		rec.TemplateID, rec.Dominant, nullIfEmpty(rec.Secondary), nullIfEmpty(rec.Composite),
		rec.Confidence, boolToInt(rec.SDTPass), string(vJSON), nullIfEmpty(rec.ManifestVersion),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("record run: %w", err)
	}
	rec.Violations = violations
	return rec, nil
}
// #endregion record-run

// #region get-run
const runColumns = `run_id, input_sha256, input_text, lang, source, template_id, dominant, secondary,
	composite, confidence, sdt_pass, violations_json, manifest_version, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var lang, source, secondary, composite, version sql.NullString
	var pass int
	var vJSON, createdStr string

	if err := row.Scan(&rec.RunID, &rec.InputSHA256, &rec.InputText, &lang, &source, &rec.TemplateID,
		&rec.Dominant, &secondary, &composite, &rec.Confidence, &pass, &vJSON, &version, &createdStr); err != nil {
		return RunRecord{}, err
	}
	rec.Lang = lang.String
	rec.Source = source.String
	rec.Secondary = secondary.String
	rec.Composite = composite.String
	rec.ManifestVersion = version.String
	rec.SDTPass = pass != 0
	if err := json.Unmarshal([]byte(vJSON), &rec.Violations); err != nil {
		return RunRecord{}, fmt.Errorf("unmarshal violations: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(id string) (RunRecord, error) {
	rec, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM insight_runs WHERE run_id = ?`, id))
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}
// #endregion get-run

// #region list-runs
// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT `+runColumns+` FROM insight_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountRuns returns the number of recorded runs.
func (s *Store) CountRuns() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM insight_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
// #endregion list-runs

// #region integrity-log
// LogIntegrity writes a verification outcome to the integrity_log table.
func (s *Store) LogIntegrity(ev IntegrityEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO integrity_log (manifest_version, manifest_source, outcome, reason, artifact_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(ev.ManifestVersion),
		nullIfEmpty(ev.ManifestSource),
		ev.Outcome,
		nullIfEmpty(ev.Reason),
		nullIfEmpty(ev.Key),
		ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log integrity: %w", err)
	}
	return nil
}

// ListIntegrity returns the most recent integrity events, newest first.
func (s *Store) ListIntegrity(limit int) ([]IntegrityEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT manifest_version, manifest_source, outcome, reason, artifact_key, created_at
		 FROM integrity_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list integrity: %w", err)
	}
	defer rows.Close()

	var events []IntegrityEvent
	for rows.Next() {
		var ev IntegrityEvent
		var version, source, reason, key sql.NullString
		var createdStr string
		if err := rows.Scan(&version, &source, &ev.Outcome, &reason, &key, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ev.ManifestVersion = version.String
		ev.ManifestSource = source.String
		ev.Reason = reason.String
		ev.Key = key.String
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		events = append(events, ev)
	}
	return events, rows.Err()
}
// #endregion integrity-log

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
// #endregion helpers
