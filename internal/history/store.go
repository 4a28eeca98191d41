// Package history persists terminal test sessions to a SQLite database
// so past runs can be inspected after the orchestrator exits.
package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/testflow/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// SessionRecord is one row of the session history.
type SessionRecord struct {
	ID              string
	ConfigurationID string
	Status          models.SessionStatus
	TotalSuites     int
	PassedSuites    int
	FailedSuites    int
	SkippedSuites   int
	PassRate        float64
	QueueWait       time.Duration
	Execution       time.Duration
	CreatedAt       time.Time
	StartedAt       *time.Time
	EndedAt         *time.Time
}

// Store manages the SQLite database holding session history.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if necessary) the history database at dbPath
// and applies the schema.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure SQLite for concurrent access with retry logic.
	// busy_timeout must be set first so subsequent operations wait on
	// locks instead of failing immediately.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry
// on "database is locked" errors.
func execWithRetry(db *sql.DB, query string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(query)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordSession writes a terminal session and its suite results. Writing
// the same session again replaces the earlier record, so the call is safe
// to repeat.
func (s *Store) RecordSession(session models.TestSession) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO sessions
		(id, configuration_id, status, total_suites, passed_suites, failed_suites, skipped_suites,
		 pass_rate, queue_wait_ms, execution_ms, created_at, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.ConfigurationID,
		string(session.Status),
		session.Progress.TotalSuites,
		session.Progress.CompletedSuites,
		session.Progress.FailedSuites,
		session.Progress.SkippedSuites,
		session.Metrics.PassRate,
		session.Metrics.QueueWait.Milliseconds(),
		session.Metrics.Execution.Milliseconds(),
		session.CreatedAt,
		nullableTime(session.StartedAt),
		nullableTime(session.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM suite_results WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("clear suite results: %w", err)
	}

	for _, result := range session.Results {
		_, err := tx.Exec(`INSERT INTO suite_results (session_id, suite_id, status, message, duration_ms)
			VALUES (?, ?, ?, ?, ?)`,
			session.ID, result.SuiteID, result.Status, result.Message, result.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("insert suite result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetSession retrieves one session record by id.
func (s *Store) GetSession(id string) (*SessionRecord, error) {
	row := s.db.QueryRow(`SELECT id, configuration_id, status, total_suites, passed_suites,
		failed_suites, skipped_suites, pass_rate, queue_wait_ms, execution_ms,
		created_at, started_at, ended_at
		FROM sessions WHERE id = ?`, id)

	rec, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return rec, nil
}

// ListSessions returns the most recent sessions, newest first. limit <= 0
// returns all sessions.
func (s *Store) ListSessions(limit int) ([]*SessionRecord, error) {
	query := `SELECT id, configuration_id, status, total_suites, passed_suites,
		failed_suites, skipped_suites, pass_rate, queue_wait_ms, execution_ms,
		created_at, started_at, ended_at
		FROM sessions ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SuiteResults returns the suite results recorded for a session, in
// insertion order.
func (s *Store) SuiteResults(sessionID string) ([]models.TestResult, error) {
	rows, err := s.db.Query(`SELECT suite_id, status, message, duration_ms
		FROM suite_results WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query suite results: %w", err)
	}
	defer rows.Close()

	var results []models.TestResult
	for rows.Next() {
		var r models.TestResult
		var durationMS int64
		if err := rows.Scan(&r.SuiteID, &r.Status, &r.Message, &durationMS); err != nil {
			return nil, fmt.Errorf("scan suite result: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*SessionRecord, error) {
	rec := &SessionRecord{}
	var status string
	var queueWaitMS, executionMS int64
	var startedAt, endedAt sql.NullTime

	err := sc.Scan(
		&rec.ID,
		&rec.ConfigurationID,
		&status,
		&rec.TotalSuites,
		&rec.PassedSuites,
		&rec.FailedSuites,
		&rec.SkippedSuites,
		&rec.PassRate,
		&queueWaitMS,
		&executionMS,
		&rec.CreatedAt,
		&startedAt,
		&endedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = models.SessionStatus(status)
	rec.QueueWait = time.Duration(queueWaitMS) * time.Millisecond
	rec.Execution = time.Duration(executionMS) * time.Millisecond
	if startedAt.Valid {
		t := startedAt.Time
		rec.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time
		rec.EndedAt = &t
	}
	return rec, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
