package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists session records to SQLite.
// It is suitable for single-host use, e.g. alongside the archives it describes.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id   TEXT PRIMARY KEY,
	archive_path TEXT NOT NULL,
	mode         TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	closed_at    TEXT NOT NULL,
	tasks        INTEGER NOT NULL,
	entries      INTEGER NOT NULL,
	bytes        INTEGER NOT NULL,
	panicked     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_archive ON sessions(archive_path);
CREATE TABLE IF NOT EXISTS failures (
	session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	idx        INTEGER NOT NULL,
	path       TEXT NOT NULL,
	reason     TEXT NOT NULL,
	PRIMARY KEY (session_id, seq)
);
`

// NewSQLiteStore opens (or creates) a history database.
// The path should be a file path (e.g., "./tarckpt.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(rec Record) (err error) {
	if rec.SessionID == "" {
		return ErrMissingSessionID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM failures WHERE session_id = ?`, rec.SessionID); err != nil {
		return fmt.Errorf("clear failures: %w", err)
	}
	if _, err = tx.Exec(`
		INSERT INTO sessions (session_id, archive_path, mode, started_at, closed_at, tasks, entries, bytes, panicked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			archive_path = excluded.archive_path,
			mode = excluded.mode,
			started_at = excluded.started_at,
			closed_at = excluded.closed_at,
			tasks = excluded.tasks,
			entries = excluded.entries,
			bytes = excluded.bytes,
			panicked = excluded.panicked
	`, rec.SessionID, rec.ArchivePath, rec.Mode,
		formatTime(rec.StartedAt), formatTime(rec.ClosedAt),
		rec.Tasks, rec.Entries, rec.Bytes, rec.Panicked,
	); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	for i, f := range rec.Failures {
		if _, err = tx.Exec(`
			INSERT INTO failures (session_id, seq, idx, path, reason) VALUES (?, ?, ?, ?, ?)
		`, rec.SessionID, i, f.Index, f.Path, f.Reason); err != nil {
			return fmt.Errorf("save failure: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(sessionID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Record{}, ErrStoreClosed
	}

	rows, err := s.db.Query(selectSessions+` WHERE session_id = ?`, sessionID)
	if err != nil {
		return Record{}, fmt.Errorf("load session: %w", err)
	}
	recs, err := s.scanRecords(rows)
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, ErrNotFound
	}
	return recs[0], nil
}

// List implements Store.
func (s *SQLiteStore) List(archivePath string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var (
		rows *sql.Rows
		err  error
	)
	if archivePath == "" {
		rows, err = s.db.Query(selectSessions + ` ORDER BY started_at`)
	} else {
		rows, err = s.db.Query(selectSessions+` WHERE archive_path = ? ORDER BY started_at`, archivePath)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return s.scanRecords(rows)
}

const selectSessions = `
	SELECT session_id, archive_path, mode, started_at, closed_at, tasks, entries, bytes, panicked
	FROM sessions`

// scanRecords drains rows, then loads failures for each record. rows is
// closed before the failure queries run because the pool holds one connection.
func (s *SQLiteStore) scanRecords(rows *sql.Rows) ([]Record, error) {
	recs := []Record{}
	for rows.Next() {
		var (
			rec             Record
			started, closed string
		)
		if err := rows.Scan(&rec.SessionID, &rec.ArchivePath, &rec.Mode, &started, &closed,
			&rec.Tasks, &rec.Entries, &rec.Bytes, &rec.Panicked); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.StartedAt = parseTime(started)
		rec.ClosedAt = parseTime(closed)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	rows.Close()

	for i := range recs {
		failures, err := s.loadFailures(recs[i].SessionID)
		if err != nil {
			return nil, err
		}
		recs[i].Failures = failures
	}
	return recs, nil
}

func (s *SQLiteStore) loadFailures(sessionID string) ([]Failure, error) {
	rows, err := s.db.Query(`
		SELECT idx, path, reason FROM failures WHERE session_id = ? ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Index, &f.Path, &f.Reason); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return failures, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
