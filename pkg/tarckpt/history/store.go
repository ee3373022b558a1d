// Package history keeps a record of every archive session's drain report.
//
// The archive itself carries no session metadata beyond PAX records on each
// entry, so a history store is the place to look up which files a past
// session failed to archive and why.
package history

import (
	"errors"
	"time"
)

// Store persists session records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a record, replacing any record with the same SessionID.
	Save(rec Record) error

	// Load retrieves a record by session ID.
	// Returns ErrNotFound if it doesn't exist.
	Load(sessionID string) (Record, error)

	// List returns records for an archive path ordered by StartedAt.
	// An empty path lists every record. Returns an empty slice, not an
	// error, when nothing matches.
	List(archivePath string) ([]Record, error)

	// Delete removes a record. Returns nil if it doesn't exist.
	Delete(sessionID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Record summarizes one writing session after drain.
type Record struct {
	SessionID   string
	ArchivePath string
	Mode        string
	StartedAt   time.Time
	ClosedAt    time.Time
	Tasks       int
	Entries     int
	Bytes       int64
	Panicked    bool
	Failures    []Failure
}

// Failure is one source file the worker could not archive.
type Failure struct {
	Index  int
	Path   string
	Reason string
}

// Duration reports how long the session was open.
func (r Record) Duration() time.Duration {
	if r.ClosedAt.IsZero() {
		return 0
	}
	return r.ClosedAt.Sub(r.StartedAt)
}

// Sentinel errors for history operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("session record not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("history store closed")

	// ErrMissingSessionID indicates Save was called without a session ID.
	ErrMissingSessionID = errors.New("session ID required")
)
