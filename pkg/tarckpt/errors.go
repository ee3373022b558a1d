package tarckpt

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for session misuse and extraction.
var (
	// ErrSessionClosed indicates Submit was called after drain began.
	ErrSessionClosed = errors.New("archive session closed")

	// ErrNoFiles indicates Submit was called with an empty path list.
	ErrNoFiles = errors.New("no files to archive")

	// ErrArchiveBusy indicates another session holds the archive path.
	ErrArchiveBusy = errors.New("archive is being written")

	// ErrIndexNotFound indicates no entry matched the requested index.
	ErrIndexNotFound = errors.New("checkpoint index not found")

	// ErrUnsafeEntry indicates an entry name that would escape the
	// extraction directory.
	ErrUnsafeEntry = errors.New("unsafe entry name")

	// ErrWorkerFaulted marks tasks that were still queued when the worker
	// crashed.
	ErrWorkerFaulted = errors.New("archive worker faulted")
)

// PathError reports a bad archive location.
type PathError struct {
	// Op is the operation that failed ("open", "lock", "append").
	Op string
	// Path is the archive path.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("archive %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PathError) Unwrap() error {
	return e.Err
}

// MissingFileError reports a source path that failed validation in Submit.
type MissingFileError struct {
	Index int
	Path  string
	Err   error
}

// Error implements the error interface.
func (e *MissingFileError) Error() string {
	return fmt.Sprintf("checkpoint %d: source %s: %v", e.Index, e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *MissingFileError) Unwrap() error {
	return e.Err
}

// CopyFailure records one source file the worker could not archive.
type CopyFailure struct {
	// Index is the task's logical index.
	Index int
	// Path is the source file.
	Path string
	// Entry is the archive name the file would have had, if one was
	// assigned before the failure.
	Entry string
	// Err is the reason.
	Err error
}

// Error implements the error interface.
func (f CopyFailure) Error() string {
	return fmt.Sprintf("checkpoint %d: %s: %v", f.Index, f.Path, f.Err)
}

// Unwrap returns the reason for errors.Is/As support.
func (f CopyFailure) Unwrap() error {
	return f.Err
}

// FailureReport aggregates every copy failure of a session. Close returns it
// once the archive is safely finalized.
type FailureReport struct {
	Failures []CopyFailure
}

// Error implements the error interface.
func (r *FailureReport) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d file(s) failed to archive", len(r.Failures))
	for _, f := range r.Failures {
		b.WriteString("\n  ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes each failure to errors.Is/As.
func (r *FailureReport) Unwrap() []error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errs
}

// ArchiveBusyError reports an archive path held by a live writing session.
type ArchiveBusyError struct {
	Path string
}

// Error implements the error interface.
func (e *ArchiveBusyError) Error() string {
	return fmt.Sprintf("archive %s is being written by another session", e.Path)
}

// Unwrap returns ErrArchiveBusy for errors.Is support.
func (e *ArchiveBusyError) Unwrap() error {
	return ErrArchiveBusy
}

// IndexNotFoundError reports an extraction miss.
type IndexNotFoundError struct {
	Path  string
	Index int
}

// Error implements the error interface.
func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("archive %s: no entries for checkpoint %d", e.Path, e.Index)
}

// Unwrap returns ErrIndexNotFound for errors.Is support.
func (e *IndexNotFoundError) Unwrap() error {
	return ErrIndexNotFound
}

// PanicError captures a crash of the archive worker.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("archive worker panicked: %v", e.Value)
}
