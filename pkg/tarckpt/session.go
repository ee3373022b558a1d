package tarckpt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sys/unix"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/history"
	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/observability"
)

// Task is one checkpoint handed to the worker: the files saved at a given
// training step. Tasks are immutable once queued.
type Task struct {
	Index int

	// Paths are absolute, resolved when the task was submitted.
	Paths       []string
	SubmittedAt time.Time

	// Seq numbers tasks in the order Submit accepted them, starting at 1.
	Seq uint64
}

// State is the lifecycle state of a Session.
type State int32

const (
	StateCreated State = iota
	StateOpen
	StateDraining
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Stats is a snapshot of session counters.
type Stats struct {
	Submitted int64
	Entries   int64
	Bytes     int64
	Failures  int64
}

// Session archives checkpoint files into one tar file in the background.
//
// Submit hands files to a single worker goroutine and returns without waiting
// for any archive I/O. Entries appear in the archive in the order tasks were
// accepted. Close waits for every accepted task, finalizes the archive and
// reports the files that could not be archived.
//
// A Session is safe for concurrent use.
type Session struct {
	id        string
	path      string
	cfg       sessionConfig
	logger    *slog.Logger
	startedAt time.Time

	// mu orders Submit's channel send against Close's channel close.
	mu    sync.RWMutex
	state atomic.Int32
	seq   atomic.Uint64
	tasks chan Task

	// ctx carries the session span; it is never cancelled.
	ctx  context.Context
	span trace.Span

	// Owned by the worker until done is closed.
	w           *archiveWriter
	failures    []CopyFailure
	panicErr    *PanicError
	finalizeErr error
	faulted     atomic.Bool
	done        chan struct{}

	submitted atomic.Int64
	entries   atomic.Int64
	bytes     atomic.Int64
	failed    atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// Open creates or opens the archive at path and starts its worker.
//
// The archive is locked for the lifetime of the session. Opening a path that
// another session is writing fails with *ArchiveBusyError; a missing or
// unwritable parent directory fails with *PathError.
//
// Example:
//
//	s, err := tarckpt.Open(ctx, "run/ckpt.tar", tarckpt.WithMode(tarckpt.ModeAppend))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	err = s.Submit(ctx, step, "model.bin", "optim.bin")
func Open(ctx context.Context, path string, opts ...Option) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sessionID == "" {
		cfg.sessionID = uuid.NewString()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &PathError{Op: "open", Path: path, Err: err}
	}

	w, err := openArchive(ctx, abs, cfg.mode, cfg.indexWidth, cfg.sessionID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:        cfg.sessionID,
		path:      abs,
		cfg:       cfg,
		logger:    observability.EnrichLogger(cfg.logger, cfg.sessionID, abs),
		startedAt: time.Now(),
		tasks:     make(chan Task, cfg.queueSize),
		w:         w,
		done:      make(chan struct{}),
	}
	s.state.Store(int32(StateCreated))
	s.ctx, s.span = cfg.spans.StartSessionSpan(context.WithoutCancel(ctx), s.id, abs)

	go s.run()
	s.state.Store(int32(StateOpen))
	observability.LogSessionOpen(s.logger, cfg.mode.String(), cfg.queueSize)
	return s, nil
}

// ID returns the session ID recorded in each entry's PAX headers.
func (s *Session) ID() string { return s.id }

// Path returns the absolute archive path.
func (s *Session) Path() string { return s.path }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		Submitted: s.submitted.Load(),
		Entries:   s.entries.Load(),
		Bytes:     s.bytes.Load(),
		Failures:  s.failed.Load(),
	}
}

// Submit queues the files of checkpoint index for archiving and returns
// without waiting for them to be written.
//
// Every path must name an existing, readable regular file; otherwise Submit
// returns *MissingFileError and queues nothing. The file contents are read
// later, by the worker. Submit blocks only while the queue is full, and gives
// up with ctx.Err() if ctx ends first. After Close has begun it returns
// ErrSessionClosed.
func (s *Session) Submit(ctx context.Context, index int, paths ...string) error {
	if len(paths) == 0 {
		return ErrNoFiles
	}
	if s.State() != StateOpen {
		return ErrSessionClosed
	}
	if s.faulted.Load() {
		return fmt.Errorf("submit checkpoint %d: %w", index, ErrWorkerFaulted)
	}
	// Resolved now so a later working directory change cannot redirect the
	// worker to a different file.
	abs := make([]string, len(paths))
	for i, p := range paths {
		if err := checkSource(p); err != nil {
			return &MissingFileError{Index: index, Path: p, Err: err}
		}
		a, err := filepath.Abs(p)
		if err != nil {
			return &MissingFileError{Index: index, Path: p, Err: err}
		}
		abs[i] = a
	}

	task := Task{
		Index:       index,
		Paths:       abs,
		SubmittedAt: time.Now(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.State() != StateOpen {
		return ErrSessionClosed
	}

	start := time.Now()
	if err := s.enqueue(ctx, &task); err != nil {
		return err
	}
	s.submitted.Add(1)
	s.cfg.metrics.RecordSubmit(ctx, len(task.Paths), time.Since(start))
	observability.LogTaskQueued(s.logger, index, len(task.Paths))
	return nil
}

func (s *Session) enqueue(ctx context.Context, task *Task) error {
	task.Seq = s.seq.Add(1)
	select {
	case s.tasks <- *task:
		return nil
	default:
	}
	select {
	case s.tasks <- *task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkSource verifies a path is a regular file the worker will be able to
// read.
func checkSource(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !st.Mode().IsRegular() {
		return errors.New("not a regular file")
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return &os.PathError{Op: "access", Path: path, Err: err}
	}
	return nil
}

// Close stops accepting tasks, waits for the worker to archive everything
// already queued, and finalizes the archive so any tar reader can open it.
//
// The returned error joins a *FailureReport listing every file that could
// not be archived, a *PanicError if the worker crashed, and a *PathError if
// the archive could not be finalized. Later calls return the same result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.drain()
	})
	return s.closeErr
}

func (s *Session) drain() error {
	elapsed := observability.TimedOperation()
	start := time.Now()

	s.mu.Lock()
	s.state.Store(int32(StateDraining))
	close(s.tasks)
	s.mu.Unlock()

	<-s.done

	var errs []error
	if s.panicErr != nil {
		errs = append(errs, s.panicErr)
	}
	if len(s.failures) > 0 {
		errs = append(errs, &FailureReport{Failures: slices.Clone(s.failures)})
	}
	if s.finalizeErr != nil {
		errs = append(errs, &PathError{Op: "finalize", Path: s.path, Err: s.finalizeErr})
	}
	err := errors.Join(errs...)

	s.state.Store(int32(StateClosed))

	duration := time.Since(start)
	s.cfg.metrics.RecordDrain(s.ctx, err == nil, duration)
	s.cfg.spans.EndSpanWithError(s.span, err)
	if err != nil {
		observability.LogSessionError(s.logger, err, elapsed())
	} else {
		observability.LogSessionClosed(s.logger, int(s.entries.Load()), len(s.failures), elapsed())
	}

	s.recordHistory()
	return err
}

func (s *Session) recordHistory() {
	if s.cfg.history == nil {
		return
	}
	rec := history.Record{
		SessionID:   s.id,
		ArchivePath: s.path,
		Mode:        s.cfg.mode.String(),
		StartedAt:   s.startedAt,
		ClosedAt:    time.Now(),
		Tasks:       int(s.submitted.Load()),
		Entries:     int(s.entries.Load()),
		Bytes:       s.bytes.Load(),
		Panicked:    s.panicErr != nil,
	}
	for _, f := range s.failures {
		rec.Failures = append(rec.Failures, history.Failure{
			Index:  f.Index,
			Path:   f.Path,
			Reason: f.Err.Error(),
		})
	}
	if err := s.cfg.history.Save(rec); err != nil {
		observability.LogHistoryError(s.logger, err)
	}
}
