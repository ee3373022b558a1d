package tarckpt

import (
	"fmt"
	"os"
	"runtime/debug"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/observability"
)

// run is the session worker. It consumes tasks until Close closes the queue,
// then finalizes the archive. After a panic the archive is finalized at once
// and every task still arriving is failed, so Submit and Close never hang.
func (s *Session) run() {
	defer close(s.done)

	for task := range s.tasks {
		if s.panicErr != nil {
			s.failTask(task, 0, ErrWorkerFaulted)
			continue
		}
		if perr := s.safeProcess(task); perr != nil {
			s.panicErr = perr
			s.faulted.Store(true)
			observability.LogWorkerPanic(s.logger, perr.Value, perr.Stack)
			s.cfg.spans.AddSpanEvent(s.ctx, "worker.panic",
				attribute.String("panic.value", fmt.Sprint(perr.Value)),
				attribute.Int("checkpoint.index", task.Index),
			)
			s.finalizeErr = s.w.abort()
		}
	}

	if s.panicErr == nil {
		s.finalizeErr = s.w.finalize()
	}
}

// safeProcess runs one task, converting a panic into a PanicError. The file
// being written when the panic hit and every file after it in the task are
// recorded as failures.
func (s *Session) safeProcess(task Task) (perr *PanicError) {
	progress := 0
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		perr = &PanicError{Value: r, Stack: string(debug.Stack())}
		if progress < len(task.Paths) {
			s.recordFailure(CopyFailure{Index: task.Index, Path: task.Paths[progress], Err: perr})
			s.failTask(task, progress+1, ErrWorkerFaulted)
		}
	}()

	s.processTask(task, &progress)
	return nil
}

func (s *Session) processTask(task Task, progress *int) {
	ctx, span := s.cfg.spans.StartTaskSpan(s.ctx, task.Index, len(task.Paths))
	var taskErr error
	defer func() { s.cfg.spans.EndSpanWithError(span, taskErr) }()

	written := make([]string, 0, len(task.Paths))
	for i, src := range task.Paths {
		*progress = i
		if s.cfg.beforeEntry != nil {
			s.cfg.beforeEntry(task.Index, src)
		}

		entry, size, err := s.w.writeEntry(ctx, task.Index, src, s.cfg.retry)
		s.cfg.metrics.RecordEntry(ctx, size, err)
		if err != nil {
			taskErr = err
			s.recordFailure(CopyFailure{Index: task.Index, Path: src, Entry: entry, Err: err})
			continue
		}
		s.entries.Add(1)
		s.bytes.Add(size)
		observability.LogEntryWritten(s.logger, entry, size)
		written = append(written, src)
	}
	*progress = len(task.Paths)

	if len(written) == 0 {
		return
	}
	if s.cfg.sync {
		if err := s.w.sync(); err != nil {
			taskErr = err
			s.recordFailure(CopyFailure{Index: task.Index, Path: s.path, Err: fmt.Errorf("sync archive: %w", err)})
			return
		}
	}
	if s.cfg.removeSources {
		for _, src := range written {
			if err := os.Remove(src); err != nil {
				observability.LogSourceRemoveError(s.logger, src, err)
			}
		}
	}
}

// failTask records every file of task from position from onward as failed
// with err.
func (s *Session) failTask(task Task, from int, err error) {
	for _, src := range task.Paths[from:] {
		s.recordFailure(CopyFailure{Index: task.Index, Path: src, Err: err})
	}
}

func (s *Session) recordFailure(f CopyFailure) {
	s.failures = append(s.failures, f)
	s.failed.Add(1)
	observability.LogCopyFailure(s.logger, f.Index, f.Path, f.Err)
}
