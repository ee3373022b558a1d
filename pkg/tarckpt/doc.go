/*
Package tarckpt archives training checkpoints into a single growing tar file
without blocking the training loop.

# Overview

A long-running job writes checkpoint files every few steps. Copying them into
an archive on the job's own goroutine stalls training for as long as the disk
takes. A Session moves that work onto one background worker: Submit checks
the files exist and queues them, and the worker appends them to the archive
in submission order.

Each file becomes one tar entry named "<index>/<basename>", where index is
the logical checkpoint number the caller chose (usually the training step).
Extract later pulls every file of one index back out.

# Basic Usage

	s, err := tarckpt.Open(ctx, "run/ckpt.tar")
	if err != nil {
	    return err
	}

	for step := 0; step < steps; step++ {
	    train(step)
	    if step%100 == 0 {
	        save("model.bin", "optim.bin")
	        if err := s.Submit(ctx, step, "model.bin", "optim.bin"); err != nil {
	            return err
	        }
	    }
	}

	// Close waits for the queue to drain and finalizes the archive.
	if err := s.Close(); err != nil {
	    var report *tarckpt.FailureReport
	    if errors.As(err, &report) {
	        for _, f := range report.Failures {
	            log.Printf("checkpoint %d: %s not archived: %v", f.Index, f.Path, f.Err)
	        }
	    }
	}

Submit reads nothing but file metadata. The file contents are read when the
worker reaches the task, so callers must not overwrite a submitted file until
it has been archived. WithRemoveSources makes the worker delete each file once
its entry is committed, which also frees the caller to reuse the name.

# Archive Layout

Entries are plain PAX tar entries readable by any tar tool. Names collide
when one index is submitted twice or two files share a basename; the later
entry gets a counter suffix ("3/model.bin-2"). Every entry carries PAX
records with its index, its original basename and the writing session's ID.

WithIndexWidth zero-pads the index ("00042/model.bin"). Extract and
ListIndices accept both forms.

# Modes

  - ModeCreateExclusive (default): fail if the archive exists
  - ModeTruncate: start over
  - ModeAppend: add entries after the existing ones; names stay unique
    across sessions

One session at a time may write a given path. Open fails with
*ArchiveBusyError while another session holds it, and readers get the same
error rather than seeing a half-written archive.

# Failures

A file the worker cannot archive (deleted, shrunk, unreadable) is rolled back
so the archive never holds a partial entry, and the session moves on. Close
returns a *FailureReport listing all of them. If the worker panics, the
archive is finalized with everything committed so far and the remaining
tasks are reported as failed with ErrWorkerFaulted.

# Observability

	s, err := tarckpt.Open(ctx, path,
	    tarckpt.WithLogger(logger),
	    tarckpt.WithMetrics(),
	    tarckpt.WithTracing(),
	    tarckpt.WithHistory(store),
	)

Metrics and spans use the global OpenTelemetry providers. A history.Store
keeps each session's drain report; see package history.
*/
package tarckpt
