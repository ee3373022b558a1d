// Package observability provides structured logging, metrics, and tracing
// for archive sessions.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds session context to a logger.
//
// Example:
//
//	logger = EnrichLogger(logger, "3f2a...", "ckpt.tar")
//	logger.Info("entry written") // includes session_id, archive
func EnrichLogger(logger *slog.Logger, sessionID, archivePath string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("session_id", sessionID),
		slog.String("archive", archivePath),
	)
}

// LogSessionOpen logs the start of a writing session.
func LogSessionOpen(logger *slog.Logger, mode string, queueSize int) {
	if logger == nil {
		return
	}
	logger.Info("archive session open",
		slog.String("mode", mode),
		slog.Int("queue_size", queueSize),
	)
}

// LogSessionClosed logs a completed drain.
func LogSessionClosed(logger *slog.Logger, entries, failures int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("archive session closed",
		slog.Int("entries", entries),
		slog.Int("failures", failures),
		slog.Float64("drain_ms", durationMs),
	)
}

// LogSessionError logs a drain that ended with an error.
func LogSessionError(logger *slog.Logger, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("archive session closed with errors",
		slog.String("error", err.Error()),
		slog.Float64("drain_ms", durationMs),
	)
}

// LogTaskQueued logs a task handed to the worker.
func LogTaskQueued(logger *slog.Logger, index, files int) {
	if logger == nil {
		return
	}
	logger.Debug("task queued",
		slog.Int("index", index),
		slog.Int("files", files),
	)
}

// LogEntryWritten logs a committed archive entry.
func LogEntryWritten(logger *slog.Logger, entry string, sizeBytes int64) {
	if logger == nil {
		return
	}
	logger.Debug("entry written",
		slog.String("entry", entry),
		slog.Int64("size_bytes", sizeBytes),
	)
}

// LogCopyFailure logs a source file that could not be archived.
func LogCopyFailure(logger *slog.Logger, index int, path string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("copy failed",
		slog.Int("index", index),
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}

// LogSourceRemoveError logs a source file left behind after archiving.
func LogSourceRemoveError(logger *slog.Logger, path string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("remove source failed",
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}

// LogWorkerPanic logs a recovered worker crash.
func LogWorkerPanic(logger *slog.Logger, value any, stack string) {
	if logger == nil {
		return
	}
	logger.Error("archive worker panicked",
		slog.Any("panic", value),
		slog.String("stack", stack),
	)
}

// LogHistoryError logs a failed history write (non-fatal).
func LogHistoryError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Warn("history record failed",
		slog.String("error", err.Error()),
	)
}

// LogExtract logs a finished extraction.
func LogExtract(logger *slog.Logger, archivePath string, index, files int, dest string) {
	if logger == nil {
		return
	}
	logger.Info("checkpoint extracted",
		slog.String("archive", archivePath),
		slog.Int("index", index),
		slog.Int("files", files),
		slog.String("destination", dest),
	)
}

// TimedOperation returns a function reporting elapsed milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
