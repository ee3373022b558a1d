package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newCaptureLogger returns a debug-level JSON logger and a func that decodes
// every record written so far.
func newCaptureLogger() (*slog.Logger, func() []map[string]any) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() []map[string]any {
		var records []map[string]any
		for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
			if len(line) == 0 {
				continue
			}
			var m map[string]any
			if err := json.Unmarshal(line, &m); err == nil {
				records = append(records, m)
			}
		}
		return records
	}
}

func TestEnrichLogger(t *testing.T) {
	logger, records := newCaptureLogger()

	EnrichLogger(logger, "sess-1", "ckpt.tar").Info("hello")

	got := records()
	require.Len(t, got, 1)
	assert.Equal(t, "sess-1", got[0]["session_id"])
	assert.Equal(t, "ckpt.tar", got[0]["archive"])

	assert.Nil(t, EnrichLogger(nil, "sess-1", "ckpt.tar"))
}

func TestLogHelpers(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		log   func(*slog.Logger)
		level string
		msg   string
		check func(*testing.T, map[string]any)
	}{
		{
			"session open",
			func(l *slog.Logger) { LogSessionOpen(l, "append", 16) },
			"INFO", "archive session open",
			func(t *testing.T, r map[string]any) {
				assert.Equal(t, "append", r["mode"])
				assert.Equal(t, float64(16), r["queue_size"])
			},
		},
		{
			"session closed",
			func(l *slog.Logger) { LogSessionClosed(l, 3, 1, 12.5) },
			"INFO", "archive session closed",
			func(t *testing.T, r map[string]any) {
				assert.Equal(t, float64(3), r["entries"])
				assert.Equal(t, float64(1), r["failures"])
				assert.Equal(t, 12.5, r["drain_ms"])
			},
		},
		{
			"session error",
			func(l *slog.Logger) { LogSessionError(l, boom, 1) },
			"ERROR", "archive session closed with errors",
			func(t *testing.T, r map[string]any) {
				assert.Equal(t, "boom", r["error"])
			},
		},
		{
			"task queued",
			func(l *slog.Logger) { LogTaskQueued(l, 7, 2) },
			"DEBUG", "task queued",
			func(t *testing.T, r map[string]any) {
				assert.Equal(t, float64(7), r["index"])
				assert.Equal(t, float64(2), r["files"])
			},
		},
		{
			"entry written",
			func(l *slog.Logger) { LogEntryWritten(l, "7/model.bin", 1024) },
			"DEBUG", "entry written",
			func(t *testing.T, r map[string]any) {
				assert.Equal(t, "7/model.bin", r["entry"])
				assert.Equal(t, float64(1024), r["size_bytes"])
			},
		},
		{
			"copy failure",
			func(l *slog.Logger) { LogCopyFailure(l, 7, "/tmp/model.bin", boom) },
			"WARN", "copy failed",
			func(t *testing.T, r map[string]any) {
				assert.Equal(t, "/tmp/model.bin", r["path"])
				assert.Equal(t, "boom", r["error"])
			},
		},
		{
			"remove source",
			func(l *slog.Logger) { LogSourceRemoveError(l, "/tmp/model.bin", boom) },
			"WARN", "remove source failed",
			nil,
		},
		{
			"worker panic",
			func(l *slog.Logger) { LogWorkerPanic(l, "kaboom", "goroutine 1") },
			"ERROR", "archive worker panicked",
			func(t *testing.T, r map[string]any) {
				assert.Equal(t, "kaboom", r["panic"])
				assert.Equal(t, "goroutine 1", r["stack"])
			},
		},
		{
			"history error",
			func(l *slog.Logger) { LogHistoryError(l, boom) },
			"WARN", "history record failed",
			nil,
		},
		{
			"extract",
			func(l *slog.Logger) { LogExtract(l, "ckpt.tar", 1, 2, "/tmp/x/1") },
			"INFO", "checkpoint extracted",
			func(t *testing.T, r map[string]any) {
				assert.Equal(t, "/tmp/x/1", r["destination"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, records := newCaptureLogger()
			tt.log(logger)

			got := records()
			require.Len(t, got, 1)
			assert.Equal(t, tt.level, got[0]["level"])
			assert.Equal(t, tt.msg, got[0]["msg"])
			if tt.check != nil {
				tt.check(t, got[0])
			}
		})
	}
}

func TestLogHelpers_NilLogger(t *testing.T) {
	boom := errors.New("boom")
	assert.NotPanics(t, func() {
		LogSessionOpen(nil, "create", 1)
		LogSessionClosed(nil, 0, 0, 0)
		LogSessionError(nil, boom, 0)
		LogTaskQueued(nil, 0, 0)
		LogEntryWritten(nil, "", 0)
		LogCopyFailure(nil, 0, "", boom)
		LogSourceRemoveError(nil, "", boom)
		LogWorkerPanic(nil, nil, "")
		LogHistoryError(nil, boom)
		LogExtract(nil, "", 0, 0, "")
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), 5.0)
}
