package tarckpt

import (
	"fmt"
	"log/slog"
	"strings"

	ckerrors "github.com/fcossio/tar-checkpoints/pkg/tarckpt/errors"
	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/history"
	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/observability"
)

// Mode selects what Open does with an existing archive file.
type Mode int

const (
	// ModeCreateExclusive creates a new archive and fails if the path
	// exists.
	ModeCreateExclusive Mode = iota

	// ModeTruncate creates the archive or empties an existing one.
	ModeTruncate

	// ModeAppend adds entries after those already in an existing archive,
	// creating it if absent.
	ModeAppend
)

// String returns the mode name used in config files and logs.
func (m Mode) String() string {
	switch m {
	case ModeCreateExclusive:
		return "create"
	case ModeTruncate:
		return "truncate"
	case ModeAppend:
		return "append"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses a mode name as produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create", "":
		return ModeCreateExclusive, nil
	case "truncate":
		return ModeTruncate, nil
	case "append":
		return ModeAppend, nil
	default:
		return 0, fmt.Errorf("unknown archive mode %q", s)
	}
}

// DefaultQueueSize bounds the number of tasks waiting for the worker.
const DefaultQueueSize = 16

// sessionConfig holds configuration for one archive session.
type sessionConfig struct {
	mode          Mode
	queueSize     int
	indexWidth    int
	sync          bool
	removeSources bool
	retry         ckerrors.RetryConfig
	sessionID     string

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	history history.Store

	// beforeEntry runs in the worker before each source file is copied.
	beforeEntry func(index int, path string)
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{
		mode:      ModeCreateExclusive,
		queueSize: DefaultQueueSize,
		retry:     ckerrors.NoRetry,
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
	}
}

// Option configures a session.
type Option func(*sessionConfig)

// WithMode sets how an existing archive file is treated.
// Default: ModeCreateExclusive
func WithMode(m Mode) Option {
	return func(c *sessionConfig) {
		c.mode = m
	}
}

// WithQueueSize bounds the task queue. Submit blocks only while this many
// tasks are waiting.
// Default: 16
func WithQueueSize(n int) Option {
	return func(c *sessionConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithIndexWidth zero-pads the index in entry names to n digits, e.g.
// "00042/model.bin" for n=5. Extraction accepts padded and unpadded names.
// Default: 0 (no padding)
func WithIndexWidth(n int) Option {
	return func(c *sessionConfig) {
		if n >= 0 {
			c.indexWidth = n
		}
	}
}

// WithSync fsyncs the archive after every task, so committed entries
// survive a machine crash before Close.
func WithSync(enabled bool) Option {
	return func(c *sessionConfig) {
		c.sync = enabled
	}
}

// WithRemoveSources deletes each source file once its entry is committed.
func WithRemoveSources(enabled bool) Option {
	return func(c *sessionConfig) {
		c.removeSources = enabled
	}
}

// WithRetry retries transient failures opening source files.
// Default: errors.NoRetry
func WithRetry(cfg ckerrors.RetryConfig) Option {
	return func(c *sessionConfig) {
		c.retry = cfg
	}
}

// WithSessionID overrides the generated session ID recorded in each
// entry's PAX headers and in history.
func WithSessionID(id string) Option {
	return func(c *sessionConfig) {
		c.sessionID = id
	}
}

// WithLogger enables structured logging.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	s, err := tarckpt.Open(ctx, "ckpt.tar", tarckpt.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(c *sessionConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics via the global meter provider.
func WithMetrics() Option {
	return func(c *sessionConfig) {
		c.metrics = observability.NewMetricsRecorder()
	}
}

// WithTracing enables OpenTelemetry spans via the global tracer provider.
func WithTracing() Option {
	return func(c *sessionConfig) {
		c.spans = observability.NewSpanManager()
	}
}

// WithHistory records the session's drain report in store on Close.
func WithHistory(store history.Store) Option {
	return func(c *sessionConfig) {
		c.history = store
	}
}
