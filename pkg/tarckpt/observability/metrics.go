package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records archiver metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordSubmit records an accepted task and how long Submit waited on
	// a full queue.
	RecordSubmit(ctx context.Context, files int, wait time.Duration)

	// RecordEntry records one source file processed by the worker.
	// A non-nil err counts as a copy failure.
	RecordEntry(ctx context.Context, sizeBytes int64, err error)

	// RecordDrain records a session drain.
	RecordDrain(ctx context.Context, success bool, duration time.Duration)
}

type otelMetrics struct {
	tasksSubmitted metric.Int64Counter
	submitWait     metric.Float64Histogram
	entriesWritten metric.Int64Counter
	entryBytes     metric.Int64Histogram
	copyFailures   metric.Int64Counter
	drainLatency   metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("tarckpt")
	m := &otelMetrics{}
	var err error

	if m.tasksSubmitted, err = meter.Int64Counter("tarckpt.tasks.submitted",
		metric.WithDescription("Number of checkpoint tasks accepted by Submit"),
	); err != nil {
		return nil, err
	}
	if m.submitWait, err = meter.Float64Histogram("tarckpt.submit.wait_ms",
		metric.WithDescription("Time Submit spent blocked on a full queue"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.entriesWritten, err = meter.Int64Counter("tarckpt.entries.written",
		metric.WithDescription("Number of archive entries committed"),
	); err != nil {
		return nil, err
	}
	if m.entryBytes, err = meter.Int64Histogram("tarckpt.entries.bytes",
		metric.WithDescription("Archive entry payload size"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.copyFailures, err = meter.Int64Counter("tarckpt.copy.failures",
		metric.WithDescription("Number of source files that could not be archived"),
	); err != nil {
		return nil, err
	}
	if m.drainLatency, err = meter.Float64Histogram("tarckpt.drain.latency_ms",
		metric.WithDescription("Time Close spent waiting for the worker"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider. If initialization fails it returns NoopMetrics.
//
// Configure the provider first:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordSubmit records an accepted task.
func (m *otelMetrics) RecordSubmit(ctx context.Context, files int, wait time.Duration) {
	attrs := metric.WithAttributes(attribute.Int("files", files))
	m.tasksSubmitted.Add(ctx, 1, attrs)
	m.submitWait.Record(ctx, float64(wait.Microseconds())/1000, attrs)
}

// RecordEntry records one processed source file.
func (m *otelMetrics) RecordEntry(ctx context.Context, sizeBytes int64, err error) {
	if err != nil {
		m.copyFailures.Add(ctx, 1)
		return
	}
	m.entriesWritten.Add(ctx, 1)
	m.entryBytes.Record(ctx, sizeBytes)
}

// RecordDrain records a session drain.
func (m *otelMetrics) RecordDrain(ctx context.Context, success bool, duration time.Duration) {
	m.drainLatency.Record(ctx, float64(duration.Milliseconds()),
		metric.WithAttributes(attribute.Bool("success", success)))
}
