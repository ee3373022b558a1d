package tarckpt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/config"
	ckerrors "github.com/fcossio/tar-checkpoints/pkg/tarckpt/errors"
	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/observability"
)

func applyOptions(opts ...Option) sessionConfig {
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func TestDefaultSessionConfig(t *testing.T) {
	cfg := defaultSessionConfig()
	assert.Equal(t, ModeCreateExclusive, cfg.mode)
	assert.Equal(t, DefaultQueueSize, cfg.queueSize)
	assert.Equal(t, 1, cfg.retry.MaxAttempts)
	assert.IsType(t, observability.NoopMetrics{}, cfg.metrics)
	assert.IsType(t, observability.NoopSpanManager{}, cfg.spans)
	assert.Nil(t, cfg.logger)
	assert.Nil(t, cfg.history)
}

func TestWithQueueSize_IgnoresNonPositive(t *testing.T) {
	assert.Equal(t, 4, applyOptions(WithQueueSize(4)).queueSize)
	assert.Equal(t, DefaultQueueSize, applyOptions(WithQueueSize(0)).queueSize)
	assert.Equal(t, DefaultQueueSize, applyOptions(WithQueueSize(-3)).queueSize)
}

func TestWithIndexWidth_IgnoresNegative(t *testing.T) {
	assert.Equal(t, 5, applyOptions(WithIndexWidth(5)).indexWidth)
	assert.Equal(t, 0, applyOptions(WithIndexWidth(-1)).indexWidth)
}

func TestModeStringAndParse(t *testing.T) {
	for _, m := range []Mode{ModeCreateExclusive, ModeTruncate, ModeAppend} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	m, err := ParseMode(" Append ")
	require.NoError(t, err)
	assert.Equal(t, ModeAppend, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeCreateExclusive, m)

	_, err = ParseMode("overwrite")
	assert.Error(t, err)
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
mode: append
queue_size: 4
index_width: 5
sync: true
remove_sources: true
retry:
  max_attempts: 5
  initial_backoff: 10ms
`))
	require.NoError(t, err)

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	got := applyOptions(opts...)

	assert.Equal(t, ModeAppend, got.mode)
	assert.Equal(t, 4, got.queueSize)
	assert.Equal(t, 5, got.indexWidth)
	assert.True(t, got.sync)
	assert.True(t, got.removeSources)
	assert.Equal(t, 5, got.retry.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, got.retry.InitialBackoff)
	assert.Equal(t, ckerrors.DefaultRetry.MaxBackoff, got.retry.MaxBackoff)
}

func TestOptionsFromConfig_JSONNumbers(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"queue_size": 8, "retry": {"max_attempts": 2}}`))
	require.NoError(t, err)

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	got := applyOptions(opts...)
	assert.Equal(t, 8, got.queueSize)
	assert.Equal(t, 2, got.retry.MaxAttempts)
	assert.Equal(t, ckerrors.DefaultRetry.InitialBackoff, got.retry.InitialBackoff)
}

func TestOptionsFromConfig_Empty(t *testing.T) {
	opts, err := OptionsFromConfig(config.New(nil))
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestOptionsFromConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{"bad mode", map[string]any{"mode": "overwrite"}},
		{"zero queue", map[string]any{"queue_size": 0}},
		{"queue not a number", map[string]any{"queue_size": "big"}},
		{"negative width", map[string]any{"index_width": -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OptionsFromConfig(config.New(tt.data))
			assert.Error(t, err)
		})
	}
}
