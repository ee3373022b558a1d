package tarckpt

import (
	"fmt"

	"github.com/fcossio/tar-checkpoints/pkg/tarckpt/config"
	ckerrors "github.com/fcossio/tar-checkpoints/pkg/tarckpt/errors"
)

// OptionsFromConfig maps a loaded config onto session options.
//
// Recognized keys:
//
//	mode: create | truncate | append
//	queue_size: 16
//	index_width: 5
//	sync: true
//	remove_sources: false
//	retry:
//	  max_attempts: 3
//	  initial_backoff: 50ms
//
// Missing keys leave the defaults in place.
func OptionsFromConfig(cfg config.Config) ([]Option, error) {
	var opts []Option

	if cfg.Has("mode") {
		mode, err := ParseMode(cfg.String("mode", ""))
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithMode(mode))
	}
	if cfg.Has("queue_size") {
		n := cfg.Int("queue_size", 0)
		if n <= 0 {
			return nil, fmt.Errorf("queue_size must be positive, got %v", n)
		}
		opts = append(opts, WithQueueSize(n))
	}
	if cfg.Has("index_width") {
		n := cfg.Int("index_width", -1)
		if n < 0 {
			return nil, fmt.Errorf("index_width must not be negative, got %v", n)
		}
		opts = append(opts, WithIndexWidth(n))
	}
	if cfg.Has("sync") {
		opts = append(opts, WithSync(cfg.Bool("sync", false)))
	}
	if cfg.Has("remove_sources") {
		opts = append(opts, WithRemoveSources(cfg.Bool("remove_sources", false)))
	}
	if cfg.Has("retry") {
		r := cfg.Sub("retry")
		retry := ckerrors.DefaultRetry
		retry.MaxAttempts = r.Int("max_attempts", retry.MaxAttempts)
		retry.InitialBackoff = r.Duration("initial_backoff", retry.InitialBackoff)
		opts = append(opts, WithRetry(retry))
	}

	return opts, nil
}
