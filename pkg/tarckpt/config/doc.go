/*
Package config provides type-safe extraction of archiver settings from
YAML or JSON documents.

	cfg, err := config.FromFile("tarckpt.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	queue := cfg.Int("queue_size", 16)
	backoff := cfg.Sub("retry").Duration("initial_backoff", 50*time.Millisecond)

Duration accepts Go duration strings ("30s", "1h30m") as well as plain
numbers, which are read as seconds. Int accepts whole floats because JSON
decodes every number as float64.

Config is safe for concurrent reads. The underlying map is never modified.
*/
package config
