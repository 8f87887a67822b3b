package events

import (
	"fmt"
	"time"
)

// Config configures the durable outbox and its NATS publisher. It mirrors
// config.NATSConfig's fields and adds the outbox tuning knobs the teacher's
// wal.Config exposes, trimmed to what a single sync-event outbox needs.
type Config struct {
	// Enabled turns the outbox on. When false, Publish* calls are no-ops
	// and no BadgerDB files are created.
	Enabled bool

	// URL is the NATS server URL to publish to. Ignored when EmbeddedServer
	// is true.
	URL string

	// EmbeddedServer starts an in-process NATS server instead of dialing
	// URL, for single-binary deployments with no separate broker to run.
	EmbeddedServer bool

	// OutboxPath is the directory BadgerDB stores the outbox in. Should be
	// on a durable filesystem, not tmpfs.
	OutboxPath string

	// RetryInterval is the period between retry-loop sweeps of pending
	// outbox entries.
	RetryInterval time.Duration

	// MaxRetries bounds how many publish attempts an entry gets before it
	// is logged as permanently failed and left in the outbox for manual
	// inspection.
	MaxRetries int

	// RetryBackoff is validated (at least 1s) but the retry loop does not
	// consult it: every pending entry below MaxRetries is re-published on
	// each RetryInterval sweep, with no per-entry delay.
	RetryBackoff time.Duration
}

// DefaultConfig returns durability-first defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		OutboxPath:    "/data/events",
		RetryInterval: 30 * time.Second,
		MaxRetries:    100,
		RetryBackoff:  5 * time.Second,
	}
}

// Validate checks the configuration when the outbox is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.OutboxPath == "" {
		return fmt.Errorf("events: outbox_path is required when enabled")
	}
	if !c.EmbeddedServer && c.URL == "" {
		return fmt.Errorf("events: url is required unless embedded_server is set")
	}
	if c.RetryInterval < time.Second {
		return fmt.Errorf("events: retry_interval must be at least 1s")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("events: max_retries must be at least 1")
	}
	if c.RetryBackoff < time.Second {
		return fmt.Errorf("events: retry_backoff must be at least 1s")
	}
	return nil
}
