package config

import (
	"fmt"
	"time"
)

// Config holds process-wide settings only. Per-tenant settings live in
// internal/tenant.Registry, not here.
type Config struct {
	Archive     ArchiveConfig     `koanf:"archive"`
	ObjectStore ObjectStoreConfig `koanf:"objectstore"`
	Logging     LoggingConfig     `koanf:"logging"`
	NATS        NATSConfig        `koanf:"nats"`
	Scheduler   SchedulerConfig   `koanf:"scheduler"`
	Transfer    TransferConfig    `koanf:"transfer"`
}

// ArchiveConfig describes the central archive Postgres connection.
type ArchiveConfig struct {
	DSN            string `koanf:"dsn"`
	MaxConnections int    `koanf:"max_connections"`
}

// ObjectStoreConfig describes the S3-compatible object store.
type ObjectStoreConfig struct {
	Endpoint  string `koanf:"endpoint"`
	Region    string `koanf:"region"`
	Bucket    string `koanf:"bucket"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UsePathStyle bool `koanf:"use_path_style"`
}

// LoggingConfig mirrors internal/logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// NATSConfig describes the sync-event publisher.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	OutboxPath     string `koanf:"outbox_path"`
}

// SchedulerConfig holds scheduler settings. The scheduler reads only
// MaxConcurrency; DefaultTickInterval, MinBackoff and MaxBackoff are loaded
// but not used. Tick intervals come from each tenant's sync interval (with a
// built-in default), and tick backoff runs from a fixed 10s up to 10m.
type SchedulerConfig struct {
	MaxConcurrency      int           `koanf:"max_concurrency"`
	DefaultTickInterval time.Duration `koanf:"default_tick_interval"`
	MinBackoff          time.Duration `koanf:"min_backoff"`
	MaxBackoff          time.Duration `koanf:"max_backoff"`
}

// TransferConfig tunes SFTP/object-store size-adaptive transfer policy.
type TransferConfig struct {
	BufferedMaxBytes int64 `koanf:"buffered_max_bytes"`
	StreamedMaxBytes int64 `koanf:"streamed_max_bytes"`
	MultipartPartBytes int64 `koanf:"multipart_part_bytes"`
	MultipartConcurrency int `koanf:"multipart_concurrency"`
}

// Validate checks required process-wide settings. Called after Unmarshal.
func (c *Config) Validate() error {
	if c.Archive.DSN == "" {
		return fmt.Errorf("archive.dsn is required")
	}
	if c.ObjectStore.Bucket == "" {
		return fmt.Errorf("objectstore.bucket is required")
	}
	if c.Scheduler.MaxConcurrency <= 0 {
		return fmt.Errorf("scheduler.max_concurrency must be positive")
	}
	if c.Transfer.BufferedMaxBytes <= 0 || c.Transfer.StreamedMaxBytes <= c.Transfer.BufferedMaxBytes {
		return fmt.Errorf("transfer thresholds must be positive and streamed_max_bytes > buffered_max_bytes")
	}
	return nil
}
