package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where a config file is searched, in
// priority order. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pbxsync/config.yaml",
	"/etc/pbxsync/config.yml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "PBXSYNC_CONFIG_PATH"

func defaultMaxConcurrency() int {
	n := runtime.NumCPU()
	if n > 8 {
		return 8
	}
	if n < 1 {
		return 1
	}
	return n
}

func defaultConfig() *Config {
	return &Config{
		Archive: ArchiveConfig{
			MaxConnections: 10,
		},
		ObjectStore: ObjectStoreConfig{
			Region:       "us-east-1",
			UsePathStyle: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		NATS: NATSConfig{
			Enabled:        true,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/pbxsync/nats",
			OutboxPath:     "/data/pbxsync/outbox",
		},
		Scheduler: SchedulerConfig{
			MaxConcurrency:      defaultMaxConcurrency(),
			DefaultTickInterval: 5 * time.Minute,
			MinBackoff:          2 * time.Second,
			MaxBackoff:          10 * time.Minute,
		},
		Transfer: TransferConfig{
			BufferedMaxBytes:     25 << 20,
			StreamedMaxBytes:     500 << 20,
			MultipartPartBytes:   5 << 20,
			MultipartConcurrency: 4,
		},
	}
}

// LoadWithKoanf loads configuration through the three-layer pipeline:
// struct defaults, optional YAML file, environment variables.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("PBXSYNC_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps PBXSYNC_-prefixed environment variable names to
// koanf dotted paths. No wildcard ingestion: unrecognized variables are
// dropped rather than guessed at.
//
//	PBXSYNC_ARCHIVE_DSN              -> archive.dsn
//	PBXSYNC_OBJECTSTORE_ENDPOINT     -> objectstore.endpoint
//	PBXSYNC_SCHEDULER_MAX_CONCURRENCY -> scheduler.max_concurrency
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(strings.ToLower(key), "pbxsync_")

	mappings := map[string]string{
		"archive_dsn":             "archive.dsn",
		"archive_max_connections": "archive.max_connections",

		"objectstore_endpoint":        "objectstore.endpoint",
		"objectstore_region":          "objectstore.region",
		"objectstore_bucket":          "objectstore.bucket",
		"objectstore_access_key":      "objectstore.access_key",
		"objectstore_secret_key":      "objectstore.secret_key",
		"objectstore_use_path_style": "objectstore.use_path_style",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		"nats_enabled":         "nats.enabled",
		"nats_url":             "nats.url",
		"nats_embedded_server": "nats.embedded_server",
		"nats_store_dir":       "nats.store_dir",
		"nats_outbox_path":     "nats.outbox_path",

		"max_concurrency":              "scheduler.max_concurrency",
		"scheduler_max_concurrency":    "scheduler.max_concurrency",
		"scheduler_default_tick_interval": "scheduler.default_tick_interval",
		"scheduler_min_backoff":        "scheduler.min_backoff",
		"scheduler_max_backoff":        "scheduler.max_backoff",

		"buffered_max_bytes":       "transfer.buffered_max_bytes",
		"streamed_max_bytes":       "transfer.streamed_max_bytes",
		"multipart_part_bytes":     "transfer.multipart_part_bytes",
		"multipart_concurrency":    "transfer.multipart_concurrency",
	}

	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	return ""
}
