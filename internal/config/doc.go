// Package config loads process-wide configuration for the sync daemon using
// a layered koanf pipeline: struct defaults, an optional YAML file, then
// environment variables with an explicit name-mapping function.
//
// Per-tenant settings (PBX host, SSH credentials, database password, media
// base paths, backup toggles, sync interval, feature flags) are NOT part of
// this package. They are rows owned by internal/tenant.Registry, loaded from
// the central archive database, and resolved fresh at the start of every
// tick.
//
// # Quick Start
//
//	cfg, err := config.LoadWithKoanf()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("failed to load configuration")
//	}
//
// # Environment Variables
//
//	PBXSYNC_ARCHIVE_DSN        - PostgreSQL DSN for the central archive
//	PBXSYNC_LOG_LEVEL          - trace, debug, info, warn, error (default: info)
//	PBXSYNC_LOG_FORMAT         - json, console (default: json)
//	PBXSYNC_MAX_CONCURRENCY    - max tenants ticking in parallel (default: min(NumCPU, 8))
//	PBXSYNC_OBJECTSTORE_ENDPOINT, _REGION, _BUCKET, _ACCESS_KEY, _SECRET_KEY
//	PBXSYNC_NATS_URL           - NATS URL for sync-event publishing
//	PBXSYNC_BUFFERED_MAX_BYTES - SFTP buffered-download ceiling (default: 25 MiB)
//	PBXSYNC_STREAMED_MAX_BYTES - SFTP streamed-download ceiling (default: 500 MiB)
package config
