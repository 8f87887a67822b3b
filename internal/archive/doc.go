// Package archive is the idempotent writer into the central archive
// Postgres database, per spec §4.8. Every upsert is keyed on (tenant,
// source-id); duplicate-key violations are swallowed and counted as
// skipped, and foreign-key failures are treated as fatal for that record
// only. Every stage finishes by recording sync_status and a sync_log row.
package archive
