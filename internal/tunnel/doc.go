// Package tunnel establishes an SSH tunnel to a tenant's PBX host and
// exposes a bounded Postgres connection pool over the forwarded port, per
// spec §4.2. Pools are cached per tenant across scheduler ticks and closed
// on tenant deactivation or scheduler shutdown.
package tunnel
