// Package metrics exposes the Prometheus counters and gauges the scheduler
// and stages update on every tick: per-stage sync/skip/error counts, stage
// duration, and circuit breaker state.
package metrics
