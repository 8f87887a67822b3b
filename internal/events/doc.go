// Package events publishes sync.status.changed and sync.log.appended
// notifications for the dashboard to subscribe to. Every event is written to
// a BadgerDB-backed outbox before the NATS publish attempt, so a crash or a
// broker outage between the archive commit and the publish never loses an
// event — the retry loop replays whatever is still pending on the next
// process start.
package events
