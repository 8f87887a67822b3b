// Package objectstore writes synced media to an S3-compatible bucket under
// a deterministic key layout, per spec §4.6. It detects content type by
// byte-sniffed magic bytes first, falling back to an extension table, then
// content detection, and finally application/octet-stream, and supports buffered, single-shot, and
// multipart streamed uploads.
package objectstore
