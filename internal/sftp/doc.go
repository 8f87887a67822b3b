// Package sftp opens one SFTP session per sync pass per tenant over an SSH
// connection to the PBX host, per spec §4.3. It exposes recursive listing
// and size-adaptive buffered/streamed downloads with per-file timeouts.
// Close errors are returned to the caller and not logged here, and a session
// that is never closed is not detected.
package sftp
