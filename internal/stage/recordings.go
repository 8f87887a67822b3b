package stage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/timeshareflow/pbxsync/internal/objectstore"
	"github.com/timeshareflow/pbxsync/internal/pbx"
	"github.com/timeshareflow/pbxsync/internal/sftp"
	"github.com/timeshareflow/pbxsync/internal/transcode"
)

// RunRecordings is watermarked by start_time. For each row it converts the
// recording URL to a filesystem path, downloads (skipping files over the
// streamed-max threshold), transcodes, uploads, and upserts.
func RunRecordings(ctx context.Context, d Deps) (Result, error) {
	var result Result

	since, err := d.Archive.GetWatermark(ctx, d.TenantID, string(NameRecordings))
	if err != nil {
		return result, fmt.Errorf("read watermark: %w", err)
	}

	recordings, err := pbx.ListRecordings(ctx, d.Pool, d.Options.BatchSize, since)
	if err != nil {
		return result, fmt.Errorf("list recordings: %w", err)
	}
	if len(recordings) == 0 {
		return result, nil
	}

	// Recordings come back ordered oldest-first, so advanceTo only tracks
	// the latest start_time reached before the first failure: a record
	// that fails must still be retried on the next tick, so the watermark
	// must never pass it even if later records in the batch succeed.
	var advanceTo time.Time
	var sawFailure bool
	for _, r := range recordings {
		if err := syncOneRecording(ctx, d, r); err != nil {
			result.addError(r.SourceID, err)
			sawFailure = true
			continue
		}
		result.Synced++
		if !sawFailure && r.StartTime != nil {
			advanceTo = *r.StartTime
		}
	}

	if !advanceTo.IsZero() {
		if err := d.Archive.AdvanceWatermark(ctx, d.TenantID, string(NameRecordings), advanceTo); err != nil {
			return result, fmt.Errorf("advance watermark: %w", err)
		}
	}
	return result, nil
}

func syncOneRecording(ctx context.Context, d Deps, r pbx.Recording) error {
	if d.SFTP == nil {
		return fmt.Errorf("no SFTP session configured for tenant")
	}

	remotePath, err := locateRecordingFile(d.SFTP, d.MediaRoots.Recordings, r.URL, d.Options.RecordingCandidatePaths)
	if err != nil {
		return err
	}

	size, err := d.SFTP.Stat(remotePath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", remotePath, err)
	}
	if size > d.Options.StreamedMaxBytes {
		return fmt.Errorf("recording %s (%d bytes) exceeds streamed max bytes, skipped", remotePath, size)
	}

	data, mimeType, ext, err := downloadAndMaybeTranscode(ctx, d, remotePath, size, "audio")
	if err != nil {
		return err
	}

	key := objectstore.BuildKey(d.TenantID, objectstore.CategoryRecordings, recordingTime(r), path.Base(remotePath), ext)
	if err := d.Objects.PutBuffer(ctx, key, data, mimeType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if _, err := d.Archive.UpsertCallRecording(ctx, d.TenantID, r, key); err != nil {
		return fmt.Errorf("upsert recording %s: %w", r.SourceID, err)
	}
	return nil
}

func recordingTime(r pbx.Recording) time.Time {
	if r.StartTime != nil {
		return *r.StartTime
	}
	return time.Now()
}

// locateRecordingFile converts the recording URL into a filesystem path by
// stripping the scheme and host and joining the remaining path, unchanged,
// to the configured recordings base; the extension-number segment is not
// looked for separately. If that path doesn't exist, the URL's base name is
// tried under each configured candidate path in turn.
func locateRecordingFile(session *sftp.Session, recordingsBase, rawURL string, candidatePaths []string) (string, error) {
	trimmed := stripSchemeAndHost(rawURL)

	primary := path.Join(recordingsBase, trimmed)
	if exists, err := session.Exists(primary); err == nil && exists {
		return primary, nil
	}

	for _, candidate := range candidatePaths {
		full := path.Join(recordingsBase, candidate, path.Base(trimmed))
		if exists, err := session.Exists(full); err == nil && exists {
			return full, nil
		}
	}
	return "", fmt.Errorf("recording path %s not found under %s", trimmed, recordingsBase)
}

func stripSchemeAndHost(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return strings.TrimPrefix(u.Path, "/")
	}
	return strings.TrimPrefix(rawURL, "/")
}

func downloadAndMaybeTranscode(ctx context.Context, d Deps, remotePath string, size int64, fileType string) (data []byte, mimeType, ext string, err error) {
	if size <= d.Options.BufferedMaxBytes {
		data, err = d.SFTP.DownloadBuffer(ctx, remotePath, d.Options.FileTimeout)
	} else {
		var reader io.ReadCloser
		reader, err = d.SFTP.DownloadStream(remotePath)
		if err == nil {
			defer reader.Close()
			data, err = io.ReadAll(reader)
		}
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("download %s: %w", remotePath, err)
	}

	head := data
	if len(head) > 12 {
		head = head[:12]
	}
	detectedMIME, detectedExt := objectstore.DetectMIME(path.Base(remotePath), head)

	transcoded, terr := transcode.Transcode(fileType, detectedExt, detectedMIME, data)
	if terr != nil {
		return nil, "", "", fmt.Errorf("transcode %s: %w", remotePath, terr)
	}
	return transcoded.Bytes, transcoded.MIME, transcoded.Ext, nil
}
