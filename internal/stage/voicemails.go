package stage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/timeshareflow/pbxsync/internal/objectstore"
	"github.com/timeshareflow/pbxsync/internal/pbx"
	"github.com/timeshareflow/pbxsync/internal/sftp"
)

// RunVoicemails is watermarked by parsed timestamp. File location is
// searched in a fixed fallback order under the configured voicemails base.
func RunVoicemails(ctx context.Context, d Deps) (Result, error) {
	var result Result

	since, err := d.Archive.GetWatermark(ctx, d.TenantID, string(NameVoicemails))
	if err != nil {
		return result, fmt.Errorf("read watermark: %w", err)
	}

	voicemails, err := pbx.ListVoicemails(ctx, d.Pool, d.Options.BatchSize, since)
	if err != nil {
		return result, fmt.Errorf("list voicemails: %w", err)
	}

	// Voicemails come back ordered oldest-first, so advanceTo only tracks
	// the latest timestamp reached before the first failure: a record
	// that fails must still be retried on the next tick, so the watermark
	// must never pass it even if later records in the batch succeed.
	var advanceTo time.Time
	var sawFailure bool
	for _, v := range voicemails {
		if err := syncOneVoicemail(ctx, d, v); err != nil {
			result.addError(v.SourceID, err)
			sawFailure = true
			continue
		}
		result.Synced++
		if !sawFailure {
			advanceTo = v.Timestamp
		}
	}

	if !advanceTo.IsZero() {
		if err := d.Archive.AdvanceWatermark(ctx, d.TenantID, string(NameVoicemails), advanceTo); err != nil {
			return result, fmt.Errorf("advance watermark: %w", err)
		}
	}
	return result, nil
}

func syncOneVoicemail(ctx context.Context, d Deps, v pbx.Voicemail) error {
	if d.SFTP == nil {
		return fmt.Errorf("no SFTP session configured for tenant")
	}

	remotePath, err := locateVoicemailFile(d.SFTP, d.MediaRoots.Voicemails, v.Extension, v.FileName, d.Options.VoicemailPathOrder)
	if err != nil {
		return err
	}

	size, err := d.SFTP.Stat(remotePath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", remotePath, err)
	}
	if size > d.Options.StreamedMaxBytes {
		return fmt.Errorf("voicemail %s (%d bytes) exceeds streamed max bytes, skipped", remotePath, size)
	}

	data, mimeType, ext, err := downloadAndMaybeTranscode(ctx, d, remotePath, size, "audio")
	if err != nil {
		return err
	}

	key := objectstore.BuildKey(d.TenantID, objectstore.CategoryVoicemails, v.Timestamp, path.Base(remotePath), ext)
	if err := d.Objects.PutBuffer(ctx, key, data, mimeType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if _, err := d.Archive.UpsertVoicemail(ctx, d.TenantID, v, key); err != nil {
		return fmt.Errorf("upsert voicemail %s: %w", v.SourceID, err)
	}
	return nil
}

// defaultVoicemailPathOrder is used when a tenant leaves
// Options.VoicemailPathOrder unset, per spec §4.9.
var defaultVoicemailPathOrder = []string{
	"Extensions/{ext}/{file}.wav",
	"Extensions/{ext}/{file}",
	"Data/{ext}/{file}.wav",
	"{ext}/{file}.wav",
	"{file}.wav",
}

func locateVoicemailFile(session *sftp.Session, base, extension, fileName string, order []string) (string, error) {
	if len(order) == 0 {
		order = defaultVoicemailPathOrder
	}
	for _, template := range order {
		candidate := path.Join(base, expandVoicemailTemplate(template, extension, fileName))
		exists, err := session.Exists(candidate)
		if err != nil {
			return "", fmt.Errorf("probe %s: %w", candidate, err)
		}
		if exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("voicemail %s not found under %s (tried %d candidate paths)", fileName, base, len(order))
}

func expandVoicemailTemplate(template, extension, fileName string) string {
	out := make([]byte, 0, len(template))
	for i := 0; i < len(template); i++ {
		switch {
		case i+5 <= len(template) && template[i:i+5] == "{ext}":
			out = append(out, extension...)
			i += 4
		case i+6 <= len(template) && template[i:i+6] == "{file}":
			out = append(out, fileName...)
			i += 5
		default:
			out = append(out, template[i])
		}
	}
	return string(out)
}
