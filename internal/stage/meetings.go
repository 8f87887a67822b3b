package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/timeshareflow/pbxsync/internal/objectstore"
	"github.com/timeshareflow/pbxsync/internal/pbx"
)

// meetingExtensions are the file types considered when listing the
// meetings directory over SFTP; meeting recordings are almost always
// audio, occasionally video containers, never images or documents.
var meetingExtensions = map[string]bool{".mp4": true, ".mp3": true, ".wav": true, ".m4a": true}

// RunMeetings falls back to SFTP recursive listing of the configured
// meetings directory, parsing each filename for organizer extension
// (carried as RemoteNumber, reusing the same YYYYMMDD_HHMMSS_{IN|OUT}_{n}
// naming convention as faxes) and start time.
func RunMeetings(ctx context.Context, d Deps) (Result, error) {
	var result Result
	if d.SFTP == nil {
		return result, nil
	}

	candidateDirs := []string{d.MediaRoots.Meetings}
	records, err := pbx.ListMeetingsOrFaxes(ctx, d.SFTP, candidateDirs)
	if err != nil {
		return result, fmt.Errorf("list meetings directory: %w", err)
	}

	for _, rec := range records {
		if ext := extOf(rec.Filename); !meetingExtensions[ext] {
			continue
		}
		if err := syncOneMeeting(ctx, d, rec); err != nil {
			result.addError(rec.RelativePath, err)
		} else {
			result.Synced++
		}
	}
	return result, nil
}

func syncOneMeeting(ctx context.Context, d Deps, rec pbx.MeetingOrFax) error {
	size, err := d.SFTP.Stat(rec.AbsolutePath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", rec.AbsolutePath, err)
	}
	if size > d.Options.StreamedMaxBytes {
		return fmt.Errorf("meeting recording %s (%d bytes) exceeds streamed max bytes, skipped", rec.AbsolutePath, size)
	}

	data, mimeType, ext, err := downloadAndMaybeTranscode(ctx, d, rec.AbsolutePath, size, "audio")
	if err != nil {
		return err
	}

	when := rec.Date
	if when.IsZero() {
		when = time.Now()
	}
	key := objectstore.BuildKey(d.TenantID, objectstore.CategoryMeetings, when, rec.Filename, ext)
	if err := d.Objects.PutBuffer(ctx, key, data, mimeType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if _, err := d.Archive.UpsertMeetingRecording(ctx, d.TenantID, rec, key); err != nil {
		return fmt.Errorf("upsert meeting recording %s: %w", rec.AbsolutePath, err)
	}
	return nil
}
