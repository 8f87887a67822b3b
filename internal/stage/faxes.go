package stage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/timeshareflow/pbxsync/internal/objectstore"
	"github.com/timeshareflow/pbxsync/internal/pbx"
)

// faxExtensions are the only file types considered when falling back to
// SFTP directory listing for faxes.
var faxExtensions = map[string]bool{".pdf": true, ".tiff": true, ".tif": true}

// RunFaxes lists the tenant's configured fax directory recursively over
// SFTP (no PBX table is queried), keeps only {.pdf, .tiff, .tif} files, and
// parses each filename for metadata.
func RunFaxes(ctx context.Context, d Deps) (Result, error) {
	var result Result
	if d.SFTP == nil {
		return result, nil
	}

	candidateDirs := []string{d.MediaRoots.Faxes}
	records, err := pbx.ListMeetingsOrFaxes(ctx, d.SFTP, candidateDirs)
	if err != nil {
		return result, fmt.Errorf("list fax directory: %w", err)
	}

	for _, rec := range records {
		ext := strings.ToLower(extOf(rec.Filename))
		if !faxExtensions[ext] {
			continue
		}
		if err := syncOneFax(ctx, d, rec); err != nil {
			result.addError(rec.RelativePath, err)
		} else {
			result.Synced++
		}
	}
	return result, nil
}

func syncOneFax(ctx context.Context, d Deps, rec pbx.MeetingOrFax) error {
	size, err := d.SFTP.Stat(rec.AbsolutePath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", rec.AbsolutePath, err)
	}
	if size > d.Options.StreamedMaxBytes {
		return fmt.Errorf("fax %s (%d bytes) exceeds streamed max bytes, skipped", rec.AbsolutePath, size)
	}

	data, mimeType, ext, err := downloadAndMaybeTranscode(ctx, d, rec.AbsolutePath, size, "document")
	if err != nil {
		return err
	}

	when := rec.Date
	if when.IsZero() {
		when = time.Now()
	}
	key := objectstore.BuildKey(d.TenantID, objectstore.CategoryFaxes, when, rec.Filename, ext)
	if err := d.Objects.PutBuffer(ctx, key, data, mimeType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if _, err := d.Archive.UpsertMeetingRecording(ctx, d.TenantID, rec, key); err != nil {
		return fmt.Errorf("upsert fax %s: %w", rec.AbsolutePath, err)
	}
	return nil
}

func extOf(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[i:]
		}
		if filename[i] == '/' {
			break
		}
	}
	return ""
}
