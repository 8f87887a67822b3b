package stage

import (
	"context"
	"fmt"

	"github.com/timeshareflow/pbxsync/internal/archive"
	"github.com/timeshareflow/pbxsync/internal/pbx"
)

// RunExtensions queries PBX extensions and upserts them into the archive.
// There is no media and no watermark; every pass re-reads the full set.
func RunExtensions(ctx context.Context, d Deps) (Result, error) {
	var result Result

	extensions, err := pbx.ListExtensions(ctx, d.Pool, d.Schema, d.Options.BatchSize)
	if err != nil {
		return result, fmt.Errorf("list extensions: %w", err)
	}

	for _, e := range extensions {
		outcome, err := d.Archive.UpsertExtension(ctx, d.TenantID, e)
		switch {
		case err != nil:
			result.addError(e.SourceID, err)
		case outcome == archive.OutcomeSkipped:
			result.Skipped++
		default:
			result.Synced++
		}
	}
	return result, nil
}
