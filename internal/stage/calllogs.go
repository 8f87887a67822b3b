package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/timeshareflow/pbxsync/internal/pbx"
)

// RunCallLogs is watermarked by started_at. When a log row claims
// has-recording and a matching recording already exists in the archive
// (same source id), it opportunistically links recording_id; a recording
// synced later never triggers a retroactive backfill.
func RunCallLogs(ctx context.Context, d Deps) (Result, error) {
	var result Result

	since, err := d.Archive.GetWatermark(ctx, d.TenantID, string(NameCallLogs))
	if err != nil {
		return result, fmt.Errorf("read watermark: %w", err)
	}

	logs, err := pbx.ListCallLogs(ctx, d.Pool, d.Schema.CallLogSource, d.Options.BatchSize, since)
	if err != nil {
		return result, fmt.Errorf("list call logs: %w", err)
	}

	// Call logs come back ordered oldest-first, so advanceTo only tracks
	// the latest started_at reached before the first failure: a record
	// that fails must still be retried on the next tick, so the watermark
	// must never pass it even if later records in the batch succeed.
	var advanceTo time.Time
	var sawFailure bool
	for _, c := range logs {
		if err := syncOneCallLog(ctx, d, c); err != nil {
			result.addError(c.SourceID, err)
			sawFailure = true
			continue
		}
		result.Synced++
		if !sawFailure {
			advanceTo = c.StartedAt
		}
	}

	if !advanceTo.IsZero() {
		if err := d.Archive.AdvanceWatermark(ctx, d.TenantID, string(NameCallLogs), advanceTo); err != nil {
			return result, fmt.Errorf("advance watermark: %w", err)
		}
	}
	return result, nil
}

func syncOneCallLog(ctx context.Context, d Deps, c pbx.CallLogRecord) error {
	if _, err := d.Archive.UpsertCallLog(ctx, d.TenantID, c); err != nil {
		return fmt.Errorf("upsert call log %s: %w", c.SourceID, err)
	}
	if c.HasRecording {
		if _, err := d.Archive.LinkCallLogRecording(ctx, d.TenantID, c.SourceID, c.SourceID); err != nil {
			return fmt.Errorf("link call log recording %s: %w", c.SourceID, err)
		}
	}
	return nil
}
