package pbx

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// optionalRecordingColumns are probed individually since several PBX
// installations omit them from the recordings table.
var optionalRecordingColumns = []string{"start_time", "end_time", "transcription"}

// ListRecordings probes the recordings table's column set and returns
// normalized recording rows, ordered oldest-first so the caller's watermark
// always advances monotonically. Duration is computed as end_time -
// start_time when both columns are present and non-null. If since is
// non-nil, only rows with start_time after it are returned; when the
// installation lacks a start_time column entirely there is nothing to
// watermark against, so since is ignored and rows come back in id order.
func ListRecordings(ctx context.Context, pool *pgxpool.Pool, batchSize int, since *time.Time) ([]Recording, error) {
	present, err := presentColumns(ctx, pool, "recordings", optionalRecordingColumns)
	if err != nil {
		return nil, fmt.Errorf("probe recordings columns: %w", err)
	}

	var query string
	var args []any
	if present["start_time"] {
		query = fmt.Sprintf(`
			SELECT id, recording_url, start_time, %s, %s FROM recordings
			WHERE ($1::timestamptz IS NULL OR start_time > $1)
			ORDER BY start_time ASC
			LIMIT $2`,
			colOrNull(present, "end_time"), colOrNull(present, "transcription"))
		args = []any{since, batchSize}
	} else {
		query = fmt.Sprintf(`SELECT id, recording_url, NULL, %s, %s FROM recordings ORDER BY id LIMIT $1`,
			colOrNull(present, "end_time"), colOrNull(present, "transcription"))
		args = []any{batchSize}
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		var r Recording
		if err := rows.Scan(&r.SourceID, &r.URL, &r.StartTime, &r.EndTime, &r.Transcript); err != nil {
			return nil, fmt.Errorf("scan recording row: %w", err)
		}
		if r.StartTime != nil && r.EndTime != nil {
			r.Duration = r.EndTime.Sub(*r.StartTime)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func colOrNull(present map[string]bool, col string) string {
	if present[col] {
		return col
	}
	return "NULL"
}

func presentColumns(ctx context.Context, pool *pgxpool.Pool, table string, candidates []string) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1 AND column_name = ANY($2)`,
		table, candidates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool, len(candidates))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}
