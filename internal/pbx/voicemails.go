package pbx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// voicemailTimestampLayout matches the PBX's YYYYMMDDHH24MISS[.FF] text
// timestamp format.
const voicemailTimestampLayout = "20060102150405"

// ListVoicemails reads non-tombstoned rows (removed IS NULL) from
// s_voicemail and parses the text timestamp field, returning rows oldest
// first. call_timestamp is stored as zero-padded YYYYMMDDHH24MISS[.FF]
// text rather than a native timestamp column, but that format sorts
// lexicographically the same as chronologically, so since is formatted the
// same way and compared as text directly in the query rather than filtered
// client-side after the LIMIT has already fixed the batch.
func ListVoicemails(ctx context.Context, pool *pgxpool.Pool, batchSize int, since *time.Time) ([]Voicemail, error) {
	var sinceText *string
	if since != nil {
		s := since.Format(voicemailTimestampLayout)
		sinceText = &s
	}

	rows, err := pool.Query(ctx, `
		SELECT id, extension, caller, call_timestamp, duration_seconds, file_name
		FROM s_voicemail
		WHERE removed IS NULL AND ($2::text IS NULL OR call_timestamp > $2)
		ORDER BY call_timestamp ASC
		LIMIT $1`, batchSize, sinceText)
	if err != nil {
		return nil, fmt.Errorf("query s_voicemail: %w", err)
	}
	defer rows.Close()

	var out []Voicemail
	for rows.Next() {
		var v Voicemail
		var rawTimestamp string
		var durationSeconds int
		if err := rows.Scan(&v.SourceID, &v.Extension, &v.Caller, &rawTimestamp, &durationSeconds, &v.FileName); err != nil {
			return nil, fmt.Errorf("scan voicemail row: %w", err)
		}
		ts, err := parseVoicemailTimestamp(rawTimestamp)
		if err != nil {
			return nil, fmt.Errorf("parse voicemail timestamp %q for %s: %w", rawTimestamp, v.SourceID, err)
		}
		v.Timestamp = ts
		v.Duration = time.Duration(durationSeconds) * time.Second
		out = append(out, v)
	}
	return out, rows.Err()
}

func parseVoicemailTimestamp(raw string) (time.Time, error) {
	whole := raw
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		whole = raw[:idx]
	}
	return time.Parse(voicemailTimestampLayout, whole)
}
