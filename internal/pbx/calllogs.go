package pbx

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// callLogMappers projects each known call-log schema variant into the
// normalized CallLogRecord shape, keyed by source table name; the prober
// decides which variant is used.
var callLogMappers = map[string]func(ctx context.Context, pool *pgxpool.Pool, batchSize int, since *time.Time) ([]CallLogRecord, error){
	"myphone_callhistory_v14": listMyPhoneCallHistoryV14,
	"cl":                      listCL,
	"callhistory3":            listCallHistory3,
	"cdr":                     listGenericCDR("cdr"),
	"callhistory":             listGenericCDR("callhistory"),
	"call_history":            listGenericCDR("call_history"),
}

// ListCallLogs queries the highest-priority available call-log source, as
// resolved by the schema prober, and returns normalized records ordered
// oldest-first. If since is non-nil, only rows started after it are
// returned.
func ListCallLogs(ctx context.Context, pool *pgxpool.Pool, source string, batchSize int, since *time.Time) ([]CallLogRecord, error) {
	mapper, ok := callLogMappers[source]
	if !ok {
		return nil, nil
	}
	return mapper(ctx, pool, batchSize, since)
}

func listMyPhoneCallHistoryV14(ctx context.Context, pool *pgxpool.Pool, batchSize int, since *time.Time) ([]CallLogRecord, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, caller_number, caller_name, callee_number, callee_name, extension,
		       direction_flag, status_flag, ring_seconds, talk_seconds, total_seconds,
		       started_at, answered_at, ended_at, has_recording
		FROM myphone_callhistory_v14
		WHERE ($2::timestamptz IS NULL OR started_at > $2)
		ORDER BY started_at ASC
		LIMIT $1`, batchSize, since)
	if err != nil {
		return nil, fmt.Errorf("query myphone_callhistory_v14: %w", err)
	}
	defer rows.Close()
	return scanCallLogRows(rows, mapMyPhoneDirection, mapMyPhoneStatus)
}

func listCL(ctx context.Context, pool *pgxpool.Pool, batchSize int, since *time.Time) ([]CallLogRecord, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, src_number, src_name, dst_number, dst_name, ext,
		       io_flag, result_flag, ring_secs, talk_secs, total_secs,
		       start_ts, answer_ts, end_ts, has_rec
		FROM cl
		WHERE ($2::timestamptz IS NULL OR start_ts > $2)
		ORDER BY start_ts ASC
		LIMIT $1`, batchSize, since)
	if err != nil {
		return nil, fmt.Errorf("query cl: %w", err)
	}
	defer rows.Close()
	return scanCallLogRows(rows, mapGenericDirection, mapGenericStatus)
}

func listCallHistory3(ctx context.Context, pool *pgxpool.Pool, batchSize int, since *time.Time) ([]CallLogRecord, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, caller, caller_name, callee, callee_name, extension,
		       direction, status, ring_seconds, talk_seconds, total_seconds,
		       started_at, answered_at, ended_at, has_recording
		FROM callhistory3
		WHERE ($2::timestamptz IS NULL OR started_at > $2)
		ORDER BY started_at ASC
		LIMIT $1`, batchSize, since)
	if err != nil {
		return nil, fmt.Errorf("query callhistory3: %w", err)
	}
	defer rows.Close()
	return scanCallLogRows(rows, mapGenericDirection, mapGenericStatus)
}

func listGenericCDR(table string) func(ctx context.Context, pool *pgxpool.Pool, batchSize int, since *time.Time) ([]CallLogRecord, error) {
	return func(ctx context.Context, pool *pgxpool.Pool, batchSize int, since *time.Time) ([]CallLogRecord, error) {
		rows, err := pool.Query(ctx, fmt.Sprintf(`
			SELECT id, caller_number, caller_name, callee_number, callee_name, extension,
			       direction, status, ring_seconds, talk_seconds, total_seconds,
			       started_at, answered_at, ended_at, has_recording
			FROM %s
			WHERE ($2::timestamptz IS NULL OR started_at > $2)
			ORDER BY started_at ASC
			LIMIT $1`, table), batchSize, since)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", table, err)
		}
		defer rows.Close()
		return scanCallLogRows(rows, mapGenericDirection, mapGenericStatus)
	}
}

func scanCallLogRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}, mapDirection func(string) Direction, mapStatus func(string) CallStatus) ([]CallLogRecord, error) {
	var out []CallLogRecord
	for rows.Next() {
		var rec CallLogRecord
		var rawDirection, rawStatus string
		if err := rows.Scan(&rec.SourceID, &rec.CallerNumber, &rec.CallerName, &rec.CalleeNumber, &rec.CalleeName,
			&rec.Extension, &rawDirection, &rawStatus, &rec.RingSeconds, &rec.TalkSeconds, &rec.TotalSeconds,
			&rec.StartedAt, &rec.AnsweredAt, &rec.EndedAt, &rec.HasRecording); err != nil {
			return nil, fmt.Errorf("scan call log row: %w", err)
		}
		rec.Direction = mapDirection(rawDirection)
		rec.Status = mapStatus(rawStatus)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func mapMyPhoneDirection(flag string) Direction {
	switch flag {
	case "1":
		return DirectionInbound
	case "2":
		return DirectionOutbound
	default:
		return DirectionInternal
	}
}

func mapMyPhoneStatus(flag string) CallStatus {
	switch flag {
	case "ok", "1":
		return CallStatusAnswered
	case "noanswer", "0":
		return CallStatusMissed
	default:
		return CallStatusFailed
	}
}

func mapGenericDirection(raw string) Direction {
	switch raw {
	case "in", "inbound":
		return DirectionInbound
	case "out", "outbound":
		return DirectionOutbound
	default:
		return DirectionInternal
	}
}

func mapGenericStatus(raw string) CallStatus {
	switch raw {
	case "answered", "completed":
		return CallStatusAnswered
	case "missed", "noanswer":
		return CallStatusMissed
	default:
		return CallStatusFailed
	}
}
