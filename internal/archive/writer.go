package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timeshareflow/pbxsync/internal/events"
	"github.com/timeshareflow/pbxsync/internal/pbx"
	"github.com/timeshareflow/pbxsync/internal/pbxsyncerr"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Outcome is the per-record result of an upsert attempt.
type Outcome int

const (
	OutcomeUpserted Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

// execer is satisfied by *pgxpool.Pool; accepting the interface lets tests
// substitute a fake to exercise the pg-error-code classification without a
// live database.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Writer performs idempotent, per-record upserts into the archive database.
// Each upsert runs as its own statement so a failing record never rolls
// back the rest of a batch.
type Writer struct {
	pool   execer
	events *events.Outbox
}

// NewWriter wraps the archive database pool.
func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// SetEventPublisher wires a durable outbox so status and log writes also
// notify dashboard subscribers. Optional: a Writer with no outbox set just
// skips the publish step.
func (w *Writer) SetEventPublisher(o *events.Outbox) {
	w.events = o
}

func (w *Writer) exec(ctx context.Context, tenant, stage, op, sql string, args ...any) (Outcome, error) {
	_, err := w.pool.Exec(ctx, sql, args...)
	if err == nil {
		return OutcomeUpserted, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return OutcomeSkipped, nil
		case pgForeignKeyViolation:
			return OutcomeFailed, pbxsyncerr.Record(tenant, stage, op, err)
		}
	}
	return OutcomeFailed, pbxsyncerr.Transient(tenant, stage, op, err)
}

// UpsertExtension writes one extension row, keyed on (tenant, source_id).
func (w *Writer) UpsertExtension(ctx context.Context, tenant string, e pbx.Extension) (Outcome, error) {
	return w.exec(ctx, tenant, "extensions", "upsert_extension", `
		INSERT INTO extensions (tenant_id, source_id, extension_number, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, source_id) DO UPDATE SET
			extension_number = EXCLUDED.extension_number,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name`,
		tenant, e.SourceID, e.Number, e.FirstName, e.LastName)
}

// UpsertConversation writes one conversation row.
func (w *Writer) UpsertConversation(ctx context.Context, tenant string, c pbx.Conversation) (Outcome, error) {
	return w.exec(ctx, tenant, "conversations", "upsert_conversation", `
		INSERT INTO conversations (tenant_id, source_id, chat_name, is_external, is_group_chat)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, source_id) DO UPDATE SET
			chat_name = EXCLUDED.chat_name,
			is_external = EXCLUDED.is_external,
			is_group_chat = EXCLUDED.is_group_chat`,
		tenant, c.SourceID, c.ChatName, c.External, c.IsGroupChat)
}

// UpsertMessage writes one message row. A foreign-key failure here usually
// means its conversation has not been upserted yet and is treated as a
// per-record failure, never fatal to the batch.
func (w *Writer) UpsertMessage(ctx context.Context, tenant string, m pbx.Message) (Outcome, error) {
	return w.exec(ctx, tenant, "messages", "upsert_message", `
		INSERT INTO messages (tenant_id, source_id, conversation_id, is_external,
		       queue_number, sender_id, sender_name, body, time_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, source_id) DO NOTHING`,
		tenant, m.SourceID, m.ConversationID, m.External, m.QueueNumber, m.SenderID, m.SenderName, m.Body, m.TimeSent)
}

// UpsertMediaFile records a synced attachment's archive location.
func (w *Writer) UpsertMediaFile(ctx context.Context, tenant, messageID, objectKey, mimeType string, sizeBytes int64) (Outcome, error) {
	return w.exec(ctx, tenant, "media_files", "upsert_media_file", `
		INSERT INTO media_files (tenant_id, message_id, object_key, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, message_id, object_key) DO UPDATE SET
			mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes`,
		tenant, messageID, objectKey, mimeType, sizeBytes)
}

// UpsertCallRecording records a synced call recording's archive location.
func (w *Writer) UpsertCallRecording(ctx context.Context, tenant string, r pbx.Recording, objectKey string) (Outcome, error) {
	return w.exec(ctx, tenant, "recordings", "upsert_call_recording", `
		INSERT INTO call_recordings (tenant_id, source_id, object_key, duration_seconds, transcript)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, source_id) DO UPDATE SET
			object_key = EXCLUDED.object_key,
			duration_seconds = EXCLUDED.duration_seconds,
			transcript = EXCLUDED.transcript`,
		tenant, r.SourceID, objectKey, int(r.Duration.Seconds()), r.Transcript)
}

// UpsertVoicemail writes one voicemail row.
func (w *Writer) UpsertVoicemail(ctx context.Context, tenant string, v pbx.Voicemail, objectKey string) (Outcome, error) {
	return w.exec(ctx, tenant, "voicemails", "upsert_voicemail", `
		INSERT INTO voicemails (tenant_id, source_id, extension, caller, received_at, duration_seconds, object_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, source_id) DO UPDATE SET
			object_key = EXCLUDED.object_key`,
		tenant, v.SourceID, v.Extension, v.Caller, v.Timestamp, int(v.Duration.Seconds()), objectKey)
}

// UpsertCallLog writes one normalized call-detail-record row.
func (w *Writer) UpsertCallLog(ctx context.Context, tenant string, c pbx.CallLogRecord) (Outcome, error) {
	return w.exec(ctx, tenant, "call_logs", "upsert_call_log", `
		INSERT INTO call_logs (tenant_id, source_id, caller_number, caller_name, callee_number, callee_name,
		       extension, direction, status, ring_seconds, talk_seconds, total_seconds, started_at,
		       answered_at, ended_at, has_recording)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (tenant_id, source_id) DO NOTHING`,
		tenant, c.SourceID, c.CallerNumber, c.CallerName, c.CalleeNumber, c.CalleeName, c.Extension,
		string(c.Direction), string(c.Status), c.RingSeconds, c.TalkSeconds, c.TotalSeconds,
		c.StartedAt, c.AnsweredAt, c.EndedAt, c.HasRecording)
}

// LinkCallLogRecording opportunistically points a call log's recording_id
// at a matching call_recordings row, when one already exists. It is never
// retried retroactively: a recording synced after its call log simply
// stays unlinked.
func (w *Writer) LinkCallLogRecording(ctx context.Context, tenant, callLogSourceID, recordingSourceID string) (Outcome, error) {
	return w.exec(ctx, tenant, "call_logs", "link_call_log_recording", `
		UPDATE call_logs SET recording_id = cr.id
		FROM call_recordings cr
		WHERE call_logs.tenant_id = $1 AND call_logs.source_id = $2
		  AND cr.tenant_id = $1 AND cr.source_id = $3
		  AND call_logs.has_recording = true`,
		tenant, callLogSourceID, recordingSourceID)
}

// UpsertMeetingRecording writes one meeting/fax record recovered via SFTP
// filename parsing.
func (w *Writer) UpsertMeetingRecording(ctx context.Context, tenant string, m pbx.MeetingOrFax, objectKey string) (Outcome, error) {
	return w.exec(ctx, tenant, "meetings", "upsert_meeting_recording", `
		INSERT INTO meeting_recordings (tenant_id, source_id, object_key, recorded_at, direction, remote_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, source_id) DO UPDATE SET object_key = EXCLUDED.object_key`,
		tenant, m.RelativePath, objectKey, m.Date, string(m.Direction), m.RemoteNumber)
}

// UpdateSyncStatus records the terminal status of one stage run for a
// tenant.
func (w *Writer) UpdateSyncStatus(ctx context.Context, tenant, stage, status string, recordsSynced int, notes string, syncErr error) error {
	var errText *string
	if syncErr != nil {
		s := syncErr.Error()
		errText = &s
	}
	_, err := w.pool.Exec(ctx, `
		INSERT INTO sync_status (tenant_id, stage, status, records_synced, notes, error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (tenant_id, stage) DO UPDATE SET
			status = EXCLUDED.status,
			records_synced = EXCLUDED.records_synced,
			notes = EXCLUDED.notes,
			error = EXCLUDED.error,
			updated_at = now()`,
		tenant, stage, status, recordsSynced, notes, errText)
	if err != nil {
		return fmt.Errorf("update sync_status for %s/%s: %w", tenant, stage, err)
	}
	if w.events != nil {
		evt := events.StatusChanged{
			Tenant: tenant, Stage: stage, Status: status,
			RecordsSynced: recordsSynced, Notes: notes, UpdatedAt: time.Now().UTC(),
		}
		if syncErr != nil {
			evt.Error = syncErr.Error()
		}
		w.events.PublishStatusChanged(ctx, evt)
	}
	return nil
}

// GetWatermark returns the stage's stored cursor, or nil if the stage has
// never completed a batch for this tenant.
func (w *Writer) GetWatermark(ctx context.Context, tenant, stage string) (*time.Time, error) {
	var watermark *time.Time
	err := w.pool.QueryRow(ctx, `
		SELECT watermark FROM sync_status WHERE tenant_id = $1 AND stage = $2`, tenant, stage).Scan(&watermark)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watermark for %s/%s: %w", tenant, stage, err)
	}
	return watermark, nil
}

// AdvanceWatermark stores the new cursor for a stage. Per the canonical
// per-batch advance policy, callers call this once per batch, after every
// record in the batch has been written or explicitly marked as an error.
func (w *Writer) AdvanceWatermark(ctx context.Context, tenant, stage string, newWatermark time.Time) error {
	_, err := w.pool.Exec(ctx, `
		INSERT INTO sync_status (tenant_id, stage, watermark, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (tenant_id, stage) DO UPDATE SET
			watermark = EXCLUDED.watermark,
			updated_at = now()`,
		tenant, stage, newWatermark)
	if err != nil {
		return fmt.Errorf("advance watermark for %s/%s: %w", tenant, stage, err)
	}
	return nil
}

// AppendSyncLog appends one sync_log row recording a stage run's duration
// and structured details.
func (w *Writer) AppendSyncLog(ctx context.Context, tenant, stage string, durationMS int64, details map[string]any) error {
	_, err := w.pool.Exec(ctx, `
		INSERT INTO sync_logs (tenant_id, stage, duration_ms, details, logged_at)
		VALUES ($1, $2, $3, $4, now())`,
		tenant, stage, durationMS, details)
	if err != nil {
		return fmt.Errorf("append sync_log for %s/%s: %w", tenant, stage, err)
	}
	if w.events != nil {
		w.events.PublishLogAppended(ctx, events.LogAppended{
			Tenant: tenant, Stage: stage, DurationMS: durationMS,
			Details: details, LoggedAt: time.Now().UTC(),
		})
	}
	return nil
}
