// Package stage implements the seven pipeline stages that make up one
// scheduler tick for a tenant, per spec §4.9. Every stage shares the same
// contract: given a tenant's PBX pool, an optional SFTP session, and
// options, it returns how many records synced, how many were skipped, and
// any per-record errors — and never partially commits.
package stage

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timeshareflow/pbxsync/internal/archive"
	"github.com/timeshareflow/pbxsync/internal/objectstore"
	"github.com/timeshareflow/pbxsync/internal/prober"
	"github.com/timeshareflow/pbxsync/internal/sftp"
	"github.com/timeshareflow/pbxsync/internal/tenant"
)

// Name identifies one of the seven fixed-order stages.
type Name string

const (
	NameExtensions             Name = "extensions"
	NameConversationsMessages  Name = "conversations_messages_media"
	NameRecordings             Name = "recordings"
	NameVoicemails             Name = "voicemails"
	NameFaxes                  Name = "faxes"
	NameCallLogs               Name = "call_logs"
	NameMeetings               Name = "meetings"
)

// Order is the fixed sequence a tick runs enabled stages in.
var Order = []Name{
	NameExtensions, NameConversationsMessages, NameRecordings,
	NameVoicemails, NameFaxes, NameCallLogs, NameMeetings,
}

// ParseName maps a CLI-facing stage flag onto one of the fixed Order
// entries, rejecting anything not in the pipeline.
func ParseName(s string) (Name, error) {
	for _, n := range Order {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q, must be one of %v", s, Order)
}

// WatermarkMode names when a stage's cursor is persisted. No stage reads
// Options.WatermarkMode: every watermarked stage advances its cursor once per
// batch, to the last record before the batch's first failure.
type WatermarkMode int

const (
	WatermarkPerBatch WatermarkMode = iota
	WatermarkPerRecord
)

// Options configures size limits and batch behavior shared by every stage.
type Options struct {
	BatchSize            int
	FileTimeout          time.Duration
	BufferedMaxBytes     int64
	StreamedMaxBytes     int64
	WatermarkMode        WatermarkMode
	ChatMediaSubfolders  []string
	RecordingCandidatePaths []string
	VoicemailPathOrder      []string
}

// RecordError is one per-record failure captured without aborting the
// stage.
type RecordError struct {
	RecordID string
	Message  string
}

// Result is the outcome of one stage run. In the extensions, call-log,
// recording and voicemail stages, Synced + Skipped + len(Errors) equals the
// number of rows read; the conversations stage also counts conversation
// upsert errors and attachments, and the fax and meeting stages do not count
// files they skip by extension.
type Result struct {
	Synced  int
	Skipped int
	Errors  []RecordError
}

func (r *Result) addError(recordID string, err error) {
	r.Errors = append(r.Errors, RecordError{RecordID: recordID, Message: err.Error()})
}

// Deps bundles every dependency a stage needs. SFTP is nil when the session
// could not be opened for this tick (a tenant without SSH credentials has no
// DB config either, so its tick is skipped before any stage runs). With SFTP
// nil, the conversations stage skips attachments and the fax and meeting
// stages return without work, while the recording and voicemail stages
// record a per-record error for every row.
type Deps struct {
	TenantID    string
	Pool        *pgxpool.Pool
	Archive     *archive.Writer
	Objects     *objectstore.Client
	SFTP        *sftp.Session
	Schema      prober.Schema
	MediaRoots  tenant.MediaRoots
	Options     Options
}
