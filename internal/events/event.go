package events

import "time"

// Subject names the two NATS subjects the outbox publishes to.
const (
	SubjectStatusChanged = "sync.status.changed"
	SubjectLogAppended   = "sync.log.appended"
)

// StatusChanged mirrors one sync_status row after UpdateSyncStatus commits.
type StatusChanged struct {
	Tenant        string    `json:"tenant"`
	Stage         string    `json:"stage"`
	Status        string    `json:"status"`
	RecordsSynced int       `json:"records_synced"`
	Notes         string    `json:"notes,omitempty"`
	Error         string    `json:"error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LogAppended mirrors one sync_logs row after AppendSyncLog commits.
type LogAppended struct {
	Tenant     string         `json:"tenant"`
	Stage      string         `json:"stage"`
	DurationMS int64          `json:"duration_ms"`
	Details    map[string]any `json:"details,omitempty"`
	LoggedAt   time.Time      `json:"logged_at"`
}
