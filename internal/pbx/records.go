package pbx

import "time"

// Direction classifies a call-detail-record's direction.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionInternal Direction = "internal"
)

// CallStatus classifies a call-detail-record's outcome.
type CallStatus string

const (
	CallStatusAnswered CallStatus = "answered"
	CallStatusMissed   CallStatus = "missed"
	CallStatusFailed   CallStatus = "failed"
)

// Extension is one extension/user row, from the users view (primary) or the
// dn table (fallback).
type Extension struct {
	SourceID  string
	Number    string
	FirstName string
	LastName  string
}

// Message is one chat message row from the active/history messages views.
type Message struct {
	SourceID       string
	ConversationID string
	External       bool
	QueueNumber    string
	SenderID       string
	SenderName     string
	Body           string
	TimeSent       time.Time
}

// Conversation is chat metadata for one conversation id.
type Conversation struct {
	SourceID     string
	ChatName     string
	External     bool
	MessageCount int
	IsGroupChat  bool
}

// FileMapping links a message to its on-disk attachment.
type FileMapping struct {
	MessageID        string
	InternalFilename string
	PublicFilename   string
	FileInfo         map[string]any
}

// Recording is one call-recording row. Duration is zero when the schema
// lacks start_time/end_time.
type Recording struct {
	SourceID    string
	URL         string
	StartTime   *time.Time
	EndTime     *time.Time
	Duration    time.Duration
	Transcript  string
}

// CallLogRecord is one normalized call-detail-record, regardless of which
// schema variant produced it.
type CallLogRecord struct {
	SourceID       string
	CallerNumber   string
	CallerName     string
	CalleeNumber   string
	CalleeName     string
	Extension      string
	Direction      Direction
	Status         CallStatus
	RingSeconds    int
	TalkSeconds    int
	TotalSeconds   int
	StartedAt      time.Time
	AnsweredAt     *time.Time
	EndedAt        *time.Time
	HasRecording   bool
}

// Voicemail is one non-tombstoned row from s_voicemail.
type Voicemail struct {
	SourceID  string
	Extension string
	Caller    string
	Timestamp time.Time
	Duration  time.Duration
	FileName  string
}

// MeetingOrFax is a meeting/fax record recovered from SFTP directory
// listing when no dedicated table exists, per §4.5 and §4.10.
type MeetingOrFax struct {
	Filename     string
	RelativePath string
	AbsolutePath string
	Date         time.Time
	Direction    Direction
	RemoteNumber string
}
