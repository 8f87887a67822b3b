//go:build !events

package events

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// Entry is the stub outbox record shape, kept in sync with the BadgerDB
// variant's JSON tags so a build switch doesn't change the wire format.
type Entry struct {
	ID            string          `json:"id"`
	Subject       string          `json:"subject"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

func (e *Entry) unmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

var ErrEntryNotFound = errors.New("events: entry not found")

// outboxWAL is a no-op stub used when the binary is built without the
// 'events' tag: nothing is written to disk and nothing survives a crash.
type outboxWAL struct{}

func openOutboxWAL(_ string) (*outboxWAL, error) {
	return &outboxWAL{}, nil
}

func (w *outboxWAL) write(subject string, payload []byte) (*Entry, error) {
	return &Entry{Subject: subject, Payload: payload, CreatedAt: time.Now().UTC()}, nil
}

func (w *outboxWAL) confirm(id string) error { return nil }

func (w *outboxWAL) updateAttempt(id string, attemptErr error) error { return nil }

func (w *outboxWAL) pending(_ context.Context) ([]*Entry, error) { return nil, nil }

func (w *outboxWAL) close() error { return nil }
