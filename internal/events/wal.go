//go:build events

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/timeshareflow/pbxsync/internal/logging"
)

// Entry is one outbox record: an event payload plus retry bookkeeping.
// Grounded on the teacher's wal.Entry, trimmed of the lease fields this
// single-consumer outbox doesn't need.
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

const prefixPending = "pending:"

// outboxWAL is a BadgerDB-backed write-ahead log, grounded on the teacher's
// wal.BadgerWAL: Write persists an entry before the publish attempt, Confirm
// deletes it once NATS acknowledges, GetPending replays whatever survived a
// crash.
type outboxWAL struct {
	db *badger.DB
}

func openOutboxWAL(path string) (*outboxWAL, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = true
	opts.Compression = options.Snappy
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open outbox badgerdb: %w", err)
	}
	return &outboxWAL{db: db}, nil
}

func (w *outboxWAL) write(subject string, payload []byte) (*Entry, error) {
	entry := &Entry{
		ID:        uuid.New().String(),
		Subject:   subject,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal outbox entry: %w", err)
	}
	key := []byte(prefixPending + entry.ID)
	if err := w.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return nil, fmt.Errorf("write outbox entry: %w", err)
	}
	return entry, nil
}

func (w *outboxWAL) confirm(id string) error {
	key := []byte(prefixPending + id)
	err := w.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
	return err
}

func (w *outboxWAL) updateAttempt(id string, attemptErr error) error {
	key := []byte(prefixPending + id)
	return w.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var entry Entry
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &entry) }); err != nil {
			return err
		}
		entry.Attempts++
		entry.LastAttemptAt = time.Now().UTC()
		if attemptErr != nil {
			entry.LastError = attemptErr.Error()
		}
		data, err := json.Marshal(&entry)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

func (w *outboxWAL) pending(ctx context.Context) ([]*Entry, error) {
	var entries []*Entry
	err := w.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPending)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var entry Entry
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &entry) }); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Msg("events: failed to unmarshal outbox entry")
				continue
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

func (w *outboxWAL) close() error {
	return w.db.Close()
}
