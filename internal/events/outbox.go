package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/timeshareflow/pbxsync/internal/logging"
)

// Outbox is the durable publisher archive.Writer calls into after a
// sync_status or sync_logs commit: write the event to the outbox, attempt a
// publish, and leave it for the retry loop on failure. Grounded on the
// teacher's eventprocessor.WALEnabledPublisher, generalized from one event
// type (MediaEvent) to the two this daemon emits.
type Outbox struct {
	cfg    Config
	wal    *outboxWAL
	pub    *natsPublisher
	srv    *embeddedServer
	retry  *retryLoop
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutbox opens the outbox's BadgerDB store and connects (or starts) its
// NATS publisher. When cfg.Enabled is false, every method is a no-op.
func NewOutbox(cfg Config) (*Outbox, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return &Outbox{cfg: cfg}, nil
	}

	wal, err := openOutboxWAL(cfg.OutboxPath)
	if err != nil {
		return nil, err
	}

	var srv *embeddedServer
	url := cfg.URL
	if cfg.EmbeddedServer {
		srv, err = startEmbeddedServer(cfg.OutboxPath)
		if err != nil {
			_ = wal.close()
			return nil, err
		}
		url = srv.clientURL()
	}

	pub, err := newNATSPublisher(url)
	if err != nil {
		_ = wal.close()
		if srv != nil {
			srv.shutdown()
		}
		return nil, err
	}

	o := &Outbox{cfg: cfg, wal: wal, pub: pub, srv: srv}
	o.retry = newRetryLoop(o)
	return o, nil
}

// Start launches the background retry loop. Safe to call on a disabled
// outbox; it simply does nothing.
func (o *Outbox) Start(ctx context.Context) {
	if !o.cfg.Enabled {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.retry.run(ctx)
	}()
}

// Close stops the retry loop and releases the outbox's NATS and BadgerDB
// handles.
func (o *Outbox) Close() error {
	if !o.cfg.Enabled {
		return nil
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	if err := o.pub.close(); err != nil {
		logging.Logger().Warn().Err(err).Msg("events: error closing nats publisher")
	}
	if o.srv != nil {
		o.srv.shutdown()
	}
	return o.wal.close()
}

// PublishStatusChanged emits a sync.status.changed event for one
// tenant/stage sync_status row.
func (o *Outbox) PublishStatusChanged(ctx context.Context, evt StatusChanged) {
	o.publish(ctx, SubjectStatusChanged, evt)
}

// PublishLogAppended emits a sync.log.appended event for one
// tenant/stage sync_logs row.
func (o *Outbox) PublishLogAppended(ctx context.Context, evt LogAppended) {
	o.publish(ctx, SubjectLogAppended, evt)
}

func (o *Outbox) publish(ctx context.Context, subject string, evt any) {
	if !o.cfg.Enabled {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("subject", subject).Msg("events: failed to marshal event")
		return
	}

	entry, err := o.wal.write(subject, payload)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("subject", subject).Msg("events: outbox write failed")
		// Fall through and try to publish directly rather than lose the event.
		if perr := o.pub.publish(subject, payload); perr != nil {
			logging.Ctx(ctx).Warn().Err(perr).Str("subject", subject).Msg("events: direct publish failed, event lost")
		}
		return
	}

	if err := o.pub.publish(subject, payload); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("subject", subject).Str("entry_id", entry.ID).
			Msg("events: publish failed, entry queued for retry")
		return
	}
	if err := o.wal.confirm(entry.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("entry_id", entry.ID).Msg("events: outbox confirm failed")
	}
}

// retryLoop periodically replays outbox entries a crash or broker outage
// left unconfirmed, grounded on the teacher's wal.RetryLoop.
type retryLoop struct {
	outbox *Outbox
}

func newRetryLoop(o *Outbox) *retryLoop {
	return &retryLoop{outbox: o}
}

func (r *retryLoop) run(ctx context.Context) {
	ticker := time.NewTicker(r.outbox.cfg.RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *retryLoop) sweep(ctx context.Context) {
	entries, err := r.outbox.wal.pending(ctx)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("events: retry sweep failed to list pending entries")
		return
	}
	for _, entry := range entries {
		if entry.Attempts >= r.outbox.cfg.MaxRetries {
			logging.Ctx(ctx).Error().Str("entry_id", entry.ID).Str("subject", entry.Subject).
				Int("attempts", entry.Attempts).Msg("events: entry exceeded max retries, leaving in outbox")
			continue
		}
		if err := r.outbox.pub.publish(entry.Subject, entry.Payload); err != nil {
			_ = r.outbox.wal.updateAttempt(entry.ID, err)
			continue
		}
		if err := r.outbox.wal.confirm(entry.ID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("entry_id", entry.ID).Msg("events: retry confirm failed")
		}
	}
}
