package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/timeshareflow/pbxsync/internal/archive"
	"github.com/timeshareflow/pbxsync/internal/logging"
	"github.com/timeshareflow/pbxsync/internal/metrics"
	"github.com/timeshareflow/pbxsync/internal/objectstore"
	"github.com/timeshareflow/pbxsync/internal/prober"
	"github.com/timeshareflow/pbxsync/internal/sftp"
	"github.com/timeshareflow/pbxsync/internal/stage"
	"github.com/timeshareflow/pbxsync/internal/tenant"
	"github.com/timeshareflow/pbxsync/internal/tunnel"
)

// stageRunner is satisfied by every stage.Run* function.
type stageRunner func(ctx context.Context, d stage.Deps) (stage.Result, error)

var stageRunners = map[stage.Name]stageRunner{
	stage.NameExtensions:            stage.RunExtensions,
	stage.NameConversationsMessages: stage.RunConversationsMessagesMedia,
	stage.NameRecordings:            stage.RunRecordings,
	stage.NameVoicemails:            stage.RunVoicemails,
	stage.NameFaxes:                 stage.RunFaxes,
	stage.NameCallLogs:              stage.RunCallLogs,
	stage.NameMeetings:              stage.RunMeetings,
}

// stageEnabled maps a tenant's per-source toggles onto the fixed stage
// order. Conversations/messages/media share one stage, so it runs whenever
// either sub-toggle is on. The stage then syncs messages and, whenever an
// SFTP session is open, their attachments; neither toggle turns off one
// part while the other is on.
func stageEnabled(toggles tenant.BackupToggles, name stage.Name) bool {
	switch name {
	case stage.NameExtensions:
		return toggles.Extensions
	case stage.NameConversationsMessages:
		return toggles.Conversations || toggles.Media
	case stage.NameRecordings:
		return toggles.Recordings
	case stage.NameVoicemails:
		return toggles.Voicemails
	case stage.NameFaxes:
		return toggles.Faxes
	case stage.NameCallLogs:
		return toggles.CallLogs
	case stage.NameMeetings:
		return toggles.Meetings
	default:
		return false
	}
}

// tenantTicker is a suture.Service: it ticks on the tenant's configured
// interval and runs the fixed-order stage pipeline, independent of every
// other tenant's ticker. A stage error backs off the NEXT tick only —
// other stages in the same tick still run.
type tenantTicker struct {
	tenantID   string
	registry   *tenant.Registry
	tunnels    *tunnel.Manager
	archive    *archive.Writer
	objects    *objectstore.Client
	breakers   *breakerRegistry
	sem        chan struct{}
	interval   time.Duration
	options    stage.Options
	minBackoff time.Duration
	maxBackoff time.Duration
}

func (t *tenantTicker) String() string {
	return fmt.Sprintf("tenant-ticker[%s]", t.tenantID)
}

// Serve implements suture.Service. It blocks until ctx is canceled, which
// is also how a removed or disabled tenant's ticker is torn down by the
// scheduler's refresh loop.
func (t *tenantTicker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	backoff := t.minBackoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.tick(ctx); err != nil {
				logging.Ctx(ctx).Error().Str("tenant", t.tenantID).Err(err).Msg("tenant tick failed")
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > t.maxBackoff {
					backoff = t.maxBackoff
				}
				continue
			}
			backoff = t.minBackoff
		}
	}
}

func (t *tenantTicker) tick(ctx context.Context) error {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-t.sem }()

	tenants, err := t.registry.ListActiveTenants(ctx)
	if err != nil {
		return fmt.Errorf("list active tenants: %w", err)
	}
	tt := findTenant(tenants, t.tenantID)
	if tt == nil {
		return nil
	}

	dbCfg := t.registry.DbConfigFor(*tt)
	if dbCfg == nil {
		logging.Ctx(ctx).Warn().Str("tenant", t.tenantID).Msg("tenant missing DB credentials, skipping tick")
		return nil
	}
	pool, err := t.tunnels.AcquirePool(ctx, t.tenantID, *dbCfg)
	if err != nil {
		return fmt.Errorf("acquire pool: %w", err)
	}

	schema, err := prober.New().Probe(ctx, pool)
	if err != nil {
		return fmt.Errorf("probe schema: %w", err)
	}

	var session *sftp.Session
	if sftpCfg := t.registry.SftpConfigFor(*tt); sftpCfg != nil {
		session, err = sftp.Open(ctx, *sftpCfg)
		if err != nil {
			logging.Ctx(ctx).Warn().Str("tenant", t.tenantID).Err(err).
				Msg("SFTP unavailable this tick, media-requiring stages will fail per-record")
		} else {
			defer session.Close()
		}
	}

	deps := stage.Deps{
		TenantID:   t.tenantID,
		Pool:       pool,
		Archive:    t.archive,
		Objects:    t.objects,
		SFTP:       session,
		Schema:     schema,
		MediaRoots: tt.MediaRoots,
		Options:    t.options,
	}

	var firstErr error
	for _, name := range stage.Order {
		if !stageEnabled(tt.Backup, name) {
			continue
		}
		if err := t.runStage(ctx, name, deps); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *tenantTicker) runStage(ctx context.Context, name stage.Name, deps stage.Deps) error {
	runner := stageRunners[name]
	cb := t.breakers.get(t.tenantID, string(name))

	start := time.Now()
	result, err := cb.Execute(func() (stage.Result, error) {
		return runner(ctx, deps)
	})
	duration := time.Since(start)

	metrics.RecordStageResult(t.tenantID, string(name), result.Synced, result.Skipped, len(result.Errors), duration, err)
	metrics.SetCircuitBreakerConsecutiveFailures(t.tenantID, string(name), cb.Counts().ConsecutiveFailures)

	status := "ok"
	notes := ""
	switch {
	case err != nil:
		status = "error"
		notes = err.Error()
	case len(result.Errors) > 0:
		notes = fmt.Sprintf("%d record errors", len(result.Errors))
	}
	if uerr := t.archive.UpdateSyncStatus(ctx, t.tenantID, string(name), status, result.Synced, notes, err); uerr != nil {
		logging.Ctx(ctx).Error().Str("tenant", t.tenantID).Str("stage", string(name)).Err(uerr).
			Msg("failed to record sync status")
	}
	if lerr := t.archive.AppendSyncLog(ctx, t.tenantID, string(name), duration.Milliseconds(), map[string]any{
		"synced": result.Synced, "skipped": result.Skipped, "errors": len(result.Errors),
	}); lerr != nil {
		logging.Ctx(ctx).Error().Str("tenant", t.tenantID).Str("stage", string(name)).Err(lerr).
			Msg("failed to append sync log")
	}
	return err
}

func findTenant(tenants []tenant.Tenant, id string) *tenant.Tenant {
	for i := range tenants {
		if tenants[i].ID == id {
			return &tenants[i]
		}
	}
	return nil
}
