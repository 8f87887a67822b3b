package scheduler

import (
	"context"
	"fmt"

	"github.com/timeshareflow/pbxsync/internal/prober"
	"github.com/timeshareflow/pbxsync/internal/sftp"
	"github.com/timeshareflow/pbxsync/internal/stage"
)

// RunStageOnce runs a single stage for a single tenant outside the ticker
// loop, bypassing the circuit breaker and backoff entirely. Grounded on
// tenantTicker.tick/runStage, trimmed to one stage and without the
// semaphore acquire since a one-shot manual run is never concurrent with
// itself.
func RunStageOnce(ctx context.Context, deps Deps, options stage.Options, tenantID string, name stage.Name) (stage.Result, error) {
	runner, ok := stageRunners[name]
	if !ok {
		return stage.Result{}, fmt.Errorf("unknown stage %q", name)
	}

	tenants, err := deps.Registry.ListActiveTenants(ctx)
	if err != nil {
		return stage.Result{}, fmt.Errorf("list active tenants: %w", err)
	}
	tt := findTenant(tenants, tenantID)
	if tt == nil {
		return stage.Result{}, fmt.Errorf("tenant %q not found or inactive", tenantID)
	}

	dbCfg := deps.Registry.DbConfigFor(*tt)
	if dbCfg == nil {
		return stage.Result{}, fmt.Errorf("tenant %q has no database credentials", tenantID)
	}
	pool, err := deps.Tunnels.AcquirePool(ctx, tenantID, *dbCfg)
	if err != nil {
		return stage.Result{}, fmt.Errorf("acquire pool: %w", err)
	}

	schema, err := prober.New().Probe(ctx, pool)
	if err != nil {
		return stage.Result{}, fmt.Errorf("probe schema: %w", err)
	}

	var session *sftp.Session
	if sftpCfg := deps.Registry.SftpConfigFor(*tt); sftpCfg != nil {
		session, err = sftp.Open(ctx, *sftpCfg)
		if err != nil {
			session = nil
		} else {
			defer session.Close()
		}
	}

	sdeps := stage.Deps{
		TenantID:   tenantID,
		Pool:       pool,
		Archive:    deps.Archive,
		Objects:    deps.Objects,
		SFTP:       session,
		Schema:     schema,
		MediaRoots: tt.MediaRoots,
		Options:    options,
	}

	result, runErr := runner(ctx, sdeps)

	status := "ok"
	notes := ""
	switch {
	case runErr != nil:
		status = "error"
		notes = runErr.Error()
	case len(result.Errors) > 0:
		notes = fmt.Sprintf("%d record errors", len(result.Errors))
	}
	if uerr := deps.Archive.UpdateSyncStatus(ctx, tenantID, string(name), status, result.Synced, notes, runErr); uerr != nil {
		return result, fmt.Errorf("record sync status: %w", uerr)
	}
	return result, runErr
}
