package tenant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timeshareflow/pbxsync/internal/logging"
	"github.com/timeshareflow/pbxsync/internal/validation"
)

// Registry resolves active tenants and their per-tenant connection
// parameters from the central archive database. It never mutates tenant
// rows — per spec §4.1, that is the dashboard's job.
type Registry struct {
	pool *pgxpool.Pool
}

// NewRegistry wraps an archive pool for tenant lookups.
func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

// ListActiveTenants returns every tenant row eligible for scheduling this
// tick (not disabled, sync interval elapsed check is the scheduler's job).
func (r *Registry) ListActiveTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, pbx_host, ssh_port, ssh_user, ssh_password, db_password,
		       chat_files_root, recordings_root, voicemails_root, faxes_root, meetings_root,
		       backup_extensions, backup_conversations, backup_media, backup_recordings,
		       backup_voicemails, backup_faxes, backup_call_logs, backup_meetings,
		       sync_interval_seconds, last_sync_at
		FROM tenants
		WHERE active = true
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		var t Tenant
		var sshPort, syncInterval int
		var sshUser, sshPass, dbPass *string
		if err := rows.Scan(
			&t.ID, &t.PBXHost, &sshPort, &sshUser, &sshPass, &dbPass,
			&t.MediaRoots.ChatFiles, &t.MediaRoots.Recordings, &t.MediaRoots.Voicemails,
			&t.MediaRoots.Faxes, &t.MediaRoots.Meetings,
			&t.Backup.Extensions, &t.Backup.Conversations, &t.Backup.Media, &t.Backup.Recordings,
			&t.Backup.Voicemails, &t.Backup.Faxes, &t.Backup.CallLogs, &t.Backup.Meetings,
			&syncInterval, &t.LastSyncAt,
		); err != nil {
			return nil, fmt.Errorf("scan tenant row: %w", err)
		}
		t.SSHPort = sshPort
		if t.SSHPort == 0 {
			t.SSHPort = DefaultSSHPort
		}
		if sshUser != nil {
			t.SSHUser = *sshUser
		}
		if sshPass != nil {
			t.SSHPassword = *sshPass
		}
		if dbPass != nil {
			t.DBPassword = *dbPass
		}
		t.SyncIntervalS = syncInterval

		if verr := validation.ValidateStruct(&t); verr != nil {
			logging.Warn().Str("tenant", t.ID).Err(verr).Msg("tenant row failed validation, skipping")
			continue
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant rows: %w", err)
	}
	return out, nil
}

// SftpConfigFor resolves the SFTP connection parameters for a tenant.
// Returns nil when the tenant lacks SSH credentials; DbConfigFor then
// returns nil as well, and the scheduler skips that tenant's tick.
func (r *Registry) SftpConfigFor(t Tenant) *SftpConfig {
	if !t.HasSSHCredentials() {
		return nil
	}
	return &SftpConfig{
		Host:       t.PBXHost,
		Port:       t.SSHPort,
		User:       t.SSHUser,
		Password:   t.SSHPassword,
		MediaRoots: t.MediaRoots,
	}
}

// DbConfigFor resolves the tunneled Postgres connection parameters for a
// tenant. Returns nil when SSH or DB credentials are missing.
func (r *Registry) DbConfigFor(t Tenant) *DbConfig {
	if !t.HasSSHCredentials() || t.DBPassword == "" {
		return nil
	}
	return &DbConfig{
		Host:    t.PBXHost,
		Port:    t.SSHPort,
		SSHUser: t.SSHUser,
		SSHPass: t.SSHPassword,
		DBUser:  fixedDBRole,
		DBPass:  t.DBPassword,
		DBName:  fixedDBRole,
	}
}
