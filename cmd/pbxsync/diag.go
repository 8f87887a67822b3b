package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/timeshareflow/pbxsync/internal/config"
	"github.com/timeshareflow/pbxsync/internal/logging"
	"github.com/timeshareflow/pbxsync/internal/prober"
	"github.com/timeshareflow/pbxsync/internal/sftp"
	"github.com/timeshareflow/pbxsync/internal/tenant"
)

// cmdDiag probes a tenant's PBX schema and SFTP media paths without
// writing anything to the archive, and prints what it finds. Named but
// left unelaborated by the minimal CLI surface this daemon documents, so
// the output format favors a human reading a terminal over a machine
// parsing it.
func cmdDiag(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("diag", flag.ExitOnError)
	tenantID := fs.String("tenant", "", "tenant ID to probe")
	_ = fs.Parse(args)

	if *tenantID == "" {
		fmt.Fprintln(os.Stderr, "pbxsync diag: --tenant is required")
		return exitConfig
	}

	ctx := context.Background()
	boot, err := newBootstrap(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("failed to initialize pbxsync")
		return exitFatal
	}
	defer boot.close()

	tenants, err := boot.registry.ListActiveTenants(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pbxsync diag: list tenants: %v\n", err)
		return exitFatal
	}
	var found bool
	var issues int
	for _, t := range tenants {
		if t.ID != *tenantID {
			continue
		}
		found = true

		fmt.Printf("tenant %s (%s)\n", t.ID, t.PBXHost)

		dbCfg := boot.registry.DbConfigFor(t)
		if dbCfg == nil {
			fmt.Println("  database: no credentials configured")
			issues++
			break
		}
		pool, err := boot.tunnels.AcquirePool(ctx, t.ID, *dbCfg)
		if err != nil {
			fmt.Printf("  database: tunnel/connect failed: %v\n", err)
			issues++
			break
		}
		fmt.Println("  database: connected")

		schema, err := prober.New().Probe(ctx, pool)
		if err != nil {
			fmt.Printf("  schema probe: failed: %v\n", err)
			issues++
		} else {
			printSchema(schema)
		}

		sftpCfg := boot.registry.SftpConfigFor(t)
		if sftpCfg == nil {
			fmt.Println("  sftp: no credentials configured")
			issues++
			break
		}
		session, err := sftp.Open(ctx, *sftpCfg)
		if err != nil {
			fmt.Printf("  sftp: connect failed: %v\n", err)
			issues++
			break
		}
		defer session.Close()
		fmt.Println("  sftp: connected")
		issues += probeMediaRoots(session, t.MediaRoots)
		break
	}

	if !found {
		fmt.Fprintf(os.Stderr, "pbxsync diag: tenant %q not found or inactive\n", *tenantID)
		return exitConfig
	}
	if issues > 0 {
		return exitPartialFailed
	}
	return exitSuccess
}

func printSchema(s prober.Schema) {
	fmt.Printf("  schema: active_chat=%v history_chat=%v active_messages=%v history_messages=%v\n",
		s.HasActiveChat, s.HasHistoryChat, s.HasActiveMessages, s.HasHistoryMessages)
	fmt.Printf("  schema: call_log_source=%q recordings=%v voicemail=%v users_view=%v dn=%v\n",
		s.CallLogSource, s.HasRecordings, s.HasVoicemail, s.HasUsersView, s.HasDN)
}

// probeMediaRoots checks each of the tenant's five configured media paths
// over the open SFTP session and prints whether it exists. Returns the
// number of paths that are configured but missing.
func probeMediaRoots(session *sftp.Session, roots tenant.MediaRoots) int {
	paths := map[string]string{
		"chat_files": roots.ChatFiles,
		"recordings": roots.Recordings,
		"voicemails": roots.Voicemails,
		"faxes":      roots.Faxes,
		"meetings":   roots.Meetings,
	}
	missing := 0
	for name, path := range paths {
		if path == "" {
			continue
		}
		ok, err := session.Exists(path)
		switch {
		case err != nil:
			fmt.Printf("  media root %s (%s): check failed: %v\n", name, path, err)
			missing++
		case !ok:
			fmt.Printf("  media root %s (%s): missing\n", name, path)
			missing++
		default:
			fmt.Printf("  media root %s (%s): ok\n", name, path)
		}
	}
	return missing
}
