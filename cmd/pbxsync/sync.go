package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/timeshareflow/pbxsync/internal/config"
	"github.com/timeshareflow/pbxsync/internal/logging"
	"github.com/timeshareflow/pbxsync/internal/scheduler"
	"github.com/timeshareflow/pbxsync/internal/stage"
)

// cmdSync runs one stage for one tenant outside the scheduler's ticker
// loop and prints the resulting record counts. Exits 2 on a partial
// failure (the stage ran but returned per-record errors), 3 when the stage
// returned a run error or could not run at all.
func cmdSync(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	tenantID := fs.String("tenant", "", "tenant ID to sync")
	stageFlag := fs.String("stage", "", "stage name to run")
	_ = fs.Parse(args)

	if *tenantID == "" || *stageFlag == "" {
		fmt.Fprintln(os.Stderr, "pbxsync sync: --tenant and --stage are required")
		return exitConfig
	}
	name, err := stage.ParseName(*stageFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pbxsync sync: %v\n", err)
		return exitConfig
	}

	ctx := context.Background()
	boot, err := newBootstrap(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("failed to initialize pbxsync")
		return exitFatal
	}
	defer boot.close()

	result, runErr := scheduler.RunStageOnce(ctx, scheduler.Deps{
		Registry: boot.registry,
		Tunnels:  boot.tunnels,
		Archive:  boot.archive,
		Objects:  boot.objects,
	}, stageOptions(cfg), *tenantID, name)

	fmt.Printf("tenant=%s stage=%s synced=%d skipped=%d record_errors=%d\n",
		*tenantID, name, result.Synced, result.Skipped, len(result.Errors))
	for _, e := range result.Errors {
		fmt.Printf("  record %s: %s\n", e.RecordID, e.Message)
	}

	switch {
	case runErr != nil:
		fmt.Fprintf(os.Stderr, "pbxsync sync: %v\n", runErr)
		return exitFatal
	case len(result.Errors) > 0:
		return exitPartialFailed
	default:
		return exitSuccess
	}
}
