// Package main is the entry point for the pbxsync daemon.
//
// pbxsync is a multi-tenant synchronization daemon that pulls call data,
// voicemails, recordings, faxes, chat media, and meeting artifacts out of
// customer-hosted PBX systems over an SSH tunnel and lands them in a
// central Postgres archive plus S3-compatible object store.
//
// # Application Architecture
//
// The daemon's "run" verb initializes components in the following order:
//
//  1. Configuration: load process-wide settings from env vars/config file (koanf)
//  2. Logging: initialize the zerolog global logger
//  3. Archive: connect the archive Postgres pool (pgx/v5)
//  4. Object store: connect to the S3-compatible bucket
//  5. Events: open the durable outbox (BadgerDB + NATS), optional
//  6. Metrics: serve Prometheus counters over HTTP
//  7. Scheduler: build the supervisor tree and start ticking every active tenant
//
// # CLI Surface
//
//	pbxsync run                                 start the scheduler and block
//	pbxsync sync --tenant <id> --stage <name>   run one stage for one tenant
//	pbxsync diag --tenant <id>                  probe schema and SFTP paths
//
// # Exit Codes
//
//	0  success
//	1  configuration error
//	2  partial failure (sync ran but some tenants/stages errored)
//	3  fatal error
//
// # Build Tags
//
//	go build -tags events ./cmd/pbxsync   # enable the durable event outbox
//
// Without the events tag, the binary still runs; every outbox call is a
// no-op and sync.status.changed/sync.log.appended are never published.
//
// # Signal Handling
//
// "run" handles graceful shutdown on SIGINT and SIGTERM: the scheduler's
// root context is canceled, which also cancels any in-flight stage run,
// and the supervisor tree reports any services that failed to stop within
// its shutdown timeout.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timeshareflow/pbxsync/internal/archive"
	"github.com/timeshareflow/pbxsync/internal/config"
	"github.com/timeshareflow/pbxsync/internal/events"
	"github.com/timeshareflow/pbxsync/internal/logging"
	"github.com/timeshareflow/pbxsync/internal/objectstore"
	"github.com/timeshareflow/pbxsync/internal/scheduler"
	"github.com/timeshareflow/pbxsync/internal/tenant"
	"github.com/timeshareflow/pbxsync/internal/tunnel"
)

// exit codes per spec.
const (
	exitSuccess       = 0
	exitConfig        = 1
	exitPartialFailed = 2
	exitFatal         = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitConfig
	}

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pbxsync: configuration error: %v\n", err)
		return exitConfig
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	switch args[0] {
	case "run":
		return cmdRun(cfg)
	case "sync":
		return cmdSync(cfg, args[1:])
	case "diag":
		return cmdDiag(cfg, args[1:])
	case "-h", "--help", "help":
		usage()
		return exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "pbxsync: unknown command %q\n", args[0])
		usage()
		return exitConfig
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  pbxsync run
  pbxsync sync --tenant <id> --stage <name>
  pbxsync diag --tenant <id>`)
}

// bootstrap holds the shared infrastructure every verb needs: the archive
// pool, tunnel manager, object store, tenant registry, and (optionally)
// the durable event outbox. Grounded on the teacher's cmd/server/main.go
// sequential-initialization idiom, generalized so the same wiring serves
// all three CLI verbs instead of one long-running server.
type bootstrap struct {
	archivePool *pgxpool.Pool
	archive     *archive.Writer
	objects     *objectstore.Client
	tunnels     *tunnel.Manager
	registry    *tenant.Registry
	outbox      *events.Outbox
}

func newBootstrap(ctx context.Context, cfg *config.Config) (*bootstrap, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Archive.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse archive dsn: %w", err)
	}
	if cfg.Archive.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.Archive.MaxConnections)
	}
	archivePool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect archive pool: %w", err)
	}

	objects, err := objectstore.New(ctx, cfg.ObjectStore)
	if err != nil {
		archivePool.Close()
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	writer := archive.NewWriter(archivePool)

	outboxDefaults := events.DefaultConfig()
	outboxCfg := events.Config{
		Enabled:        cfg.NATS.Enabled,
		URL:            cfg.NATS.URL,
		EmbeddedServer: cfg.NATS.EmbeddedServer,
		OutboxPath:     cfg.NATS.OutboxPath,
		RetryInterval:  outboxDefaults.RetryInterval,
		MaxRetries:     outboxDefaults.MaxRetries,
		RetryBackoff:   outboxDefaults.RetryBackoff,
	}
	outbox, err := events.NewOutbox(outboxCfg)
	if err != nil {
		archivePool.Close()
		return nil, fmt.Errorf("open event outbox: %w", err)
	}
	writer.SetEventPublisher(outbox)

	return &bootstrap{
		archivePool: archivePool,
		archive:     writer,
		objects:     objects,
		tunnels:     tunnel.NewManager(),
		registry:    tenant.NewRegistry(archivePool),
		outbox:      outbox,
	}, nil
}

func (b *bootstrap) close() {
	b.tunnels.CloseAll()
	if b.outbox != nil {
		if err := b.outbox.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing event outbox")
		}
	}
	b.archivePool.Close()
}
