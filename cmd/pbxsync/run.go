package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timeshareflow/pbxsync/internal/config"
	"github.com/timeshareflow/pbxsync/internal/logging"
	"github.com/timeshareflow/pbxsync/internal/scheduler"
	"github.com/timeshareflow/pbxsync/internal/stage"
)

func stageOptions(cfg *config.Config) stage.Options {
	return stage.Options{
		BatchSize:        500,
		FileTimeout:      2 * time.Minute,
		BufferedMaxBytes: cfg.Transfer.BufferedMaxBytes,
		StreamedMaxBytes: cfg.Transfer.StreamedMaxBytes,
		WatermarkMode:    stage.WatermarkPerBatch,
	}
}

// cmdRun starts the metrics server and the scheduler's supervisor tree,
// blocking until SIGINT/SIGTERM. Grounded on the teacher's main()
// signal-handling tail: cancel the root context on signal, let
// ServeBackground drain, and report anything left running past its
// shutdown window.
func cmdRun(cfg *config.Config) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boot, err := newBootstrap(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("failed to initialize pbxsync")
		return exitFatal
	}
	defer boot.close()

	boot.outbox.Start(ctx)

	metricsSrv := &http.Server{
		Addr:    ":9090",
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("metrics server stopped unexpectedly")
		}
	}()

	sched := scheduler.New(cfg.Scheduler, scheduler.Deps{
		Registry: boot.registry,
		Tunnels:  boot.tunnels,
		Archive:  boot.archive,
		Objects:  boot.objects,
	}, stageOptions(cfg))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting scheduler")
	runErr := sched.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	_ = metricsSrv.Shutdown(shutdownCtx)
	shutdownCancel()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logging.Error().Err(runErr).Msg("scheduler stopped with error")
		return exitFatal
	}
	logging.Info().Msg("pbxsync stopped gracefully")
	return exitSuccess
}
