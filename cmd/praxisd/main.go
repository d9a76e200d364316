// Package main implements praxisd, the appointment intake daemon for a
// vascular medicine practice. It reads appointment request messages
// from a spool directory, extracts structured requests, and enforces
// the data retention horizons.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klinikwerk/praxisd/internal/http"
	"github.com/klinikwerk/praxisd/internal/logging"
	"github.com/klinikwerk/praxisd/internal/telemetry"
)

var (
	configPath string

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "praxisd",
	Short: "Appointment intake daemon for a vascular medicine practice",
	Long: `praxisd turns German appointment request emails into structured,
pseudonymized records. Messages arrive as files in a spool directory;
extracted requests are stored locally with a full audit trail, and
retention horizons are enforced automatically.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/praxisd/config.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
}

// runCmd processes the spool once and exits.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process pending messages once and exit",
	Long: `Enforce the retention horizons, process every message currently in
the spool directory, and exit. Suitable for cron-style operation.`,
	RunE: runOnce,
}

// watchCmd runs the long-lived daemon.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the spool directory and serve health endpoints",
	Long: `Run as a daemon: process messages as they arrive in the spool
directory, enforce retention daily, and serve /health, /metrics, and
/report over HTTP. Stops cleanly on SIGINT or SIGTERM.`,
	RunE: runWatch,
}

func runOnce(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(a.log) }()

	ctx := cmd.Context()

	res, err := a.retention.Enforce(ctx)
	if err != nil {
		a.log.Error("retention enforcement incomplete", zap.Error(err))
	}
	batch, err := a.intake.ProcessBatch(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"processed %d, skipped %d, failed %d; purged %d records, %d audit lines, %d backups\n",
		batch.Processed, batch.Skipped, batch.Failed,
		res.RecordsDeleted, res.LogLinesDeleted, res.BackupsDeleted)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(a.log) }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel := telemetry.New(ctx, telemetry.Config{
		Enabled:        a.cfg.Observability.EnableTelemetry,
		ServiceName:    a.cfg.Observability.ServiceName,
		ServiceVersion: version,
		ExportInterval: a.cfg.Observability.Interval,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// Daemon-level log records also flow to the OTLP exporter when one
	// is configured.
	daemonLog := logging.NewTee(a.log, tel.LoggerProvider())

	srv, err := http.NewServer(a.reports, a.log, &http.Config{
		Host: "localhost",
		Port: a.cfg.Server.Port,
	})
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("http shutdown failed", zap.Error(err))
		}
	}()

	signals, err := a.spool.Watch(ctx)
	if err != nil {
		return err
	}

	// Catch up on whatever accumulated while the daemon was down.
	a.enforceAndProcess(ctx)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	daemonLog.Info("praxisd watching",
		zap.String("spool", a.spool.Dir()),
		zap.Int("http_port", a.cfg.Server.Port))

	for {
		select {
		case <-ctx.Done():
			daemonLog.Info("shutting down")
			return nil
		case err := <-serverErr:
			return fmt.Errorf("http server: %w", err)
		case _, ok := <-signals:
			if !ok {
				return nil
			}
			if _, err := a.intake.ProcessBatch(ctx); err != nil {
				daemonLog.Error("intake batch failed", zap.Error(err))
			}
		case <-ticker.C:
			a.enforceAndProcess(ctx)
		}
	}
}

// enforceAndProcess runs one retention pass followed by one intake
// batch, logging failures instead of stopping the daemon.
func (a *app) enforceAndProcess(ctx context.Context) {
	if _, err := a.retention.Enforce(ctx); err != nil {
		a.log.Error("retention enforcement incomplete", zap.Error(err))
	}
	if _, err := a.intake.ProcessBatch(ctx); err != nil {
		a.log.Error("intake batch failed", zap.Error(err))
	}
}
