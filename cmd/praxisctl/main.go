// Package main implements praxisctl, the maintenance CLI for the
// praxisd data directory: backups, retention enforcement, the privacy
// report, and the audit trail.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klinikwerk/praxisd/internal/audit"
	"github.com/klinikwerk/praxisd/internal/backup"
	"github.com/klinikwerk/praxisd/internal/config"
	"github.com/klinikwerk/praxisd/internal/logging"
	"github.com/klinikwerk/praxisd/internal/report"
	"github.com/klinikwerk/praxisd/internal/retention"
	"github.com/klinikwerk/praxisd/internal/store"
)

var (
	configPath string
	auditHours int

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "praxisctl",
	Short: "Maintenance operations for the praxisd data directory",
	Long: `praxisctl operates directly on the praxisd data files: it creates
backup snapshots, enforces the retention horizons on demand, prints the
privacy report, and shows recent audit events.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/praxisd/config.yaml)")
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().IntVar(&auditHours, "hours", 24, "window of audit events to show")
}

// tool bundles the file-backed components praxisctl operates on.
type tool struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *store.Store
	auditor *audit.Logger
	rotator *backup.Rotator
}

func newTool() (*tool, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(logging.Options{
		Level:  "warn",
		Format: "console",
	})
	if err != nil {
		return nil, err
	}
	return &tool{
		cfg:     cfg,
		log:     log,
		store:   store.Open(cfg.Paths.Store, log),
		auditor: audit.NewLogger(cfg.Paths.AuditLog, log),
		rotator: backup.NewRotator(cfg.Paths.BackupDir, log),
	}, nil
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the record store into the backup directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newTool()
		if err != nil {
			return err
		}
		path, err := t.rotator.Snapshot(t.store.Path())
		if err != nil {
			return err
		}
		if err := t.auditor.Append(audit.EventBackupCreated, map[string]string{
			"snapshot": path,
		}, ""); err != nil {
			t.log.Warn("audit append failed", zap.Error(err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Enforce the retention horizons now",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newTool()
		if err != nil {
			return err
		}
		m := retention.NewManager(t.cfg.Retention, t.store, t.auditor, t.rotator, t.log)
		res, err := m.Enforce(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d records, %d audit lines, %d backups\n",
			res.RecordsDeleted, res.LogLinesDeleted, res.BackupsDeleted)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the privacy report as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newTool()
		if err != nil {
			return err
		}
		rep, err := report.NewGenerator(t.store, t.auditor, t.rotator).Generate()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := newTool()
		if err != nil {
			return err
		}
		entries, skipped, err := t.auditor.ReadSince(time.Duration(auditHours) * time.Hour)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		if skipped > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d unparsable lines\n", skipped)
		}
		return nil
	},
}
