package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/klinikwerk/praxisd/internal/audit"
	"github.com/klinikwerk/praxisd/internal/backup"
	"github.com/klinikwerk/praxisd/internal/config"
	"github.com/klinikwerk/praxisd/internal/ics"
	"github.com/klinikwerk/praxisd/internal/intake"
	"github.com/klinikwerk/praxisd/internal/logging"
	"github.com/klinikwerk/praxisd/internal/report"
	"github.com/klinikwerk/praxisd/internal/retention"
	"github.com/klinikwerk/praxisd/internal/store"
)

// app bundles the wired components shared by the run and watch
// commands.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	store     *store.Store
	auditor   *audit.Logger
	rotator   *backup.Rotator
	retention *retention.Manager
	reports   *report.Generator
	spool     *intake.SpoolSource
	intake    intake.Service
}

// newApp loads configuration and wires every component against the
// configured data directory.
func newApp(configPath string) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	st := store.Open(cfg.Paths.Store, log)
	auditor := audit.NewLogger(cfg.Paths.AuditLog, log)
	rotator := backup.NewRotator(cfg.Paths.BackupDir, log)

	spool, err := intake.NewSpoolSource(cfg.Paths.SpoolDir, log)
	if err != nil {
		return nil, err
	}
	outbox, err := intake.NewOutboxResponder(cfg.Paths.OutboxDir, log)
	if err != nil {
		return nil, err
	}

	invites := ics.NewBuilder(cfg.Practice.Name, cfg.Practice.Address)
	svc, err := intake.NewService(st, auditor, invites, spool, log,
		intake.WithResponder(outbox))
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		log:       log,
		store:     st,
		auditor:   auditor,
		rotator:   rotator,
		retention: retention.NewManager(cfg.Retention, st, auditor, rotator, log),
		reports:   report.NewGenerator(st, auditor, rotator),
		spool:     spool,
		intake:    svc,
	}, nil
}
