// Package retention enforces the storage horizons over the record
// store, the audit log, and the backup rotation. Enforcement is
// deliberately idempotent: running it twice in a row deletes nothing
// the second time.
package retention

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/klinikwerk/praxisd/internal/audit"
	"github.com/klinikwerk/praxisd/internal/backup"
	"github.com/klinikwerk/praxisd/internal/store"
)

// Policy holds the three horizons, each in days.
type Policy struct {
	RecordHorizonDays int `koanf:"record_horizon_days"`
	LogHorizonDays    int `koanf:"log_horizon_days"`
	BackupHorizonDays int `koanf:"backup_horizon_days"`
}

// Result reports what one enforcement pass removed.
type Result struct {
	RecordsDeleted  int
	LogLinesDeleted int
	BackupsDeleted  int
}

// Manager runs enforcement passes against the three stores.
type Manager struct {
	policy  Policy
	store   *store.Store
	auditor *audit.Logger
	rotator *backup.Rotator
	log     *zap.Logger
}

// NewManager wires an enforcement manager. All three targets are
// required; the logger may be nil.
func NewManager(policy Policy, s *store.Store, a *audit.Logger, r *backup.Rotator, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		policy:  policy,
		store:   s,
		auditor: a,
		rotator: r,
		log:     log,
	}
}

// Enforce runs the three retention steps. Each step runs even when an
// earlier one failed; the joined error carries every failure. Deletions
// are recorded in the audit log so the enforcement itself leaves a
// trace.
func (m *Manager) Enforce(ctx context.Context) (Result, error) {
	var (
		res  Result
		errs []error
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}

	n, err := m.store.DeleteOlderThan(m.policy.RecordHorizonDays)
	if err != nil {
		errs = append(errs, fmt.Errorf("purging records: %w", err))
	} else {
		res.RecordsDeleted = n
		if n > 0 {
			m.log.Info("expired records purged",
				zap.Int("deleted", n),
				zap.Int("horizon_days", m.policy.RecordHorizonDays))
			m.auditEvent(audit.EventPurged, n)
		}
	}

	n, err = m.auditor.PurgeOlderThan(m.policy.LogHorizonDays)
	if err != nil {
		errs = append(errs, fmt.Errorf("purging audit log: %w", err))
	} else {
		res.LogLinesDeleted = n
		if n > 0 {
			m.log.Info("expired audit lines purged",
				zap.Int("deleted", n),
				zap.Int("horizon_days", m.policy.LogHorizonDays))
			m.auditEvent(audit.EventLogPurged, n)
		}
	}

	n, err = m.rotator.PurgeOlderThan(m.policy.BackupHorizonDays)
	if err != nil {
		errs = append(errs, fmt.Errorf("purging backups: %w", err))
	} else {
		res.BackupsDeleted = n
		if n > 0 {
			m.log.Info("expired backups purged",
				zap.Int("deleted", n),
				zap.Int("horizon_days", m.policy.BackupHorizonDays))
			m.auditEvent(audit.EventBackupPurged, n)
		}
	}

	return res, errors.Join(errs...)
}

func (m *Manager) auditEvent(eventType string, deleted int) {
	err := m.auditor.Append(eventType, map[string]string{
		"deleted": strconv.Itoa(deleted),
	}, "")
	if err != nil {
		m.log.Warn("recording retention audit event failed",
			zap.String("event", eventType), zap.Error(err))
	}
}
