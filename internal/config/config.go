// Package config provides configuration loading for praxisd.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables with the PRAXISD_ prefix
//  2. YAML config file (~/.config/praxisd/config.yaml)
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klinikwerk/praxisd/internal/retention"
)

// Config holds the complete praxisd configuration.
type Config struct {
	Practice      PracticeConfig      `koanf:"practice"`
	Paths         PathsConfig         `koanf:"paths"`
	Retention     retention.Policy    `koanf:"retention"`
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// PracticeConfig identifies the practice on outbound artifacts such as
// calendar invitations.
type PracticeConfig struct {
	Name     string `koanf:"name"`
	Address  string `koanf:"address"`
	Phone    string `koanf:"phone"`
	ReplyTo  string `koanf:"reply_to"`
	Timezone string `koanf:"timezone"`
}

// PathsConfig locates the data files. All paths default to a single
// data directory so the whole state can be backed up or wiped at once.
type PathsConfig struct {
	DataDir   string `koanf:"data_dir"`
	Store     string `koanf:"store"`
	AuditLog  string `koanf:"audit_log"`
	BackupDir string `koanf:"backup_dir"`
	SpoolDir  string `koanf:"spool_dir"`
	OutboxDir string `koanf:"outbox_dir"`
}

// ServerConfig holds the HTTP health and metrics listener settings.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry settings.
type ObservabilityConfig struct {
	EnableTelemetry bool          `koanf:"enable_telemetry"`
	ServiceName     string        `koanf:"service_name"`
	Interval        time.Duration `koanf:"interval"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Practice.Name == "" {
		cfg.Practice.Name = "Gefäßpraxis"
	}
	if cfg.Practice.Timezone == "" {
		cfg.Practice.Timezone = "Europe/Berlin"
	}

	if cfg.Paths.DataDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.Paths.DataDir = filepath.Join(home, ".local", "share", "praxisd")
		} else {
			cfg.Paths.DataDir = "praxisd-data"
		}
	}
	if cfg.Paths.Store == "" {
		cfg.Paths.Store = filepath.Join(cfg.Paths.DataDir, "requests.jsonl")
	}
	if cfg.Paths.AuditLog == "" {
		cfg.Paths.AuditLog = filepath.Join(cfg.Paths.DataDir, "audit.log")
	}
	if cfg.Paths.BackupDir == "" {
		cfg.Paths.BackupDir = filepath.Join(cfg.Paths.DataDir, "backups")
	}
	if cfg.Paths.SpoolDir == "" {
		cfg.Paths.SpoolDir = filepath.Join(cfg.Paths.DataDir, "spool")
	}
	if cfg.Paths.OutboxDir == "" {
		cfg.Paths.OutboxDir = filepath.Join(cfg.Paths.DataDir, "outbox")
	}

	if cfg.Retention.RecordHorizonDays == 0 {
		cfg.Retention.RecordHorizonDays = 90
	}
	if cfg.Retention.LogHorizonDays == 0 {
		cfg.Retention.LogHorizonDays = 30
	}
	if cfg.Retention.BackupHorizonDays == 0 {
		cfg.Retention.BackupHorizonDays = 90
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9180
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "praxisd"
	}
	if cfg.Observability.Interval == 0 {
		cfg.Observability.Interval = time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks the configuration for values the daemon cannot run
// with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.http_port %d out of range", c.Server.Port)
	}
	for name, days := range map[string]int{
		"retention.record_horizon_days": c.Retention.RecordHorizonDays,
		"retention.log_horizon_days":    c.Retention.LogHorizonDays,
		"retention.backup_horizon_days": c.Retention.BackupHorizonDays,
	} {
		if days < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, days)
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q not recognized", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q not recognized", c.Logging.Format)
	}
	if _, err := time.LoadLocation(c.Practice.Timezone); err != nil {
		return fmt.Errorf("practice.timezone %q invalid: %w", c.Practice.Timezone, err)
	}
	return nil
}
