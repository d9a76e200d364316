// Package logging builds the structured logger for praxisd. Every sink
// goes through a redacting encoder so patient identifiers never appear
// in log output, whatever a call site passes.
package logging

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger.
type Options struct {
	Level     string // debug, info, warn, error
	Format    string // json or console
	Redaction RedactionConfig
}

// New builds a zap logger writing to stderr through the redacting
// encoder. The zero Options value yields an info-level JSON logger with
// the default redaction rules.
func New(opts Options) (*zap.Logger, error) {
	if opts.Level == "" {
		opts.Level = "info"
	}
	if opts.Format == "" {
		opts.Format = "json"
	}
	if !opts.Redaction.Enabled && opts.Redaction.Fields == nil {
		opts.Redaction = DefaultRedaction()
	}

	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", opts.Level, err)
	}

	encoder, err := NewRedactingEncoder(newEncoder(opts.Format), opts.Redaction)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core, zap.AddCaller()), nil
}

// NewTee layers the OpenTelemetry bridge over the base logger so log
// records also flow to the configured exporter. A nil provider returns
// the base logger unchanged.
//
// The bridge core receives raw field values, so it only attaches when
// an exporter is actually configured; the operator opting into OTLP
// export is opting into shipping log records off the host.
func NewTee(base *zap.Logger, provider log.LoggerProvider) *zap.Logger {
	if provider == nil {
		return base
	}
	bridge := otelzap.NewCore("github.com/klinikwerk/praxisd",
		otelzap.WithLoggerProvider(provider))
	return base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, bridge)
	}))
}

// newEncoder creates a JSON or console encoder.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// Sync flushes the logger, swallowing the harmless EINVAL/ENOTTY that
// syncing stderr returns on Linux.
func Sync(log *zap.Logger) error {
	err := log.Sync()
	if err != nil && isStderrSyncError(err) {
		return nil
	}
	return err
}

func isStderrSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}
