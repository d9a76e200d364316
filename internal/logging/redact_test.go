package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newCapturingLogger(t *testing.T, cfg RedactionConfig) (*zap.Logger, *bytes.Buffer) {
	t.Helper()
	encoder, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	core := zapcore.NewCore(encoder, zapcore.AddSync(buf), zapcore.DebugLevel)
	return zap.New(core), buf
}

func TestRedactingEncoder_FieldNames(t *testing.T) {
	log, buf := newCapturingLogger(t, DefaultRedaction())

	log.Info("intake",
		zap.String("email", "anna@example.org"),
		zap.String("contact_phone", "02211234567"),
		zap.String("reason", "varicose_veins"))
	require.NoError(t, Sync(log))

	out := buf.String()
	assert.NotContains(t, out, "anna@example.org")
	assert.NotContains(t, out, "02211234567")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "varicose_veins")
}

func TestRedactingEncoder_ValuePattern(t *testing.T) {
	log, buf := newCapturingLogger(t, DefaultRedaction())

	// An address smuggled through a non-sensitive key still gets caught.
	log.Info("intake", zap.String("note", "reply to anna@example.org please"))
	require.NoError(t, Sync(log))

	out := buf.String()
	assert.NotContains(t, out, "anna@example.org")
	assert.Contains(t, out, "[REDACTED:pattern]")
}

func TestRedactingEncoder_CaseInsensitiveKeys(t *testing.T) {
	log, buf := newCapturingLogger(t, DefaultRedaction())

	log.Info("intake", zap.String("Email", "anna@example.org"))
	require.NoError(t, Sync(log))

	assert.NotContains(t, buf.String(), "anna@example.org")
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	log, buf := newCapturingLogger(t, RedactionConfig{Enabled: false})

	log.Info("intake", zap.String("email", "anna@example.org"))
	require.NoError(t, Sync(log))

	assert.Contains(t, buf.String(), "anna@example.org")
}

func TestRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{
		Enabled:  true,
		Patterns: []string{"([unclosed"},
	})
	assert.Error(t, err)
}

func TestNew_LevelAndFormat(t *testing.T) {
	log, err := New(Options{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New(Options{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))

	_, err = New(Options{Level: "noisy"})
	assert.Error(t, err)
}
