// Package audit provides the durable, append-only event log mandated
// for every lifecycle action on stored personal data. Entries are
// pseudonymized before they exist: a detail field named "email" never
// reaches disk, only its hash does.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/klinikwerk/praxisd/internal/pseudonym"
)

// Well-known event types. Free-form types are allowed; these are the
// ones the core emits itself.
const (
	EventCreated       = "created"
	EventPurged        = "purged"
	EventLogPurged     = "log-purged"
	EventBackupCreated = "backup-created"
	EventBackupPurged  = "backup-purged"
	EventSkipped       = "skipped"
)

// Entry is one audit log line.
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Details   map[string]string `json:"details"`
	IPAddress *string           `json:"ip_address"`
}

// Logger appends pseudonymized events to a JSONL file. Appends are
// serialized so concurrent callers never interleave within a line;
// purge holds the same lock only for its rewrite-and-swap step.
type Logger struct {
	path  string
	log   *zap.Logger
	clock func() time.Time

	mu sync.Mutex
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Logger) { l.clock = clock }
}

// NewLogger creates an audit logger writing to path. The file is
// created lazily on first append.
func NewLogger(path string, log *zap.Logger, opts ...Option) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Logger{
		path:  path,
		log:   log,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append writes one event line. Any detail keyed "email" is replaced
// by "email_hash" before the entry is constructed; the raw address is
// never persisted. sourceAddr may be empty.
func (l *Logger) Append(eventType string, details map[string]string, sourceAddr string) error {
	scrubbed := make(map[string]string, len(details))
	for k, v := range details {
		scrubbed[k] = v
	}
	if email, ok := scrubbed["email"]; ok {
		delete(scrubbed, "email")
		scrubbed["email_hash"] = pseudonym.Short(email)
	}

	entry := Entry{
		Timestamp: l.clock(),
		EventType: eventType,
		Details:   scrubbed,
	}
	if sourceAddr != "" {
		entry.IPAddress = &sourceAddr
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	// Single write keeps the line atomic with respect to other appenders.
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// ReadSince returns all entries whose timestamp falls within
// [now-window, now]. Lines that fail to parse are skipped and counted,
// never fatal; a missing log file reads as empty.
func (l *Logger) ReadSince(window time.Duration) ([]Entry, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLocked(l.clock().Add(-window))
}

func (l *Logger) readLocked(cutoff time.Time) ([]Entry, int, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var (
		entries []Entry
		skipped int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			skipped++
			continue
		}
		if e.Timestamp.Before(cutoff) {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, skipped, fmt.Errorf("scanning audit log: %w", err)
	}
	return entries, skipped, nil
}

// PurgeOlderThan rewrites the log keeping only entries younger than
// the horizon and reports how many were removed. The rewrite goes to a
// temporary file that atomically replaces the log, so a fault mid-way
// leaves the previous state intact.
func (l *Logger) PurgeOlderThan(days int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("opening audit log: %w", err)
	}

	cutoff := l.clock().AddDate(0, 0, -days)
	var (
		kept    []string
		removed int
		corrupt int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			corrupt++
			continue
		}
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return 0, fmt.Errorf("scanning audit log: %w", scanErr)
	}

	if err := l.replaceWith(kept); err != nil {
		return 0, err
	}

	if corrupt > 0 {
		l.log.Warn("dropped unparsable audit lines during purge", zap.Int("count", corrupt))
	}
	return removed, nil
}

func (l *Logger) replaceWith(lines []string) error {
	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp log: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing temp log: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing temp log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp log: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("restricting temp log permissions: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing audit log: %w", err)
	}
	return nil
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}
