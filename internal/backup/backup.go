// Package backup snapshots the record store into a rotation directory
// and prunes snapshots past the retention horizon. Snapshots are plain
// file copies; the store's own line format makes them self-describing.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const timestampLayout = "20060102_150405"

// Rotator manages timestamped snapshots under a single directory.
type Rotator struct {
	dir   string
	log   *zap.Logger
	clock func() time.Time
}

// Option configures a Rotator.
type Option func(*Rotator)

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(r *Rotator) { r.clock = clock }
}

// NewRotator returns a rotator writing snapshots into dir.
func NewRotator(dir string, log *zap.Logger, opts ...Option) *Rotator {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Rotator{
		dir:   dir,
		log:   log,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot copies the file at sourcePath into the rotation directory
// under a timestamped name, creating the directory if needed, and
// returns the snapshot path. A missing source is an error; callers
// decide whether an empty store warrants a snapshot at all.
func (r *Rotator) Snapshot(sourcePath string) (string, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("opening backup source: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	target := filepath.Join(r.dir, snapshotName(sourcePath, r.clock()))
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating snapshot: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return "", fmt.Errorf("copying snapshot: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("closing snapshot: %w", err)
	}

	r.log.Info("backup snapshot written", zap.String("path", target))
	return target, nil
}

// snapshotName derives "<base>_backup_<YYYYMMDD_HHMMSS><ext>" from the
// source file name.
func snapshotName(sourcePath string, now time.Time) string {
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s_backup_%s%s", stem, now.Format(timestampLayout), ext)
}

// List returns the snapshot paths currently in the rotation directory,
// oldest first by modification time. A missing directory lists as
// empty.
func (r *Rotator) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	type dated struct {
		path string
		mod  time.Time
	}
	var snaps []dated
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), "_backup_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snaps = append(snaps, dated{filepath.Join(r.dir, entry.Name()), info.ModTime()})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].mod.Before(snaps[j].mod) })

	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.path)
	}
	return out, nil
}

// PurgeOlderThan removes snapshots whose modification time precedes
// now minus the horizon and reports how many were removed.
func (r *Rotator) PurgeOlderThan(days int) (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading backup directory: %w", err)
	}

	cutoff := r.clock().AddDate(0, 0, -days)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.Contains(entry.Name(), "_backup_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			r.log.Warn("removing stale snapshot failed", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// Dir returns the rotation directory.
func (r *Rotator) Dir() string {
	return r.dir
}
