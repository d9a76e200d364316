package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotator_Snapshot(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "requests.jsonl")
	require.NoError(t, os.WriteFile(source, []byte("{\"id\":\"a\"}\n"), 0o600))

	now := time.Date(2026, 3, 11, 9, 30, 15, 0, time.UTC)
	r := NewRotator(filepath.Join(dir, "backups"), nil, WithClock(func() time.Time { return now }))

	path, err := r.Snapshot(source)
	require.NoError(t, err)
	assert.Equal(t, "requests_backup_20260311_093015.jsonl", filepath.Base(path))

	copied, err := os.ReadFile(path)
	require.NoError(t, err)
	original, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, original, copied)
}

func TestRotator_SnapshotMissingSource(t *testing.T) {
	r := NewRotator(t.TempDir(), nil)
	_, err := r.Snapshot(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.Error(t, err)
}

func TestRotator_List(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "requests.jsonl")
	require.NoError(t, os.WriteFile(source, []byte("x\n"), 0o600))

	backupDir := filepath.Join(dir, "backups")
	now := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	clock := now
	r := NewRotator(backupDir, nil, WithClock(func() time.Time { return clock }))

	first, err := r.Snapshot(source)
	require.NoError(t, err)
	clock = now.Add(time.Minute)
	second, err := r.Snapshot(source)
	require.NoError(t, err)

	// An unrelated file in the directory is not a snapshot.
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "notes.txt"), []byte("x"), 0o600))

	snaps, err := r.List()
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Contains(t, snaps, first)
	assert.Contains(t, snaps, second)
}

func TestRotator_ListMissingDir(t *testing.T) {
	r := NewRotator(filepath.Join(t.TempDir(), "never-created"), nil)
	snaps, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestRotator_PurgeOlderThan(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0o700))

	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	stale := filepath.Join(backupDir, "requests_backup_20251201_120000.jsonl")
	fresh := filepath.Join(backupDir, "requests_backup_20260310_120000.jsonl")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(stale, now.AddDate(0, 0, -100), now.AddDate(0, 0, -100)))
	require.NoError(t, os.Chtimes(fresh, now.AddDate(0, 0, -1), now.AddDate(0, 0, -1)))

	r := NewRotator(backupDir, nil, WithClock(func() time.Time { return now }))

	removed, err := r.PurgeOlderThan(90)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestRotator_PurgeMissingDir(t *testing.T) {
	r := NewRotator(filepath.Join(t.TempDir(), "never-created"), nil)
	removed, err := r.PurgeOlderThan(90)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
