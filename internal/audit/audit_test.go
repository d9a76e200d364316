package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, now time.Time) *Logger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	return NewLogger(path, nil, WithClock(func() time.Time { return now }))
}

func TestLogger_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	l := newTestLogger(t, now)

	for i := 0; i < 5; i++ {
		err := l.Append(EventCreated, map[string]string{
			"email":  "anna@example.org",
			"reason": "varicose_veins",
		}, "192.0.2.10")
		require.NoError(t, err)
	}

	entries, skipped, err := l.ReadSince(24 * time.Hour)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, entries, 5)

	for _, e := range entries {
		assert.Equal(t, EventCreated, e.EventType)
		assert.Equal(t, "varicose_veins", e.Details["reason"])
		assert.NotContains(t, e.Details, "email")
		assert.Len(t, e.Details["email_hash"], 16)
		require.NotNil(t, e.IPAddress)
		assert.Equal(t, "192.0.2.10", *e.IPAddress)
	}
}

func TestLogger_RawEmailNeverOnDisk(t *testing.T) {
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	l := newTestLogger(t, now)

	require.NoError(t, l.Append(EventCreated, map[string]string{"email": "anna@example.org"}, ""))

	raw, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "anna@example.org")
	assert.Contains(t, string(raw), "email_hash")
}

func TestLogger_LineFormat(t *testing.T) {
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	l := newTestLogger(t, now)
	require.NoError(t, l.Append(EventPurged, map[string]string{"deleted": "3"}, ""))

	raw, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	line := strings.TrimSpace(string(raw))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.Equal(t, EventPurged, decoded["event_type"])
	assert.Nil(t, decoded["ip_address"])
	assert.Contains(t, decoded, "timestamp")
}

func TestLogger_ReadSinceSkipsCorruptLines(t *testing.T) {
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	l := newTestLogger(t, now)

	require.NoError(t, l.Append(EventCreated, nil, ""))
	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\nplain garbage\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, l.Append(EventCreated, nil, ""))

	entries, skipped, err := l.ReadSince(time.Hour)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 2, skipped)
}

func TestLogger_ReadSinceWindow(t *testing.T) {
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	clock := now.Add(-48 * time.Hour)
	path := filepath.Join(t.TempDir(), "audit.log")
	l := NewLogger(path, nil, WithClock(func() time.Time { return clock }))

	require.NoError(t, l.Append("old-event", nil, ""))
	clock = now
	require.NoError(t, l.Append("new-event", nil, ""))

	entries, _, err := l.ReadSince(24 * time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new-event", entries[0].EventType)
}

func TestLogger_PurgeOlderThan(t *testing.T) {
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	clock := now.AddDate(0, 0, -40)
	path := filepath.Join(t.TempDir(), "audit.log")
	l := NewLogger(path, nil, WithClock(func() time.Time { return clock }))

	require.NoError(t, l.Append("stale", nil, ""))
	require.NoError(t, l.Append("stale", nil, ""))
	clock = now
	require.NoError(t, l.Append("fresh", nil, ""))

	removed, err := l.PurgeOlderThan(30)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, _, err := l.ReadSince(365 * 24 * time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "fresh", entries[0].EventType)

	// Second pass with no new writes removes nothing.
	removed, err = l.PurgeOlderThan(30)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestLogger_PurgeMissingFile(t *testing.T) {
	l := NewLogger(filepath.Join(t.TempDir(), "absent.log"), nil)
	removed, err := l.PurgeOlderThan(30)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestLogger_ConcurrentAppends(t *testing.T) {
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	l := newTestLogger(t, now)

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = l.Append(EventCreated, map[string]string{"email": "x@example.org"}, "")
			}
		}()
	}
	wg.Wait()

	entries, skipped, err := l.ReadSince(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, skipped, "interleaved appends would corrupt lines")
	assert.Len(t, entries, writers*perWriter)
}
