package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klinikwerk/praxisd/internal/audit"
	"github.com/klinikwerk/praxisd/internal/backup"
	"github.com/klinikwerk/praxisd/internal/extract"
	"github.com/klinikwerk/praxisd/internal/store"
)

func request(createdAt time.Time) extract.AppointmentRequest {
	return extract.AppointmentRequest{
		GivenName:            "Anna",
		ContactEmail:         "anna@example.org",
		IsAppointmentRequest: true,
		CreatedAt:            createdAt,
	}
}

func TestGenerator_Generate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)
	tick := func() time.Time { return now }

	s := store.Open(filepath.Join(dir, "requests.jsonl"), nil, store.WithClock(tick))
	a := audit.NewLogger(filepath.Join(dir, "audit.log"), nil, audit.WithClock(tick))
	r := backup.NewRotator(filepath.Join(dir, "backups"), nil, backup.WithClock(tick))

	ages := []int{5, 45, 75, 120}
	var ids []string
	for _, days := range ages {
		rec, err := s.Save(request(now.AddDate(0, 0, -days)))
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	require.NoError(t, s.MarkProcessed(ids[0]))
	require.NoError(t, a.Append(audit.EventCreated, nil, ""))

	_, err := r.Snapshot(s.Path())
	require.NoError(t, err)

	g := NewGenerator(s, a, r, WithClock(tick))
	rep, err := g.Generate()
	require.NoError(t, err)

	assert.Equal(t, now, rep.GeneratedAt)
	assert.Equal(t, 4, rep.TotalRecords)
	assert.Equal(t, 1, rep.ProcessedCount)
	assert.Equal(t, 3, rep.PendingCount)
	assert.Equal(t, AgeBuckets{Under30: 1, Days30To60: 1, Days60To90: 1, Over90: 1}, rep.Ages)
	assert.Zero(t, rep.MalformedLines)
	assert.Positive(t, rep.StoreBytes)
	assert.Positive(t, rep.AuditBytes)
	assert.Equal(t, 1, rep.BackupCount)
}

func TestGenerator_EmptyWorld(t *testing.T) {
	dir := t.TempDir()
	s := store.Open(filepath.Join(dir, "requests.jsonl"), nil)
	a := audit.NewLogger(filepath.Join(dir, "audit.log"), nil)
	r := backup.NewRotator(filepath.Join(dir, "backups"), nil)

	g := NewGenerator(s, a, r)
	rep, err := g.Generate()
	require.NoError(t, err)

	assert.Zero(t, rep.TotalRecords)
	assert.Zero(t, rep.StoreBytes)
	assert.Zero(t, rep.AuditBytes)
	assert.Zero(t, rep.BackupCount)
}
