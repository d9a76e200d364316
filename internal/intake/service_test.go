package intake

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klinikwerk/praxisd/internal/audit"
	"github.com/klinikwerk/praxisd/internal/extract"
	"github.com/klinikwerk/praxisd/internal/ics"
	"github.com/klinikwerk/praxisd/internal/store"
)

type fakeSource struct {
	messages []extract.Message
	acked    []string
	fetchErr error
	ackErr   error
}

func (f *fakeSource) Fetch(ctx context.Context) ([]extract.Message, error) {
	return f.messages, f.fetchErr
}

func (f *fakeSource) MarkProcessed(ctx context.Context, messageID string) error {
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, messageID)
	return nil
}

type sentConfirmation struct {
	req        extract.AppointmentRequest
	invitation string
}

type fakeResponder struct {
	sent []sentConfirmation
	err  error
}

func (f *fakeResponder) SendConfirmation(ctx context.Context, req extract.AppointmentRequest, invitation string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentConfirmation{req, invitation})
	return nil
}

var testNow = time.Date(2026, 3, 11, 9, 30, 0, 0, time.Local)

func appointmentMessage() extract.Message {
	return extract.Message{
		ID:      "msg-1.txt",
		From:    "Anna Schmidt <anna.schmidt@example.org>",
		Subject: "Terminanfrage",
		Body: "Hallo, mein Name ist Anna Schmidt, ich hätte gerne einen Termin " +
			"nächsten Montag vormittags wegen Krampfadern.",
	}
}

func billingMessage() extract.Message {
	return extract.Message{
		ID:      "msg-2.txt",
		From:    "absender@example.org",
		Subject: "Frage zur Rechnung",
		Body:    "Guten Tag, die letzte Rechnung erscheint mir zu hoch.",
	}
}

func newTestService(t *testing.T, src Source, opts ...Option) (Service, *store.Store, *audit.Logger) {
	t.Helper()
	dir := t.TempDir()
	st := store.Open(filepath.Join(dir, "requests.jsonl"), nil)
	a := audit.NewLogger(filepath.Join(dir, "audit.log"), nil)
	invites := ics.NewBuilder("Gefäßpraxis am Ring", "Ringstraße 1, Köln")

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	svc, err := NewService(st, a, invites, src, nil, opts...)
	require.NoError(t, err)
	return svc, st, a
}

func TestService_ProcessBatchStoresRequest(t *testing.T) {
	src := &fakeSource{messages: []extract.Message{appointmentMessage()}}
	responder := &fakeResponder{}
	svc, st, a := newTestService(t, src, WithResponder(responder))

	res, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Processed: 1}, res)

	records, _, err := st.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Anna", records[0].GivenName)
	assert.Equal(t, extract.ReasonVaricoseVeins, records[0].ReasonCategory)
	assert.Equal(t, "anna.schmidt@example.org", records[0].ContactEmail)

	entries, _, err := a.ReadSince(time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.EventCreated, entries[0].EventType)
	assert.NotContains(t, entries[0].Details, "email")
	assert.Len(t, entries[0].Details["email_hash"], 16)
	assert.Equal(t, "varicose_veins", entries[0].Details["reason"])

	require.Len(t, responder.sent, 1)
	assert.Contains(t, responder.sent[0].invitation, "STATUS:TENTATIVE")
	assert.Contains(t, responder.sent[0].invitation, "DTSTART;TZID=Europe/Berlin:20260316T100000")

	assert.Equal(t, []string{"msg-1.txt"}, src.acked)
}

func TestService_GatedMessageIsNotPersisted(t *testing.T) {
	src := &fakeSource{messages: []extract.Message{billingMessage()}}
	responder := &fakeResponder{}
	svc, st, a := newTestService(t, src, WithResponder(responder))

	res, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Skipped: 1}, res)

	records, _, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, responder.sent)

	entries, _, err := a.ReadSince(time.Hour)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.EventSkipped, entries[0].EventType)

	// Gated messages still get acknowledged so they are not re-read.
	assert.Equal(t, []string{"msg-2.txt"}, src.acked)
}

func TestService_MixedBatch(t *testing.T) {
	src := &fakeSource{messages: []extract.Message{appointmentMessage(), billingMessage()}}
	svc, st, _ := newTestService(t, src)

	res, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Processed: 1, Skipped: 1}, res)

	records, _, err := st.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestService_FetchErrorIsFatal(t *testing.T) {
	src := &fakeSource{fetchErr: errors.New("imap down")}
	svc, _, _ := newTestService(t, src)

	_, err := svc.ProcessBatch(context.Background())
	assert.ErrorContains(t, err, "imap down")
}

func TestService_ResponderFailureKeepsRecord(t *testing.T) {
	src := &fakeSource{messages: []extract.Message{appointmentMessage()}}
	responder := &fakeResponder{err: errors.New("smtp refused")}
	svc, st, _ := newTestService(t, src, WithResponder(responder))

	res, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Processed: 1}, res)

	records, _, err := st.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestService_AckFailureCountsAsFailed(t *testing.T) {
	src := &fakeSource{
		messages: []extract.Message{appointmentMessage()},
		ackErr:   errors.New("rename failed"),
	}
	svc, _, _ := newTestService(t, src)

	res, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Failed: 1}, res)
}

func TestService_NoResponderStoresSilently(t *testing.T) {
	src := &fakeSource{messages: []extract.Message{appointmentMessage()}}
	svc, st, _ := newTestService(t, src)

	res, err := svc.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Processed: 1}, res)

	records, _, err := st.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
