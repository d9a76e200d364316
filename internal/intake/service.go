// Package intake orchestrates the path from an incoming message to a
// stored appointment request: extraction, the intent gate, persistence,
// the audit trail, and the confirmation hand-off.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/klinikwerk/praxisd/internal/audit"
	"github.com/klinikwerk/praxisd/internal/extract"
	"github.com/klinikwerk/praxisd/internal/ics"
	"github.com/klinikwerk/praxisd/internal/pseudonym"
	"github.com/klinikwerk/praxisd/internal/store"
)

const instrumentationName = "github.com/klinikwerk/praxisd/internal/intake"

// Source abstracts the mail transport: it yields unprocessed messages
// and acknowledges the ones intake has dealt with.
type Source interface {
	Fetch(ctx context.Context) ([]extract.Message, error)
	MarkProcessed(ctx context.Context, messageID string) error
}

// Responder abstracts confirmation delivery. The invitation is a
// rendered calendar document; implementations attach it to whatever
// reply channel the practice uses.
type Responder interface {
	SendConfirmation(ctx context.Context, req extract.AppointmentRequest, invitation string) error
}

// BatchResult summarizes one intake pass.
type BatchResult struct {
	Processed int
	Skipped   int
	Failed    int
}

// Service consumes a Source and turns messages into stored requests.
type Service interface {
	// ProcessBatch fetches and handles every pending message. Per
	// message failures are counted, not fatal; the batch always runs
	// to completion.
	ProcessBatch(ctx context.Context) (BatchResult, error)

	// ProcessMessage handles a single message.
	ProcessMessage(ctx context.Context, msg extract.Message) (store.Record, bool, error)
}

// service implements the Service interface.
type service struct {
	pipeline  *extract.Pipeline
	store     *store.Store
	auditor   *audit.Logger
	invites   *ics.Builder
	source    Source
	responder Responder
	logger    *zap.Logger
	clock     func() time.Time

	tracer           trace.Tracer
	meter            metric.Meter
	processedCounter metric.Int64Counter
	skippedCounter   metric.Int64Counter
	failedCounter    metric.Int64Counter
}

// Option configures the service.
type Option func(*service)

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(s *service) { s.clock = clock }
}

// WithResponder attaches confirmation delivery. Without one, intake
// stores and audits but sends nothing.
func WithResponder(r Responder) Option {
	return func(s *service) { s.responder = r }
}

// NewService wires an intake service. Store, audit logger, invitation
// builder, and source are required; the logger may be nil.
func NewService(st *store.Store, a *audit.Logger, invites *ics.Builder, src Source, logger *zap.Logger, opts ...Option) (Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if a == nil {
		return nil, errors.New("audit logger is required")
	}
	if invites == nil {
		return nil, errors.New("invitation builder is required")
	}
	if src == nil {
		return nil, errors.New("source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &service{
		pipeline: extract.NewPipeline(),
		store:    st,
		auditor:  a,
		invites:  invites,
		source:   src,
		logger:   logger,
		clock:    time.Now,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initMetrics()

	return s, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (s *service) initMetrics() {
	var err error

	s.processedCounter, err = s.meter.Int64Counter(
		"praxisd.intake.processed_total",
		metric.WithDescription("Messages stored as appointment requests"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		s.logger.Warn("failed to create processed counter", zap.Error(err))
	}

	s.skippedCounter, err = s.meter.Int64Counter(
		"praxisd.intake.skipped_total",
		metric.WithDescription("Messages without appointment intent"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		s.logger.Warn("failed to create skipped counter", zap.Error(err))
	}

	s.failedCounter, err = s.meter.Int64Counter(
		"praxisd.intake.failed_total",
		metric.WithDescription("Messages that failed during intake"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		s.logger.Warn("failed to create failed counter", zap.Error(err))
	}
}

// ProcessBatch fetches pending messages and handles each in turn.
func (s *service) ProcessBatch(ctx context.Context) (BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "intake.ProcessBatch")
	defer span.End()

	var res BatchResult

	messages, err := s.source.Fetch(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return res, fmt.Errorf("fetching messages: %w", err)
	}

	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		_, stored, err := s.ProcessMessage(ctx, msg)
		switch {
		case err != nil:
			res.Failed++
			s.logger.Error("message intake failed",
				zap.String("message_id", msg.ID), zap.Error(err))
		case stored:
			res.Processed++
		default:
			res.Skipped++
		}
	}

	span.SetAttributes(
		attribute.Int("intake.processed", res.Processed),
		attribute.Int("intake.skipped", res.Skipped),
		attribute.Int("intake.failed", res.Failed),
	)
	return res, nil
}

// ProcessMessage runs extraction on one message. The returned bool
// reports whether a record was stored; a gated-out message is not an
// error.
func (s *service) ProcessMessage(ctx context.Context, msg extract.Message) (store.Record, bool, error) {
	ctx, span := s.tracer.Start(ctx, "intake.ProcessMessage")
	defer span.End()

	req := s.pipeline.Analyze(msg, s.clock())

	if !req.IsAppointmentRequest {
		s.skippedCounter.Add(ctx, 1)
		s.logger.Info("message skipped, no appointment intent",
			zap.String("message_id", msg.ID),
			zap.String("email_hash", pseudonym.Short(req.ContactEmail)))
		if err := s.auditor.Append(audit.EventSkipped, map[string]string{
			"email":      req.ContactEmail,
			"message_id": msg.ID,
		}, ""); err != nil {
			s.logger.Warn("audit append failed", zap.Error(err))
		}
		if err := s.source.MarkProcessed(ctx, msg.ID); err != nil {
			return store.Record{}, false, fmt.Errorf("acknowledging message %s: %w", msg.ID, err)
		}
		return store.Record{}, false, nil
	}

	rec, err := s.store.Save(req)
	if err != nil {
		s.failedCounter.Add(ctx, 1)
		span.SetStatus(codes.Error, err.Error())
		return store.Record{}, false, fmt.Errorf("storing request from message %s: %w", msg.ID, err)
	}

	if err := s.auditor.Append(audit.EventCreated, map[string]string{
		"email":          req.ContactEmail,
		"record_id":      rec.ID,
		"reason":         string(req.ReasonCategory),
		"urgency":        string(req.Urgency),
		"requested_date": req.RequestedDate.Format("2006-01-02"),
		"date_rule":      string(req.DateRule),
	}, ""); err != nil {
		s.logger.Warn("audit append failed", zap.Error(err))
	}

	if s.responder != nil {
		invitation := s.invites.Build(req)
		if err := s.responder.SendConfirmation(ctx, req, invitation); err != nil {
			// The record is stored; delivery failure must not lose it.
			s.logger.Error("confirmation delivery failed",
				zap.String("record_id", rec.ID), zap.Error(err))
		}
	}

	if err := s.source.MarkProcessed(ctx, msg.ID); err != nil {
		return rec, true, fmt.Errorf("acknowledging message %s: %w", msg.ID, err)
	}

	s.processedCounter.Add(ctx, 1)
	s.logger.Info("appointment request stored",
		zap.String("record_id", rec.ID),
		zap.String("email_hash", pseudonym.Short(req.ContactEmail)),
		zap.String("reason", string(req.ReasonCategory)),
		zap.String("urgency", string(req.Urgency)),
		zap.String("requested_date", req.RequestedDate.Format("2006-01-02")))

	return rec, true, nil
}
