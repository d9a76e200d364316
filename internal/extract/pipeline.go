package extract

import (
	"strings"
	"time"
)

// Pipeline runs every field extractor over one message and assembles
// the structured request. It is pure: persisting, notifying, or
// discarding the result is the caller's decision, usually gated on
// AppointmentRequest.IsAppointmentRequest.
type Pipeline struct{}

// NewPipeline returns a ready pipeline. It holds no state; a single
// instance is safe for concurrent use.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Analyze extracts an AppointmentRequest from msg relative to the
// reference clock now. Extraction misses are never errors: each field
// falls back to its documented default.
func (p *Pipeline) Analyze(msg Message, now time.Time) AppointmentRequest {
	// Keyword matching is case-folded; name extraction needs the
	// original casing.
	text := strings.TrimSpace(msg.Subject + " " + msg.Body)
	folded := strings.ToLower(text)

	given, family := ExtractName(text)
	if given == "" {
		given = DefaultGivenName
	}

	email := ExtractEmail(text)
	if email == "" {
		email = EnvelopeAddress(msg.From)
	}

	resolved := ResolveDate(folded, now)

	return AppointmentRequest{
		GivenName:            given,
		FamilyName:           family,
		ContactEmail:         email,
		ContactPhone:         ExtractPhone(text),
		RequestedDate:        resolved.Date,
		DateRule:             resolved.Rule,
		TimeWindow:           ExtractTimeWindow(folded),
		ExplicitTime:         ExtractClockTime(folded),
		ReasonCategory:       ExtractReason(folded),
		Urgency:              ExtractUrgency(folded),
		IsAppointmentRequest: IsAppointmentRequest(folded),
		CreatedAt:            now,
	}
}
