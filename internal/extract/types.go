package extract

import (
	"time"
)

// TimeWindow is the coarse part-of-day preference for an appointment.
type TimeWindow string

const (
	WindowMorning     TimeWindow = "morning"
	WindowAfternoon   TimeWindow = "afternoon"
	WindowUnspecified TimeWindow = "unspecified"
)

// ReasonCategory classifies the treatment reason against the fixed
// vocabulary of a vascular practice.
type ReasonCategory string

const (
	ReasonVaricoseVeins ReasonCategory = "varicose_veins"
	ReasonVascularCheck ReasonCategory = "vascular_check"
	ReasonPain          ReasonCategory = "pain"
	ReasonFollowUp      ReasonCategory = "follow_up"
	ReasonConsultation  ReasonCategory = "consultation"
	ReasonGeneral       ReasonCategory = "general"
)

// Urgency grades how quickly the sender wants to be seen.
type Urgency string

const (
	UrgencyNormal    Urgency = "normal"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// DateRule names the resolver rule that produced a date. Callers can
// tell a confident match apart from the low-confidence fallback.
type DateRule string

const (
	RuleExplicitDate     DateRule = "explicit_date"
	RuleWeekday          DateRule = "weekday"
	RuleNextWeek         DateRule = "next_week"
	RuleTomorrow         DateRule = "tomorrow"
	RuleDayAfterTomorrow DateRule = "day_after_tomorrow"
	RuleInDays           DateRule = "in_n_days"
	RuleFallbackNextWeek DateRule = "fallback_next_week"
)

// DefaultGivenName substitutes for an unrecoverable sender name.
const DefaultGivenName = "Unbekannt"

// Message is the normalized input to the pipeline: one mail-like
// message with its envelope sender. Transport is somebody else's job.
type Message struct {
	ID      string
	From    string
	Subject string
	Body    string
}

// AppointmentRequest is the structured result of analyzing one message.
// It is assembled once by the pipeline and immutable afterwards.
type AppointmentRequest struct {
	GivenName            string         `json:"given_name"`
	FamilyName           string         `json:"family_name"`
	ContactEmail         string         `json:"contact_email"`
	ContactPhone         string         `json:"contact_phone"`
	RequestedDate        time.Time      `json:"requested_date"`
	DateRule             DateRule       `json:"date_rule"`
	TimeWindow           TimeWindow     `json:"time_window"`
	ExplicitTime         string         `json:"explicit_time,omitempty"`
	ReasonCategory       ReasonCategory `json:"reason_category"`
	Urgency              Urgency        `json:"urgency"`
	IsAppointmentRequest bool           `json:"is_appointment_request"`
	CreatedAt            time.Time      `json:"created_at"`
}

// FullName joins the extracted name parts for display.
func (r AppointmentRequest) FullName() string {
	if r.FamilyName == "" {
		return r.GivenName
	}
	return r.GivenName + " " + r.FamilyName
}
