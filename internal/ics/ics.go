// Package ics renders a tentative calendar invitation for an extracted
// appointment request. The output is a minimal RFC 5545 document with a
// Europe/Berlin timezone block, suitable for attaching to a reply.
package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/klinikwerk/praxisd/internal/extract"
)

const (
	// Default slot starts when the message names no clock time.
	morningStartHour   = 10
	afternoonStartHour = 14

	slotMinutes = 30
)

// Builder renders calendar invitations for one practice.
type Builder struct {
	practiceName string
	location     string
}

// NewBuilder returns a builder stamping events with the practice name
// and visiting address.
func NewBuilder(practiceName, location string) *Builder {
	return &Builder{practiceName: practiceName, location: location}
}

// Build renders the invitation for req. The slot starts at the explicit
// clock time when one was extracted, otherwise at the default hour for
// the requested window, and always lasts thirty minutes. The event is
// marked tentative; the practice confirms or moves it by hand.
func (b *Builder) Build(req extract.AppointmentRequest) string {
	start := b.slotStart(req)
	end := start.Add(slotMinutes * time.Minute)

	summary := fmt.Sprintf("Terminvorschlag %s", b.practiceName)
	description := fmt.Sprintf("Vorgeschlagener Termin für %s. Bitte bestätigen Sie telefonisch oder per E-Mail.", req.FullName())

	var sb strings.Builder
	writeLine(&sb, "BEGIN:VCALENDAR")
	writeLine(&sb, "VERSION:2.0")
	writeLine(&sb, "PRODID:-//praxisd//Terminvorschlag//DE")
	writeLine(&sb, "CALSCALE:GREGORIAN")
	writeLine(&sb, "METHOD:REQUEST")
	b.writeTimezone(&sb)
	writeLine(&sb, "BEGIN:VEVENT")
	writeLine(&sb, "UID:"+eventUID(start, req.FamilyName))
	writeLine(&sb, "DTSTAMP:"+req.CreatedAt.UTC().Format("20060102T150405Z"))
	writeLine(&sb, "DTSTART;TZID=Europe/Berlin:"+start.Format("20060102T150405"))
	writeLine(&sb, "DTEND;TZID=Europe/Berlin:"+end.Format("20060102T150405"))
	writeLine(&sb, "SUMMARY:"+escape(summary))
	writeLine(&sb, "DESCRIPTION:"+escape(description))
	if b.location != "" {
		writeLine(&sb, "LOCATION:"+escape(b.location))
	}
	writeLine(&sb, "STATUS:TENTATIVE")
	writeLine(&sb, "BEGIN:VALARM")
	writeLine(&sb, "ACTION:DISPLAY")
	writeLine(&sb, "DESCRIPTION:Terminerinnerung")
	writeLine(&sb, "TRIGGER:-PT24H")
	writeLine(&sb, "END:VALARM")
	writeLine(&sb, "END:VEVENT")
	writeLine(&sb, "END:VCALENDAR")
	return sb.String()
}

func (b *Builder) slotStart(req extract.AppointmentRequest) time.Time {
	day := req.RequestedDate
	hour := morningStartHour
	minute := 0

	if h, m, ok := parseClock(req.ExplicitTime); ok {
		hour, minute = h, m
	} else if req.TimeWindow == extract.WindowAfternoon {
		hour = afternoonStartHour
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func parseClock(v string) (hour, minute int, ok bool) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// eventUID is stable for a given slot and family name, so re-running
// extraction on the same message produces the same invitation.
func eventUID(start time.Time, familyName string) string {
	name := strings.ToLower(strings.ReplaceAll(familyName, " ", "-"))
	if name == "" {
		name = "unbekannt"
	}
	return fmt.Sprintf("%s-%s@praxisd", start.Format("20060102T1504"), name)
}

func (b *Builder) writeTimezone(sb *strings.Builder) {
	writeLine(sb, "BEGIN:VTIMEZONE")
	writeLine(sb, "TZID:Europe/Berlin")
	writeLine(sb, "BEGIN:DAYLIGHT")
	writeLine(sb, "TZOFFSETFROM:+0100")
	writeLine(sb, "TZOFFSETTO:+0200")
	writeLine(sb, "TZNAME:CEST")
	writeLine(sb, "DTSTART:19700329T020000")
	writeLine(sb, "RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=-1SU")
	writeLine(sb, "END:DAYLIGHT")
	writeLine(sb, "BEGIN:STANDARD")
	writeLine(sb, "TZOFFSETFROM:+0200")
	writeLine(sb, "TZOFFSETTO:+0100")
	writeLine(sb, "TZNAME:CET")
	writeLine(sb, "DTSTART:19701025T030000")
	writeLine(sb, "RRULE:FREQ=YEARLY;BYMONTH=10;BYDAY=-1SU")
	writeLine(sb, "END:STANDARD")
	writeLine(sb, "END:VTIMEZONE")
}

// writeLine terminates with CRLF as RFC 5545 requires.
func writeLine(sb *strings.Builder, line string) {
	sb.WriteString(line)
	sb.WriteString("\r\n")
}

// escape applies the TEXT escaping rules for property values.
func escape(v string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
	)
	return r.Replace(v)
}
