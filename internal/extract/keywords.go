package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Keyword vocabularies. All matching happens against the case-folded
// text; the enums keep the stored values stable and English while the
// vocabulary stays German.

var morningKeywords = []string{"morgens", "vormittags", "früh", "am vormittag", "vor 12"}

var afternoonKeywords = []string{"nachmittags", "am nachmittag", "nach 12", "abends"}

// reasonRules is scanned in declaration order; the first category with
// a keyword hit wins. "nachkontrolle" therefore lands in the check
// category via "kontrolle" before the follow-up row is ever reached,
// which mirrors how the practice triages such mails.
var reasonRules = []struct {
	Category ReasonCategory
	Keywords []string
}{
	{ReasonVaricoseVeins, []string{"krampfader", "varikose", "varizen", "venenerkrankung"}},
	{ReasonVascularCheck, []string{"check", "untersuchung", "kontrolle", "vorsorge"}},
	{ReasonPain, []string{"schmerz", "wehtun", "beschwerden"}},
	{ReasonFollowUp, []string{"nachsorge", "nachkontrolle", "kontrolle nach"}},
	{ReasonConsultation, []string{"beratung", "gespräch", "information"}},
}

var intentKeywords = []string{
	"termin", "termine", "terminanfrage", "terminwunsch",
	"vereinbaren", "buchen", "reservieren",
	"anmelden", "vorbeikommen", "kommen möchte",
}

var urgencyRules = []struct {
	Level    Urgency
	Keywords []string
}{
	{UrgencyEmergency, []string{"notfall", "sofort"}},
	{UrgencyUrgent, []string{"dringend", "schnellstmöglich", "so schnell wie möglich", "so bald wie möglich"}},
}

var (
	clockTimePattern = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	hourWordPattern  = regexp.MustCompile(`\b(\d{1,2})\s*uhr\b`)
)

// ExtractTimeWindow classifies the part-of-day preference. Morning
// vocabulary is checked before afternoon vocabulary; failing both, an
// explicit clock token decides by hour. Anything else is unspecified.
func ExtractTimeWindow(text string) TimeWindow {
	for _, kw := range morningKeywords {
		if strings.Contains(text, kw) {
			return WindowMorning
		}
	}
	for _, kw := range afternoonKeywords {
		if strings.Contains(text, kw) {
			return WindowAfternoon
		}
	}
	if hour, ok := clockHour(text); ok {
		if hour < 12 {
			return WindowMorning
		}
		return WindowAfternoon
	}
	return WindowUnspecified
}

// ExtractClockTime returns an explicit "HH:MM" wish if the text names
// one, normalizing "15 uhr" to "15:00". Empty when absent or out of
// range.
func ExtractClockTime(text string) string {
	if m := clockTimePattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour <= 23 && minute <= 59 {
			return fmt.Sprintf("%02d:%02d", hour, minute)
		}
	}
	if m := hourWordPattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour <= 23 {
			return fmt.Sprintf("%02d:00", hour)
		}
	}
	return ""
}

func clockHour(text string) (int, bool) {
	if m := clockTimePattern.FindStringSubmatch(text); m != nil {
		if hour, err := strconv.Atoi(m[1]); err == nil && hour <= 23 {
			return hour, true
		}
	}
	if m := hourWordPattern.FindStringSubmatch(text); m != nil {
		if hour, err := strconv.Atoi(m[1]); err == nil && hour <= 23 {
			return hour, true
		}
	}
	return 0, false
}

// ExtractReason maps the text to the first matching reason category,
// defaulting to the general bucket.
func ExtractReason(text string) ReasonCategory {
	for _, rule := range reasonRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return rule.Category
			}
		}
	}
	return ReasonGeneral
}

// ExtractUrgency grades the request, defaulting to normal.
func ExtractUrgency(text string) Urgency {
	for _, rule := range urgencyRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return rule.Level
			}
		}
	}
	return UrgencyNormal
}

// IsAppointmentRequest is the intent gate: true iff the text contains
// any request-indicating keyword. Callers must not persist or notify
// when this is false.
func IsAppointmentRequest(text string) bool {
	for _, kw := range intentKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
