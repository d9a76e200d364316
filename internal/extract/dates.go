package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Resolution is a resolved calendar date plus the rule that produced
// it. Rule RuleFallbackNextWeek marks a low-confidence default, not a
// confirmed wish.
type Resolution struct {
	Date time.Time
	Rule DateRule
}

// German weekday vocabulary in scan order. Indices follow the
// Monday=0 convention used by the resolution arithmetic.
var weekdayNames = []struct {
	name  string
	index int
}{
	{"montag", 0},
	{"dienstag", 1},
	{"mittwoch", 2},
	{"donnerstag", 3},
	{"freitag", 4},
	{"samstag", 5},
	{"sonntag", 6},
}

var (
	tomorrowPattern = regexp.MustCompile(`\bmorgen\b`)
	inDaysPattern   = regexp.MustCompile(`in\s+(\d+)\s+tagen?\b`)

	explicitDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`),
		regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{2})\b`),
		regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`),
	}
)

// ResolveDate maps a case-folded text to a concrete calendar date
// relative to today. The first rule that fires wins. An explicit
// numeric date always beats relative vocabulary, so a message naming
// both "Montag" and "15.03." resolves to the written date. The
// resolver never reports "no date": with nothing recognized it falls
// back to the Monday of the following week.
func ResolveDate(text string, today time.Time) Resolution {
	today = midnight(today)

	if d, ok := resolveExplicit(text); ok {
		return Resolution{Date: d, Rule: RuleExplicitDate}
	}

	for _, wd := range weekdayNames {
		if !strings.Contains(text, wd.name) {
			continue
		}
		ahead := (wd.index - mondayIndex(today) + 7) % 7
		if ahead == 0 {
			// Naming today's weekday always means the next one.
			ahead = 7
		}
		if strings.Contains(text, "übernächsten") {
			ahead += 7
		}
		return Resolution{Date: today.AddDate(0, 0, ahead), Rule: RuleWeekday}
	}

	if strings.Contains(text, "nächste woche") || strings.Contains(text, "kommende woche") {
		return Resolution{Date: nextMonday(today), Rule: RuleNextWeek}
	}

	if tomorrowPattern.MatchString(text) {
		return Resolution{Date: today.AddDate(0, 0, 1), Rule: RuleTomorrow}
	}
	if strings.Contains(text, "übermorgen") {
		return Resolution{Date: today.AddDate(0, 0, 2), Rule: RuleDayAfterTomorrow}
	}

	if m := inDaysPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return Resolution{Date: today.AddDate(0, 0, n), Rule: RuleInDays}
		}
	}

	return Resolution{Date: nextMonday(today), Rule: RuleFallbackNextWeek}
}

func resolveExplicit(text string) (time.Time, bool) {
	for _, re := range explicitDatePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		d, ok := calendarDate(year, month, day)
		if !ok {
			// Day 31 of a 30-day month and friends: try the next form.
			continue
		}
		return d, true
	}
	return time.Time{}, false
}

// calendarDate builds a date and rejects values time.Date would
// silently normalize (e.g. 31.04. becoming 01.05.).
func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

// mondayIndex converts Go's Sunday-based weekday to Monday=0.
func mondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func nextMonday(today time.Time) time.Time {
	return today.AddDate(0, 0, 7-mondayIndex(today))
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
