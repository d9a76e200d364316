package extract

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-11 is a Wednesday; used as the reference day throughout.
var refWednesday = time.Date(2026, 3, 11, 9, 30, 0, 0, time.Local)

func TestResolveDate_ExplicitDate(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
	}{
		{"ich hätte gerne am 15.03.2026 einen termin", date(2026, 3, 15)},
		{"gerne am 5.6.26", date(2026, 6, 5)},
		{"termin am 15/03/2026 bitte", date(2026, 3, 15)},
	}
	for _, tt := range tests {
		got := ResolveDate(tt.text, refWednesday)
		assert.Equal(t, tt.want, got.Date, "text %q", tt.text)
		assert.Equal(t, RuleExplicitDate, got.Rule)
	}
}

func TestResolveDate_ExplicitDateBeatsWeekday(t *testing.T) {
	// A written date wins even when a weekday word appears elsewhere.
	got := ResolveDate("am montag, den 15.03.2026, passt es mir", refWednesday)
	require.Equal(t, RuleExplicitDate, got.Rule)
	assert.Equal(t, date(2026, 3, 15), got.Date)
}

func TestResolveDate_InvalidExplicitDateFallsThrough(t *testing.T) {
	// 31.02. is not a calendar date under any of the explicit forms.
	got := ResolveDate("am 31.02.2026 bitte", refWednesday)
	assert.Equal(t, RuleFallbackNextWeek, got.Rule)
	assert.Equal(t, date(2026, 3, 16), got.Date)
}

func TestResolveDate_NamedWeekdayAlwaysFuture(t *testing.T) {
	// Every reference day of one week crossed with every weekday name:
	// the result is 1-7 days ahead and lands on the named weekday.
	for offset := 0; offset < 7; offset++ {
		today := refWednesday.AddDate(0, 0, offset)
		for _, wd := range weekdayNames {
			text := fmt.Sprintf("gerne nächsten %s", wd.name)
			got := ResolveDate(text, today)
			require.Equal(t, RuleWeekday, got.Rule)

			ahead := int(got.Date.Sub(midnight(today)).Hours() / 24)
			assert.GreaterOrEqual(t, ahead, 1, "today=%s target=%s", today.Weekday(), wd.name)
			assert.LessOrEqual(t, ahead, 7, "today=%s target=%s", today.Weekday(), wd.name)
			assert.Equal(t, wd.index, mondayIndex(got.Date), "today=%s target=%s", today.Weekday(), wd.name)
		}
	}
}

func TestResolveDate_WeekAfterNextQualifier(t *testing.T) {
	next := ResolveDate("nächsten montag", refWednesday)
	afterNext := ResolveDate("übernächsten montag", refWednesday)
	assert.Equal(t, next.Date.AddDate(0, 0, 7), afterNext.Date)
}

func TestResolveDate_NextWeek(t *testing.T) {
	for _, text := range []string{"nächste woche", "kommende woche bitte"} {
		got := ResolveDate(text, refWednesday)
		assert.Equal(t, RuleNextWeek, got.Rule)
		assert.Equal(t, date(2026, 3, 16), got.Date) // following Monday
	}
}

func TestResolveDate_RelativeDays(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
		rule DateRule
	}{
		{"geht es morgen?", date(2026, 3, 12), RuleTomorrow},
		{"übermorgen wäre gut", date(2026, 3, 13), RuleDayAfterTomorrow},
		{"in 5 tagen", date(2026, 3, 16), RuleInDays},
		{"in 1 tag", date(2026, 3, 12), RuleInDays},
	}
	for _, tt := range tests {
		got := ResolveDate(tt.text, refWednesday)
		assert.Equal(t, tt.rule, got.Rule, "text %q", tt.text)
		assert.Equal(t, tt.want, got.Date, "text %q", tt.text)
	}
}

func TestResolveDate_MorgensIsNotTomorrow(t *testing.T) {
	// The part-of-day word must not trigger the relative-day rule.
	got := ResolveDate("gerne morgens", refWednesday)
	assert.Equal(t, RuleFallbackNextWeek, got.Rule)
}

func TestResolveDate_Fallback(t *testing.T) {
	got := ResolveDate("guten tag, ich habe eine frage", refWednesday)
	assert.Equal(t, RuleFallbackNextWeek, got.Rule)
	assert.Equal(t, date(2026, 3, 16), got.Date)

	// From a Monday the fallback still moves a full week ahead.
	monday := date(2026, 3, 16)
	got = ResolveDate("keine datumsangabe", monday)
	assert.Equal(t, date(2026, 3, 23), got.Date)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
