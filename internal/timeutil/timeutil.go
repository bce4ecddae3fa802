// Package timeutil holds the small date/clock helpers shared by the
// recurrence and availability engines. All helpers treat times as a single
// implicit local calendar; no cross-zone conversion happens here.
package timeutil

import (
	"fmt"
	"time"

	"github.com/samber/mo"
)

// DayKey returns a stable string key identifying the calendar day of t,
// ignoring the time of day. Used for day-granularity exception matching.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay truncates t to midnight of its calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns midnight of the Sunday beginning the week containing t.
// Weekday indexing throughout the module is 0=Sunday..6=Saturday.
func StartOfWeek(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, -int(t.Weekday()))
}

// CombineDateAndTime builds a timestamp from the calendar day of date and the
// clock time of clock.
func CombineDateAndTime(date, clock time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), date.Location())
}

// DaysInMonth returns the number of days in the month containing t.
func DaysInMonth(t time.Time) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// ClampDayOfMonth clamps day to the number of days in the month containing t,
// so a rule asking for day 31 lands on day 30 (or 28/29) in shorter months.
func ClampDayOfMonth(day int, t time.Time) int {
	if max := DaysInMonth(t); day > max {
		return max
	}
	return day
}

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses an "HH:mm" string. The result is None for anything that
// is not a valid 24-hour clock value; callers substitute their own default.
func ParseClock(s string) mo.Option[Clock] {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return mo.None[Clock]()
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return mo.None[Clock]()
	}
	return mo.Some(Clock{Hour: h, Minute: m})
}

// At anchors the clock time onto the calendar day of day.
func (c Clock) At(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}
