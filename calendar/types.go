// Package calendar defines the shared data model for the availability and
// recurrence engines: event rows as the external store hands them over,
// recurrence rules, derived occurrences and busy intervals, and the
// free-slot results returned to callers.
//
// Everything here is transient, computed per call; the only long-lived data
// are the event and exception rows owned by the external store.
package calendar

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Frequency is the recurrence frequency of a rule.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

// Weekday indices used by RecurrenceRule.DaysOfWeek, 0=Sunday..6=Saturday.
const (
	Sunday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// MaxOccurrences is the hard cap on occurrences generated per expansion,
// bounding rules that carry no terminator of their own.
const MaxOccurrences = 365

// RecurrenceRule describes how an event repeats. Zero values mean "absent":
// an Interval of 0 behaves as 1, a Count of 0 means no count terminator, a
// nil EndDate means no date terminator. At most one terminator is meaningful;
// when both are set EndDate wins for bounding and Count still caps the total.
type RecurrenceRule struct {
	Frequency   Frequency
	Interval    int
	DaysOfWeek  []int      // weekly only, 0=Sunday..6=Saturday
	DayOfMonth  int        // monthly/yearly, 1-31, clamped to the month's last day
	MonthOfYear time.Month // yearly only, 0 means absent
	Count       int        // max occurrences, 0 means unbounded
	EndDate     *time.Time // expansion stops the day before this cutoff
}

// Step returns the rule's interval, treating non-positive values as 1.
func (r RecurrenceRule) Step() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// Event is one row from the external store: either a plain event, the anchor
// of a recurring series, or an exception row overriding a single occurrence
// of its parent series.
type Event struct {
	ID      uuid.UUID
	OwnerID uuid.UUID

	Title    string
	Location string
	Category string

	Start  time.Time
	End    time.Time
	AllDay bool

	Rule *RecurrenceRule

	// Exception linkage. ParentEventID points at the series anchor;
	// OriginalOccurrenceDate names the calendar day (not timestamp) of the
	// base occurrence this row cancels or replaces.
	ParentEventID          *uuid.UUID
	IsException            bool
	OriginalOccurrenceDate *time.Time

	HasAttendees bool
}

// Duration returns the event's length.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// IsRecurring reports whether the event anchors a recurring series.
func (e Event) IsRecurring() bool {
	return e.Rule != nil
}

// Occurrence is a single concrete instance derived from a recurring event.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// DateRange is an inclusive calendar-day span.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// TimeWindow is a daily local clock-time range in "HH:mm" form, e.g.
// {"09:00", "17:00"}. Unparseable values degrade to the engine default.
type TimeWindow struct {
	Start string
	End   string
}

// AvailabilityQuery is the parsed intent handed over by the external
// query-translation layer.
type AvailabilityQuery struct {
	UserIDs       []uuid.UUID
	DurationHours float64
	TimeWindow    *TimeWindow
	DateRange     *DateRange
}

// BusyInterval is a span during which a specific user is unavailable.
// Intervals of different owners are never merged with each other; merging
// happens only inside the availability search, across the requested user set.
type BusyInterval struct {
	OwnerID uuid.UUID
	Start   time.Time
	End     time.Time
}

// Overlaps reports whether the interval intersects [start, end).
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return b.Start.Before(end) && b.End.After(start)
}

// OverlapsDay reports whether the interval touches the calendar day of d:
// it starts on d, ends on d, or fully spans d (multi-day or all-day rows).
func (b BusyInterval) OverlapsDay(d time.Time) bool {
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	return b.Start.Before(dayEnd) && b.End.After(dayStart)
}

// FreeTimeSlot is one ranked free-slot candidate. Confidence is the fraction
// of requested users free during the slot; slots with zero confidence are
// never emitted.
type FreeTimeSlot struct {
	Start            time.Time
	End              time.Time
	DurationHours    float64
	Confidence       float64
	AvailableUserIDs []uuid.UUID
}

// BusyCalendar maps each owner to their busy intervals, sorted by start. It
// is built once per call and treated as read-only afterwards.
type BusyCalendar map[uuid.UUID][]BusyInterval

// NewBusyCalendar groups intervals by owner and sorts each owner's list by
// start time. The input slice is not modified.
func NewBusyCalendar(intervals []BusyInterval) BusyCalendar {
	cal := make(BusyCalendar)
	for _, iv := range intervals {
		cal[iv.OwnerID] = append(cal[iv.OwnerID], iv)
	}
	for owner := range cal {
		list := cal[owner]
		sort.Slice(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
	}
	return cal
}
