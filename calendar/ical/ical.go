// Package ical converts between the calendar data model and iCalendar
// artifacts: recurrence rules to and from RFC 5545 RRULE strings, and event
// rows (plus their expanded virtual instances) to and from VCALENDAR
// documents. Device-calendar sync layers consume these; delivery itself
// lives outside this module.
//
// The conversion is best-effort by design. The engine's clamping semantics
// (day 31 landing on day 30 in short months) have no RRULE equivalent, so a
// re-imported rule reproduces the engine's behavior only through this
// module's own expansion, not through a third-party RRULE evaluator.
package ical

import (
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/plannerd/libagenda/calendar"
)

const prodID = "-//plannerd//libagenda//EN"

// propRecurrenceID is the RECURRENCE-ID property naming the original
// occurrence a component overrides.
const propRecurrenceID = "RECURRENCE-ID"

// rruleWeekdays maps this module's weekday indices (0=Sunday..6=Saturday)
// onto rrule-go's weekday values.
var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

func toRRuleFreq(f calendar.Frequency) (rrule.Frequency, bool) {
	switch f {
	case calendar.FreqDaily:
		return rrule.DAILY, true
	case calendar.FreqWeekly:
		return rrule.WEEKLY, true
	case calendar.FreqMonthly:
		return rrule.MONTHLY, true
	case calendar.FreqYearly:
		return rrule.YEARLY, true
	}
	return 0, false
}

func fromRRuleFreq(f rrule.Frequency) (calendar.Frequency, bool) {
	switch f {
	case rrule.DAILY:
		return calendar.FreqDaily, true
	case rrule.WEEKLY:
		return calendar.FreqWeekly, true
	case rrule.MONTHLY:
		return calendar.FreqMonthly, true
	case rrule.YEARLY:
		return calendar.FreqYearly, true
	}
	return "", false
}

// EncodeRule renders a recurrence rule as an RRULE value string (without the
// "RRULE:" prefix), e.g. "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE".
func EncodeRule(rule calendar.RecurrenceRule, anchorStart time.Time) (string, error) {
	freq, ok := toRRuleFreq(rule.Frequency)
	if !ok {
		return "", fmt.Errorf("ical: unsupported frequency %q", rule.Frequency)
	}

	opt := rrule.ROption{
		Freq:     freq,
		Interval: rule.Step(),
		Dtstart:  anchorStart,
		Count:    rule.Count,
	}

	for _, d := range rule.DaysOfWeek {
		if d >= 0 && d < len(rruleWeekdays) {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	}
	if rule.DayOfMonth > 0 {
		opt.Bymonthday = []int{rule.DayOfMonth}
	}
	if rule.MonthOfYear > 0 {
		opt.Bymonth = []int{int(rule.MonthOfYear)}
	}
	if rule.EndDate != nil {
		// The engine stops the day before its EndDate cutoff; UNTIL is
		// inclusive, so export the last day actually reachable.
		opt.Until = rule.EndDate.AddDate(0, 0, -1)
	}

	if _, err := rrule.NewRRule(opt); err != nil {
		return "", fmt.Errorf("ical: encode rule: %w", err)
	}
	// RRuleString leaves out the DTSTART line; the anchor travels separately.
	return opt.RRuleString(), nil
}

// DecodeRule parses an RRULE value string into a recurrence rule. UNTIL maps
// back onto the engine's exclusive EndDate cutoff.
func DecodeRule(s string, anchorStart time.Time) (calendar.RecurrenceRule, error) {
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return calendar.RecurrenceRule{}, fmt.Errorf("ical: decode rule: %w", err)
	}

	freq, ok := fromRRuleFreq(opt.Freq)
	if !ok {
		return calendar.RecurrenceRule{}, fmt.Errorf("ical: unsupported RRULE frequency in %q", s)
	}

	rule := calendar.RecurrenceRule{
		Frequency: freq,
		Interval:  opt.Interval,
		Count:     opt.Count,
	}
	if rule.Interval < 1 {
		rule.Interval = 1
	}

	for _, wd := range opt.Byweekday {
		// rrule-go counts weekdays from Monday=0.
		rule.DaysOfWeek = append(rule.DaysOfWeek, (wd.Day()+1)%7)
	}
	if len(opt.Bymonthday) > 0 {
		rule.DayOfMonth = opt.Bymonthday[0]
	}
	if len(opt.Bymonth) > 0 {
		rule.MonthOfYear = time.Month(opt.Bymonth[0])
	}
	if !opt.Until.IsZero() {
		end := opt.Until.AddDate(0, 0, 1)
		rule.EndDate = &end
	}

	return rule, nil
}

// EncodeCalendar builds a VCALENDAR document from event rows and their
// expanded virtual instances. Virtual instances carry a RECURRENCE-ID naming
// the occurrence they render; anchors carry their RRULE.
func EncodeCalendar(events []calendar.Event, virtuals []calendar.Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)

	for _, ev := range events {
		cal.Children = append(cal.Children, encodeEvent(ev, false).Component)
	}
	for _, ev := range virtuals {
		cal.Children = append(cal.Children, encodeEvent(ev, true).Component)
	}
	return cal
}

func encodeEvent(ev calendar.Event, virtual bool) *ical.Event {
	out := ical.NewEvent()
	out.Props.SetText(ical.PropUID, ev.ID.String())
	out.Props.SetDateTime(ical.PropDateTimeStart, ev.Start)
	out.Props.SetDateTime(ical.PropDateTimeEnd, ev.End)

	if ev.Title != "" {
		out.Props.SetText(ical.PropSummary, ev.Title)
	}
	if ev.Location != "" {
		out.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.Category != "" {
		out.Props.SetText(ical.PropCategories, ev.Category)
	}

	if ev.Rule != nil {
		if rruleStr, err := EncodeRule(*ev.Rule, ev.Start); err == nil {
			out.Props.SetText(ical.PropRecurrenceRule, rruleStr)
		}
	}

	if (virtual || ev.IsException) && ev.OriginalOccurrenceDate != nil {
		out.Props.SetDateTime(propRecurrenceID, *ev.OriginalOccurrenceDate)
	}

	return out
}

// DecodeEvents extracts event rows from a VCALENDAR document, assigning them
// to the given owner. Components without a usable start time are skipped;
// IDs are derived deterministically from the component UID so repeated
// imports stay stable.
func DecodeEvents(cal *ical.Calendar, ownerID uuid.UUID) []calendar.Event {
	var out []calendar.Event
	for _, comp := range cal.Events() {
		start, err := comp.Props.DateTime(ical.PropDateTimeStart, nil)
		if err != nil || start.IsZero() {
			continue
		}
		end, err := comp.Props.DateTime(ical.PropDateTimeEnd, nil)
		if err != nil || end.IsZero() {
			end = start
		}

		ev := calendar.Event{
			OwnerID: ownerID,
			Start:   start,
			End:     end,
		}

		if p := comp.Props.Get(ical.PropUID); p != nil && p.Value != "" {
			ev.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(p.Value))
		} else {
			ev.ID = uuid.New()
		}
		if p := comp.Props.Get(ical.PropSummary); p != nil {
			ev.Title = p.Value
		}
		if p := comp.Props.Get(ical.PropLocation); p != nil {
			ev.Location = p.Value
		}
		if p := comp.Props.Get(ical.PropCategories); p != nil {
			ev.Category = p.Value
		}
		if p := comp.Props.Get(ical.PropRecurrenceRule); p != nil && p.Value != "" {
			if rule, err := DecodeRule(p.Value, start); err == nil {
				ev.Rule = &rule
			}
		}
		if p := comp.Props.Get(propRecurrenceID); p != nil && p.Value != "" {
			if rid, err := comp.Props.DateTime(propRecurrenceID, nil); err == nil {
				ev.IsException = true
				ev.OriginalOccurrenceDate = &rid
			}
		}

		out = append(out, ev)
	}
	return out
}
