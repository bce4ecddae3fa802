// Package recurrence expands recurrence rules into concrete occurrences.
//
// The engine is pure: identical inputs always yield identical, identically
// ordered outputs, and malformed rule fields degrade to the anchor event's
// own weekday/day/month instead of producing errors.
package recurrence

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/plannerd/libagenda/calendar"
	"github.com/plannerd/libagenda/internal/timeutil"
)

// Engine provides recurrence expansion for event series.
type Engine struct {
	cache  *ExpansionCache
	config EngineConfig
	logger *slog.Logger
}

// NewEngine creates an engine with DefaultEngineConfig.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig)
}

// NewEngineWithConfig creates an engine with custom configuration.
func NewEngineWithConfig(config EngineConfig) *Engine {
	var cache *ExpansionCache
	if config.CacheEnabled {
		cache = NewExpansionCache(config.Cache)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		cache:  cache,
		config: config,
		logger: logger,
	}
}

// Close releases the engine's cache resources, if any.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// DaySet is a set of calendar days, keyed by timeutil.DayKey. Exception
// matching is day-granular: an entry excludes the whole calendar day.
type DaySet map[string]struct{}

// NewDaySet builds a DaySet from the calendar days of the given times.
func NewDaySet(days ...time.Time) DaySet {
	set := make(DaySet, len(days))
	for _, d := range days {
		set[timeutil.DayKey(d)] = struct{}{}
	}
	return set
}

// Contains reports whether the calendar day of t is in the set.
func (s DaySet) Contains(t time.Time) bool {
	_, ok := s[timeutil.DayKey(t)]
	return ok
}

// ExcludedDays collects the OriginalOccurrenceDate days of the given
// exception rows into a DaySet. Rows without one are ignored.
func ExcludedDays(exceptions []calendar.Event) DaySet {
	set := make(DaySet, len(exceptions))
	for _, ex := range exceptions {
		if ex.OriginalOccurrenceDate != nil {
			set[timeutil.DayKey(*ex.OriginalOccurrenceDate)] = struct{}{}
		}
	}
	return set
}

// GenerateOccurrences expands rule against the anchor event's start time into
// the ordered occurrence start times falling inside rng.
//
// Occurrence counting is stable under exclusion: a generated occurrence whose
// day is in excluded still consumes one slot of the rule's Count budget, it
// just does not appear in the output. Expansion is capped at
// calendar.MaxOccurrences regardless of terminators.
func (e *Engine) GenerateOccurrences(rule calendar.RecurrenceRule, anchorStart time.Time, rng calendar.DateRange, excluded DaySet) []time.Time {
	if e.cache != nil {
		if cached, ok := e.cache.Get(rule, anchorStart, rng, excluded); ok {
			return cached
		}
	}

	out := e.generate(rule, anchorStart, rng, excluded)

	if e.cache != nil {
		e.cache.Set(rule, anchorStart, rng, excluded, out)
	}
	return out
}

func (e *Engine) generate(rule calendar.RecurrenceRule, anchorStart time.Time, rng calendar.DateRange, excluded DaySet) []time.Time {
	// Expansion never runs past the range end; an EndDate terminator stops
	// it the day before the cutoff.
	limit := timeutil.StartOfDay(rng.End)
	if rule.EndDate != nil {
		if cut := timeutil.StartOfDay(*rule.EndDate).AddDate(0, 0, -1); cut.Before(limit) {
			limit = cut
		}
	}

	// Weekly rules with an explicit weekday set start scanning at the top
	// of the anchor's week so every matching weekday of that first week is
	// considered.
	cursor := anchorStart
	if rule.Frequency == calendar.FreqWeekly && len(rule.DaysOfWeek) > 0 {
		cursor = timeutil.StartOfWeek(anchorStart)
	}

	rangeStartDay := timeutil.StartOfDay(rng.Start)

	var out []time.Time
	generated := 0

	for !timeutil.StartOfDay(cursor).After(limit) && generated < calendar.MaxOccurrences {
		if rule.Count > 0 && generated >= rule.Count {
			break
		}

		if e.matchesDay(rule, cursor, anchorStart) {
			candidate := timeutil.CombineDateAndTime(cursor, anchorStart)
			if !candidate.Before(anchorStart) {
				// Count budget is consumed even for excluded days, so
				// cancelling an occurrence never extends the series.
				generated++
				if !timeutil.StartOfDay(candidate).Before(rangeStartDay) && !excluded.Contains(candidate) {
					out = append(out, candidate)
				}
			}
		}

		cursor = e.advance(rule, cursor, anchorStart)
	}

	e.logger.Debug("expanded recurrence rule",
		"frequency", rule.Frequency,
		"generated", generated,
		"emitted", len(out))

	return out
}

// matchesDay applies the per-frequency day predicate. Missing rule fields
// fall back to the anchor's own weekday/day/month.
func (e *Engine) matchesDay(rule calendar.RecurrenceRule, cursor, anchor time.Time) bool {
	switch rule.Frequency {
	case calendar.FreqDaily:
		return true

	case calendar.FreqWeekly:
		if len(rule.DaysOfWeek) > 0 {
			wd := int(cursor.Weekday())
			for _, d := range rule.DaysOfWeek {
				if d == wd {
					return true
				}
			}
			return false
		}
		return cursor.Weekday() == anchor.Weekday()

	case calendar.FreqMonthly:
		if rule.DayOfMonth > 0 {
			return cursor.Day() == timeutil.ClampDayOfMonth(rule.DayOfMonth, cursor)
		}
		return cursor.Day() == anchor.Day()

	case calendar.FreqYearly:
		if rule.MonthOfYear > 0 && rule.DayOfMonth > 0 {
			return cursor.Month() == rule.MonthOfYear &&
				cursor.Day() == timeutil.ClampDayOfMonth(rule.DayOfMonth, cursor)
		}
		return cursor.Month() == anchor.Month() && cursor.Day() == anchor.Day()
	}

	// Unknown frequency: nothing matches, expansion ends up empty.
	return false
}

// advance moves the cursor to the next date worth testing.
func (e *Engine) advance(rule calendar.RecurrenceRule, cursor, anchor time.Time) time.Time {
	step := rule.Step()

	switch rule.Frequency {
	case calendar.FreqWeekly:
		if len(rule.DaysOfWeek) > 1 {
			// Each day of the week is tested individually.
			return cursor.AddDate(0, 0, 1)
		}
		// Single target weekday: walk day-by-day until the cursor sits on
		// it (the scan starts at the top of the anchor's week), then step
		// whole weeks.
		if !e.matchesDay(rule, cursor, anchor) {
			return cursor.AddDate(0, 0, 1)
		}
		return cursor.AddDate(0, 0, 7*step)

	case calendar.FreqMonthly:
		return addMonthsClamped(cursor, step, e.targetDay(rule, anchor))

	case calendar.FreqYearly:
		month := anchor.Month()
		if rule.MonthOfYear > 0 && rule.DayOfMonth > 0 {
			month = rule.MonthOfYear
		}
		return addYearsClamped(cursor, step, month, e.targetDay(rule, anchor))
	}

	// Daily, and the fallback for unknown frequencies.
	return cursor.AddDate(0, 0, step)
}

func (e *Engine) targetDay(rule calendar.RecurrenceRule, anchor time.Time) int {
	if rule.DayOfMonth > 0 {
		return rule.DayOfMonth
	}
	return anchor.Day()
}

// addMonthsClamped steps forward whole months while keeping the intended
// day-of-month, clamping only within the landing month. Plain AddDate would
// normalize Jan 31 + 1 month into March and skip February entirely.
func addMonthsClamped(cursor time.Time, months, wantDay int) time.Time {
	first := time.Date(cursor.Year(), cursor.Month(), 1,
		cursor.Hour(), cursor.Minute(), cursor.Second(), cursor.Nanosecond(), cursor.Location())
	target := first.AddDate(0, months, 0)
	day := timeutil.ClampDayOfMonth(wantDay, target)
	return time.Date(target.Year(), target.Month(), day,
		cursor.Hour(), cursor.Minute(), cursor.Second(), cursor.Nanosecond(), cursor.Location())
}

func addYearsClamped(cursor time.Time, years int, month time.Month, wantDay int) time.Time {
	target := time.Date(cursor.Year()+years, month, 1,
		cursor.Hour(), cursor.Minute(), cursor.Second(), cursor.Nanosecond(), cursor.Location())
	day := timeutil.ClampDayOfMonth(wantDay, target)
	return time.Date(target.Year(), target.Month(), day,
		cursor.Hour(), cursor.Minute(), cursor.Second(), cursor.Nanosecond(), cursor.Location())
}

// ExpandRecurringEvent expands event's series into virtual display instances
// inside rng, skipping every day named by an exception row's
// OriginalOccurrenceDate. The exception rows themselves are not returned;
// they are persisted rows the caller merges alongside the virtual instances.
func (e *Engine) ExpandRecurringEvent(event calendar.Event, rng calendar.DateRange, exceptions []calendar.Event) []calendar.Event {
	if event.Rule == nil {
		return nil
	}

	excluded := ExcludedDays(exceptions)
	starts := e.GenerateOccurrences(*event.Rule, event.Start, rng, excluded)
	if len(starts) == 0 {
		return nil
	}

	duration := event.Duration()
	instances := make([]calendar.Event, 0, len(starts))
	for _, start := range starts {
		instance := event
		instance.Start = start
		instance.End = start.Add(duration)
		instance.Rule = nil
		occ := start
		instance.OriginalOccurrenceDate = &occ
		instances = append(instances, instance)
	}
	return instances
}

// ExpandToBusyIntervals converts event rows into per-owner busy intervals
// for rng: recurring anchors are expanded (minus their exceptions), plain
// rows and non-empty exception rows are taken as-is when they overlap the
// range. Zero-length exception rows act as cancellation placeholders and
// produce no interval.
func (e *Engine) ExpandToBusyIntervals(events []calendar.Event, rng calendar.DateRange) []calendar.BusyInterval {
	exceptionsByParent := make(map[uuid.UUID][]calendar.Event)
	for _, ev := range events {
		if ev.IsException && ev.ParentEventID != nil {
			exceptionsByParent[*ev.ParentEventID] = append(exceptionsByParent[*ev.ParentEventID], ev)
		}
	}

	var intervals []calendar.BusyInterval
	for _, ev := range events {
		switch {
		case ev.IsException:
			if ev.End.After(ev.Start) && overlapsRange(ev, rng) {
				intervals = append(intervals, calendar.BusyInterval{OwnerID: ev.OwnerID, Start: ev.Start, End: ev.End})
			}
		case ev.IsRecurring():
			for _, inst := range e.ExpandRecurringEvent(ev, rng, exceptionsByParent[ev.ID]) {
				intervals = append(intervals, calendar.BusyInterval{OwnerID: inst.OwnerID, Start: inst.Start, End: inst.End})
			}
		default:
			if overlapsRange(ev, rng) {
				intervals = append(intervals, calendar.BusyInterval{OwnerID: ev.OwnerID, Start: ev.Start, End: ev.End})
			}
		}
	}
	return intervals
}

func overlapsRange(ev calendar.Event, rng calendar.DateRange) bool {
	end := timeutil.StartOfDay(rng.End).AddDate(0, 0, 1)
	return ev.Start.Before(end) && ev.End.After(timeutil.StartOfDay(rng.Start))
}

// NextOccurrence returns the first occurrence of rule strictly after the
// given time, scanning a one-year lookahead window, or None when the rule
// produces nothing in that window.
func (e *Engine) NextOccurrence(rule calendar.RecurrenceRule, after, anchorStart time.Time) mo.Option[time.Time] {
	window := calendar.DateRange{Start: after, End: after.AddDate(1, 0, 0)}
	for _, occ := range e.GenerateOccurrences(rule, anchorStart, window, nil) {
		if occ.After(after) {
			return mo.Some(occ)
		}
	}
	return mo.None[time.Time]()
}
