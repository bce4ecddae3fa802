// Package availability computes mutually free time slots across a set of
// users' busy calendars.
//
// The finder is pure and never returns errors: malformed windows and ranges
// degrade to defaults, and "no free slot" is an ordinary empty result.
package availability

import (
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/plannerd/libagenda/calendar"
	"github.com/plannerd/libagenda/internal/timeutil"
)

// Defaults applied when a query omits or mangles its window or range.
var (
	defaultWindowStart = timeutil.Clock{Hour: 9}
	defaultWindowEnd   = timeutil.Clock{Hour: 17}
)

// DefaultRangeDays is the length of the search range when the query carries
// none: now through now plus this many days.
const DefaultRangeDays = 30

// SearchOptions carries the optional parts of a free-slot search. Every
// fallback is explicit here rather than buried in the algorithm: a nil
// Window means 09:00-17:00, a nil (or partially zero) Range means now
// through now+30 days, and a nil Now means time.Now.
type SearchOptions struct {
	Window *calendar.TimeWindow
	Range  *calendar.DateRange
	Now    func() time.Time
}

// Finder scans busy calendars for mutually free slots.
type Finder struct {
	logger *slog.Logger
}

// NewFinder creates a finder that logs nowhere.
func NewFinder() *Finder {
	return NewFinderWithLogger(nil)
}

// NewFinderWithLogger creates a finder tracing to the given logger.
func NewFinderWithLogger(logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Finder{logger: logger}
}

// span is a half-open busy period within a single day's window.
type span struct {
	start time.Time
	end   time.Time
}

// FindFreeTimeSlots scans each day of the search range for gaps of at least
// durationHours where some of the requested users are free, and returns
// duration-sized slots ranked by confidence (descending) then start time.
//
// Every emitted slot is exactly the requested duration: a longer gap yields
// a bite from its start, so callers can propose a slot as-is. Slots nobody
// is free for are suppressed. An empty userIDs set short-circuits to nil.
func (f *Finder) FindFreeTimeSlots(userIDs []uuid.UUID, busy calendar.BusyCalendar, durationHours float64, opts SearchOptions) []calendar.FreeTimeSlot {
	if len(userIDs) == 0 || durationHours <= 0 {
		return nil
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	searchStart, searchEnd := resolveRange(opts.Range, now)
	windowStart, windowEnd := resolveWindow(opts.Window)
	required := time.Duration(durationHours * float64(time.Hour))

	var slots []calendar.FreeTimeSlot

	lastDay := timeutil.StartOfDay(searchEnd)
	for day := timeutil.StartOfDay(searchStart); !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		dayStart := windowStart.At(day)
		dayEnd := windowEnd.At(day)

		merged := mergedBusySpans(userIDs, busy, day, dayStart, dayEnd)

		cursor := dayStart
		for _, p := range merged {
			if p.start.Sub(cursor) >= required {
				if slot, ok := f.makeSlot(userIDs, busy, day, cursor, required, durationHours); ok {
					slots = append(slots, slot)
				}
			}
			if p.end.After(cursor) {
				cursor = p.end
			}
		}
		if dayEnd.Sub(cursor) >= required {
			if slot, ok := f.makeSlot(userIDs, busy, day, cursor, required, durationHours); ok {
				slots = append(slots, slot)
			}
		}
	}

	// Rank: most users free first, earlier start breaking ties.
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Confidence != slots[j].Confidence {
			return slots[i].Confidence > slots[j].Confidence
		}
		return slots[i].Start.Before(slots[j].Start)
	})

	f.logger.Debug("free-slot search finished",
		"users", len(userIDs),
		"slots", len(slots))

	return slots
}

func resolveRange(rng *calendar.DateRange, now func() time.Time) (time.Time, time.Time) {
	var start, end time.Time
	if rng != nil {
		start, end = rng.Start, rng.End
	}
	if start.IsZero() {
		start = now()
	}
	if end.IsZero() {
		end = start.AddDate(0, 0, DefaultRangeDays)
	}
	return start, end
}

func resolveWindow(window *calendar.TimeWindow) (timeutil.Clock, timeutil.Clock) {
	start, end := defaultWindowStart, defaultWindowEnd
	if window != nil {
		start = timeutil.ParseClock(window.Start).OrElse(defaultWindowStart)
		end = timeutil.ParseClock(window.End).OrElse(defaultWindowEnd)
	}
	return start, end
}

// mergedBusySpans clips every requested user's intervals touching the given
// day to [dayStart, dayEnd] and merges overlapping or touching spans into a
// minimal disjoint set, sorted by start.
func mergedBusySpans(userIDs []uuid.UUID, busy calendar.BusyCalendar, day, dayStart, dayEnd time.Time) []span {
	var spans []span
	for _, uid := range userIDs {
		for _, iv := range busy[uid] {
			if !iv.OverlapsDay(day) {
				continue
			}
			start, end := iv.Start, iv.End
			if start.Before(dayStart) {
				start = dayStart
			}
			if end.After(dayEnd) {
				end = dayEnd
			}
			if start.Before(end) {
				spans = append(spans, span{start: start, end: end})
			}
		}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	var merged []span
	for _, s := range spans {
		if len(merged) > 0 && !s.start.After(merged[len(merged)-1].end) {
			if s.end.After(merged[len(merged)-1].end) {
				merged[len(merged)-1].end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// makeSlot builds a duration-sized slot starting at gapStart, checking each
// user's original unclipped intervals for conflicts. Returns false when no
// requested user is free.
func (f *Finder) makeSlot(userIDs []uuid.UUID, busy calendar.BusyCalendar, day, gapStart time.Time, required time.Duration, durationHours float64) (calendar.FreeTimeSlot, bool) {
	gapEnd := gapStart.Add(required)

	var available []uuid.UUID
	for _, uid := range userIDs {
		free := true
		for _, iv := range busy[uid] {
			if iv.OverlapsDay(day) && iv.Overlaps(gapStart, gapEnd) {
				free = false
				break
			}
		}
		if free {
			available = append(available, uid)
		}
	}

	if len(available) == 0 {
		return calendar.FreeTimeSlot{}, false
	}

	return calendar.FreeTimeSlot{
		Start:            gapStart,
		End:              gapEnd,
		DurationHours:    durationHours,
		Confidence:       float64(len(available)) / float64(len(userIDs)),
		AvailableUserIDs: available,
	}, true
}
