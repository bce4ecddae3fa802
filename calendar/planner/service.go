// Package planner glues the event store to the two engines: it pulls rows,
// expands recurring series into busy intervals, and runs the free-slot
// search. It owns the only I/O-adjacent call path in the module; the engines
// underneath stay pure.
package planner

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/plannerd/libagenda/calendar"
	"github.com/plannerd/libagenda/calendar/availability"
	"github.com/plannerd/libagenda/calendar/recurrence"
	"github.com/plannerd/libagenda/calendar/storage"
	"github.com/plannerd/libagenda/internal/timeutil"
)

// Service answers availability queries and renders agendas on top of an
// EventStore.
type Service struct {
	store  storage.EventStore
	engine *recurrence.Engine
	finder *availability.Finder
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a planner on top of the given store. A nil logger keeps
// the service silent.
func NewService(store storage.EventStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		store:  store,
		engine: recurrence.NewEngine(),
		finder: availability.NewFinderWithLogger(logger),
		logger: logger,
		now:    time.Now,
	}
}

// Close releases the service's expansion cache resources.
func (s *Service) Close() {
	s.engine.Close()
}

// FreeSlots answers an availability query: it fetches the requested users'
// rows for the query's date range, expands them to busy intervals, and
// returns the ranked free slots. An empty user list yields nil without
// touching the store.
func (s *Service) FreeSlots(ctx context.Context, query calendar.AvailabilityQuery) ([]calendar.FreeTimeSlot, error) {
	if len(query.UserIDs) == 0 {
		return nil, nil
	}

	rng := s.resolveRange(query.DateRange)

	rows, err := s.store.ListEvents(ctx, query.UserIDs, rng)
	if err != nil {
		return nil, err
	}

	events := make([]calendar.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, *row)
	}

	busy := calendar.NewBusyCalendar(s.engine.ExpandToBusyIntervals(events, rng))

	slots := s.finder.FindFreeTimeSlots(query.UserIDs, busy, query.DurationHours, availability.SearchOptions{
		Window: query.TimeWindow,
		Range:  &rng,
		Now:    s.now,
	})

	s.logger.Debug("availability query answered",
		"users", len(query.UserIDs),
		"rows", len(rows),
		"slots", len(slots))

	return slots, nil
}

// Agenda returns everything a calendar view needs for one user and range:
// plain events, virtual instances of recurring series, and modified
// exception rows, sorted by start time. A modified exception row replaces
// the base occurrence of its day (the expansion already skips that day), and
// cancellation placeholders (zero-length exception rows) are omitted.
func (s *Service) Agenda(ctx context.Context, userID uuid.UUID, rng calendar.DateRange) ([]calendar.Event, error) {
	rows, err := s.store.ListEvents(ctx, []uuid.UUID{userID}, rng)
	if err != nil {
		return nil, err
	}

	exceptionsByParent := make(map[uuid.UUID][]calendar.Event)
	for _, row := range rows {
		if row.IsException && row.ParentEventID != nil {
			exceptionsByParent[*row.ParentEventID] = append(exceptionsByParent[*row.ParentEventID], *row)
		}
	}

	var out []calendar.Event
	for _, row := range rows {
		switch {
		case row.IsException:
			// Modified exceptions are displayable rows of their own;
			// zero-length placeholders only mark a cancelled day.
			if row.End.After(row.Start) && inRange(*row, rng) {
				out = append(out, *row)
			}
		case row.IsRecurring():
			out = append(out, s.engine.ExpandRecurringEvent(*row, rng, exceptionsByParent[row.ID])...)
		default:
			if inRange(*row, rng) {
				out = append(out, *row)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// NextOccurrence reports when a stored recurring event fires next after the
// given time. Plain events report their own start when still ahead.
func (s *Service) NextOccurrence(ctx context.Context, eventID uuid.UUID, after time.Time) (*time.Time, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if ev.Rule == nil {
		if ev.Start.After(after) {
			start := ev.Start
			return &start, nil
		}
		return nil, nil
	}

	if next, ok := s.engine.NextOccurrence(*ev.Rule, after, ev.Start).Get(); ok {
		return &next, nil
	}
	return nil, nil
}

func (s *Service) resolveRange(rng *calendar.DateRange) calendar.DateRange {
	var resolved calendar.DateRange
	if rng != nil {
		resolved = *rng
	}
	if resolved.Start.IsZero() {
		resolved.Start = s.now()
	}
	if resolved.End.IsZero() {
		resolved.End = resolved.Start.AddDate(0, 0, availability.DefaultRangeDays)
	}
	return resolved
}

func inRange(ev calendar.Event, rng calendar.DateRange) bool {
	end := timeutil.StartOfDay(rng.End).AddDate(0, 0, 1)
	return ev.Start.Before(end) && ev.End.After(timeutil.StartOfDay(rng.Start))
}
