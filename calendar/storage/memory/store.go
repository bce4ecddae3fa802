// memory based implementation for testing and embedding purposes
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plannerd/libagenda/calendar"
	"github.com/plannerd/libagenda/calendar/storage"
)

// Store implements storage.EventStore using in-memory maps.
type Store struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*calendar.Event
}

// New creates a new in-memory event store.
func New() *Store {
	return &Store{
		events: make(map[uuid.UUID]*calendar.Event),
	}
}

func (s *Store) GetEvent(_ context.Context, id uuid.UUID) (*calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[id]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "event not found",
		}
	}

	copied := *ev
	return &copied, nil
}

func (s *Store) ListEvents(_ context.Context, ownerIDs []uuid.UUID, rng calendar.DateRange) ([]*calendar.Event, error) {
	owners := make(map[uuid.UUID]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*calendar.Event
	for _, ev := range s.events {
		if _, ok := owners[ev.OwnerID]; !ok {
			continue
		}
		if !contributesToRange(ev, rng) {
			continue
		}
		copied := *ev
		out = append(out, &copied)
	}
	return out, nil
}

func (s *Store) ListExceptions(_ context.Context, parentID uuid.UUID) ([]*calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*calendar.Event
	for _, ev := range s.events {
		if ev.IsException && ev.ParentEventID != nil && *ev.ParentEventID == parentID {
			copied := *ev
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *Store) PutEvent(_ context.Context, ev *calendar.Event) error {
	if ev == nil || ev.ID == uuid.Nil {
		return &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "event must carry an ID",
		}
	}
	if ev.End.Before(ev.Start) {
		return &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "event end precedes start",
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *ev
	s.events[ev.ID] = &copied
	return nil
}

func (s *Store) DeleteEvent(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "event not found",
		}
	}
	delete(s.events, id)

	// Exception rows die with their series.
	for eid, ev := range s.events {
		if ev.ParentEventID != nil && *ev.ParentEventID == id {
			delete(s.events, eid)
		}
	}
	return nil
}

// contributesToRange keeps recurring anchors and their exception rows
// regardless of their own start, since occurrences may land inside the range
// long after the anchor row's date. Plain rows are kept on day overlap.
func contributesToRange(ev *calendar.Event, rng calendar.DateRange) bool {
	if ev.Rule != nil || ev.IsException {
		return !ev.Start.After(endOfDay(rng.End))
	}
	return ev.Start.Before(endOfDay(rng.End)) && ev.End.After(startOfDay(rng.Start))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1)
}
