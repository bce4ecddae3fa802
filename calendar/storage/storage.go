// Package storage defines the boundary to the external event store. The
// engines themselves never perform I/O; implementations of EventStore hand
// them already-materialized event and exception rows.
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/plannerd/libagenda/calendar"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
)

// Error represents a storage-related error.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// EventStore is the interface an event store backend must implement. Rows
// returned by the listing methods are expected to be pre-filtered to the
// requested users and date range; the engines do the rest in memory.
type EventStore interface {
	// GetEvent returns a single event row by ID.
	GetEvent(ctx context.Context, id uuid.UUID) (*calendar.Event, error)

	// ListEvents returns all event rows (plain, recurring anchors, and
	// exception rows) belonging to the given owners that could contribute
	// an occurrence inside rng. Recurring anchors must be included even
	// when their own Start predates the range.
	ListEvents(ctx context.Context, ownerIDs []uuid.UUID, rng calendar.DateRange) ([]*calendar.Event, error)

	// ListExceptions returns the exception rows of a series anchor.
	ListExceptions(ctx context.Context, parentID uuid.UUID) ([]*calendar.Event, error)

	// PutEvent inserts or replaces an event row.
	PutEvent(ctx context.Context, ev *calendar.Event) error

	// DeleteEvent removes an event row and its exception rows.
	DeleteEvent(ctx context.Context, id uuid.UUID) error
}
