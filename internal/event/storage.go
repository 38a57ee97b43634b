package event

import (
	"context"

	"github.com/google/uuid"
)

// Storage persists email events keyed by message ID.
type Storage interface {
	// Create inserts a new event. ErrAlreadyExists signals a duplicate
	// message ID, which callers treat as "already tracked, do nothing".
	Create(ctx context.Context, ev *Event) error

	// Get returns the event for a message ID or ErrNotFound.
	Get(ctx context.Context, messageID string) (*Event, error)

	// Update overwrites the stored event row, but only if the row still
	// carries the version the event was read at. A concurrent writer wins
	// and the caller gets ErrVersionConflict; it must re-read and reapply.
	// This is what keeps a recorded delivery outcome from being regressed
	// by a slower writer's stale snapshot.
	Update(ctx context.Context, ev *Event) error

	// ListByStatus returns up to limit events in the given status, newest
	// first. Operators use it to audit sent-but-never-confirmed mail.
	ListByStatus(ctx context.Context, status Status, limit int) ([]Event, error)

	// ListByUser returns events for one user, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Event, error)
}
