package event

import "errors"

var (
	// ErrNotFound is returned when no event exists for a message ID.
	ErrNotFound = errors.New("email event not found")

	// ErrAlreadyExists is returned when an event with the same message ID
	// already exists. Callers rely on it for enqueue idempotency.
	ErrAlreadyExists = errors.New("email event already exists")

	// ErrStaleOutcome is returned when a callback carries a delivery outcome
	// that conflicts with one already recorded for the message.
	ErrStaleOutcome = errors.New("conflicting delivery outcome ignored as stale")

	// ErrUnknownEventKind is returned for callback kinds the state machine
	// does not recognize.
	ErrUnknownEventKind = errors.New("unknown provider event kind")

	// ErrVersionConflict is returned by Update when the stored row changed
	// since the event was read. Callers re-read and reapply their mutation.
	ErrVersionConflict = errors.New("email event modified concurrently")

	// ErrStorageNil is returned when a nil storage is provided.
	ErrStorageNil = errors.New("event storage cannot be nil")
)
