package queue

import "errors"

var (
	// ErrStorageNil is returned when a nil storage is provided.
	ErrStorageNil = errors.New("storage cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload.
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrInvalidPriority is returned when priority is outside valid range.
	ErrInvalidPriority = errors.New("priority must be between 0 and 100")

	// ErrNoJobToClaim is returned by storages when no claimable job exists.
	// It is the normal idle condition, not a failure.
	ErrNoJobToClaim = errors.New("no job available to claim")

	// ErrJobNotFound is returned when a job ID does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotActive is returned when completing or failing a job that is
	// not in the active state.
	ErrJobNotActive = errors.New("job is not active")

	// ErrHandlerNotFound is returned when no handler is registered for a job type.
	ErrHandlerNotFound = errors.New("no handler registered for job type")

	// ErrNoHandlers is returned when the worker has no handlers registered.
	ErrNoHandlers = errors.New("no job handlers registered")
)
