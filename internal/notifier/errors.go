package notifier

import "errors"

var (
	// ErrNotFound is returned by directories when an entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidType is returned for a notification type outside the closed set.
	ErrInvalidType = errors.New("unknown notification type")

	// ErrInvalidParams is returned when a notification request is missing
	// required fields.
	ErrInvalidParams = errors.New("invalid notification params")

	// ErrNilDependency is returned by constructors missing a required dependency.
	ErrNilDependency = errors.New("required dependency is nil")
)
