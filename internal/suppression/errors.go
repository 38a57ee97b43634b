package suppression

import "errors"

var (
	// ErrNotFound is returned when an address is not on the list.
	ErrNotFound = errors.New("address not on suppression list")

	// ErrInvalidAddress is returned for an empty or unusable address.
	ErrInvalidAddress = errors.New("invalid email address")

	// ErrInvalidReason is returned for an unknown suppression reason.
	ErrInvalidReason = errors.New("invalid suppression reason")

	// ErrStorageNil is returned when a nil storage is provided.
	ErrStorageNil = errors.New("suppression storage cannot be nil")
)
