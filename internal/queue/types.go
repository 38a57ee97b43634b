package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the queue used when no queue is specified.
const DefaultQueueName = "notifications"

// defaultBackoffBase is the base delay for exponential retry backoff.
const defaultBackoffBase = 2 * time.Second

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusDead      Status = "dead"
)

// Priority represents job priority (0-100, higher is more important).
type Priority int8

const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityMedium  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
	PriorityDefault Priority = PriorityMedium
)

// Valid checks if the priority is within valid range.
func (p Priority) Valid() bool {
	return p >= PriorityMin && p <= PriorityMax
}

// Job is one queued unit of work: a single pending email send or a raw
// notification request. AttemptCount never exceeds MaxAttempts before the
// job transitions to dead.
type Job struct {
	ID            uuid.UUID  `json:"id"`
	Queue         string     `json:"queue"`
	Type          string     `json:"type"`
	Payload       []byte     `json:"payload,omitempty"`
	Status        Status     `json:"status"`
	Priority      Priority   `json:"priority"`
	AttemptCount  int8       `json:"attempt_count"`
	MaxAttempts   int8       `json:"max_attempts"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	LockedBy      *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DeadLetter is a job that exhausted its retry budget, preserved for
// operator inspection and manual recovery.
type DeadLetter struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	Queue        string    `json:"queue"`
	Type         string    `json:"type"`
	Payload      []byte    `json:"payload,omitempty"`
	Priority     Priority  `json:"priority"`
	Error        string    `json:"error"`
	AttemptCount int8      `json:"attempt_count"`
	FailedAt     time.Time `json:"failed_at"`
	CreatedAt    time.Time `json:"created_at"`
}
