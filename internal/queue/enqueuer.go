package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository defines the interface for job creation.
type EnqueuerRepository interface {
	CreateJob(ctx context.Context, job *Job) error
}

// Enqueuer persists new jobs.
type Enqueuer struct {
	repo            EnqueuerRepository
	defaultQueue    string
	defaultPriority Priority
	defaultAttempts int8
}

// NewEnqueuer creates an Enqueuer.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrStorageNil
	}

	e := &Enqueuer{
		repo:            repo,
		defaultQueue:    DefaultQueueName,
		defaultPriority: PriorityDefault,
		defaultAttempts: 3,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Enqueue persists a new pending job and returns its ID. The job type is
// derived from the payload struct unless overridden.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrPayloadNil
	}

	options := &enqueueOptions{
		queue:       e.defaultQueue,
		priority:    e.defaultPriority,
		maxAttempts: e.defaultAttempts,
	}
	for _, opt := range opts {
		opt(options)
	}

	if !options.priority.Valid() {
		return uuid.Nil, ErrInvalidPriority
	}

	job, err := buildJob(payload, options)
	if err != nil {
		return uuid.Nil, err
	}

	if err := e.repo.CreateJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("create job %q in queue %q: %w", job.Type, job.Queue, err)
	}

	return job.ID, nil
}

func buildJob(payload any, options *enqueueOptions) (*Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload of type %T: %w", payload, err)
	}

	jobType := options.jobType
	if jobType == "" {
		jobType = qualifiedStructName(payload)
	}

	now := time.Now()
	nextAttemptAt := now
	if options.delay > 0 {
		nextAttemptAt = nextAttemptAt.Add(options.delay)
	}

	return &Job{
		ID:            uuid.New(),
		Queue:         options.queue,
		Type:          jobType,
		Payload:       payloadBytes,
		Status:        StatusPending,
		Priority:      options.priority,
		AttemptCount:  0,
		MaxAttempts:   options.maxAttempts,
		NextAttemptAt: nextAttemptAt,
		CreatedAt:     now,
	}, nil
}
