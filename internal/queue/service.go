package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Storage bundles everything one queue backend must provide. The memory and
// Postgres storages both satisfy it.
type Storage interface {
	EnqueuerRepository
	WorkerRepository
	DeadLetterRepository

	// Ping reports whether the backend is reachable. Used at startup to
	// decide between queued and direct delivery.
	Ping(ctx context.Context) error
}

// DeadLetterRepository lists parked jobs for operator inspection.
type DeadLetterRepository interface {
	ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
}

// Service ties an enqueuer and a worker to one storage backend and manages
// their shared lifecycle.
type Service struct {
	storage  Storage
	enqueuer *Enqueuer
	worker   *Worker
}

// NewService creates a queue service over the given storage.
func NewService(storage Storage, cfg Config, opts ...WorkerOption) (*Service, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	enqueuer, err := NewEnqueuer(storage, WithDefaultMaxAttempts(cfg.MaxAttempts))
	if err != nil {
		return nil, fmt.Errorf("create enqueuer: %w", err)
	}

	workerOpts := append([]WorkerOption{
		WithPullInterval(cfg.PullInterval),
		WithLease(cfg.Lease),
		WithConcurrency(cfg.Concurrency),
	}, opts...)

	worker, err := NewWorker(storage, workerOpts...)
	if err != nil {
		return nil, fmt.Errorf("create worker: %w", err)
	}

	return &Service{
		storage:  storage,
		enqueuer: enqueuer,
		worker:   worker,
	}, nil
}

// RegisterHandlers registers job handlers on the worker. Must be called
// before Start.
func (s *Service) RegisterHandlers(handlers ...Handler) {
	s.worker.RegisterHandlers(handlers...)
}

// Enqueue persists a new job and returns its ID.
func (s *Service) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (uuid.UUID, error) {
	return s.enqueuer.Enqueue(ctx, payload, opts...)
}

// Start begins processing jobs.
func (s *Service) Start(ctx context.Context) error {
	return s.worker.Start(ctx)
}

// Stop drains in-flight jobs and shuts the worker down.
func (s *Service) Stop() error {
	return s.worker.Stop()
}

// Ping probes the queue backend.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.storage.Ping(ctx)
}

// DeadLetters lists parked jobs, newest first.
func (s *Service) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	return s.storage.ListDeadLetters(ctx, limit)
}
