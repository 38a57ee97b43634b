package queue

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements all queue repository interfaces for testing and
// local development.
type MemoryStorage struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
	dlq  map[uuid.UUID]*DeadLetter

	byStatus map[Status][]uuid.UUID

	backoffBase time.Duration

	sweepTicker *time.Ticker
	done        chan struct{}
}

// MemoryOption configures MemoryStorage.
type MemoryOption func(*MemoryStorage)

// WithBackoffBase sets the base used for exponential retry backoff.
func WithBackoffBase(d time.Duration) MemoryOption {
	return func(ms *MemoryStorage) {
		if d > 0 {
			ms.backoffBase = d
		}
	}
}

// NewMemoryStorage creates a new in-memory storage implementation.
// A background sweep releases expired leases so jobs claimed by a crashed
// worker become claimable again.
func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	ms := &MemoryStorage{
		jobs:        make(map[uuid.UUID]*Job),
		dlq:         make(map[uuid.UUID]*DeadLetter),
		byStatus:    make(map[Status][]uuid.UUID),
		backoffBase: defaultBackoffBase,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}

	ms.sweepTicker = time.NewTicker(time.Second)
	go ms.leaseSweeper()

	return ms
}

// Close stops the background lease sweeper.
func (ms *MemoryStorage) Close() error {
	close(ms.done)
	ms.sweepTicker.Stop()
	return nil
}

// Ping implements the availability probe; memory storage is always up.
func (ms *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// CreateJob implements EnqueuerRepository.
func (ms *MemoryStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return ErrPayloadNil
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return fmt.Errorf("job with ID %s already exists", job.ID)
	}

	clone := *job
	ms.jobs[job.ID] = &clone
	ms.byStatus[job.Status] = append(ms.byStatus[job.Status], job.ID)
	return nil
}

// ClaimJob implements WorkerRepository. Selection is priority-first with
// earliest next attempt breaking ties.
func (ms *MemoryStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lease time.Duration) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Job

	for _, jobID := range ms.byStatus[StatusPending] {
		job := ms.jobs[jobID]

		if !slices.Contains(queues, job.Queue) {
			continue
		}
		if job.NextAttemptAt.After(now) {
			continue
		}
		if best == nil ||
			job.Priority > best.Priority ||
			(job.Priority == best.Priority && job.NextAttemptAt.Before(best.NextAttemptAt)) {
			best = job
		}
	}

	if best == nil {
		return nil, ErrNoJobToClaim
	}

	lockUntil := now.Add(lease)
	best.Status = StatusActive
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID

	ms.moveStatusIndex(best.ID, StatusPending, StatusActive)

	clone := *best
	return &clone, nil
}

// CompleteJob implements WorkerRepository.
func (ms *MemoryStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}
	if job.Status != StatusActive {
		return fmt.Errorf("%w: %s", ErrJobNotActive, jobID)
	}

	now := time.Now()
	job.Status = StatusCompleted
	job.ProcessedAt = &now
	job.LockedUntil = nil
	job.LockedBy = nil

	ms.moveStatusIndex(jobID, StatusActive, StatusCompleted)
	return nil
}

// FailJob implements WorkerRepository. Retries back off exponentially:
// base·2^(n−1) after the n-th failed attempt.
func (ms *MemoryStorage) FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}
	if job.Status != StatusActive {
		return fmt.Errorf("%w: %s", ErrJobNotActive, jobID)
	}

	job.AttemptCount++
	job.LastError = &errorMsg
	job.LockedUntil = nil
	job.LockedBy = nil

	if job.AttemptCount >= job.MaxAttempts {
		job.Status = StatusDead
		ms.moveStatusIndex(jobID, StatusActive, StatusDead)
	} else {
		job.Status = StatusPending
		backoff := ms.backoffBase << (job.AttemptCount - 1)
		job.NextAttemptAt = time.Now().Add(backoff)
		ms.moveStatusIndex(jobID, StatusActive, StatusPending)
	}

	return nil
}

// MoveToDeadLetter implements WorkerRepository.
func (ms *MemoryStorage) MoveToDeadLetter(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}

	entry := &DeadLetter{
		ID:           uuid.New(),
		JobID:        job.ID,
		Queue:        job.Queue,
		Type:         job.Type,
		Payload:      job.Payload,
		Priority:     job.Priority,
		AttemptCount: job.AttemptCount,
		FailedAt:     time.Now(),
		CreatedAt:    job.CreatedAt,
	}
	if job.LastError != nil {
		entry.Error = *job.LastError
	}
	ms.dlq[entry.ID] = entry

	ms.removeFromStatusIndex(jobID, job.Status)
	delete(ms.jobs, jobID)
	return nil
}

// ListDeadLetters implements DeadLetterRepository.
func (ms *MemoryStorage) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]DeadLetter, 0, len(ms.dlq))
	for _, entry := range ms.dlq {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FailedAt.After(out[j].FailedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetJob returns a copy of a job by ID, for tests and inspection.
func (ms *MemoryStorage) GetJob(jobID uuid.UUID) (*Job, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return nil, false
	}
	clone := *job
	return &clone, true
}

func (ms *MemoryStorage) moveStatusIndex(jobID uuid.UUID, from, to Status) {
	ms.removeFromStatusIndex(jobID, from)
	ms.byStatus[to] = append(ms.byStatus[to], jobID)
}

func (ms *MemoryStorage) removeFromStatusIndex(jobID uuid.UUID, status Status) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == jobID
	})
}

func (ms *MemoryStorage) leaseSweeper() {
	for {
		select {
		case <-ms.sweepTicker.C:
			ms.releaseExpiredLeases()
		case <-ms.done:
			return
		}
	}
}

// releaseExpiredLeases resets active jobs whose lease has lapsed back to
// pending, preserving their attempt history. This is what makes jobs held by
// a crashed worker reclaimable.
func (ms *MemoryStorage) releaseExpiredLeases() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for _, jobID := range slices.Clone(ms.byStatus[StatusActive]) {
		job := ms.jobs[jobID]
		if job.LockedUntil != nil && job.LockedUntil.Before(now) {
			job.Status = StatusPending
			job.LockedUntil = nil
			job.LockedBy = nil
			ms.moveStatusIndex(jobID, StatusActive, StatusPending)
		}
	}
}
