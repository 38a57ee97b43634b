package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/blocmark/notifier/pkg/logger"
)

// WorkerRepository defines the interface for worker operations.
type WorkerRepository interface {
	// ClaimJob atomically claims the next runnable job and leases it for
	// lease duration. Exclusive: no two workers may hold the same job.
	ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lease time.Duration) (*Job, error)

	// CompleteJob marks a job as completed.
	CompleteJob(ctx context.Context, jobID uuid.UUID) error

	// FailJob records a failed attempt: increments the attempt count and
	// either reschedules with backoff or marks the job dead.
	FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error

	// MoveToDeadLetter archives a dead job for operator inspection.
	MoveToDeadLetter(ctx context.Context, jobID uuid.UUID) error
}

// Worker drains the queue with a configurable number of concurrent handler
// slots. A claimed job always runs to a terminal per-attempt outcome; there
// is no mid-flight cancellation. Stop waits for in-flight handlers.
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex

	pullInterval time.Duration
	lease        time.Duration
	logger       *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a queue worker.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrStorageNil
	}

	options := &workerOptions{
		queues:       []string{DefaultQueueName},
		pullInterval: time.Second,
		lease:        5 * time.Minute,
		concurrency:  1,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:         repo,
		handlers:     make(map[string]Handler),
		queues:       options.queues,
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.concurrency),
		pullInterval: options.pullInterval,
		lease:        options.lease,
		logger:       options.logger,
	}, nil
}

// RegisterHandlers registers job handlers keyed by their type names.
func (w *Worker) RegisterHandlers(handlers ...Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			w.handlers[h.Name()] = h
		}
	}
}

// Start begins claiming jobs in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)
	go w.run()

	w.logger.Info("queue worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("concurrency", cap(w.sem)))
	return nil
}

// Stop gracefully shuts down the worker, draining in-flight jobs.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return errors.New("worker not started")
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("queue worker stopping, draining in-flight jobs",
		slog.String("worker_id", w.workerID.String()))
	w.wg.Wait()
	w.logger.Info("queue worker stopped", slog.String("worker_id", w.workerID.String()))
	return nil
}

// run is the claim loop: each tick tries to fill a free handler slot.
func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				// stopMu orders the stopping check against Stop(): we must
				// not Add to the WaitGroup after Stop() began waiting.
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if err := w.claimAndProcess(); err != nil && !errors.Is(err, ErrHandlerNotFound) {
						w.logger.Error("failed to process job",
							slog.String("worker_id", w.workerID.String()),
							logger.Error(err))
					}
				}()
			default:
				// All slots busy; skip this tick.
			}
		}
	}
}

// storeTimeout bounds post-attempt bookkeeping writes.
const storeTimeout = 30 * time.Second

// storeContext returns the context for recording an attempt's outcome. It is
// detached from the worker lifecycle: Stop() cancels the claim loop, but it
// must never cancel the write that marks a drained job completed or failed,
// or the job would be reclaimed after lease expiry and run again.
func storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

func (w *Worker) claimAndProcess() error {
	job, err := w.repo.ClaimJob(w.ctx, w.workerID, w.queues, w.lease)
	if err != nil {
		if errors.Is(err, ErrNoJobToClaim) {
			return nil
		}
		return fmt.Errorf("claim job: %w", err)
	}
	if job == nil {
		return nil
	}

	w.logger.Debug("claimed job",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.Type),
		slog.String("queue", job.Queue))

	return w.processJob(job)
}

func (w *Worker) processJob(job *Job) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("job_id", job.ID.String()),
				slog.String("job_type", job.Type),
				slog.Any("panic", r))
			_ = w.handleFailure(job, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[job.Type]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(job)
	}

	// The handler context is bounded by the lease, not by the worker
	// lifecycle, so graceful shutdown lets in-flight jobs finish.
	ctx, cancel := context.WithTimeout(context.Background(), w.lease)
	defer cancel()

	err := handler.Handle(ctx, job.Payload)
	duration := time.Since(start)

	if err != nil {
		return w.handleFailure(job, err, duration)
	}
	return w.handleSuccess(job, duration)
}

// handleMissingHandler dead-letters jobs with no registered handler outright:
// retrying cannot help until new code ships, and the DLQ lets operators
// requeue once it does.
func (w *Worker) handleMissingHandler(job *Job) error {
	w.logger.Error("no handler registered for job type",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.Type))

	ctx, cancel := storeContext()
	defer cancel()

	if err := w.repo.FailJob(ctx, job.ID, "no handler registered for job type: "+job.Type); err != nil {
		return fmt.Errorf("mark job %s failed: %w", job.ID, err)
	}
	if err := w.repo.MoveToDeadLetter(ctx, job.ID); err != nil {
		return fmt.Errorf("move job %s to dead letter queue: %w", job.ID, err)
	}
	return ErrHandlerNotFound
}

func (w *Worker) handleFailure(job *Job, execErr error, duration time.Duration) error {
	w.logger.Error("job attempt failed",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.Type),
		slog.Int("attempt_count", int(job.AttemptCount)),
		slog.Int("max_attempts", int(job.MaxAttempts)),
		slog.Duration("duration", duration),
		logger.Error(execErr))

	ctx, cancel := storeContext()
	defer cancel()

	// FailJob records the error, increments the attempt count and applies
	// backoff or marks the job dead.
	if err := w.repo.FailJob(ctx, job.ID, execErr.Error()); err != nil {
		return fmt.Errorf("mark job %s failed: %w", job.ID, err)
	}

	// The claim-time snapshot has the pre-increment count.
	if job.AttemptCount+1 >= job.MaxAttempts {
		if err := w.repo.MoveToDeadLetter(ctx, job.ID); err != nil {
			return fmt.Errorf("move job %s to dead letter queue: %w", job.ID, err)
		}
		w.logger.Warn("job moved to dead letter queue",
			slog.String("job_id", job.ID.String()),
			slog.String("job_type", job.Type))
	}
	return nil
}

func (w *Worker) handleSuccess(job *Job, duration time.Duration) error {
	ctx, cancel := storeContext()
	defer cancel()

	if err := w.repo.CompleteJob(ctx, job.ID); err != nil {
		return fmt.Errorf("mark job %s completed: %w", job.ID, err)
	}

	w.logger.Info("job completed",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.Type),
		slog.String("queue", job.Queue),
		slog.Duration("duration", duration))
	return nil
}
