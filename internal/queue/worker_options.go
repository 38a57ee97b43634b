package queue

import (
	"log/slog"
	"time"
)

type workerOptions struct {
	queues       []string
	pullInterval time.Duration
	lease        time.Duration
	concurrency  int
	logger       *slog.Logger
}

// WorkerOption configures the worker.
type WorkerOption func(*workerOptions)

// WithQueues sets the queues the worker drains.
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		if len(queues) > 0 {
			o.queues = queues
		}
	}
}

// WithPullInterval sets how often the claim loop polls for work.
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLease sets the visibility timeout for claimed jobs. A crashed worker's
// jobs become reclaimable once the lease expires.
func WithLease(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lease = d
		}
	}
}

// WithConcurrency sets the number of parallel handler slots.
func WithConcurrency(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithWorkerLogger supplies a logger. Defaults to slog.Default().
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}
