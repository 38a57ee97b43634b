package queue

import "time"

// EnqueuerOption configures Enqueuer defaults.
type EnqueuerOption func(*Enqueuer)

// WithDefaultQueue sets the queue used when Enqueue is called without one.
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(e *Enqueuer) {
		if queue != "" {
			e.defaultQueue = queue
		}
	}
}

// WithDefaultPriority sets the priority used when Enqueue is called without one.
func WithDefaultPriority(p Priority) EnqueuerOption {
	return func(e *Enqueuer) { e.defaultPriority = p }
}

// WithDefaultMaxAttempts sets the retry budget for new jobs.
func WithDefaultMaxAttempts(n int8) EnqueuerOption {
	return func(e *Enqueuer) {
		if n > 0 {
			e.defaultAttempts = n
		}
	}
}

type enqueueOptions struct {
	queue       string
	jobType     string
	priority    Priority
	maxAttempts int8
	delay       time.Duration
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

// WithQueue places the job on a specific queue.
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithJobType overrides the job type derived from the payload struct.
func WithJobType(jobType string) EnqueueOption {
	return func(o *enqueueOptions) {
		if jobType != "" {
			o.jobType = jobType
		}
	}
}

// WithPriority sets the job priority.
func WithPriority(p Priority) EnqueueOption {
	return func(o *enqueueOptions) { o.priority = p }
}

// WithMaxAttempts sets the retry budget for this job.
func WithMaxAttempts(n int8) EnqueueOption {
	return func(o *enqueueOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithDelay postpones the first attempt.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}
