package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blocmark/notifier/internal/queue"
	"github.com/blocmark/notifier/pkg/logger"
)

// DeliveryBackend hands a prepared email to its delivery path.
type DeliveryBackend interface {
	Deliver(ctx context.Context, email OutboundEmail) error
}

// QueuedBackend persists the email as a job; the queue worker performs the
// provider send with retry and backoff.
type QueuedBackend struct {
	queue *queue.Service
}

// NewQueuedBackend creates the queue-backed delivery backend.
func NewQueuedBackend(q *queue.Service) (*QueuedBackend, error) {
	if q == nil {
		return nil, ErrNilDependency
	}
	return &QueuedBackend{queue: q}, nil
}

// Deliver implements DeliveryBackend.
func (b *QueuedBackend) Deliver(ctx context.Context, email OutboundEmail) error {
	if _, err := b.queue.Enqueue(ctx, email); err != nil {
		return fmt.Errorf("enqueue delivery of %s: %w", email.MessageID, err)
	}
	return nil
}

// DirectBackend sends synchronously through the Deliverer. It trades retry
// durability for availability and exists so a broken queue backend degrades
// the pipeline instead of halting it.
type DirectBackend struct {
	deliverer *Deliverer
}

// NewDirectBackend creates the synchronous delivery backend.
func NewDirectBackend(d *Deliverer) (*DirectBackend, error) {
	if d == nil {
		return nil, ErrNilDependency
	}
	return &DirectBackend{deliverer: d}, nil
}

// Deliver implements DeliveryBackend.
func (b *DirectBackend) Deliver(ctx context.Context, email OutboundEmail) error {
	return b.deliverer.Deliver(ctx, email)
}

// SelectBackend probes the queue storage once at startup and picks the
// delivery mode. An unreachable queue backend is not fatal: the service comes
// up in direct mode and says so loudly.
func SelectBackend(ctx context.Context, q *queue.Service, d *Deliverer, log *slog.Logger) (DeliveryBackend, error) {
	if log == nil {
		log = slog.Default()
	}

	if q != nil {
		err := q.Ping(ctx)
		if err == nil {
			return NewQueuedBackend(q)
		}
		log.ErrorContext(ctx, "queue backend unreachable, falling back to direct delivery without retries",
			logger.Error(err))
	}

	return NewDirectBackend(d)
}
