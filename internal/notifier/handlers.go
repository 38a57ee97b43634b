package notifier

import (
	"context"

	"github.com/blocmark/notifier/internal/queue"
)

// NewDeliveryHandler returns the queue handler for prepared emails. A
// returned error means the attempt was transient and the job should retry.
func NewDeliveryHandler(d *Deliverer) queue.Handler {
	return queue.NewHandler(func(ctx context.Context, email OutboundEmail) error {
		return d.Deliver(ctx, email)
	})
}

// NewRequestHandler returns the queue handler for raw notification requests.
// Orchestration failures inside Dispatch are absorbed there; an error here is
// a malformed payload or unknown type, which retries cannot fix, but the
// retry budget is cheap and the dead letter queue keeps the evidence.
func NewRequestHandler(s *Service) queue.Handler {
	return queue.NewHandler(func(ctx context.Context, req NotificationRequest) error {
		return s.Dispatch(ctx, req)
	})
}
