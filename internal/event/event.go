package event

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one logical email.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusSent       Status = "sent"
	StatusDelivered  Status = "delivered"
	StatusOpened     Status = "opened"
	StatusClicked    Status = "clicked"
	StatusBounced    Status = "bounced"
	StatusComplained Status = "complained"
)

// Kind identifies an asynchronous provider callback.
type Kind string

const (
	KindDelivery  Kind = "delivery"
	KindOpen      Kind = "open"
	KindClick     Kind = "click"
	KindBounce    Kind = "bounce"
	KindComplaint Kind = "complaint"
)

// Event is the durable record tracking one logical email's lifecycle.
// Exactly one Event exists per MessageID; it is created by the orchestrator,
// updated by the delivery worker and the webhook ingestor, and never deleted.
type Event struct {
	MessageID    string            `json:"message_id"`
	UserID       *uuid.UUID        `json:"user_id,omitempty"`
	Recipient    string            `json:"recipient"`
	TemplateName string            `json:"template_name"`
	Subject      string            `json:"subject"`
	Tag          string            `json:"tag,omitempty"`
	Status       Status            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	DeliveredAt  *time.Time        `json:"delivered_at,omitempty"`
	OpenedAt     *time.Time        `json:"opened_at,omitempty"`
	ClickedAt    *time.Time        `json:"clicked_at,omitempty"`
	BouncedAt    *time.Time        `json:"bounced_at,omitempty"`
	ComplainedAt *time.Time        `json:"complained_at,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	// version is the optimistic-concurrency token carried between Get and
	// Update. It never leaves the package.
	version int64
}

// Outcome reports the recorded delivery outcome, if any. Delivered, bounced
// and complained are mutually exclusive: the first one recorded wins.
func (e *Event) Outcome() (Kind, bool) {
	switch {
	case e.DeliveredAt != nil:
		return KindDelivery, true
	case e.BouncedAt != nil:
		return KindBounce, true
	case e.ComplainedAt != nil:
		return KindComplaint, true
	}
	return "", false
}

// MarkSent records the successful handoff to the delivery path.
// Calling it again is a no-op, so replays keep the original timestamp.
func (e *Event) MarkSent(at time.Time) {
	if e.SentAt != nil {
		return
	}
	e.SentAt = &at
	if e.Status == StatusQueued {
		e.Status = StatusSent
	}
}

// Apply folds a provider callback into the event.
//
// Delivery outcomes are exclusive: once one is recorded, a conflicting
// outcome for the same message is stale and rejected. Opens and clicks are
// independent set-once flags; some clients fire a click without a prior open,
// so no order is enforced between them. Every path is idempotent: replaying
// the same callback leaves the event unchanged.
func (e *Event) Apply(kind Kind, at time.Time) error {
	switch kind {
	case KindDelivery, KindBounce, KindComplaint:
		if prev, ok := e.Outcome(); ok {
			if prev == kind {
				return nil
			}
			return ErrStaleOutcome
		}
		switch kind {
		case KindDelivery:
			e.DeliveredAt = &at
			e.Status = StatusDelivered
		case KindBounce:
			e.BouncedAt = &at
			e.Status = StatusBounced
		case KindComplaint:
			e.ComplainedAt = &at
			e.Status = StatusComplained
		}
		return nil

	case KindOpen:
		if e.OpenedAt == nil {
			e.OpenedAt = &at
		}
		if e.Status == StatusSent {
			e.Status = StatusOpened
		}
		return nil

	case KindClick:
		if e.ClickedAt == nil {
			e.ClickedAt = &at
		}
		if e.Status == StatusSent || e.Status == StatusOpened {
			e.Status = StatusClicked
		}
		return nil
	}

	return ErrUnknownEventKind
}
