package notifier

import (
	"encoding/json"

	"github.com/google/uuid"
)

// NotificationType identifies one kind of transactional notification. The set
// is closed: dispatch switches over it exhaustively and unknown values are
// rejected at the API boundary, never silently dropped inside the pipeline.
type NotificationType string

const (
	TypeWelcome             NotificationType = "welcome"
	TypePasswordReset       NotificationType = "password_reset"
	TypeBookingConfirmation NotificationType = "booking_confirmation"
	TypeBookingUpdate       NotificationType = "booking_update"
	TypeMessageReceived     NotificationType = "message_received"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeWelcome, TypePasswordReset, TypeBookingConfirmation,
		TypeBookingUpdate, TypeMessageReceived:
		return true
	}
	return false
}

// BookingUpdateKind is the kind of change a booking update announces.
type BookingUpdateKind string

const (
	BookingApproved  BookingUpdateKind = "approved"
	BookingRejected  BookingUpdateKind = "rejected"
	BookingCancelled BookingUpdateKind = "cancelled"
	BookingModified  BookingUpdateKind = "modified"
)

// Valid reports whether k is a known booking update kind.
func (k BookingUpdateKind) Valid() bool {
	switch k {
	case BookingApproved, BookingRejected, BookingCancelled, BookingModified:
		return true
	}
	return false
}

// WelcomeParams carries the inputs for a welcome notification. The
// verification URL, when set, is pre-built by the caller; token issuance is
// not this service's concern.
type WelcomeParams struct {
	UserID          uuid.UUID `json:"user_id"`
	VerificationURL string    `json:"verification_url,omitempty"`
	DedupeKey       string    `json:"dedupe_key,omitempty"`
}

// PasswordResetParams carries the inputs for a password reset notification.
// The recipient is addressed by email, not user ID, because reset flows start
// from an unauthenticated form.
type PasswordResetParams struct {
	Email     string `json:"email"`
	ResetURL  string `json:"reset_url"`
	DedupeKey string `json:"dedupe_key,omitempty"`
}

// BookingConfirmationParams carries the inputs for a booking confirmation,
// which fans out to both the guest and the host.
type BookingConfirmationParams struct {
	BookingID uuid.UUID `json:"booking_id"`
	DedupeKey string    `json:"dedupe_key,omitempty"`
}

// BookingUpdateParams carries the inputs for a booking status change
// notification, sent to the guest.
type BookingUpdateParams struct {
	BookingID uuid.UUID         `json:"booking_id"`
	Update    BookingUpdateKind `json:"update"`
	DedupeKey string            `json:"dedupe_key,omitempty"`
}

// MessageReceivedParams carries the inputs for a new-message notification,
// sent to the message recipient.
type MessageReceivedParams struct {
	MessageID uuid.UUID `json:"message_id"`
	DedupeKey string    `json:"dedupe_key,omitempty"`
}

// NotificationRequest is the raw enqueue envelope: a typed request whose
// orchestration runs inside the queue worker instead of the caller's request
// cycle. Payload holds the JSON of the matching *Params struct.
type NotificationRequest struct {
	Type    NotificationType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

// OutboundEmail is one fully prepared email awaiting provider handoff. It is
// the payload of delivery jobs; the worker re-checks suppression right before
// sending because the entry may have appeared while the job sat in the queue.
type OutboundEmail struct {
	MessageID    string            `json:"message_id"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject"`
	BodyHTML     string            `json:"body_html"`
	Tag          string            `json:"tag,omitempty"`
	TemplateName string            `json:"template_name"`
	UserID       *uuid.UUID        `json:"user_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
