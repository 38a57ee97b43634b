package mailer

import (
	"context"
	"fmt"
	"regexp"
)

// EmailSender is the provider client: it transmits a single prepared email.
// Implementations must not touch delivery bookkeeping; that is the caller's job.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo    string            `json:"send_to"`             // Email address of the recipient
	Subject   string            `json:"subject"`             // Subject of the email
	BodyHTML  string            `json:"body_html"`           // HTML body of the email
	Tag       string            `json:"tag,omitempty"`       // Optional provider-side category tag
	MessageID string            `json:"message_id"`          // Idempotency key, echoed back by provider webhooks
	Metadata  map[string]string `json:"metadata,omitempty"`  // Optional key/value metadata forwarded to the provider
}

// emailRegex is intentionally permissive; the provider remains the final
// authority on deliverability.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate checks that the parameters are complete enough to attempt a send.
func (p SendEmailParams) Validate() error {
	if p.SendTo == "" {
		return fmt.Errorf("%w: SendTo is required", ErrInvalidParams)
	}
	if !emailRegex.MatchString(p.SendTo) {
		return fmt.Errorf("%w: SendTo must be a valid email address", ErrInvalidParams)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	}
	if p.BodyHTML == "" {
		return fmt.Errorf("%w: BodyHTML is required", ErrInvalidParams)
	}
	if p.MessageID == "" {
		return fmt.Errorf("%w: MessageID is required", ErrInvalidParams)
	}
	return nil
}
