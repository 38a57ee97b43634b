package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blocmark/notifier/internal/event"
	"github.com/blocmark/notifier/internal/mailer"
	"github.com/blocmark/notifier/internal/suppression"
	"github.com/blocmark/notifier/pkg/logger"
)

// Deliverer is the provider handoff path. Both delivery modes funnel through
// it: the queue worker for queued jobs and the direct backend when the queue
// is unavailable.
type Deliverer struct {
	sender       mailer.EmailSender
	suppressions *suppression.Service
	events       *event.Service
	logger       *slog.Logger
}

// NewDeliverer creates a Deliverer.
func NewDeliverer(sender mailer.EmailSender, suppressions *suppression.Service, events *event.Service, logger *slog.Logger) (*Deliverer, error) {
	if sender == nil || suppressions == nil || events == nil {
		return nil, ErrNilDependency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Deliverer{
		sender:       sender,
		suppressions: suppressions,
		events:       events,
		logger:       logger,
	}, nil
}

// Deliver sends one prepared email. The returned error means "retry": only
// transient failures propagate. Permanent provider rejections suppress the
// recipient, record a bounce and succeed, because repeating the attempt can
// never change the outcome.
//
// Suppression is re-checked here even though the orchestrator already gated
// it: an unsubscribe or bounce may have landed while the job waited.
func (d *Deliverer) Deliver(ctx context.Context, email OutboundEmail) error {
	suppressed, err := d.suppressions.IsSuppressed(ctx, email.Recipient)
	if err != nil {
		return fmt.Errorf("suppression check for %s: %w", email.MessageID, err)
	}
	if suppressed {
		d.logger.InfoContext(ctx, "delivery dropped, recipient suppressed since enqueue",
			logger.MessageID(email.MessageID),
			logger.Recipient(email.Recipient))
		return nil
	}

	err = d.sender.SendEmail(ctx, mailer.SendEmailParams{
		SendTo:    email.Recipient,
		Subject:   email.Subject,
		BodyHTML:  email.BodyHTML,
		Tag:       email.Tag,
		MessageID: email.MessageID,
		Metadata:  email.Metadata,
	})

	switch {
	case err == nil:
		// Fallthrough to bookkeeping below.
	case errors.Is(err, mailer.ErrPermanent):
		d.handlePermanentRejection(ctx, email, err)
		return nil
	default:
		return fmt.Errorf("send %s: %w", email.MessageID, err)
	}

	// The email is already with the provider; a bookkeeping failure must not
	// trigger a retry and a duplicate send.
	if err := d.events.MarkSent(ctx, email.MessageID, time.Now()); err != nil {
		d.logger.ErrorContext(ctx, "email sent but event update failed",
			logger.MessageID(email.MessageID),
			logger.Error(err))
	}
	return nil
}

func (d *Deliverer) handlePermanentRejection(ctx context.Context, email OutboundEmail, sendErr error) {
	d.logger.WarnContext(ctx, "provider rejected recipient permanently",
		logger.MessageID(email.MessageID),
		logger.Recipient(email.Recipient),
		logger.Error(sendErr))

	if err := d.suppressions.Add(ctx, email.Recipient, suppression.ReasonBounce, map[string]string{
		"source":     "provider_rejection",
		"message_id": email.MessageID,
	}); err != nil {
		d.logger.ErrorContext(ctx, "failed to suppress rejected recipient",
			logger.Recipient(email.Recipient),
			logger.Error(err))
	}

	if err := d.events.ApplyCallback(ctx, email.MessageID, event.KindBounce, time.Now()); err != nil {
		d.logger.ErrorContext(ctx, "failed to record bounce for rejected recipient",
			logger.MessageID(email.MessageID),
			logger.Error(err))
	}
}
