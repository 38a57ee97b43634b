package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/blocmark/notifier/internal/event"
	"github.com/blocmark/notifier/internal/suppression"
	"github.com/blocmark/notifier/pkg/logger"
)

// providerCallback is the provider's webhook body. Field names follow the
// Postmark wire format; bounce-class callbacks address the recipient as
// Email, delivery and engagement callbacks as Recipient.
type providerCallback struct {
	RecordType  string            `json:"RecordType"`
	MessageID   string            `json:"MessageID"`
	Recipient   string            `json:"Recipient"`
	Email       string            `json:"Email"`
	DeliveredAt *time.Time        `json:"DeliveredAt,omitempty"`
	BouncedAt   *time.Time        `json:"BouncedAt,omitempty"`
	ReceivedAt  *time.Time        `json:"ReceivedAt,omitempty"`
	Metadata    map[string]string `json:"Metadata,omitempty"`
}

func (c providerCallback) recipient() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Recipient
}

// timestamp prefers the provider's own clock for the callback moment.
func (c providerCallback) timestamp() time.Time {
	for _, t := range []*time.Time{c.DeliveredAt, c.BouncedAt, c.ReceivedAt} {
		if t != nil {
			return *t
		}
	}
	return time.Now()
}

// messageID resolves the idempotency key: the body field, the echoed
// metadata, then the echoed header.
func (c providerCallback) messageID(r *http.Request) string {
	if c.MessageID != "" {
		return c.MessageID
	}
	if id, ok := c.Metadata["message_id"]; ok && id != "" {
		return id
	}
	return r.Header.Get("X-Message-ID")
}

var recordTypeKinds = map[string]event.Kind{
	"Delivery":      event.KindDelivery,
	"Open":          event.KindOpen,
	"Click":         event.KindClick,
	"Bounce":        event.KindBounce,
	"SpamComplaint": event.KindComplaint,
}

// handleProviderWebhook ingests asynchronous delivery callbacks. The provider
// retries non-2xx responses, so anything that retrying cannot fix (unknown
// record type, missing message ID, unknown event) is acknowledged with 200
// and logged; only a store failure earns a 5xx.
func (a *API) handleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	var cb providerCallback
	if err := decodeBody(r, &cb); err != nil {
		a.logger.WarnContext(r.Context(), "malformed provider callback",
			logger.Error(err))
		w.WriteHeader(http.StatusOK)
		return
	}

	kind, ok := recordTypeKinds[cb.RecordType]
	if !ok {
		a.logger.WarnContext(r.Context(), "unknown callback record type ignored",
			slog.String("record_type", cb.RecordType))
		w.WriteHeader(http.StatusOK)
		return
	}

	messageID := cb.messageID(r)
	if messageID == "" {
		a.logger.WarnContext(r.Context(), "callback without message id ignored",
			slog.String("record_type", cb.RecordType))
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx := r.Context()
	at := cb.timestamp()

	if err := a.events.ApplyCallback(ctx, messageID, kind, at); err != nil {
		if errors.Is(err, event.ErrNotFound) {
			a.logger.WarnContext(ctx, "callback for unknown message ignored",
				logger.MessageID(messageID),
				slog.String("record_type", cb.RecordType))
			w.WriteHeader(http.StatusOK)
			return
		}
		a.logger.ErrorContext(ctx, "failed to apply provider callback",
			logger.MessageID(messageID),
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "event store unavailable")
		return
	}

	switch kind {
	case event.KindBounce, event.KindComplaint:
		a.suppressRecipient(r, cb, kind, messageID)
	}

	w.WriteHeader(http.StatusOK)
}

func (a *API) suppressRecipient(r *http.Request, cb providerCallback, kind event.Kind, messageID string) {
	recipient := cb.recipient()
	if recipient == "" {
		if ev, err := a.events.Get(r.Context(), messageID); err == nil {
			recipient = ev.Recipient
		}
	}
	if recipient == "" {
		a.logger.WarnContext(r.Context(), "cannot suppress, callback has no recipient",
			logger.MessageID(messageID))
		return
	}

	reason := suppression.ReasonBounce
	if kind == event.KindComplaint {
		reason = suppression.ReasonComplaint
	}

	if err := a.suppressions.Add(r.Context(), recipient, reason, map[string]string{
		"source":     "provider_webhook",
		"message_id": messageID,
	}); err != nil {
		a.logger.ErrorContext(r.Context(), "failed to suppress recipient from callback",
			logger.MessageID(messageID),
			logger.Error(err))
	}
}
