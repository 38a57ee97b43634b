package mailer

import "errors"

var (
	ErrInvalidConfig     = errors.New("mailer: invalid config")
	ErrInvalidParams     = errors.New("mailer: invalid send params")
	ErrFailedToSendEmail = errors.New("mailer: failed to send email")

	// ErrTransient marks failures worth retrying: network errors, rate
	// limits, provider outages.
	ErrTransient = errors.New("mailer: transient provider error")

	// ErrPermanent marks failures that will never succeed on retry:
	// invalid or hard-bounced addresses. Callers should suppress the
	// recipient instead of retrying.
	ErrPermanent = errors.New("mailer: permanent provider error")
)
