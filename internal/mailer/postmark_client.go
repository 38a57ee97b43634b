package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// Postmark API error codes that indicate the recipient itself is the problem.
// See https://postmarkapp.com/developer/api/overview#error-codes
const (
	postmarkErrInvalidEmailRequest = 300 // malformed or invalid address
	postmarkErrInactiveRecipient   = 406 // address on the provider-side suppression list
)

type postmarkClient struct {
	client *postmark.Client
	config Config
}

// NewPostmarkClient creates a Postmark-backed email sender.
// Both tokens are required so that a misconfigured process fails at startup
// instead of silently dropping mail at runtime.
func NewPostmarkClient(cfg Config) (EmailSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.SupportEmail == "" {
		return nil, fmt.Errorf("%w: SupportEmail is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SupportEmail) {
		return nil, fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}

	return &postmarkClient{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// MustNewPostmarkClient creates a Postmark client that panics on invalid config.
func MustNewPostmarkClient(cfg Config) EmailSender {
	client, err := NewPostmarkClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// SendEmail implements EmailSender using Postmark's transactional API.
// The message ID travels both as an X-Message-ID header and as metadata so
// webhook callbacks can be correlated to the originating EmailEvent. Open and
// HTML link tracking are enabled to feed the event state machine.
func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	metadata := map[string]string{"message_id": params.MessageID}
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       c.config.SenderEmail,
		ReplyTo:    c.config.SupportEmail,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
		Metadata:   metadata,
		Headers: []postmark.Header{
			{Name: "X-Message-ID", Value: params.MessageID},
		},
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, ErrTransient, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			classifyErrorCode(resp.ErrorCode),
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}

// classifyErrorCode decides whether a Postmark API error is worth retrying.
func classifyErrorCode(code int64) error {
	switch code {
	case postmarkErrInvalidEmailRequest, postmarkErrInactiveRecipient:
		return ErrPermanent
	default:
		return ErrTransient
	}
}
