package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/blocmark/notifier/internal/event"
	"github.com/blocmark/notifier/internal/mailer"
	"github.com/blocmark/notifier/internal/preference"
	"github.com/blocmark/notifier/internal/queue"
	"github.com/blocmark/notifier/internal/suppression"
	"github.com/blocmark/notifier/pkg/logger"
)

// Service orchestrates notification sends: it resolves entities, applies
// preference and suppression gates, renders the email, records the tracking
// event and hands the result to the delivery backend.
//
// Send operations never fail the caller's business flow. A user who cannot
// be notified (missing entity, opted out, suppressed, provider down) is a
// logged skip, not an error; only misuse of the API surfaces as an error.
type Service struct {
	dir          Directory
	prefs        *preference.Service
	suppressions *suppression.Service
	events       *event.Service
	renderer     Renderer
	backend      DeliveryBackend
	sender       mailer.EmailSender
	queue        *queue.Service

	appName string
	domain  string
	logger  *slog.Logger
}

// ServiceParams collects the orchestrator's dependencies.
type ServiceParams struct {
	Directory    Directory
	Preferences  *preference.Service
	Suppressions *suppression.Service
	Events       *event.Service
	Renderer     Renderer
	Backend      DeliveryBackend
	Sender       mailer.EmailSender

	// Queue is optional; without it EnqueueNotification dispatches inline.
	Queue *queue.Service

	Config Config
	Logger *slog.Logger
}

// NewService creates the orchestrator.
func NewService(p ServiceParams) (*Service, error) {
	if p.Directory.Users == nil || p.Directory.Bookings == nil ||
		p.Directory.Locations == nil || p.Directory.Messages == nil {
		return nil, fmt.Errorf("%w: directory", ErrNilDependency)
	}
	if p.Preferences == nil || p.Suppressions == nil || p.Events == nil ||
		p.Renderer == nil || p.Backend == nil || p.Sender == nil {
		return nil, ErrNilDependency
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Config.AppName == "" {
		p.Config.AppName = "Blocmark"
	}
	if p.Config.EmailDomain == "" {
		p.Config.EmailDomain = "mail.blocmark.app"
	}

	return &Service{
		dir:          p.Directory,
		prefs:        p.Preferences,
		suppressions: p.Suppressions,
		events:       p.Events,
		renderer:     p.Renderer,
		backend:      p.Backend,
		sender:       p.Sender,
		queue:        p.Queue,
		appName:      p.Config.AppName,
		domain:       p.Config.EmailDomain,
		logger:       p.Logger,
	}, nil
}

// SendWelcome notifies a newly registered user.
func (s *Service) SendWelcome(ctx context.Context, params WelcomeParams) error {
	user, ok := s.resolveUser(ctx, params.UserID, TypeWelcome)
	if !ok {
		return nil
	}

	return s.send(ctx, sendRequest{
		typ:          TypeWelcome,
		category:     preference.CategoryAccountUpdate,
		templateName: "welcome",
		user:         user,
		dedupeKey:    params.DedupeKey,
		data: TemplateData{
			RecipientName:   user.Name,
			VerificationURL: params.VerificationURL,
		},
	})
}

// SendPasswordReset emails a reset link. An unknown address is a silent
// no-op so the endpoint cannot be used to probe which emails are registered.
func (s *Service) SendPasswordReset(ctx context.Context, params PasswordResetParams) error {
	if params.Email == "" || params.ResetURL == "" {
		return fmt.Errorf("%w: email and reset_url are required", ErrInvalidParams)
	}

	user, err := s.dir.Users.UserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset for unknown address skipped",
				slog.String("type", string(TypePasswordReset)))
			return nil
		}
		s.logger.ErrorContext(ctx, "user lookup failed",
			slog.String("type", string(TypePasswordReset)),
			logger.Error(err))
		return nil
	}

	return s.send(ctx, sendRequest{
		typ:          TypePasswordReset,
		category:     preference.CategoryPasswordReset,
		templateName: "password_reset",
		user:         user,
		dedupeKey:    params.DedupeKey,
		data: TemplateData{
			RecipientName: user.Name,
			ResetURL:      params.ResetURL,
		},
	})
}

// SendBookingConfirmation notifies both sides of a confirmed booking. The
// guest and host sends are independent: each has its own preference and
// suppression gate, its own event and its own delivery job.
func (s *Service) SendBookingConfirmation(ctx context.Context, params BookingConfirmationParams) error {
	booking, location, ok := s.resolveBooking(ctx, params.BookingID, TypeBookingConfirmation)
	if !ok {
		return nil
	}

	if guest, ok := s.resolveUser(ctx, booking.GuestID, TypeBookingConfirmation); ok {
		_ = s.send(ctx, sendRequest{
			typ:          TypeBookingConfirmation,
			category:     preference.CategoryBookingConfirmation,
			templateName: "booking_confirmation_guest",
			user:         guest,
			dedupeKey:    dedupeVariant(params.DedupeKey, "guest"),
			data: TemplateData{
				RecipientName: guest.Name,
				Booking:       booking,
				Location:      location,
			},
		})
	}

	if host, ok := s.resolveUser(ctx, booking.HostID, TypeBookingConfirmation); ok {
		_ = s.send(ctx, sendRequest{
			typ:          TypeBookingConfirmation,
			category:     preference.CategoryBookingConfirmation,
			templateName: "booking_confirmation_host",
			user:         host,
			dedupeKey:    dedupeVariant(params.DedupeKey, "host"),
			data: TemplateData{
				RecipientName: host.Name,
				Booking:       booking,
				Location:      location,
				IsHost:        true,
			},
		})
	}

	return nil
}

// SendBookingUpdate notifies the guest of a booking status change.
func (s *Service) SendBookingUpdate(ctx context.Context, params BookingUpdateParams) error {
	if !params.Update.Valid() {
		return fmt.Errorf("%w: unknown booking update kind %q", ErrInvalidParams, params.Update)
	}

	booking, location, ok := s.resolveBooking(ctx, params.BookingID, TypeBookingUpdate)
	if !ok {
		return nil
	}
	guest, ok := s.resolveUser(ctx, booking.GuestID, TypeBookingUpdate)
	if !ok {
		return nil
	}

	return s.send(ctx, sendRequest{
		typ:          TypeBookingUpdate,
		category:     preference.CategoryBookingUpdate,
		templateName: "booking_update",
		user:         guest,
		dedupeKey:    params.DedupeKey,
		data: TemplateData{
			RecipientName: guest.Name,
			Booking:       booking,
			Location:      location,
			Update:        params.Update,
		},
	})
}

// SendMessageNotification notifies the recipient of a new direct message.
func (s *Service) SendMessageNotification(ctx context.Context, params MessageReceivedParams) error {
	msg, err := s.dir.Messages.MessageByID(ctx, params.MessageID)
	if err != nil {
		s.logSkip(ctx, TypeMessageReceived, "message lookup", err)
		return nil
	}

	recipient, ok := s.resolveUser(ctx, msg.RecipientID, TypeMessageReceived)
	if !ok {
		return nil
	}
	sender, ok := s.resolveUser(ctx, msg.SenderID, TypeMessageReceived)
	if !ok {
		return nil
	}

	return s.send(ctx, sendRequest{
		typ:          TypeMessageReceived,
		category:     preference.CategoryMessageReceived,
		templateName: "message_received",
		user:         recipient,
		dedupeKey:    params.DedupeKey,
		data: TemplateData{
			RecipientName:  recipient.Name,
			SenderName:     sender.Name,
			MessagePreview: msg.Preview,
		},
	})
}

// SendTestEmail renders the given type with sample data and sends it straight
// to the provider. No event is recorded and no gate applies; this exists for
// operators verifying templates and provider configuration.
func (s *Service) SendTestEmail(ctx context.Context, typ NotificationType, recipient string) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidType, typ)
	}

	rendered, err := s.renderer.Render(typ, s.sampleData())
	if err != nil {
		return err
	}

	return s.sender.SendEmail(ctx, mailer.SendEmailParams{
		SendTo:    recipient,
		Subject:   "[TEST] " + rendered.Subject,
		BodyHTML:  rendered.BodyHTML,
		Tag:       "test",
		MessageID: newMessageID("", s.domain),
	})
}

// EnqueueNotification accepts a raw typed request and defers its
// orchestration to the queue worker. Without a queue backend the request is
// dispatched inline and uuid.Nil is returned.
func (s *Service) EnqueueNotification(ctx context.Context, typ NotificationType, payload json.RawMessage, priority queue.Priority) (uuid.UUID, error) {
	if !typ.Valid() {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrInvalidType, typ)
	}
	if len(payload) == 0 {
		return uuid.Nil, fmt.Errorf("%w: payload is required", ErrInvalidParams)
	}

	req := NotificationRequest{Type: typ, Payload: payload}

	if s.queue == nil {
		s.logger.WarnContext(ctx, "queue unavailable, dispatching notification inline",
			slog.String("type", string(typ)))
		return uuid.Nil, s.Dispatch(ctx, req)
	}

	return s.queue.Enqueue(ctx, req, queue.WithPriority(priority))
}

// Dispatch runs the orchestration op matching a raw request. The switch is
// exhaustive over the closed type set; Valid gates the API boundary, so an
// unknown type here means a version skew between enqueuer and worker.
func (s *Service) Dispatch(ctx context.Context, req NotificationRequest) error {
	switch req.Type {
	case TypeWelcome:
		var p WelcomeParams
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return fmt.Errorf("%w: %s payload: %v", ErrInvalidParams, req.Type, err)
		}
		return s.SendWelcome(ctx, p)
	case TypePasswordReset:
		var p PasswordResetParams
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return fmt.Errorf("%w: %s payload: %v", ErrInvalidParams, req.Type, err)
		}
		return s.SendPasswordReset(ctx, p)
	case TypeBookingConfirmation:
		var p BookingConfirmationParams
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return fmt.Errorf("%w: %s payload: %v", ErrInvalidParams, req.Type, err)
		}
		return s.SendBookingConfirmation(ctx, p)
	case TypeBookingUpdate:
		var p BookingUpdateParams
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return fmt.Errorf("%w: %s payload: %v", ErrInvalidParams, req.Type, err)
		}
		return s.SendBookingUpdate(ctx, p)
	case TypeMessageReceived:
		var p MessageReceivedParams
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return fmt.Errorf("%w: %s payload: %v", ErrInvalidParams, req.Type, err)
		}
		return s.SendMessageNotification(ctx, p)
	}
	return fmt.Errorf("%w: %s", ErrInvalidType, req.Type)
}

// sendRequest is one gated, rendered, tracked send to a single recipient.
type sendRequest struct {
	typ          NotificationType
	category     string
	templateName string
	user         *User
	dedupeKey    string
	data         TemplateData
}

func (s *Service) send(ctx context.Context, req sendRequest) error {
	if !s.prefs.AllowsTransactional(ctx, req.user.ID, req.category) {
		s.logger.InfoContext(ctx, "notification skipped by preference",
			slog.String("type", string(req.typ)),
			slog.String("category", req.category),
			logger.UserID(req.user.ID))
		return nil
	}

	suppressed, err := s.suppressions.IsSuppressed(ctx, req.user.Email)
	if err != nil {
		s.logSkip(ctx, req.typ, "suppression check", err)
		return nil
	}
	if suppressed {
		s.logger.InfoContext(ctx, "notification skipped, recipient suppressed",
			slog.String("type", string(req.typ)),
			logger.UserID(req.user.ID))
		return nil
	}

	req.data.AppName = s.appName
	rendered, err := s.renderer.Render(req.typ, req.data)
	if err != nil {
		s.logSkip(ctx, req.typ, "render", err)
		return nil
	}

	messageID := newMessageID(req.dedupeKey, s.domain)
	userID := req.user.ID

	err = s.events.Track(ctx, event.Event{
		MessageID:    messageID,
		UserID:       &userID,
		Recipient:    req.user.Email,
		TemplateName: req.templateName,
		Subject:      rendered.Subject,
		Tag:          string(req.typ),
		Status:       event.StatusQueued,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		if errors.Is(err, event.ErrAlreadyExists) {
			s.logger.InfoContext(ctx, "duplicate notification suppressed",
				slog.String("type", string(req.typ)),
				logger.MessageID(messageID))
			return nil
		}
		s.logSkip(ctx, req.typ, "event tracking", err)
		return nil
	}

	err = s.backend.Deliver(ctx, OutboundEmail{
		MessageID:    messageID,
		Recipient:    req.user.Email,
		Subject:      rendered.Subject,
		BodyHTML:     rendered.BodyHTML,
		Tag:          string(req.typ),
		TemplateName: req.templateName,
		UserID:       &userID,
		Metadata:     map[string]string{"notification_type": string(req.typ)},
	})
	if err != nil {
		s.logSkip(ctx, req.typ, "delivery handoff", err)
		return nil
	}

	s.logger.InfoContext(ctx, "notification accepted for delivery",
		slog.String("type", string(req.typ)),
		logger.MessageID(messageID),
		logger.UserID(userID))
	return nil
}

func (s *Service) resolveUser(ctx context.Context, id uuid.UUID, typ NotificationType) (*User, bool) {
	user, err := s.dir.Users.UserByID(ctx, id)
	if err != nil {
		s.logSkip(ctx, typ, "user lookup", err)
		return nil, false
	}
	return user, true
}

func (s *Service) resolveBooking(ctx context.Context, id uuid.UUID, typ NotificationType) (*Booking, *Location, bool) {
	booking, err := s.dir.Bookings.BookingByID(ctx, id)
	if err != nil {
		s.logSkip(ctx, typ, "booking lookup", err)
		return nil, nil, false
	}
	location, err := s.dir.Locations.LocationByID(ctx, booking.LocationID)
	if err != nil {
		s.logSkip(ctx, typ, "location lookup", err)
		return nil, nil, false
	}
	return booking, location, true
}

func (s *Service) logSkip(ctx context.Context, typ NotificationType, stage string, err error) {
	level := slog.LevelError
	if errors.Is(err, ErrNotFound) {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "notification skipped",
		slog.String("type", string(typ)),
		slog.String("stage", stage),
		logger.Error(err))
}

func (s *Service) sampleData() TemplateData {
	now := time.Now()
	return TemplateData{
		AppName:         s.appName,
		RecipientName:   "Test User",
		VerificationURL: "https://example.com/verify/test",
		ResetURL:        "https://example.com/reset/test",
		Booking: &Booking{
			ID:         uuid.New(),
			CheckIn:    now.AddDate(0, 0, 7),
			CheckOut:   now.AddDate(0, 0, 9),
			GuestCount: 2,
		},
		Location:       &Location{Name: "Sample Loft", City: "Amsterdam"},
		Update:         BookingApproved,
		SenderName:     "Test Sender",
		MessagePreview: "This is a test message preview.",
	}
}

// newMessageID builds the provider-visible idempotency key. A caller dedupe
// key makes the ID deterministic so a retried call collapses onto the same
// event row; otherwise each call gets a fresh identity.
func newMessageID(dedupeKey, domain string) string {
	key := dedupeKey
	if key == "" {
		key = uuid.New().String()
	}
	return key + "@" + domain
}

func dedupeVariant(dedupeKey, variant string) string {
	if dedupeKey == "" {
		return ""
	}
	return dedupeKey + "-" + variant
}
