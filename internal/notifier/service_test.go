package notifier_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blocmark/notifier/internal/event"
	"github.com/blocmark/notifier/internal/mailer"
	"github.com/blocmark/notifier/internal/notifier"
	"github.com/blocmark/notifier/internal/preference"
	"github.com/blocmark/notifier/internal/suppression"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendEmail(ctx context.Context, params mailer.SendEmailParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

type fakeDirectory struct {
	users     map[uuid.UUID]*notifier.User
	byEmail   map[string]*notifier.User
	bookings  map[uuid.UUID]*notifier.Booking
	locations map[uuid.UUID]*notifier.Location
	messages  map[uuid.UUID]*notifier.Message
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		users:     make(map[uuid.UUID]*notifier.User),
		byEmail:   make(map[string]*notifier.User),
		bookings:  make(map[uuid.UUID]*notifier.Booking),
		locations: make(map[uuid.UUID]*notifier.Location),
		messages:  make(map[uuid.UUID]*notifier.Message),
	}
}

func (d *fakeDirectory) addUser(u *notifier.User) {
	d.users[u.ID] = u
	d.byEmail[u.Email] = u
}

func (d *fakeDirectory) UserByID(ctx context.Context, id uuid.UUID) (*notifier.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return nil, notifier.ErrNotFound
}

func (d *fakeDirectory) UserByEmail(ctx context.Context, email string) (*notifier.User, error) {
	if u, ok := d.byEmail[email]; ok {
		return u, nil
	}
	return nil, notifier.ErrNotFound
}

func (d *fakeDirectory) BookingByID(ctx context.Context, id uuid.UUID) (*notifier.Booking, error) {
	if b, ok := d.bookings[id]; ok {
		return b, nil
	}
	return nil, notifier.ErrNotFound
}

func (d *fakeDirectory) LocationByID(ctx context.Context, id uuid.UUID) (*notifier.Location, error) {
	if l, ok := d.locations[id]; ok {
		return l, nil
	}
	return nil, notifier.ErrNotFound
}

func (d *fakeDirectory) MessageByID(ctx context.Context, id uuid.UUID) (*notifier.Message, error) {
	if m, ok := d.messages[id]; ok {
		return m, nil
	}
	return nil, notifier.ErrNotFound
}

type capturingBackend struct {
	delivered []notifier.OutboundEmail
}

func (b *capturingBackend) Deliver(ctx context.Context, email notifier.OutboundEmail) error {
	b.delivered = append(b.delivered, email)
	return nil
}

type testEnv struct {
	svc          *notifier.Service
	dir          *fakeDirectory
	backend      *capturingBackend
	sender       *mockSender
	events       *event.Service
	prefs        *preference.Service
	suppressions *suppression.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	events, err := event.NewService(event.NewMemoryStorage(), logger)
	require.NoError(t, err)
	prefs, err := preference.NewService(preference.NewMemoryStorage(), logger)
	require.NoError(t, err)
	suppressions, err := suppression.NewService(suppression.NewMemoryStorage())
	require.NoError(t, err)

	dir := newFakeDirectory()
	backend := &capturingBackend{}
	sender := &mockSender{}

	svc, err := notifier.NewService(notifier.ServiceParams{
		Directory: notifier.Directory{
			Users:     dir,
			Bookings:  dir,
			Locations: dir,
			Messages:  dir,
		},
		Preferences:  prefs,
		Suppressions: suppressions,
		Events:       events,
		Renderer:     notifier.NewHTMLRenderer(),
		Backend:      backend,
		Sender:       sender,
		Config:       notifier.Config{AppName: "Blocmark", EmailDomain: "mail.test"},
		Logger:       logger,
	})
	require.NoError(t, err)

	return &testEnv{
		svc:          svc,
		dir:          dir,
		backend:      backend,
		sender:       sender,
		events:       events,
		prefs:        prefs,
		suppressions: suppressions,
	}
}

func (e *testEnv) addUser(t *testing.T, name, email string) *notifier.User {
	t.Helper()
	u := &notifier.User{ID: uuid.New(), Name: name, Email: email}
	e.dir.addUser(u)
	return u
}

func TestService_SendWelcome(t *testing.T) {
	t.Parallel()

	t.Run("delivers and tracks", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		user := env.addUser(t, "Ada", "ada@example.com")

		err := env.svc.SendWelcome(context.Background(), notifier.WelcomeParams{
			UserID:          user.ID,
			VerificationURL: "https://example.com/verify/abc",
		})
		require.NoError(t, err)

		require.Len(t, env.backend.delivered, 1)
		out := env.backend.delivered[0]
		assert.Equal(t, "ada@example.com", out.Recipient)
		assert.Equal(t, "Welcome to Blocmark", out.Subject)
		assert.Contains(t, out.BodyHTML, "https://example.com/verify/abc")
		assert.Contains(t, out.MessageID, "@mail.test")

		ev, err := env.events.Get(context.Background(), out.MessageID)
		require.NoError(t, err)
		assert.Equal(t, event.StatusQueued, ev.Status)
		assert.Equal(t, "welcome", ev.TemplateName)
		require.NotNil(t, ev.UserID)
		assert.Equal(t, user.ID, *ev.UserID)
	})

	t.Run("unknown user is a silent skip", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		err := env.svc.SendWelcome(context.Background(), notifier.WelcomeParams{UserID: uuid.New()})
		require.NoError(t, err)
		assert.Empty(t, env.backend.delivered)
	})

	t.Run("dedupe key collapses repeat calls", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		user := env.addUser(t, "Ada", "ada@example.com")
		params := notifier.WelcomeParams{UserID: user.ID, DedupeKey: "signup-42"}

		require.NoError(t, env.svc.SendWelcome(context.Background(), params))
		require.NoError(t, env.svc.SendWelcome(context.Background(), params))

		require.Len(t, env.backend.delivered, 1)
		assert.Equal(t, "signup-42@mail.test", env.backend.delivered[0].MessageID)
	})

	t.Run("suppressed recipient is skipped", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		user := env.addUser(t, "Ada", "ada@example.com")
		require.NoError(t, env.suppressions.Add(context.Background(), user.Email, suppression.ReasonUnsubscribe, nil))

		require.NoError(t, env.svc.SendWelcome(context.Background(), notifier.WelcomeParams{UserID: user.ID}))
		assert.Empty(t, env.backend.delivered)
	})

	t.Run("preference opt-out is respected", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		user := env.addUser(t, "Ada", "ada@example.com")

		_, err := env.prefs.Update(context.Background(), user.ID, preference.Patch{
			Transactional: map[string]bool{preference.CategoryAccountUpdate: false},
		})
		require.NoError(t, err)

		require.NoError(t, env.svc.SendWelcome(context.Background(), notifier.WelcomeParams{UserID: user.ID}))
		assert.Empty(t, env.backend.delivered)
	})
}

func TestService_SendPasswordReset(t *testing.T) {
	t.Parallel()

	t.Run("unknown address is a silent no-op", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		err := env.svc.SendPasswordReset(context.Background(), notifier.PasswordResetParams{
			Email:    "nobody@example.com",
			ResetURL: "https://example.com/reset/abc",
		})
		require.NoError(t, err)
		assert.Empty(t, env.backend.delivered)
	})

	t.Run("known address gets the reset link", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.addUser(t, "Ada", "ada@example.com")

		err := env.svc.SendPasswordReset(context.Background(), notifier.PasswordResetParams{
			Email:    "ada@example.com",
			ResetURL: "https://example.com/reset/abc",
		})
		require.NoError(t, err)

		require.Len(t, env.backend.delivered, 1)
		assert.Contains(t, env.backend.delivered[0].BodyHTML, "https://example.com/reset/abc")
		assert.Equal(t, "Reset your Blocmark password", env.backend.delivered[0].Subject)
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		err := env.svc.SendPasswordReset(context.Background(), notifier.PasswordResetParams{})
		assert.ErrorIs(t, err, notifier.ErrInvalidParams)
	})
}

func TestService_SendBookingConfirmation(t *testing.T) {
	t.Parallel()

	setupBooking := func(t *testing.T, env *testEnv) (*notifier.User, *notifier.User, *notifier.Booking) {
		t.Helper()
		guest := env.addUser(t, "Grace", "grace@example.com")
		host := env.addUser(t, "Linus", "linus@example.com")

		loc := &notifier.Location{ID: uuid.New(), Name: "Canal Loft", City: "Amsterdam"}
		env.dir.locations[loc.ID] = loc

		booking := &notifier.Booking{
			ID:         uuid.New(),
			GuestID:    guest.ID,
			HostID:     host.ID,
			LocationID: loc.ID,
			CheckIn:    time.Date(2026, 9, 10, 14, 0, 0, 0, time.UTC),
			CheckOut:   time.Date(2026, 9, 12, 11, 0, 0, 0, time.UTC),
			GuestCount: 2,
		}
		env.dir.bookings[booking.ID] = booking
		return guest, host, booking
	}

	t.Run("fans out to guest and host", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		guest, host, booking := setupBooking(t, env)

		err := env.svc.SendBookingConfirmation(context.Background(), notifier.BookingConfirmationParams{
			BookingID: booking.ID,
		})
		require.NoError(t, err)

		require.Len(t, env.backend.delivered, 2)
		recipients := []string{env.backend.delivered[0].Recipient, env.backend.delivered[1].Recipient}
		assert.Contains(t, recipients, guest.Email)
		assert.Contains(t, recipients, host.Email)

		assert.Equal(t, "Your booking at Canal Loft is confirmed", env.backend.delivered[0].Subject)
		assert.Equal(t, "New booking at Canal Loft", env.backend.delivered[1].Subject)
	})

	t.Run("host opt-out does not block the guest", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		guest, host, booking := setupBooking(t, env)

		_, err := env.prefs.Update(context.Background(), host.ID, preference.Patch{
			Transactional: map[string]bool{preference.CategoryBookingConfirmation: false},
		})
		require.NoError(t, err)

		require.NoError(t, env.svc.SendBookingConfirmation(context.Background(), notifier.BookingConfirmationParams{
			BookingID: booking.ID,
		}))

		require.Len(t, env.backend.delivered, 1)
		assert.Equal(t, guest.Email, env.backend.delivered[0].Recipient)
	})

	t.Run("dedupe key stays distinct per side", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		_, _, booking := setupBooking(t, env)

		require.NoError(t, env.svc.SendBookingConfirmation(context.Background(), notifier.BookingConfirmationParams{
			BookingID: booking.ID,
			DedupeKey: "booking-7",
		}))

		require.Len(t, env.backend.delivered, 2)
		assert.Equal(t, "booking-7-guest@mail.test", env.backend.delivered[0].MessageID)
		assert.Equal(t, "booking-7-host@mail.test", env.backend.delivered[1].MessageID)
	})
}

func TestService_SendBookingUpdate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	guest := env.addUser(t, "Grace", "grace@example.com")
	host := env.addUser(t, "Linus", "linus@example.com")

	loc := &notifier.Location{ID: uuid.New(), Name: "Canal Loft", City: "Amsterdam"}
	env.dir.locations[loc.ID] = loc
	booking := &notifier.Booking{
		ID: uuid.New(), GuestID: guest.ID, HostID: host.ID, LocationID: loc.ID,
		CheckIn:  time.Now().AddDate(0, 0, 7),
		CheckOut: time.Now().AddDate(0, 0, 9),
	}
	env.dir.bookings[booking.ID] = booking

	t.Run("invalid update kind rejected", func(t *testing.T) {
		err := env.svc.SendBookingUpdate(context.Background(), notifier.BookingUpdateParams{
			BookingID: booking.ID,
			Update:    "exploded",
		})
		assert.ErrorIs(t, err, notifier.ErrInvalidParams)
	})

	t.Run("guest gets the update", func(t *testing.T) {
		err := env.svc.SendBookingUpdate(context.Background(), notifier.BookingUpdateParams{
			BookingID: booking.ID,
			Update:    notifier.BookingCancelled,
		})
		require.NoError(t, err)

		require.Len(t, env.backend.delivered, 1)
		assert.Equal(t, guest.Email, env.backend.delivered[0].Recipient)
		assert.Equal(t, "Your booking at Canal Loft was cancelled", env.backend.delivered[0].Subject)
	})
}

func TestService_SendMessageNotification(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	sender := env.addUser(t, "Grace", "grace@example.com")
	recipient := env.addUser(t, "Linus", "linus@example.com")

	msg := &notifier.Message{
		ID:          uuid.New(),
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Preview:     "Is the loft available next weekend?",
		SentAt:      time.Now(),
	}
	env.dir.messages[msg.ID] = msg

	err := env.svc.SendMessageNotification(context.Background(), notifier.MessageReceivedParams{
		MessageID: msg.ID,
	})
	require.NoError(t, err)

	require.Len(t, env.backend.delivered, 1)
	out := env.backend.delivered[0]
	assert.Equal(t, recipient.Email, out.Recipient)
	assert.Equal(t, "New message from Grace", out.Subject)
	assert.Contains(t, out.BodyHTML, "Is the loft available next weekend?")
}

func TestService_SendTestEmail(t *testing.T) {
	t.Parallel()

	t.Run("sends without recording an event", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.sender.On("SendEmail", mock.Anything, mock.MatchedBy(func(p mailer.SendEmailParams) bool {
			return p.SendTo == "ops@example.com" && p.Subject == "[TEST] Welcome to Blocmark"
		})).Return(nil).Once()

		err := env.svc.SendTestEmail(context.Background(), notifier.TypeWelcome, "ops@example.com")
		require.NoError(t, err)

		env.sender.AssertExpectations(t)
		assert.Empty(t, env.backend.delivered)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		err := env.svc.SendTestEmail(context.Background(), "carrier_pigeon", "ops@example.com")
		assert.ErrorIs(t, err, notifier.ErrInvalidType)
	})
}

func TestService_Dispatch(t *testing.T) {
	t.Parallel()

	t.Run("routes request to the matching op", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		user := env.addUser(t, "Ada", "ada@example.com")

		payload, err := json.Marshal(notifier.WelcomeParams{UserID: user.ID})
		require.NoError(t, err)

		err = env.svc.Dispatch(context.Background(), notifier.NotificationRequest{
			Type:    notifier.TypeWelcome,
			Payload: payload,
		})
		require.NoError(t, err)
		require.Len(t, env.backend.delivered, 1)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		err := env.svc.Dispatch(context.Background(), notifier.NotificationRequest{
			Type:    "carrier_pigeon",
			Payload: json.RawMessage(`{}`),
		})
		assert.ErrorIs(t, err, notifier.ErrInvalidType)
	})

	t.Run("malformed payload rejected", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		err := env.svc.Dispatch(context.Background(), notifier.NotificationRequest{
			Type:    notifier.TypeWelcome,
			Payload: json.RawMessage(`{`),
		})
		assert.ErrorIs(t, err, notifier.ErrInvalidParams)
	})
}

func TestService_EnqueueNotification(t *testing.T) {
	t.Parallel()

	t.Run("invalid type rejected", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		_, err := env.svc.EnqueueNotification(context.Background(), "carrier_pigeon", json.RawMessage(`{}`), 50)
		assert.ErrorIs(t, err, notifier.ErrInvalidType)
	})

	t.Run("without queue dispatches inline", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		user := env.addUser(t, "Ada", "ada@example.com")
		payload, err := json.Marshal(notifier.WelcomeParams{UserID: user.ID})
		require.NoError(t, err)

		jobID, err := env.svc.EnqueueNotification(context.Background(), notifier.TypeWelcome, payload, 50)
		require.NoError(t, err)
		assert.Equal(t, uuid.Nil, jobID)
		require.Len(t, env.backend.delivered, 1)
	})
}
