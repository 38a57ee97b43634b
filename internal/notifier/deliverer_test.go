package notifier_test

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/blocmark/notifier/internal/suppression"
)

type delivererEnv struct {
	deliverer    *notifier.Deliverer
	sender       *mockSender
	events       *event.Service
	suppressions *suppression.Service
}

func newDelivererEnv(t *testing.T) *delivererEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	events, err := event.NewService(event.NewMemoryStorage(), logger)
	require.NoError(t, err)
	suppressions, err := suppression.NewService(suppression.NewMemoryStorage())
	require.NoError(t, err)

	sender := &mockSender{}
	deliverer, err := notifier.NewDeliverer(sender, suppressions, events, logger)
	require.NoError(t, err)

	return &delivererEnv{
		deliverer:    deliverer,
		sender:       sender,
		events:       events,
		suppressions: suppressions,
	}
}

func (e *delivererEnv) trackQueued(t *testing.T, messageID, recipient string) {
	t.Helper()
	userID := uuid.New()
	require.NoError(t, e.events.Track(context.Background(), event.Event{
		MessageID:    messageID,
		UserID:       &userID,
		Recipient:    recipient,
		TemplateName: "welcome",
		Subject:      "Welcome",
		Status:       event.StatusQueued,
		CreatedAt:    time.Now(),
	}))
}

func testOutbound(messageID, recipient string) notifier.OutboundEmail {
	return notifier.OutboundEmail{
		MessageID:    messageID,
		Recipient:    recipient,
		Subject:      "Welcome",
		BodyHTML:     "<p>hi</p>",
		Tag:          "welcome",
		TemplateName: "welcome",
	}
}

func TestDeliverer_Deliver(t *testing.T) {
	t.Parallel()

	t.Run("successful send marks event sent", func(t *testing.T) {
		t.Parallel()

		env := newDelivererEnv(t)
		env.trackQueued(t, "m1@mail.test", "ada@example.com")
		env.sender.On("SendEmail", mock.Anything, mock.Anything).Return(nil).Once()

		err := env.deliverer.Deliver(context.Background(), testOutbound("m1@mail.test", "ada@example.com"))
		require.NoError(t, err)

		ev, err := env.events.Get(context.Background(), "m1@mail.test")
		require.NoError(t, err)
		assert.Equal(t, event.StatusSent, ev.Status)
		assert.NotNil(t, ev.SentAt)
		env.sender.AssertExpectations(t)
	})

	t.Run("suppression landed after enqueue drops the send", func(t *testing.T) {
		t.Parallel()

		env := newDelivererEnv(t)
		env.trackQueued(t, "m2@mail.test", "ada@example.com")
		require.NoError(t, env.suppressions.Add(context.Background(), "ada@example.com", suppression.ReasonUnsubscribe, nil))

		err := env.deliverer.Deliver(context.Background(), testOutbound("m2@mail.test", "ada@example.com"))
		require.NoError(t, err)

		env.sender.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything)
	})

	t.Run("transient failure propagates for retry", func(t *testing.T) {
		t.Parallel()

		env := newDelivererEnv(t)
		env.trackQueued(t, "m3@mail.test", "ada@example.com")
		env.sender.On("SendEmail", mock.Anything, mock.Anything).
			Return(fmt.Errorf("%w: provider 5xx", mailer.ErrTransient)).Once()

		err := env.deliverer.Deliver(context.Background(), testOutbound("m3@mail.test", "ada@example.com"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, mailer.ErrTransient))

		// Still queued: the retry owns the transition to sent.
		ev, gerr := env.events.Get(context.Background(), "m3@mail.test")
		require.NoError(t, gerr)
		assert.Equal(t, event.StatusQueued, ev.Status)
	})

	t.Run("permanent rejection suppresses and records bounce without retry", func(t *testing.T) {
		t.Parallel()

		env := newDelivererEnv(t)
		env.trackQueued(t, "m4@mail.test", "gone@example.com")
		env.sender.On("SendEmail", mock.Anything, mock.Anything).
			Return(fmt.Errorf("%w: inactive recipient", mailer.ErrPermanent)).Once()

		err := env.deliverer.Deliver(context.Background(), testOutbound("m4@mail.test", "gone@example.com"))
		require.NoError(t, err, "permanent rejection must not trigger retry")

		suppressed, serr := env.suppressions.IsSuppressed(context.Background(), "gone@example.com")
		require.NoError(t, serr)
		assert.True(t, suppressed)

		ev, gerr := env.events.Get(context.Background(), "m4@mail.test")
		require.NoError(t, gerr)
		assert.Equal(t, event.StatusBounced, ev.Status)
		assert.NotNil(t, ev.BouncedAt)
	})
}
