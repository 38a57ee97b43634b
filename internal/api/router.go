package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/blocmark/notifier/internal/event"
	"github.com/blocmark/notifier/internal/notifier"
	"github.com/blocmark/notifier/internal/preference"
	"github.com/blocmark/notifier/internal/queue"
	"github.com/blocmark/notifier/internal/suppression"
)

// API is the HTTP surface of the notification service. Authentication is the
// deployment's concern (the service sits behind an internal gateway), so no
// auth middleware is wired here.
type API struct {
	notifications *notifier.Service
	suppressions  *suppression.Service
	prefs         *preference.Service
	events        *event.Service
	queue         *queue.Service
	logger        *slog.Logger
}

// Dependencies collects what the API needs. Queue is optional; without it the
// dead letter endpoint reports the degraded mode.
type Dependencies struct {
	Notifications *notifier.Service
	Suppressions  *suppression.Service
	Preferences   *preference.Service
	Events        *event.Service
	Queue         *queue.Service
	Logger        *slog.Logger
}

// New creates the API.
func New(deps Dependencies) (*API, error) {
	if deps.Notifications == nil || deps.Suppressions == nil ||
		deps.Preferences == nil || deps.Events == nil {
		return nil, notifier.ErrNilDependency
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &API{
		notifications: deps.Notifications,
		suppressions:  deps.Suppressions,
		prefs:         deps.Preferences,
		events:        deps.Events,
		queue:         deps.Queue,
		logger:        deps.Logger,
	}, nil
}

// Router builds the chi router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)

	r.Get("/health", a.handleHealth)

	r.Post("/webhook/provider", a.handleProviderWebhook)

	r.Get("/suppression", a.handleListSuppressions)
	r.Delete("/suppression/{address}", a.handleRemoveSuppression)

	r.Post("/unsubscribe", a.handleUnsubscribe)
	r.Post("/subscribe", a.handleSubscribe)

	r.Get("/preferences", a.handleGetPreferences)
	r.Put("/preferences", a.handleUpdatePreferences)

	r.Post("/notifications", a.handleEnqueueNotification)
	r.Get("/events", a.handleListEvents)

	r.Route("/admin", func(admin chi.Router) {
		admin.Post("/test-email", a.handleTestEmail)
		admin.Get("/dlq", a.handleListDeadLetters)
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		a.logger.InfoContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
