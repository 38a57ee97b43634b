package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/blocmark/notifier/internal/event"
	"github.com/blocmark/notifier/internal/notifier"
	"github.com/blocmark/notifier/internal/queue"
	"github.com/blocmark/notifier/pkg/logger"
)

type enqueueRequest struct {
	Type     notifier.NotificationType `json:"type"`
	Payload  json.RawMessage           `json:"payload"`
	Priority *queue.Priority           `json:"priority,omitempty"`
}

// handleEnqueueNotification is the internal API other services call to send
// a notification without waiting on it.
func (a *API) handleEnqueueNotification(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	priority := queue.PriorityDefault
	if req.Priority != nil {
		priority = *req.Priority
	}

	jobID, err := a.notifications.EnqueueNotification(r.Context(), req.Type, req.Payload, priority)
	if err != nil {
		switch {
		case errors.Is(err, notifier.ErrInvalidType),
			errors.Is(err, notifier.ErrInvalidParams),
			errors.Is(err, queue.ErrInvalidPriority):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			a.logger.ErrorContext(r.Context(), "failed to enqueue notification",
				slog.String("type", string(req.Type)),
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to enqueue notification")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID.String()})
}

type testEmailRequest struct {
	Type      notifier.NotificationType `json:"type"`
	Recipient string                    `json:"recipient"`
}

func (a *API) handleTestEmail(w http.ResponseWriter, r *http.Request) {
	var req testEmailRequest
	if err := decodeBody(r, &req); err != nil || req.Recipient == "" {
		writeError(w, http.StatusBadRequest, "type and recipient are required")
		return
	}

	if err := a.notifications.SendTestEmail(r.Context(), req.Type, req.Recipient); err != nil {
		if errors.Is(err, notifier.ErrInvalidType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.ErrorContext(r.Context(), "test email failed",
			logger.Error(err))
		writeError(w, http.StatusBadGateway, "provider send failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// handleListEvents serves the delivery audit: events by user, or by status
// for queries like "sent but never confirmed".
func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 100)

	if raw := r.URL.Query().Get("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "user_id must be a UUID")
			return
		}
		events, err := a.events.ListByUser(r.Context(), userID, limit)
		if err != nil {
			a.logger.ErrorContext(r.Context(), "failed to list events",
				logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list events")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
		return
	}

	status := event.Status(r.URL.Query().Get("status"))
	if status == "" {
		writeError(w, http.StatusBadRequest, "status or user_id is required")
		return
	}

	events, err := a.events.ListByStatus(r.Context(), status, limit)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "failed to list events",
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (a *API) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	if a.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "queue backend unavailable, running in direct delivery mode")
		return
	}

	letters, err := a.queue.DeadLetters(r.Context(), queryLimit(r, 100))
	if err != nil {
		a.logger.ErrorContext(r.Context(), "failed to list dead letters",
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dead_letters": letters})
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}
