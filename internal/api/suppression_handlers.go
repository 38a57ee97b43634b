package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/blocmark/notifier/internal/suppression"
	"github.com/blocmark/notifier/pkg/logger"
)

func (a *API) handleListSuppressions(w http.ResponseWriter, r *http.Request) {
	entries, err := a.suppressions.List(r.Context())
	if err != nil {
		a.logger.ErrorContext(r.Context(), "failed to list suppressions",
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list suppressions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suppressions": entries})
}

func (a *API) handleRemoveSuppression(w http.ResponseWriter, r *http.Request) {
	address, err := url.PathUnescape(chi.URLParam(r, "address"))
	if err != nil || address == "" {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	if err := a.suppressions.Remove(r.Context(), address); err != nil {
		a.logger.ErrorContext(r.Context(), "failed to remove suppression",
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to remove suppression")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unsubscribeRequest struct {
	Email  string `json:"email"`
	Reason string `json:"reason,omitempty"`
}

// handleUnsubscribe is the public opt-out endpoint, linked from email footers.
func (a *API) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := decodeBody(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	metadata := map[string]string{"source": "unsubscribe_endpoint"}
	if req.Reason != "" {
		metadata["note"] = req.Reason
	}

	if err := a.suppressions.Add(r.Context(), req.Email, suppression.ReasonUnsubscribe, metadata); err != nil {
		a.logger.ErrorContext(r.Context(), "failed to record unsubscribe",
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to record unsubscribe")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

type subscribeRequest struct {
	Email string `json:"email"`
}

// handleSubscribe is the public re-opt-in endpoint. Only an unsubscribe
// suppression is cleared; bounce and complaint entries stay, because the
// address is still undeliverable or hostile regardless of the user's wish.
func (a *API) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeBody(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := a.suppressions.RemoveUnsubscribe(r.Context(), req.Email); err != nil {
		a.logger.ErrorContext(r.Context(), "failed to clear unsubscribe",
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear unsubscribe")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "subscribed"})
}
