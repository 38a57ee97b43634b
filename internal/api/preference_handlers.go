package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/blocmark/notifier/internal/preference"
	"github.com/blocmark/notifier/pkg/logger"
)

func (a *API) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	pref, err := a.prefs.Get(r.Context(), userID)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "failed to get preferences",
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

func (a *API) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var patch preference.Patch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid preference patch")
		return
	}

	pref, err := a.prefs.Update(r.Context(), userID, patch)
	if err != nil {
		if errors.Is(err, preference.ErrInvalidFrequency) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.ErrorContext(r.Context(), "failed to update preferences",
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update preferences")
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "user_id must be a UUID")
		return uuid.Nil, false
	}
	return userID, true
}
