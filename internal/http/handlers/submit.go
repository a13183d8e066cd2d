package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"studio/internal/domain"
	"studio/internal/middleware"
)

type submitRequest struct {
	Provider string `json:"provider"`
}

// Submit runs the staged session through one remote edit call and answers
// with the settled state. Guard rejections map to 409 (already in flight)
// and 422 (nothing staged / empty prompt); remote failures settle into the
// state's last_error and still answer 200.
func (a *App) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		a.localizedError(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	provider := req.Provider
	if provider == "" {
		provider = a.Config.ImageProvider
	}
	editor, ok := a.Editors[provider]
	if !ok {
		a.localizedError(w, r, http.StatusBadRequest, "unsupported")
		return
	}

	requestID := middleware.RequestIDFromContext(r.Context())
	switch err := sess.Controller.Submit(r.Context(), editor, requestID); {
	case errors.Is(err, domain.ErrBusy):
		a.localizedError(w, r, http.StatusConflict, "busy")
	case errors.Is(err, domain.ErrNotReady):
		a.localizedError(w, r, http.StatusUnprocessableEntity, "not_ready")
	default:
		snap := sess.Controller.Snapshot()
		if snap.LastError != "" {
			a.Logger.Warn().
				Str("session_id", sess.ID).
				Str("provider", provider).
				Str("request_id", requestID).
				Str("reason", snap.LastError).
				Msg("submit settled without an edited image")
		}
		a.json(w, http.StatusOK, sessionResponse{ID: sess.ID, State: snap})
	}
}
