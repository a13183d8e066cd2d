package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/session"
)

type sessionResponse struct {
	ID    string           `json:"id"`
	State session.Snapshot `json:"state"`
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := a.Sessions.Create()
	a.json(w, http.StatusCreated, sessionResponse{ID: sess.ID, State: sess.Controller.Snapshot()})
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, sessionResponse{ID: sess.ID, State: sess.Controller.Snapshot()})
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	a.Sessions.Remove(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ResetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	sess.Controller.Reset()
	a.json(w, http.StatusOK, sessionResponse{ID: sess.ID, State: sess.Controller.Snapshot()})
}

// session resolves the routed session or writes a 404.
func (a *App) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "session_id")
	sess, err := a.Sessions.Get(id)
	if err != nil {
		a.localizedError(w, r, http.StatusNotFound, "session_not_found")
		return nil, false
	}
	return sess, true
}
