package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/session"
)

// AddImages stages one or more uploaded files. The multipart field name is
// "images"; order within the form is staging order.
func (a *App) AddImages(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(a.Config.MaxUploadBytes); err != nil {
		a.localizedError(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		a.localizedError(w, r, http.StatusBadRequest, "bad_request")
		return
	}

	files := make([]session.SourceFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			a.localizedError(w, r, http.StatusBadRequest, "bad_request")
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			a.localizedError(w, r, http.StatusBadRequest, "bad_request")
			return
		}
		files = append(files, session.SourceFile{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	added, err := sess.Controller.AddImages(files)
	if err != nil {
		a.localizedError(w, r, http.StatusConflict, "busy")
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"added": added,
		"state": sess.Controller.Snapshot(),
	})
}

func (a *App) RemoveImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	imageID := chi.URLParam(r, "image_id")
	switch err := sess.Controller.RemoveImage(imageID); {
	case errors.Is(err, domain.ErrBusy):
		a.localizedError(w, r, http.StatusConflict, "busy")
	case errors.Is(err, domain.ErrImageNotFound):
		a.localizedError(w, r, http.StatusNotFound, "image_not_found")
	default:
		a.json(w, http.StatusOK, sessionResponse{ID: sess.ID, State: sess.Controller.Snapshot()})
	}
}

// PreviewImage serves the preview bytes acquired when the image was staged.
func (a *App) PreviewImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	imageID := chi.URLParam(r, "image_id")
	if _, ok := sess.Controller.Image(imageID); !ok {
		a.localizedError(w, r, http.StatusNotFound, "image_not_found")
		return
	}
	mime, data, ok := a.Sessions.Preview(imageID)
	if !ok {
		a.localizedError(w, r, http.StatusNotFound, "image_not_found")
		return
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

func (a *App) SetPrompt(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.localizedError(w, r, http.StatusBadRequest, "bad_request")
		return
	}
	if err := sess.Controller.SetPrompt(req.Prompt); err != nil {
		a.localizedError(w, r, http.StatusConflict, "busy")
		return
	}
	a.json(w, http.StatusOK, sessionResponse{ID: sess.ID, State: sess.Controller.Snapshot()})
}
