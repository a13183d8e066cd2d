package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"studio/internal/infra"
	"studio/internal/middleware"
	"studio/internal/providers/image"
	"studio/internal/session"
)

// App is the handler container: configuration, the session registry, and the
// available edit providers.
type App struct {
	Config   *infra.Config
	Logger   zerolog.Logger
	Sessions *session.Store
	Editors  map[string]image.Editor
}

func NewApp(cfg *infra.Config, logger zerolog.Logger, sessions *session.Store, editors map[string]image.Editor) *App {
	return &App{Config: cfg, Logger: logger, Sessions: sessions, Editors: editors}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{"error": map[string]string{
		"code":    code,
		"message": message,
	}})
}

// describe returns the localized human-readable description for an error
// code. The session's own error channel (last_error) is never localized:
// it carries the collaborator's message verbatim.
func describe(locale, code string) string {
	if locale == "id" {
		if msg, ok := descriptionsID[code]; ok {
			return msg
		}
	}
	return descriptionsEN[code]
}

var descriptionsEN = map[string]string{
	"session_not_found": "session not found",
	"image_not_found":   "image not found",
	"busy":              "a submission is already in flight",
	"not_ready":         "stage at least one image and a prompt first",
	"bad_request":       "invalid payload",
	"unsupported":       "unsupported provider",
	"no_result":         "no edited image available",
	"internal":          "internal error",
}

var descriptionsID = map[string]string{
	"session_not_found": "sesi tidak ditemukan",
	"image_not_found":   "gambar tidak ditemukan",
	"busy":              "masih ada pengiriman yang berjalan",
	"not_ready":         "unggah minimal satu gambar dan isi instruksi dahulu",
	"bad_request":       "payload tidak valid",
	"unsupported":       "provider tidak didukung",
	"no_result":         "belum ada hasil edit",
	"internal":          "kesalahan internal",
}

func (a *App) localizedError(w http.ResponseWriter, r *http.Request, status int, code string) {
	a.error(w, status, code, describe(middleware.LocaleFromContext(r.Context()), code))
}
