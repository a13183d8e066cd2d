// Package httpapi assembles the public HTTP surface: middleware chain plus
// the versioned session routes.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"studio/internal/http/handlers"
	"studio/internal/infra"
	"studio/internal/middleware"
)

// NewRouter wires the middleware chain and the v1 routes. lookup may be nil
// when no GeoIP database is configured.
func NewRouter(cfg *infra.Config, logger zerolog.Logger, app *handlers.App, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.I18N("en", lookup))

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", app.CreateSession)
		r.Route("/{session_id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Delete("/", app.DeleteSession)
			r.Post("/reset", app.ResetSession)

			r.Post("/images", app.AddImages)
			r.Delete("/images/{image_id}", app.RemoveImage)
			r.Get("/images/{image_id}/preview", app.PreviewImage)

			r.Put("/prompt", app.SetPrompt)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
				r.Post("/submit", app.Submit)
			})

			r.Get("/result/download", app.DownloadResult)
			r.Get("/bundle", app.DownloadBundle)
		})
	})

	return r
}
