package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(app.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", app.HealthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/chat", app.ChatHandler)
	r.Post("/session/clear", app.ClearSessionHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", app.StatusHandler)
		r.Get("/cache/stats", app.CacheStatsHandler)

		r.Route("/movie", func(r chi.Router) {
			r.Get("/poster", app.PosterHandler)
			r.Get("/facts", app.FactsHandler)
			r.Get("/combined", app.CombinedHandler)
		})

		r.Route("/interactions", func(r chi.Router) {
			r.Post("/", app.CreateInteractionHandler)
			r.Get("/", app.ListInteractionsHandler)
			r.Delete("/", app.DeleteInteractionHandler)
		})
	})

	return r
}
