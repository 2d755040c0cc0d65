package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/veilmoth/arcana-api/internal/api"
	apiMiddleware "github.com/veilmoth/arcana-api/internal/api/middleware"
)

// setupRouter configures all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.config.Auth.JWTSecret)
	readingHandler := api.NewReadingHandler(app.readingService, app.logger)
	adminHandler := api.NewAdminHandler(app.readingService, app.worker, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/readings", readingHandler.SubmitReading)
			r.Get("/readings", readingHandler.ListReadings)
			r.Get("/readings/{id}", readingHandler.GetReading)
			r.Get("/credits", readingHandler.GetBalance)

			r.Get("/admin/stats", adminHandler.GetStats)
			r.Post("/admin/process", adminHandler.TriggerBatch)
		})
	})

	// Liveness reflects the worker loop: a stopped worker means jobs
	// pile up and the instance should be replaced.
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if !app.worker.Healthy() {
			http.Error(w, "worker stopped", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	return r
}
