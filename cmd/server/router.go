package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pzielinski/tourney-api/internal/api"
	apimiddleware "github.com/pzielinski/tourney-api/internal/api/middleware"
	"github.com/pzielinski/tourney-api/internal/task"
)

// setupRouter configures the application router: task status/control
// endpoints under /api, Prometheus metrics and a health check.
func setupRouter(engine *task.Engine, promRegistry *prometheus.Registry, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.RequestLogger(logger))

	taskHandler := api.NewTaskHandler(engine, logger)

	r.Route("/api", func(r chi.Router) {
		taskHandler.RegisterRoutes(r)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
