package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appservices "github.com/carlosrabelo/stbmon/core/application/services"
)

// NewRouter creates and configures the API router. metrics may be nil.
func NewRouter(registry *appservices.Registry, metrics http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recovery(logger))
	r.Use(Logger(logger))

	deviceHandler := NewDeviceHandler(registry)

	r.Get("/health", Health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/devices", func(r chi.Router) {
		r.Get("/", deviceHandler.List)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/statistics", deviceHandler.Statistics)
			r.Post("/poll", deviceHandler.Poll)
			r.Get("/controls", deviceHandler.Controls)
			r.Post("/controls", deviceHandler.Control)
		})
	})

	return r
}
