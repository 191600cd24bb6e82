package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/campsite-reservations/internal/obs"
)

// NewRouter builds the chi router for the reservation API. When metrics is
// non-nil it is also served on /metrics.
func NewRouter(h *ReservationHandler, logger *slog.Logger, metrics *obs.Metrics) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(logger, metrics)) // structured access log
	r.Use(CORS)

	r.Get("/health", HealthCheck)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/availabilities", h.CheckAvailability)
		r.Route("/reservations", func(r chi.Router) {
			r.Get("/", h.ListReservations)
			r.Post("/", h.CreateReservation)
			r.Get("/{id}", h.GetReservation)
			r.Patch("/{id}", h.UpdateReservation)
			r.Delete("/{id}", h.CancelReservation)
		})
	})

	return r
}
