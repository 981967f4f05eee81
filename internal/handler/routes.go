package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(h *AdmissionHandler, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(log))
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Route("/events/{id}", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/promote", h.Promote)
		r.Post("/cancellation", h.CancelEvent)
		r.Get("/registrations", h.ListEventRegistrations)
		r.Get("/waitlist", h.ListEventWaitlist)
	})

	r.Route("/registrations/{id}", func(r chi.Router) {
		r.Get("/", h.GetRegistration)
		r.Delete("/", h.CancelRegistration)
		r.Get("/qr", h.CheckInCode)
		r.Post("/check-in", h.CheckIn)
	})

	r.Get("/participants/{id}/registrations", h.ListParticipantRegistrations)
	r.Get("/participants/{id}/waitlist", h.ListParticipantWaitlist)
	r.Delete("/waitlist/{id}", h.WithdrawWaitlist)

	r.Route("/passport", func(r chi.Router) {
		r.Post("/internal/check-in", h.IssueBadge)
		r.Get("/{participantId}", h.GetPassport)
	})

	return r
}
