package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/rizalfahlevi/booking-management/internal/appointment"
	"github.com/rizalfahlevi/booking-management/internal/auth"
	"github.com/rizalfahlevi/booking-management/internal/catalog"
	"github.com/rizalfahlevi/booking-management/internal/invoice"
	"github.com/rizalfahlevi/booking-management/internal/payment"
	"github.com/rizalfahlevi/booking-management/internal/transport/middleware"
	"github.com/rizalfahlevi/booking-management/internal/transport/swagger"
)

// RegisterAllRoutes wires every HTTP surface of the booking lifecycle. The
// gateway webhook stays outside the authenticated group; its signature check
// is its authentication.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, authMiddleware *auth.Middleware, catalogHandler *catalog.Handler, appointmentHandler *appointment.Handler, invoiceHandler *invoice.Handler, paymentHandler *payment.Handler, webhookHandler *payment.WebhookHandler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if webhookHandler != nil {
			r.Post("/payments/callback", webhookHandler.HandleWebhook)
		}

		if catalogHandler != nil {
			r.Get("/services", catalogHandler.GetServices)
		}

		r.Group(func(pr chi.Router) {
			pr.Use(authMiddleware.Authenticate)

			if appointmentHandler != nil {
				pr.Route("/appointments", func(ar chi.Router) {
					ar.Post("/", appointmentHandler.CreateAppointment)
					ar.Get("/", appointmentHandler.ListAppointments)
					ar.Get("/{id}", appointmentHandler.GetAppointment)
					ar.Patch("/{id}/status", appointmentHandler.UpdateStatus)
					ar.Patch("/{id}/schedule", appointmentHandler.Reschedule)
				})
			}

			if invoiceHandler != nil {
				pr.Route("/invoices", func(ir chi.Router) {
					ir.Post("/", invoiceHandler.CreateInvoice)
					ir.Get("/{id}", invoiceHandler.GetInvoice)
				})
			}

			if paymentHandler != nil {
				pr.Route("/payments", func(pmr chi.Router) {
					pmr.Post("/", paymentHandler.InitiatePayment)
					pmr.Get("/{id}", paymentHandler.GetPayment)
				})
			}
		})
	})
}
