package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rizalfahlevi/booking-management/internal/core/events"
	"github.com/rizalfahlevi/booking-management/internal/user"
)

// Dispatcher turns lifecycle events into emails. Handlers run on the event
// bus goroutines; every error path here only logs, since notifications must
// never undo a committed state change.
type Dispatcher struct {
	sink   Sink
	users  user.RepositoryAPI
	logger *slog.Logger
}

func NewDispatcher(sink Sink, users user.RepositoryAPI, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sink:   sink,
		users:  users,
		logger: logger,
	}
}

// Register subscribes the dispatcher to every lifecycle event it mails on.
func (d *Dispatcher) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeAppointmentConfirmed, d.handleAppointmentStatus)
	bus.Subscribe(events.EventTypeAppointmentCanceled, d.handleAppointmentStatus)
	bus.Subscribe(events.EventTypeInvoiceCreated, d.handleInvoiceCreated)
	bus.Subscribe(events.EventTypeInvoiceExpired, d.handleInvoiceExpired)
	bus.Subscribe(events.EventTypePaymentCompleted, d.handlePaymentLifecycle)
	bus.Subscribe(events.EventTypePaymentFailed, d.handlePaymentLifecycle)
	bus.Subscribe(events.EventTypePaymentRefunded, d.handlePaymentLifecycle)
}

func (d *Dispatcher) handleAppointmentStatus(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.AppointmentStatusEvent)
	if !ok {
		d.logger.Error("unexpected event payload", "event_type", event.EventType())
		return nil
	}

	recipient, err := d.users.GetByID(nil, e.RecipientUserID)
	if err != nil {
		d.logger.Error("cannot resolve notification recipient",
			"error", err,
			"user_id", e.RecipientUserID,
			"appointment_id", e.AppointmentID)
		return nil
	}

	var subject, body string
	switch e.EventType() {
	case events.EventTypeAppointmentConfirmed:
		subject = "Your appointment is confirmed"
		body = fmt.Sprintf("Appointment #%d on %s has been confirmed.", e.AppointmentID, e.AppointmentTime.Format("2 Jan 2006 15:04"))
	case events.EventTypeAppointmentCanceled:
		subject = "Your appointment was canceled"
		body = fmt.Sprintf("Appointment #%d on %s has been canceled.", e.AppointmentID, e.AppointmentTime.Format("2 Jan 2006 15:04"))
		if e.CancelReason != "" {
			body += " Reason: " + e.CancelReason
		}
	}

	d.sink.Enqueue(ctx, recipient.Email, subject, body, &e.RecipientUserID)
	return nil
}

func (d *Dispatcher) handleInvoiceCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.InvoiceCreatedEvent)
	if !ok {
		d.logger.Error("unexpected event payload", "event_type", event.EventType())
		return nil
	}

	client, err := d.users.GetByID(nil, e.ClientID)
	if err != nil {
		d.logger.Error("cannot resolve notification recipient",
			"error", err,
			"user_id", e.ClientID,
			"invoice_id", e.InvoiceID)
		return nil
	}

	subject := "Invoice issued, payment due within 24 hours"
	body := fmt.Sprintf("Invoice #%d for Rp%d is due by %s. Please complete payment to keep your booking.",
		e.InvoiceID, e.TotalAmount, e.DueDate.Format("2 Jan 2006 15:04"))

	d.sink.Enqueue(ctx, client.Email, subject, body, &e.ClientID)
	return nil
}

func (d *Dispatcher) handleInvoiceExpired(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.InvoiceExpiredEvent)
	if !ok {
		d.logger.Error("unexpected event payload", "event_type", event.EventType())
		return nil
	}

	// recipient email was resolved inside the compensation transaction
	subject := "Booking canceled due to non-payment"
	body := fmt.Sprintf("Invoice #%d was not paid before its due date, so appointment #%d has been canceled.",
		e.InvoiceID, e.AppointmentID)

	d.sink.Enqueue(ctx, e.RecipientEmail, subject, body, &e.ClientID)
	return nil
}

func (d *Dispatcher) handlePaymentLifecycle(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PaymentLifecycleEvent)
	if !ok {
		d.logger.Error("unexpected event payload", "event_type", event.EventType())
		return nil
	}

	client, err := d.users.GetByID(nil, e.ClientID)
	if err != nil {
		d.logger.Error("cannot resolve notification recipient",
			"error", err,
			"user_id", e.ClientID,
			"payment_id", e.PaymentID)
		return nil
	}

	var subject, body string
	switch e.EventType() {
	case events.EventTypePaymentCompleted:
		subject = "Payment received"
		body = fmt.Sprintf("Your payment of Rp%d for invoice #%d has been received. Thank you.", e.Amount, e.InvoiceID)
	case events.EventTypePaymentFailed:
		subject = "Payment failed"
		body = fmt.Sprintf("Your payment for invoice #%d could not be completed.", e.InvoiceID)
		if e.FailureReason != "" {
			body += " Reason: " + e.FailureReason
		}
	case events.EventTypePaymentRefunded:
		subject = "Payment refunded"
		body = fmt.Sprintf("Rp%d has been refunded for invoice #%d.", e.RefundAmount, e.InvoiceID)
	}

	d.sink.Enqueue(ctx, client.Email, subject, body, &e.ClientID)
	return nil
}
