package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/appointment"
	"github.com/rizalfahlevi/booking-management/internal/core/clock"
	"github.com/rizalfahlevi/booking-management/internal/core/database"
	"github.com/rizalfahlevi/booking-management/internal/core/events"
	"github.com/rizalfahlevi/booking-management/internal/invoice"
	"github.com/rizalfahlevi/booking-management/internal/paymentgateway"
	"gorm.io/gorm"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Reconciler consumes gateway webhook events and propagates payment state
// across Payment, Invoice, and Appointment in one transaction per event.
//
// Redelivered events for a state already reached log a warning and no-op;
// any other precondition mismatch is a hard error surfaced as a 500 so the
// gateway keeps retrying until the inconsistency is resolved out of band.
type Reconciler struct {
	repo        RepositoryAPI
	invoiceRepo invoice.RepositoryAPI
	apptRepo    appointment.RepositoryAPI
	txManager   database.TxManager
	eventBus    EventPublisher
	clock       clock.Clock
	logger      *slog.Logger
}

func NewReconciler(repo RepositoryAPI, invoiceRepo invoice.RepositoryAPI, apptRepo appointment.RepositoryAPI, txManager database.TxManager, eventBus EventPublisher, clk clock.Clock, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		repo:        repo,
		invoiceRepo: invoiceRepo,
		apptRepo:    apptRepo,
		txManager:   txManager,
		eventBus:    eventBus,
		clock:       clk,
		logger:      logger,
	}
}

// ProcessEvent handles one verified webhook delivery. Unknown event types
// are acknowledged and ignored so new gateway events never poison the queue.
func (r *Reconciler) ProcessEvent(ctx context.Context, event *paymentgateway.WebhookEvent) error {
	switch event.Type {
	case paymentgateway.EventPaymentSucceeded:
		return r.handleSucceeded(ctx, event)
	case paymentgateway.EventPaymentFailed:
		return r.handleFailed(ctx, event)
	case paymentgateway.EventChargeRefunded:
		return r.handleRefunded(ctx, event)
	default:
		r.logger.Info("ignoring unhandled gateway event type", "event_type", event.Type, "event_id", event.ID)
		return nil
	}
}

func (r *Reconciler) handleSucceeded(ctx context.Context, event *paymentgateway.WebhookEvent) error {
	var completed *Payment
	err := r.txManager.Do(ctx, func(tx *gorm.DB) error {
		p, err := r.repo.GetByExternalID(tx, event.Data.Object.ID)
		if err != nil {
			return err
		}

		switch p.Status {
		case StatusCompleted:
			r.logger.Warn("duplicate success event for completed payment",
				"payment_id", p.ID,
				"external_id", p.ExternalID,
				"event_id", event.ID)
			return nil
		case StatusFailed, StatusRefunded:
			return internal.NewInternalStateError(
				fmt.Sprintf("success event for payment %d in status %s", p.ID, p.Status),
				internal.ErrCodeInconsistentState)
		}

		now := r.clock.Now()
		p.Status = StatusCompleted
		p.ProcessedAt = &now
		if err := r.repo.Update(tx, p); err != nil {
			return internal.NewInternalError("mark payment completed", err)
		}

		if err := r.advanceInvoice(tx, p.InvoiceID, invoice.StatusPending, invoice.StatusPaid, event.ID); err != nil {
			return err
		}
		if err := r.advanceAppointmentPayment(tx, p.AppointmentID, appointment.PaymentStatusPending, appointment.PaymentStatusCompleted, event.ID); err != nil {
			return err
		}

		completed = p
		return nil
	})
	if err != nil {
		return err
	}

	if completed != nil {
		r.publish(ctx, events.EventTypePaymentCompleted, completed, "", 0)
	}
	return nil
}

func (r *Reconciler) handleFailed(ctx context.Context, event *paymentgateway.WebhookEvent) error {
	var failed *Payment
	err := r.txManager.Do(ctx, func(tx *gorm.DB) error {
		p, err := r.repo.GetByExternalID(tx, event.Data.Object.ID)
		if err != nil {
			return err
		}

		switch p.Status {
		case StatusFailed:
			r.logger.Warn("duplicate failure event for failed payment",
				"payment_id", p.ID,
				"external_id", p.ExternalID,
				"event_id", event.ID)
			return nil
		case StatusCompleted, StatusRefunded:
			return internal.NewInternalStateError(
				fmt.Sprintf("failure event for payment %d in status %s", p.ID, p.Status),
				internal.ErrCodeInconsistentState)
		}

		reason := event.Data.Object.FailureMessage
		canRetry := p.CanRetry()

		p.RetryCount++
		if reason != "" {
			p.FailureReason = &reason
		}

		if canRetry {
			// transient signal; the client may start another attempt
			// against the same intent
			if err := r.repo.Update(tx, p); err != nil {
				return internal.NewInternalError("record payment failure", err)
			}
			r.logger.Info("payment failure absorbed as retry",
				"payment_id", p.ID,
				"retry_count", p.RetryCount,
				"reason", reason)
			return nil
		}

		now := r.clock.Now()
		p.Status = StatusFailed
		p.ProcessedAt = &now
		if err := r.repo.Update(tx, p); err != nil {
			return internal.NewInternalError("mark payment failed", err)
		}

		if err := r.advanceInvoice(tx, p.InvoiceID, invoice.StatusPending, invoice.StatusCanceled, event.ID); err != nil {
			return err
		}
		if err := r.advanceAppointmentPayment(tx, p.AppointmentID, appointment.PaymentStatusPending, appointment.PaymentStatusFailed, event.ID); err != nil {
			return err
		}

		failed = p
		return nil
	})
	if err != nil {
		return err
	}

	if failed != nil {
		reason := ""
		if failed.FailureReason != nil {
			reason = *failed.FailureReason
		}
		r.publish(ctx, events.EventTypePaymentFailed, failed, reason, 0)
	}
	return nil
}

func (r *Reconciler) handleRefunded(ctx context.Context, event *paymentgateway.WebhookEvent) error {
	var refunded *Payment
	err := r.txManager.Do(ctx, func(tx *gorm.DB) error {
		p, err := r.repo.GetByExternalID(tx, event.Data.Object.ID)
		if err != nil {
			return err
		}

		switch p.Status {
		case StatusRefunded:
			r.logger.Warn("duplicate refund event for refunded payment",
				"payment_id", p.ID,
				"external_id", p.ExternalID,
				"event_id", event.ID)
			return nil
		case StatusCompleted:
			// only a completed payment can be refunded
		default:
			return internal.NewInternalStateError(
				fmt.Sprintf("refund event for payment %d in status %s", p.ID, p.Status),
				internal.ErrCodeInconsistentState)
		}

		if event.Data.Object.AmountRefunded > p.Amount {
			return internal.NewInternalStateError(
				fmt.Sprintf("refund of %d exceeds amount %d on payment %d",
					event.Data.Object.AmountRefunded, p.Amount, p.ID),
				internal.ErrCodeInconsistentState)
		}

		now := r.clock.Now()
		p.Status = StatusRefunded
		p.RefundAmount = event.Data.Object.AmountRefunded
		p.ProcessedAt = &now
		if err := r.repo.Update(tx, p); err != nil {
			return internal.NewInternalError("mark payment refunded", err)
		}

		if err := r.advanceInvoice(tx, p.InvoiceID, invoice.StatusPaid, invoice.StatusRefunded, event.ID); err != nil {
			return err
		}
		if err := r.advanceAppointmentPayment(tx, p.AppointmentID, appointment.PaymentStatusCompleted, appointment.PaymentStatusRefunded, event.ID); err != nil {
			return err
		}

		refunded = p
		return nil
	})
	if err != nil {
		return err
	}

	if refunded != nil {
		r.publish(ctx, events.EventTypePaymentRefunded, refunded, "", refunded.RefundAmount)
	}
	return nil
}

// advanceInvoice moves the invoice from wantCurrent to target. Already at
// target is a redelivery no-op; any other status is corruption.
func (r *Reconciler) advanceInvoice(tx *gorm.DB, invoiceID int64, wantCurrent, target, eventID string) error {
	inv, err := r.invoiceRepo.GetByID(tx, invoiceID)
	if err != nil {
		return err
	}

	if inv.Status == target {
		r.logger.Warn("invoice already in target status",
			"invoice_id", invoiceID,
			"status", target,
			"event_id", eventID)
		return nil
	}
	if inv.Status != wantCurrent {
		return internal.NewInternalStateError(
			fmt.Sprintf("invoice %d in status %s, expected %s before %s", invoiceID, inv.Status, wantCurrent, target),
			internal.ErrCodeInconsistentState)
	}

	affected, err := r.invoiceRepo.UpdateStatusGuarded(tx, invoiceID, wantCurrent, target)
	if err != nil {
		return internal.NewInternalError("update invoice status", err)
	}
	if affected != 1 {
		return internal.NewInternalStateError(
			fmt.Sprintf("invoice %d status update touched %d rows", invoiceID, affected),
			internal.ErrCodeUnexpectedRowCount)
	}
	return nil
}

func (r *Reconciler) advanceAppointmentPayment(tx *gorm.DB, appointmentID int64, wantCurrent, target, eventID string) error {
	appt, err := r.apptRepo.GetByID(tx, appointmentID)
	if err != nil {
		return err
	}

	if appt.PaymentStatus == target {
		r.logger.Warn("appointment payment status already in target status",
			"appointment_id", appointmentID,
			"payment_status", target,
			"event_id", eventID)
		return nil
	}
	if appt.PaymentStatus != wantCurrent {
		return internal.NewInternalStateError(
			fmt.Sprintf("appointment %d payment status %s, expected %s before %s", appointmentID, appt.PaymentStatus, wantCurrent, target),
			internal.ErrCodeInconsistentState)
	}

	affected, err := r.apptRepo.UpdatePaymentStatusGuarded(tx, appointmentID, wantCurrent, target)
	if err != nil {
		return internal.NewInternalError("update appointment payment status", err)
	}
	if affected != 1 {
		return internal.NewInternalStateError(
			fmt.Sprintf("appointment %d payment status update touched %d rows", appointmentID, affected),
			internal.ErrCodeUnexpectedRowCount)
	}
	return nil
}

func (r *Reconciler) publish(ctx context.Context, eventType string, p *Payment, failureReason string, refundAmount int64) {
	event := events.NewPaymentLifecycleEvent(eventType, p.ID, p.InvoiceID, p.AppointmentID, p.ClientID, p.ExternalID, p.Amount, p.Status, failureReason, refundAmount)
	if err := r.eventBus.Publish(ctx, event); err != nil {
		r.logger.Error("failed to publish payment lifecycle event",
			"error", err,
			"event_type", eventType,
			"payment_id", p.ID)
	}
}
