package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeAppointmentConfirmed = "appointment.confirmed"
	EventTypeAppointmentCanceled  = "appointment.canceled"
	EventTypeInvoiceCreated       = "invoice.created"
	EventTypeInvoiceExpired       = "invoice.expired"
	EventTypePaymentCompleted     = "payment.completed"
	EventTypePaymentFailed        = "payment.failed"
	EventTypePaymentRefunded      = "payment.refunded"
)

// AppointmentStatusEvent notifies the counterpart party of a confirm or
// cancel transition. RecipientUserID identifies who gets the email.
type AppointmentStatusEvent struct {
	BaseEvent
	AppointmentID   int64     `json:"appointment_id"`
	Status          string    `json:"status"`
	ActorUserID     int64     `json:"actor_user_id"`
	RecipientUserID int64     `json:"recipient_user_id"`
	CancelReason    string    `json:"cancel_reason,omitempty"`
	AppointmentTime time.Time `json:"appointment_time"`
}

func NewAppointmentStatusEvent(eventType string, appointmentID, actorUserID, recipientUserID int64, status, cancelReason string, appointmentTime time.Time) *AppointmentStatusEvent {
	return &AppointmentStatusEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"appointment_id":    appointmentID,
				"status":            status,
				"actor_user_id":     actorUserID,
				"recipient_user_id": recipientUserID,
			},
		},
		AppointmentID:   appointmentID,
		Status:          status,
		ActorUserID:     actorUserID,
		RecipientUserID: recipientUserID,
		CancelReason:    cancelReason,
		AppointmentTime: appointmentTime,
	}
}

type InvoiceCreatedEvent struct {
	BaseEvent
	InvoiceID     int64     `json:"invoice_id"`
	AppointmentID int64     `json:"appointment_id"`
	ClientID      int64     `json:"client_id"`
	TotalAmount   int64     `json:"total_amount"`
	DueDate       time.Time `json:"due_date"`
}

func NewInvoiceCreatedEvent(invoiceID, appointmentID, clientID, totalAmount int64, dueDate time.Time) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeInvoiceCreated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"invoice_id":     invoiceID,
				"appointment_id": appointmentID,
				"client_id":      clientID,
				"total_amount":   totalAmount,
			},
		},
		InvoiceID:     invoiceID,
		AppointmentID: appointmentID,
		ClientID:      clientID,
		TotalAmount:   totalAmount,
		DueDate:       dueDate,
	}
}

// InvoiceExpiredEvent is published after the expiry compensation batch
// commits. RecipientEmail was resolved inside the batch transaction.
type InvoiceExpiredEvent struct {
	BaseEvent
	InvoiceID      int64  `json:"invoice_id"`
	AppointmentID  int64  `json:"appointment_id"`
	ClientID       int64  `json:"client_id"`
	RecipientEmail string `json:"recipient_email"`
}

func NewInvoiceExpiredEvent(invoiceID, appointmentID, clientID int64, recipientEmail string) *InvoiceExpiredEvent {
	return &InvoiceExpiredEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeInvoiceExpired,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"invoice_id":     invoiceID,
				"appointment_id": appointmentID,
				"client_id":      clientID,
			},
		},
		InvoiceID:      invoiceID,
		AppointmentID:  appointmentID,
		ClientID:       clientID,
		RecipientEmail: recipientEmail,
	}
}

type PaymentLifecycleEvent struct {
	BaseEvent
	PaymentID     int64  `json:"payment_id"`
	InvoiceID     int64  `json:"invoice_id"`
	AppointmentID int64  `json:"appointment_id"`
	ClientID      int64  `json:"client_id"`
	ExternalID    string `json:"external_id"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	RefundAmount  int64  `json:"refund_amount,omitempty"`
}

func NewPaymentLifecycleEvent(eventType string, paymentID, invoiceID, appointmentID, clientID int64, externalID string, amount int64, status, failureReason string, refundAmount int64) *PaymentLifecycleEvent {
	return &PaymentLifecycleEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":  paymentID,
				"invoice_id":  invoiceID,
				"client_id":   clientID,
				"external_id": externalID,
				"status":      status,
			},
		},
		PaymentID:     paymentID,
		InvoiceID:     invoiceID,
		AppointmentID: appointmentID,
		ClientID:      clientID,
		ExternalID:    externalID,
		Amount:        amount,
		Status:        status,
		FailureReason: failureReason,
		RefundAmount:  refundAmount,
	}
}
