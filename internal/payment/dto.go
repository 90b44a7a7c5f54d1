package payment

import (
	"time"

	"github.com/rizalfahlevi/booking-management/internal/core/common/validation"
)

type InitiatePaymentDTO struct {
	InvoiceID int64 `json:"invoice_id"`
}

func (d InitiatePaymentDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("invoice_id", d.InvoiceID).Required()

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type InitiatePaymentResponse struct {
	PaymentID      int64  `json:"payment_id"`
	ClientSecret   string `json:"client_secret"`
	PublishableKey string `json:"publishable_key"`
}

type PaymentResponse struct {
	ID            int64      `json:"id"`
	InvoiceID     int64      `json:"invoice_id"`
	AppointmentID int64      `json:"appointment_id"`
	Amount        int64      `json:"amount"`
	Status        string     `json:"status"`
	RefundAmount  int64      `json:"refund_amount,omitempty"`
	RetryCount    int        `json:"retry_count"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (p *Payment) ToResponse() *PaymentResponse {
	return &PaymentResponse{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		AppointmentID: p.AppointmentID,
		Amount:        p.Amount,
		Status:        p.Status,
		RefundAmount:  p.RefundAmount,
		RetryCount:    p.RetryCount,
		FailureReason: p.FailureReason,
		ProcessedAt:   p.ProcessedAt,
		CreatedAt:     p.CreatedAt,
	}
}
