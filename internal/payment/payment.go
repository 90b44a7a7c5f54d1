package payment

import (
	"encoding/json"
	"time"

	paymentDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/payment"
	"gorm.io/gorm"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

// maxPaymentRetries is how many gateway failure events a payment absorbs
// before it is marked FAILED and the failure cascades to invoice and
// appointment.
const maxPaymentRetries = 3

type Payment struct {
	ID              int64           `json:"id"`
	InvoiceID       int64           `json:"invoice_id"`
	AppointmentID   int64           `json:"appointment_id"`
	ClientID        int64           `json:"client_id"`
	ProviderID      int64           `json:"provider_id"`
	Amount          int64           `json:"amount"`
	Status          string          `json:"status"`
	ExternalID      string          `json:"external_id"`
	RefundAmount    int64           `json:"refund_amount"`
	RetryCount      int             `json:"retry_count"`
	GatewayResponse json.RawMessage `json:"-"`
	FailureReason   *string         `json:"failure_reason,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CanRetry reports whether another failure event is still absorbed as a
// transient signal rather than cascading.
func (p *Payment) CanRetry() bool {
	return p.RetryCount < maxPaymentRetries
}

type RepositoryAPI interface {
	Create(tx *gorm.DB, payment *Payment) error
	GetByID(tx *gorm.DB, id int64) (*Payment, error)
	GetByExternalID(tx *gorm.DB, externalID string) (*Payment, error)
	// GetPendingByInvoiceID returns the open payment attempt for the
	// invoice, or ErrPaymentNotFound when none exists.
	GetPendingByInvoiceID(tx *gorm.DB, invoiceID int64) (*Payment, error)
	Update(tx *gorm.DB, payment *Payment) error
	BulkFailByInvoiceIDs(tx *gorm.DB, invoiceIDs []int64, reason string) (int64, error)
}

func (p *Payment) ToDataModel() *paymentDatamodel.Payment {
	return &paymentDatamodel.Payment{
		ID:              p.ID,
		InvoiceID:       p.InvoiceID,
		AppointmentID:   p.AppointmentID,
		ClientID:        p.ClientID,
		ProviderID:      p.ProviderID,
		Amount:          p.Amount,
		Status:          p.Status,
		ExternalID:      p.ExternalID,
		RefundAmount:    p.RefundAmount,
		RetryCount:      p.RetryCount,
		GatewayResponse: p.GatewayResponse,
		FailureReason:   p.FailureReason,
		ProcessedAt:     p.ProcessedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func FromDataModel(dm *paymentDatamodel.Payment) *Payment {
	return &Payment{
		ID:              dm.ID,
		InvoiceID:       dm.InvoiceID,
		AppointmentID:   dm.AppointmentID,
		ClientID:        dm.ClientID,
		ProviderID:      dm.ProviderID,
		Amount:          dm.Amount,
		Status:          dm.Status,
		ExternalID:      dm.ExternalID,
		RefundAmount:    dm.RefundAmount,
		RetryCount:      dm.RetryCount,
		GatewayResponse: dm.GatewayResponse,
		FailureReason:   dm.FailureReason,
		ProcessedAt:     dm.ProcessedAt,
		CreatedAt:       dm.CreatedAt,
		UpdatedAt:       dm.UpdatedAt,
	}
}
