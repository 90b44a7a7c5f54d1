package invoice

import (
	"time"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/core/common/validation"
)

type CreateInvoiceDTO struct {
	AppointmentID  int64    `json:"appointment_id"`
	PromotionCodes []string `json:"promotion_codes,omitempty"`
}

func (d CreateInvoiceDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("appointment_id", d.AppointmentID).Required()

	if err := v.Validate(); err != nil {
		return err
	}
	if len(d.PromotionCodes) > 5 {
		return internal.NewValidationError("at most 5 promotion codes per invoice", internal.ErrCodeValidationFailed)
	}
	return nil
}

type InvoiceResponse struct {
	ID            int64     `json:"id"`
	AppointmentID int64     `json:"appointment_id"`
	ProviderID    int64     `json:"provider_id"`
	ClientID      int64     `json:"client_id"`
	TotalAmount   int64     `json:"total_amount"`
	Status        string    `json:"status"`
	IssuedDate    time.Time `json:"issued_date"`
	DueDate       time.Time `json:"due_date"`
}

func (i *Invoice) ToResponse() *InvoiceResponse {
	return &InvoiceResponse{
		ID:            i.ID,
		AppointmentID: i.AppointmentID,
		ProviderID:    i.ProviderID,
		ClientID:      i.ClientID,
		TotalAmount:   i.TotalAmount,
		Status:        i.Status,
		IssuedDate:    i.IssuedDate,
		DueDate:       i.DueDate,
	}
}
