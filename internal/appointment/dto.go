package appointment

import (
	"time"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/core/common/validation"
)

type CreateAppointmentDTO struct {
	ProviderID      int64     `json:"provider_id"`
	ServiceID       int64     `json:"service_id"`
	AppointmentTime time.Time `json:"appointment_time"`
}

func (d CreateAppointmentDTO) Validate(now time.Time) error {
	v := validation.NewValidator()
	v.Field("provider_id", d.ProviderID).Required()
	v.Field("service_id", d.ServiceID).Required()
	v.Field("appointment_time", d.AppointmentTime).Required().After(now, internal.ErrCodeInvalidDate)

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type UpdateStatusDTO struct {
	Status       string  `json:"status"`
	CancelReason *string `json:"cancel_reason,omitempty"`
}

func (d UpdateStatusDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("status", d.Status).Required().
		OneOf([]string{StatusConfirmed, StatusCompleted, StatusCanceled}, internal.ErrCodeInvalidStatus)
	if d.CancelReason != nil {
		v.Field("cancel_reason", *d.CancelReason).MaxLen(500, internal.ErrCodeValidationFailed)
	}

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type RescheduleDTO struct {
	AppointmentTime time.Time `json:"appointment_time"`
}

func (d RescheduleDTO) Validate(now time.Time) error {
	v := validation.NewValidator()
	v.Field("appointment_time", d.AppointmentTime).Required().After(now, internal.ErrCodeInvalidDate)

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type AppointmentResponse struct {
	ID              int64      `json:"id"`
	ClientID        int64      `json:"client_id"`
	ProviderID      int64      `json:"provider_id"`
	ServiceID       int64      `json:"service_id"`
	AppointmentTime time.Time  `json:"appointment_time"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"payment_status"`
	CancelReason    *string    `json:"cancel_reason,omitempty"`
	CanceledAt      *time.Time `json:"canceled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (a *Appointment) ToResponse() *AppointmentResponse {
	return &AppointmentResponse{
		ID:              a.ID,
		ClientID:        a.ClientID,
		ProviderID:      a.ProviderID,
		ServiceID:       a.ServiceID,
		AppointmentTime: a.AppointmentTime,
		Status:          a.Status,
		PaymentStatus:   a.PaymentStatus,
		CancelReason:    a.CancelReason,
		CanceledAt:      a.CanceledAt,
		CreatedAt:       a.CreatedAt,
	}
}
