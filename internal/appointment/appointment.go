package appointment

import (
	"time"

	appointmentDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/appointment"
	"gorm.io/gorm"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// CollisionWindow is how close two bookings for the same client may sit
// before they are considered the same slot.
const CollisionWindow = 20 * time.Minute

type Appointment struct {
	ID              int64      `json:"id"`
	ClientID        int64      `json:"client_id"`
	ProviderID      int64      `json:"provider_id"`
	ServiceID       int64      `json:"service_id"`
	AppointmentTime time.Time  `json:"appointment_time"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"payment_status"`
	CancelReason    *string    `json:"cancel_reason,omitempty"`
	RejectedBy      *int64     `json:"rejected_by,omitempty"`
	CanceledAt      *time.Time `json:"canceled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsParty reports whether userID is the client or provider on this record.
func (a *Appointment) IsParty(userID int64) bool {
	return a.ClientID == userID || a.ProviderID == userID
}

// CounterpartID returns the other party relative to userID.
func (a *Appointment) CounterpartID(userID int64) int64 {
	if a.ClientID == userID {
		return a.ProviderID
	}
	return a.ClientID
}

func (a *Appointment) IsReschedulable() bool {
	return a.Status == StatusPending || a.Status == StatusConfirmed
}

type RepositoryAPI interface {
	Create(tx *gorm.DB, appointment *Appointment) error
	GetByID(tx *gorm.DB, id int64) (*Appointment, error)
	ListByParty(tx *gorm.DB, userID int64, limit, offset int) ([]*Appointment, error)
	// CountCollisions counts the client's PENDING/CONFIRMED appointments
	// inside the collision window around t, excluding excludeID.
	CountCollisions(tx *gorm.DB, clientID int64, t time.Time, excludeID int64) (int64, error)
	// UpdateStatusGuarded flips status only while the stored status still
	// equals current; returns the affected row count.
	UpdateStatusGuarded(tx *gorm.DB, id int64, current string, updates map[string]interface{}) (int64, error)
	// BulkCancelForExpiry cancels the given appointments and fails their
	// payment status in one statement, returning rows affected.
	BulkCancelForExpiry(tx *gorm.DB, ids []int64, canceledAt time.Time, reason string) (int64, error)
	UpdatePaymentStatusGuarded(tx *gorm.DB, id int64, current, target string) (int64, error)
}

func (a *Appointment) ToDataModel() *appointmentDatamodel.Appointment {
	return &appointmentDatamodel.Appointment{
		ID:              a.ID,
		ClientID:        a.ClientID,
		ProviderID:      a.ProviderID,
		ServiceID:       a.ServiceID,
		AppointmentTime: a.AppointmentTime,
		Status:          a.Status,
		PaymentStatus:   a.PaymentStatus,
		CancelReason:    a.CancelReason,
		RejectedBy:      a.RejectedBy,
		CanceledAt:      a.CanceledAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

func FromDataModel(dm *appointmentDatamodel.Appointment) *Appointment {
	return &Appointment{
		ID:              dm.ID,
		ClientID:        dm.ClientID,
		ProviderID:      dm.ProviderID,
		ServiceID:       dm.ServiceID,
		AppointmentTime: dm.AppointmentTime,
		Status:          dm.Status,
		PaymentStatus:   dm.PaymentStatus,
		CancelReason:    dm.CancelReason,
		RejectedBy:      dm.RejectedBy,
		CanceledAt:      dm.CanceledAt,
		CreatedAt:       dm.CreatedAt,
		UpdatedAt:       dm.UpdatedAt,
	}
}
