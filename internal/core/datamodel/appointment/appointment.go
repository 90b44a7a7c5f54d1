package appointment

import "time"

type Appointment struct {
	ID              int64      `gorm:"primaryKey"`
	ClientID        int64      `gorm:"column:client_id;not null;index"`
	ProviderID      int64      `gorm:"column:provider_id;not null;index"`
	ServiceID       int64      `gorm:"column:service_id;not null"`
	AppointmentTime time.Time  `gorm:"column:appointment_time;not null"`
	Status          string     `gorm:"column:status;default:pending"`
	PaymentStatus   string     `gorm:"column:payment_status;default:pending"`
	CancelReason    *string    `gorm:"column:cancel_reason"`
	RejectedBy      *int64     `gorm:"column:rejected_by"`
	CanceledAt      *time.Time `gorm:"column:canceled_at"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Appointment) TableName() string {
	return "appointments"
}
