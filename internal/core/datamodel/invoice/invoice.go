package invoice

import "time"

type Invoice struct {
	ID            int64     `gorm:"primaryKey"`
	AppointmentID int64     `gorm:"column:appointment_id;not null;uniqueIndex"`
	ProviderID    int64     `gorm:"column:provider_id;not null;index"`
	ClientID      int64     `gorm:"column:client_id;not null;index"`
	TotalAmount   int64     `gorm:"column:total_amount;not null"`
	Status        string    `gorm:"column:status;default:pending"`
	IssuedDate    time.Time `gorm:"column:issued_date;not null"`
	DueDate       time.Time `gorm:"column:due_date;not null;index"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Invoice) TableName() string {
	return "invoices"
}
