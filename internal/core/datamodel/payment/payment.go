package payment

import (
	"encoding/json"
	"time"
)

type Payment struct {
	ID              int64           `gorm:"primaryKey"`
	InvoiceID       int64           `gorm:"column:invoice_id;not null;index"`
	AppointmentID   int64           `gorm:"column:appointment_id;not null"`
	ClientID        int64           `gorm:"column:client_id;not null"`
	ProviderID      int64           `gorm:"column:provider_id;not null"`
	Amount          int64           `gorm:"column:amount;not null"`
	Status          string          `gorm:"column:status;default:pending"`
	ExternalID      string          `gorm:"column:external_id;not null;uniqueIndex"`
	RefundAmount    int64           `gorm:"column:refund_amount;default:0"`
	RetryCount      int             `gorm:"column:retry_count;default:0"`
	GatewayResponse json.RawMessage `gorm:"column:gateway_response;type:jsonb"`
	FailureReason   *string         `gorm:"column:failure_reason"`
	ProcessedAt     *time.Time      `gorm:"column:processed_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string {
	return "payments"
}
