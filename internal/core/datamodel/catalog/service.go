package catalog

import "time"

// Service is a bookable offering published by a provider. Price is in IDR
// minor units and is snapshotted onto the invoice at issuance time.
type Service struct {
	ID          int64     `gorm:"primaryKey"`
	ProviderID  int64     `gorm:"column:provider_id;not null;index"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description"`
	Price       int64     `gorm:"column:price;not null"`
	IsActive    bool      `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Service) TableName() string {
	return "services"
}
