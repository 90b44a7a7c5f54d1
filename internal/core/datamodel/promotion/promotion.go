package promotion

import "time"

type Promotion struct {
	ID              int64     `gorm:"primaryKey"`
	ProviderID      int64     `gorm:"column:provider_id;not null;index"`
	DiscountPercent float64   `gorm:"column:discount_percent;not null"`
	DiscountCode    string    `gorm:"column:discount_code;not null;uniqueIndex"`
	MaxUsage        int64     `gorm:"column:max_usage;not null"`
	UseCount        int64     `gorm:"column:use_count;default:0"`
	StartDate       time.Time `gorm:"column:start_date;not null"`
	EndDate         time.Time `gorm:"column:end_date;not null"`
	Status          string    `gorm:"column:status;default:active"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Promotion) TableName() string {
	return "promotions"
}

// PromotionUsage records one redemption. The (promotion_id, client_id)
// unique index stops a client redeeming the same promotion twice; rows are
// deleted only by the expiry compensation sweep.
type PromotionUsage struct {
	ID            int64     `gorm:"primaryKey"`
	PromotionID   int64     `gorm:"column:promotion_id;not null;uniqueIndex:ux_promotion_client,priority:1"`
	ClientID      int64     `gorm:"column:client_id;not null;uniqueIndex:ux_promotion_client,priority:2"`
	AppointmentID int64     `gorm:"column:appointment_id;not null;index"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PromotionUsage) TableName() string {
	return "promotion_usages"
}
