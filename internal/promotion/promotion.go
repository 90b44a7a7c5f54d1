package promotion

import (
	"time"

	promotionDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/promotion"
	"gorm.io/gorm"
)

const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

type Promotion struct {
	ID              int64     `json:"id"`
	ProviderID      int64     `json:"provider_id"`
	DiscountPercent float64   `json:"discount_percent"`
	DiscountCode    string    `json:"discount_code"`
	MaxUsage        int64     `json:"max_usage"`
	UseCount        int64     `json:"use_count"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Status          string    `json:"status"`
}

// IsRedeemableAt reports whether the promotion window is open. Remaining
// capacity is not checked here; only the conditional counter update decides
// that, under the enclosing transaction.
func (p *Promotion) IsRedeemableAt(t time.Time) bool {
	if p.Status != StatusActive {
		return false
	}
	if t.Before(p.StartDate) || t.After(p.EndDate) {
		return false
	}
	return true
}

// RepositoryAPI covers promotion resolution and the redemption counter.
// TryRedeem and Release are the only writers of use_count; both are single
// guarded UPDATE statements so concurrent callers cannot overshoot.
type RepositoryAPI interface {
	GetByCode(tx *gorm.DB, code string) (*Promotion, error)
	TryRedeem(tx *gorm.DB, promotionID int64) (bool, error)
	Release(tx *gorm.DB, promotionID int64, count int64) error
	HasUsage(tx *gorm.DB, promotionID, clientID int64) (bool, error)
	CreateUsage(tx *gorm.DB, promotionID, clientID, appointmentID int64) error
	ListUsagesByAppointmentIDs(tx *gorm.DB, appointmentIDs []int64) ([]*Usage, error)
	DeleteUsages(tx *gorm.DB, usageIDs []int64) (int64, error)
	ExpireDue(now time.Time) (int64, error)
}

type Usage struct {
	ID            int64 `json:"id"`
	PromotionID   int64 `json:"promotion_id"`
	ClientID      int64 `json:"client_id"`
	AppointmentID int64 `json:"appointment_id"`
}

func FromDataModel(p *promotionDatamodel.Promotion) *Promotion {
	return &Promotion{
		ID:              p.ID,
		ProviderID:      p.ProviderID,
		DiscountPercent: p.DiscountPercent,
		DiscountCode:    p.DiscountCode,
		MaxUsage:        p.MaxUsage,
		UseCount:        p.UseCount,
		StartDate:       p.StartDate,
		EndDate:         p.EndDate,
		Status:          p.Status,
	}
}
