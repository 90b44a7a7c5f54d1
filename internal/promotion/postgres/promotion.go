package postgres

import (
	"errors"
	"time"

	"github.com/rizalfahlevi/booking-management/internal"
	promotionDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/promotion"
	"github.com/rizalfahlevi/booking-management/internal/promotion"
	"gorm.io/gorm"
)

type PromotionRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

func (r *PromotionRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *PromotionRepository) GetByCode(tx *gorm.DB, code string) (*promotion.Promotion, error) {
	var dm promotionDatamodel.Promotion
	err := r.conn(tx).Where("discount_code = ?", code).First(&dm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPromotionNotFound
		}
		return nil, err
	}
	return promotion.FromDataModel(&dm), nil
}

// TryRedeem increments use_count only while capacity remains. The WHERE
// guard makes concurrent redemptions serialize on the row; a zero-row
// result means the promotion is exhausted.
func (r *PromotionRepository) TryRedeem(tx *gorm.DB, promotionID int64) (bool, error) {
	result := r.conn(tx).Model(&promotionDatamodel.Promotion{}).
		Where("id = ? AND use_count < max_usage", promotionID).
		UpdateColumn("use_count", gorm.Expr("use_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Release gives back count uses after a canceled redemption. The guard
// keeps the counter from going negative; zero rows affected means the
// stored count no longer matches what was redeemed.
func (r *PromotionRepository) Release(tx *gorm.DB, promotionID int64, count int64) error {
	if count <= 0 {
		return nil
	}
	result := r.conn(tx).Model(&promotionDatamodel.Promotion{}).
		Where("id = ? AND use_count >= ?", promotionID, count).
		UpdateColumn("use_count", gorm.Expr("use_count - ?", count))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.NewInternalStateError("promotion counter release would underflow", internal.ErrCodeCounterUnderflow)
	}
	return nil
}

func (r *PromotionRepository) HasUsage(tx *gorm.DB, promotionID, clientID int64) (bool, error) {
	var count int64
	err := r.conn(tx).Model(&promotionDatamodel.PromotionUsage{}).
		Where("promotion_id = ? AND client_id = ?", promotionID, clientID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PromotionRepository) CreateUsage(tx *gorm.DB, promotionID, clientID, appointmentID int64) error {
	usage := promotionDatamodel.PromotionUsage{
		PromotionID:   promotionID,
		ClientID:      clientID,
		AppointmentID: appointmentID,
	}
	return r.conn(tx).Create(&usage).Error
}

func (r *PromotionRepository) ListUsagesByAppointmentIDs(tx *gorm.DB, appointmentIDs []int64) ([]*promotion.Usage, error) {
	if len(appointmentIDs) == 0 {
		return nil, nil
	}

	var dms []promotionDatamodel.PromotionUsage
	err := r.conn(tx).Where("appointment_id IN ?", appointmentIDs).Find(&dms).Error
	if err != nil {
		return nil, err
	}

	usages := make([]*promotion.Usage, len(dms))
	for i, dm := range dms {
		usages[i] = &promotion.Usage{
			ID:            dm.ID,
			PromotionID:   dm.PromotionID,
			ClientID:      dm.ClientID,
			AppointmentID: dm.AppointmentID,
		}
	}
	return usages, nil
}

func (r *PromotionRepository) DeleteUsages(tx *gorm.DB, usageIDs []int64) (int64, error) {
	if len(usageIDs) == 0 {
		return 0, nil
	}
	result := r.conn(tx).Where("id IN ?", usageIDs).Delete(&promotionDatamodel.PromotionUsage{})
	return result.RowsAffected, result.Error
}

// ExpireDue retires active promotions that ran out of time or capacity.
func (r *PromotionRepository) ExpireDue(now time.Time) (int64, error) {
	result := r.db.Model(&promotionDatamodel.Promotion{}).
		Where("status = ? AND (end_date < ? OR use_count >= max_usage)", promotion.StatusActive, now).
		Update("status", promotion.StatusExpired)
	return result.RowsAffected, result.Error
}
