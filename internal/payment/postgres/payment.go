package postgres

import (
	"errors"

	"github.com/rizalfahlevi/booking-management/internal"
	paymentDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/payment"
	"github.com/rizalfahlevi/booking-management/internal/payment"
	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *PaymentRepository) Create(tx *gorm.DB, p *payment.Payment) error {
	dm := p.ToDataModel()
	if err := r.conn(tx).Create(dm).Error; err != nil {
		return err
	}
	p.ID = dm.ID
	return nil
}

func (r *PaymentRepository) GetByID(tx *gorm.DB, id int64) (*payment.Payment, error) {
	var dm paymentDatamodel.Payment
	err := r.conn(tx).First(&dm, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment.FromDataModel(&dm), nil
}

func (r *PaymentRepository) GetByExternalID(tx *gorm.DB, externalID string) (*payment.Payment, error) {
	var dm paymentDatamodel.Payment
	err := r.conn(tx).Where("external_id = ?", externalID).First(&dm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment.FromDataModel(&dm), nil
}

func (r *PaymentRepository) GetPendingByInvoiceID(tx *gorm.DB, invoiceID int64) (*payment.Payment, error) {
	var dm paymentDatamodel.Payment
	err := r.conn(tx).
		Where("invoice_id = ? AND status = ?", invoiceID, payment.StatusPending).
		Order("created_at DESC").
		First(&dm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment.FromDataModel(&dm), nil
}

func (r *PaymentRepository) Update(tx *gorm.DB, p *payment.Payment) error {
	return r.conn(tx).Save(p.ToDataModel()).Error
}

func (r *PaymentRepository) BulkFailByInvoiceIDs(tx *gorm.DB, invoiceIDs []int64, reason string) (int64, error) {
	if len(invoiceIDs) == 0 {
		return 0, nil
	}
	result := r.conn(tx).Model(&paymentDatamodel.Payment{}).
		Where("invoice_id IN ? AND status <> ?", invoiceIDs, payment.StatusFailed).
		Updates(map[string]interface{}{
			"status":         payment.StatusFailed,
			"failure_reason": reason,
		})
	return result.RowsAffected, result.Error
}
