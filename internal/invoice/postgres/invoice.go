package postgres

import (
	"errors"
	"time"

	"github.com/rizalfahlevi/booking-management/internal"
	invoiceDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/invoice"
	"github.com/rizalfahlevi/booking-management/internal/invoice"
	"gorm.io/gorm"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *InvoiceRepository) Create(tx *gorm.DB, inv *invoice.Invoice) error {
	dm := inv.ToDataModel()
	if err := r.conn(tx).Create(dm).Error; err != nil {
		return err
	}
	inv.ID = dm.ID
	return nil
}

func (r *InvoiceRepository) GetByID(tx *gorm.DB, id int64) (*invoice.Invoice, error) {
	var dm invoiceDatamodel.Invoice
	err := r.conn(tx).First(&dm, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrInvoiceNotFound
		}
		return nil, err
	}
	return invoice.FromDataModel(&dm), nil
}

func (r *InvoiceRepository) ExistsForAppointment(tx *gorm.DB, appointmentID int64) (bool, error) {
	var count int64
	err := r.conn(tx).Model(&invoiceDatamodel.Invoice{}).
		Where("appointment_id = ?", appointmentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *InvoiceRepository) FindExpiredPending(tx *gorm.DB, now time.Time, limit int) ([]*invoice.Invoice, error) {
	var dms []invoiceDatamodel.Invoice
	err := r.conn(tx).
		Where("status = ? AND due_date <= ?", invoice.StatusPending, now).
		Order("due_date ASC").
		Limit(limit).
		Find(&dms).Error
	if err != nil {
		return nil, err
	}

	invoices := make([]*invoice.Invoice, len(dms))
	for i := range dms {
		invoices[i] = invoice.FromDataModel(&dms[i])
	}
	return invoices, nil
}

func (r *InvoiceRepository) UpdateStatusGuarded(tx *gorm.DB, id int64, current, target string) (int64, error) {
	result := r.conn(tx).Model(&invoiceDatamodel.Invoice{}).
		Where("id = ? AND status = ?", id, current).
		Update("status", target)
	return result.RowsAffected, result.Error
}

// BulkCancel flips invoices to canceled only while they are still pending.
// A row paid between selection and this update is not matched, so the
// caller's row-count comparison catches the race.
func (r *InvoiceRepository) BulkCancel(tx *gorm.DB, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.conn(tx).Model(&invoiceDatamodel.Invoice{}).
		Where("id IN ? AND status = ?", ids, invoice.StatusPending).
		Update("status", invoice.StatusCanceled)
	return result.RowsAffected, result.Error
}
