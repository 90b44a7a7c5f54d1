package postgres

import (
	"errors"
	"time"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/appointment"
	appointmentDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/appointment"
	"gorm.io/gorm"
)

type AppointmentRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *AppointmentRepository) Create(tx *gorm.DB, appt *appointment.Appointment) error {
	dm := appt.ToDataModel()
	if err := r.conn(tx).Create(dm).Error; err != nil {
		return err
	}
	appt.ID = dm.ID
	return nil
}

func (r *AppointmentRepository) GetByID(tx *gorm.DB, id int64) (*appointment.Appointment, error) {
	var dm appointmentDatamodel.Appointment
	err := r.conn(tx).First(&dm, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrAppointmentNotFound
		}
		return nil, err
	}
	return appointment.FromDataModel(&dm), nil
}

func (r *AppointmentRepository) ListByParty(tx *gorm.DB, userID int64, limit, offset int) ([]*appointment.Appointment, error) {
	var dms []appointmentDatamodel.Appointment
	err := r.conn(tx).
		Where("client_id = ? OR provider_id = ?", userID, userID).
		Order("appointment_time DESC").
		Limit(limit).Offset(offset).
		Find(&dms).Error
	if err != nil {
		return nil, err
	}

	appts := make([]*appointment.Appointment, len(dms))
	for i := range dms {
		appts[i] = appointment.FromDataModel(&dms[i])
	}
	return appts, nil
}

func (r *AppointmentRepository) CountCollisions(tx *gorm.DB, clientID int64, t time.Time, excludeID int64) (int64, error) {
	query := r.conn(tx).Model(&appointmentDatamodel.Appointment{}).
		Where("client_id = ?", clientID).
		Where("status IN ?", []string{appointment.StatusPending, appointment.StatusConfirmed}).
		Where("appointment_time > ? AND appointment_time < ?",
			t.Add(-appointment.CollisionWindow), t.Add(appointment.CollisionWindow))
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

// UpdateStatusGuarded applies updates only while the stored status still
// matches current. Zero rows affected means a concurrent writer won.
func (r *AppointmentRepository) UpdateStatusGuarded(tx *gorm.DB, id int64, current string, updates map[string]interface{}) (int64, error) {
	result := r.conn(tx).Model(&appointmentDatamodel.Appointment{}).
		Where("id = ? AND status = ?", id, current).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// BulkCancelForExpiry cancels appointments whose invoice expired unpaid.
// The payment_status guard keeps a concurrently paid appointment out of the
// update; the caller aborts the batch when the count comes up short.
func (r *AppointmentRepository) BulkCancelForExpiry(tx *gorm.DB, ids []int64, canceledAt time.Time, reason string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.conn(tx).Model(&appointmentDatamodel.Appointment{}).
		Where("id IN ? AND status = ? AND payment_status = ?",
			ids, appointment.StatusCompleted, appointment.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":         appointment.StatusCanceled,
			"payment_status": appointment.PaymentStatusFailed,
			"cancel_reason":  reason,
			"canceled_at":    canceledAt,
			"updated_at":     canceledAt,
		})
	return result.RowsAffected, result.Error
}

func (r *AppointmentRepository) UpdatePaymentStatusGuarded(tx *gorm.DB, id int64, current, target string) (int64, error) {
	result := r.conn(tx).Model(&appointmentDatamodel.Appointment{}).
		Where("id = ? AND payment_status = ?", id, current).
		Update("payment_status", target)
	return result.RowsAffected, result.Error
}
