package invoice

import (
	"time"

	invoiceDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/invoice"
	"gorm.io/gorm"
)

const (
	StatusPending  = "pending"
	StatusPaid     = "paid"
	StatusCanceled = "canceled"
	StatusRefunded = "refunded"
)

// PaymentDeadline is how long a client has to pay an issued invoice before
// the expiry sweep cancels it.
const PaymentDeadline = 24 * time.Hour

type Invoice struct {
	ID            int64     `json:"id"`
	AppointmentID int64     `json:"appointment_id"`
	ProviderID    int64     `json:"provider_id"`
	ClientID      int64     `json:"client_id"`
	TotalAmount   int64     `json:"total_amount"`
	Status        string    `json:"status"`
	IssuedDate    time.Time `json:"issued_date"`
	DueDate       time.Time `json:"due_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (i *Invoice) IsPayable() bool {
	return i.Status == StatusPending
}

type RepositoryAPI interface {
	Create(tx *gorm.DB, invoice *Invoice) error
	GetByID(tx *gorm.DB, id int64) (*Invoice, error)
	ExistsForAppointment(tx *gorm.DB, appointmentID int64) (bool, error)
	// FindExpiredPending selects the PENDING invoices whose due date has
	// passed, for the compensation batch.
	FindExpiredPending(tx *gorm.DB, now time.Time, limit int) ([]*Invoice, error)
	UpdateStatusGuarded(tx *gorm.DB, id int64, current, target string) (int64, error)
	BulkCancel(tx *gorm.DB, ids []int64) (int64, error)
}

func (i *Invoice) ToDataModel() *invoiceDatamodel.Invoice {
	return &invoiceDatamodel.Invoice{
		ID:            i.ID,
		AppointmentID: i.AppointmentID,
		ProviderID:    i.ProviderID,
		ClientID:      i.ClientID,
		TotalAmount:   i.TotalAmount,
		Status:        i.Status,
		IssuedDate:    i.IssuedDate,
		DueDate:       i.DueDate,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

func FromDataModel(dm *invoiceDatamodel.Invoice) *Invoice {
	return &Invoice{
		ID:            dm.ID,
		AppointmentID: dm.AppointmentID,
		ProviderID:    dm.ProviderID,
		ClientID:      dm.ClientID,
		TotalAmount:   dm.TotalAmount,
		Status:        dm.Status,
		IssuedDate:    dm.IssuedDate,
		DueDate:       dm.DueDate,
		CreatedAt:     dm.CreatedAt,
		UpdatedAt:     dm.UpdatedAt,
	}
}
