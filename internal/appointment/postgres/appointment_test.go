package postgres

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/appointment"
	appointmentDatamodel "github.com/rizalfahlevi/booking-management/internal/core/datamodel/appointment"
)

func TestAppointmentRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AppointmentRepository Suite")
}

var _ = Describe("AppointmentRepository", func() {
	var (
		db   *gorm.DB
		repo appointment.RepositoryAPI
		slot time.Time
	)

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&appointmentDatamodel.Appointment{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewRepository(db)
		slot = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	seed := func(clientID int64, t time.Time, status string) *appointment.Appointment {
		appt := &appointment.Appointment{
			ClientID:        clientID,
			ProviderID:      20,
			ServiceID:       1,
			AppointmentTime: t,
			Status:          status,
			PaymentStatus:   appointment.PaymentStatusPending,
		}
		Expect(repo.Create(nil, appt)).To(Succeed())
		return appt
	}

	Describe("Create and GetByID", func() {
		It("should round-trip an appointment", func() {
			created := seed(10, slot, appointment.StatusPending)

			got, err := repo.GetByID(nil, created.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(got.ClientID).To(Equal(int64(10)))
			Expect(got.AppointmentTime.Unix()).To(Equal(slot.Unix()))
			Expect(got.Status).To(Equal(appointment.StatusPending))
		})

		It("should return not found for an unknown id", func() {
			_, err := repo.GetByID(nil, 999)

			Expect(err).To(MatchError(internal.ErrAppointmentNotFound))
		})
	})

	Describe("CountCollisions", func() {
		It("should count bookings inside the window", func() {
			seed(10, slot.Add(10*time.Minute), appointment.StatusPending)
			seed(10, slot.Add(-15*time.Minute), appointment.StatusConfirmed)

			count, err := repo.CountCollisions(nil, 10, slot, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))
		})

		It("should ignore bookings on the window boundary", func() {
			seed(10, slot.Add(appointment.CollisionWindow), appointment.StatusPending)
			seed(10, slot.Add(-appointment.CollisionWindow), appointment.StatusPending)

			count, err := repo.CountCollisions(nil, 10, slot, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(0)))
		})

		It("should ignore terminal and other clients' bookings", func() {
			seed(10, slot, appointment.StatusCanceled)
			seed(10, slot, appointment.StatusCompleted)
			seed(11, slot, appointment.StatusPending)

			count, err := repo.CountCollisions(nil, 10, slot, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(0)))
		})

		It("should exclude the appointment being rescheduled", func() {
			appt := seed(10, slot, appointment.StatusConfirmed)

			count, err := repo.CountCollisions(nil, 10, slot.Add(5*time.Minute), appt.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(0)))
		})
	})

	Describe("UpdateStatusGuarded", func() {
		It("should update only while the status still matches", func() {
			appt := seed(10, slot, appointment.StatusPending)

			affected, err := repo.UpdateStatusGuarded(nil, appt.ID, appointment.StatusPending, map[string]interface{}{
				"status": appointment.StatusConfirmed,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(affected).To(Equal(int64(1)))

			// stale guard matches nothing
			affected, err = repo.UpdateStatusGuarded(nil, appt.ID, appointment.StatusPending, map[string]interface{}{
				"status": appointment.StatusCanceled,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(affected).To(Equal(int64(0)))

			got, err := repo.GetByID(nil, appt.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(appointment.StatusConfirmed))
		})
	})

	Describe("BulkCancelForExpiry", func() {
		It("should cancel the batch and fail its payment status", func() {
			first := seed(10, slot, appointment.StatusCompleted)
			second := seed(11, slot.Add(time.Hour), appointment.StatusCompleted)
			canceledAt := slot.Add(25 * time.Hour)

			affected, err := repo.BulkCancelForExpiry(nil, []int64{first.ID, second.ID}, canceledAt, "invoice not paid before due date")

			Expect(err).NotTo(HaveOccurred())
			Expect(affected).To(Equal(int64(2)))

			got, err := repo.GetByID(nil, first.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(appointment.StatusCanceled))
			Expect(got.PaymentStatus).To(Equal(appointment.PaymentStatusFailed))
			Expect(got.CancelReason).NotTo(BeNil())
			Expect(got.CanceledAt).NotTo(BeNil())
		})

		It("should skip an appointment whose payment completed after selection", func() {
			stale := seed(10, slot, appointment.StatusCompleted)
			racer := seed(11, slot.Add(time.Hour), appointment.StatusCompleted)
			Expect(db.Model(&appointmentDatamodel.Appointment{}).
				Where("id = ?", racer.ID).
				Update("payment_status", appointment.PaymentStatusCompleted).Error).To(Succeed())

			affected, err := repo.BulkCancelForExpiry(nil, []int64{stale.ID, racer.ID}, slot.Add(25*time.Hour), "invoice not paid before due date")

			Expect(err).NotTo(HaveOccurred())
			Expect(affected).To(Equal(int64(1)))

			got, err := repo.GetByID(nil, racer.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(appointment.StatusCompleted))
			Expect(got.PaymentStatus).To(Equal(appointment.PaymentStatusCompleted))
		})

		It("should be a no-op for an empty batch", func() {
			affected, err := repo.BulkCancelForExpiry(nil, nil, slot, "reason")

			Expect(err).NotTo(HaveOccurred())
			Expect(affected).To(Equal(int64(0)))
		})
	})

	Describe("UpdatePaymentStatusGuarded", func() {
		It("should advance payment status only from the expected state", func() {
			appt := seed(10, slot, appointment.StatusCompleted)

			affected, err := repo.UpdatePaymentStatusGuarded(nil, appt.ID, appointment.PaymentStatusPending, appointment.PaymentStatusCompleted)
			Expect(err).NotTo(HaveOccurred())
			Expect(affected).To(Equal(int64(1)))

			affected, err = repo.UpdatePaymentStatusGuarded(nil, appt.ID, appointment.PaymentStatusPending, appointment.PaymentStatusFailed)
			Expect(err).NotTo(HaveOccurred())
			Expect(affected).To(Equal(int64(0)))
		})
	})

	Describe("ListByParty", func() {
		It("should list appointments for client or provider, newest slot first", func() {
			seed(10, slot, appointment.StatusPending)
			seed(10, slot.Add(time.Hour), appointment.StatusPending)
			seed(11, slot.Add(2*time.Hour), appointment.StatusPending)

			asClient, err := repo.ListByParty(nil, 10, 20, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(asClient).To(HaveLen(2))
			Expect(asClient[0].AppointmentTime.After(asClient[1].AppointmentTime)).To(BeTrue())

			// provider 20 sits on every seeded row
			asProvider, err := repo.ListByParty(nil, 20, 20, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(asProvider).To(HaveLen(3))
		})
	})
})
