package invoice_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/appointment"
	"github.com/rizalfahlevi/booking-management/internal/core/clock"
	"github.com/rizalfahlevi/booking-management/internal/core/events"
	"github.com/rizalfahlevi/booking-management/internal/invoice"
	"github.com/rizalfahlevi/booking-management/internal/promotion"
	"github.com/rizalfahlevi/booking-management/internal/user"
)

type mockPaymentFailer struct {
	failedInvoiceIDs []int64
	failError        error
}

func (m *mockPaymentFailer) BulkFailByInvoiceIDs(tx *gorm.DB, invoiceIDs []int64, reason string) (int64, error) {
	if m.failError != nil {
		return 0, m.failError
	}
	m.failedInvoiceIDs = append(m.failedInvoiceIDs, invoiceIDs...)
	return int64(len(invoiceIDs)), nil
}

type mockPromotionReleaser struct {
	usages []*promotion.Usage

	deletedUsageIDs []int64
	deletedCount    *int64
	released        map[int64]int64
	releaseError    error
}

func newMockPromotionReleaser() *mockPromotionReleaser {
	return &mockPromotionReleaser{released: make(map[int64]int64)}
}

func (m *mockPromotionReleaser) ListUsagesByAppointmentIDs(tx *gorm.DB, appointmentIDs []int64) ([]*promotion.Usage, error) {
	var result []*promotion.Usage
	for _, usage := range m.usages {
		for _, id := range appointmentIDs {
			if usage.AppointmentID == id {
				result = append(result, usage)
			}
		}
	}
	return result, nil
}

func (m *mockPromotionReleaser) DeleteUsages(tx *gorm.DB, usageIDs []int64) (int64, error) {
	m.deletedUsageIDs = append(m.deletedUsageIDs, usageIDs...)
	if m.deletedCount != nil {
		return *m.deletedCount, nil
	}
	return int64(len(usageIDs)), nil
}

func (m *mockPromotionReleaser) Release(tx *gorm.DB, promotionID int64, count int64) error {
	if m.releaseError != nil {
		return m.releaseError
	}
	m.released[promotionID] += count
	return nil
}

type mockUserRepository struct {
	users    map[int64]*user.User
	getError error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[int64]*user.User)}
}

func (m *mockUserRepository) GetByID(tx *gorm.DB, id int64) (*user.User, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	u, ok := m.users[id]
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserRepository) GetByIDs(tx *gorm.DB, ids []int64) (map[int64]*user.User, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	result := make(map[int64]*user.User)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			result[id] = u
		}
	}
	return result, nil
}

var _ = Describe("ExpirySweeper", func() {
	var (
		sweeper      *invoice.ExpirySweeper
		mockRepo     *mockInvoiceRepository
		mockAppts    *mockAppointmentRepository
		mockPayments *mockPaymentFailer
		mockPromos   *mockPromotionReleaser
		mockUsers    *mockUserRepository
		mockTx       *mockTxManager
		mockBus      *mockEventPublisher
		mockClock    *clock.MockClock
		ctx          context.Context

		now time.Time
	)

	seedExpired := func(invoiceID, appointmentID, clientID int64) {
		mockRepo.invoices[invoiceID] = &invoice.Invoice{
			ID:            invoiceID,
			AppointmentID: appointmentID,
			ProviderID:    20,
			ClientID:      clientID,
			TotalAmount:   100000,
			Status:        invoice.StatusPending,
			DueDate:       now.Add(-time.Hour),
		}
		if invoiceID >= mockRepo.nextID {
			mockRepo.nextID = invoiceID + 1
		}
		mockAppts.appointments[appointmentID] = &appointment.Appointment{
			ID:            appointmentID,
			ClientID:      clientID,
			ProviderID:    20,
			Status:        appointment.StatusCompleted,
			PaymentStatus: appointment.PaymentStatusPending,
		}
	}

	BeforeEach(func() {
		mockRepo = newMockInvoiceRepository()
		mockAppts = newMockAppointmentRepository()
		mockPayments = &mockPaymentFailer{}
		mockPromos = newMockPromotionReleaser()
		mockUsers = newMockUserRepository()
		mockTx = &mockTxManager{}
		mockBus = &mockEventPublisher{}
		now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
		mockClock = clock.NewMockClock(now)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		sweeper = invoice.NewExpirySweeper(mockRepo, mockAppts, mockPayments, mockPromos, mockUsers, mockTx, mockBus, mockClock, logger)
		ctx = context.Background()

		mockUsers.users[10] = &user.User{ID: 10, Email: "sari@mail.com", Role: "client"}
		mockUsers.users[11] = &user.User{ID: 11, Email: "rina@mail.com", Role: "client"}
	})

	It("should do nothing when no invoice is past due", func() {
		mockRepo.invoices[1] = &invoice.Invoice{
			ID:      1,
			Status:  invoice.StatusPending,
			DueDate: now.Add(time.Hour),
		}

		Expect(sweeper.RunExpirySweep(ctx)).To(Succeed())
		Expect(mockBus.events()).To(BeEmpty())
		Expect(mockPayments.failedInvoiceIDs).To(BeEmpty())
	})

	It("should cancel invoices and appointments and fail their payments", func() {
		seedExpired(1, 100, 10)
		seedExpired(2, 200, 11)

		Expect(sweeper.RunExpirySweep(ctx)).To(Succeed())

		Expect(mockRepo.invoices[1].Status).To(Equal(invoice.StatusCanceled))
		Expect(mockRepo.invoices[2].Status).To(Equal(invoice.StatusCanceled))
		Expect(mockAppts.appointments[100].Status).To(Equal(appointment.StatusCanceled))
		Expect(mockAppts.appointments[100].PaymentStatus).To(Equal(appointment.PaymentStatusFailed))
		Expect(mockPayments.failedInvoiceIDs).To(ConsistOf(int64(1), int64(2)))
	})

	It("should publish one expired event per invoice with the client's email", func() {
		seedExpired(1, 100, 10)
		seedExpired(2, 200, 11)

		Expect(sweeper.RunExpirySweep(ctx)).To(Succeed())

		published := mockBus.events()
		Expect(published).To(HaveLen(2))

		emails := make([]string, 0, 2)
		for _, event := range published {
			Expect(event.EventType()).To(Equal(events.EventTypeInvoiceExpired))
			expiredEvent, ok := event.(*events.InvoiceExpiredEvent)
			Expect(ok).To(BeTrue())
			emails = append(emails, expiredEvent.RecipientEmail)
		}
		Expect(emails).To(ConsistOf("sari@mail.com", "rina@mail.com"))
	})

	It("should release promotion counters grouped per promotion", func() {
		seedExpired(1, 100, 10)
		seedExpired(2, 200, 11)
		mockPromos.usages = []*promotion.Usage{
			{ID: 1, PromotionID: 5, ClientID: 10, AppointmentID: 100},
			{ID: 2, PromotionID: 5, ClientID: 11, AppointmentID: 200},
			{ID: 3, PromotionID: 6, ClientID: 10, AppointmentID: 100},
		}

		Expect(sweeper.RunExpirySweep(ctx)).To(Succeed())

		Expect(mockPromos.deletedUsageIDs).To(ConsistOf(int64(1), int64(2), int64(3)))
		Expect(mockPromos.released).To(HaveKeyWithValue(int64(5), int64(2)))
		Expect(mockPromos.released).To(HaveKeyWithValue(int64(6), int64(1)))
	})

	It("should abort when the appointment cancel touches an unexpected row count", func() {
		seedExpired(1, 100, 10)
		one := int64(0)
		mockAppts.bulkCancelCount = &one

		err := sweeper.RunExpirySweep(ctx)

		Expect(err).To(HaveOccurred())
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeUnexpectedRowCount))
		Expect(mockBus.events()).To(BeEmpty())
	})

	It("should abort when the invoice cancel touches an unexpected row count", func() {
		seedExpired(1, 100, 10)
		zero := int64(0)
		mockRepo.bulkCancelCount = &zero

		err := sweeper.RunExpirySweep(ctx)

		Expect(err).To(HaveOccurred())
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeUnexpectedRowCount))
	})

	It("should abort when a usage delete loses rows", func() {
		seedExpired(1, 100, 10)
		mockPromos.usages = []*promotion.Usage{
			{ID: 1, PromotionID: 5, ClientID: 10, AppointmentID: 100},
		}
		zero := int64(0)
		mockPromos.deletedCount = &zero

		err := sweeper.RunExpirySweep(ctx)

		Expect(err).To(HaveOccurred())
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeUnexpectedRowCount))
		Expect(mockPromos.released).To(BeEmpty())
	})

	It("should abort the batch when a client row is missing", func() {
		seedExpired(1, 100, 10)
		seedExpired(2, 200, 999) // no such user

		err := sweeper.RunExpirySweep(ctx)

		Expect(err).To(HaveOccurred())
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeInconsistentState))
		Expect(mockBus.events()).To(BeEmpty())
	})

	It("should surface counter release failures", func() {
		seedExpired(1, 100, 10)
		mockPromos.usages = []*promotion.Usage{
			{ID: 1, PromotionID: 5, ClientID: 10, AppointmentID: 100},
		}
		mockPromos.releaseError = internal.NewInternalStateError("promotion counter release would underflow", internal.ErrCodeCounterUnderflow)

		err := sweeper.RunExpirySweep(ctx)

		Expect(err).To(HaveOccurred())
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Code).To(Equal(internal.ErrCodeCounterUnderflow))
	})

	It("should wrap selection failures as internal", func() {
		mockRepo.findExpiredError = errors.New("database error")

		err := sweeper.RunExpirySweep(ctx)

		Expect(err).To(HaveOccurred())
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
	})
})
