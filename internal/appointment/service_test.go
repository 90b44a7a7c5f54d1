package appointment_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/appointment"
	"github.com/rizalfahlevi/booking-management/internal/auth"
	"github.com/rizalfahlevi/booking-management/internal/catalog"
	"github.com/rizalfahlevi/booking-management/internal/core/clock"
	"github.com/rizalfahlevi/booking-management/internal/core/database"
	"github.com/rizalfahlevi/booking-management/internal/core/events"
)

type mockAppointmentRepository struct {
	appointments map[int64]*appointment.Appointment
	nextID       int64

	collisionCount int64
	collisionError error
	createError    error
	getError       error
	updateError    error
	updateAffected *int64
}

func newMockAppointmentRepository() *mockAppointmentRepository {
	return &mockAppointmentRepository{
		appointments: make(map[int64]*appointment.Appointment),
		nextID:       1,
	}
}

func (m *mockAppointmentRepository) Create(tx *gorm.DB, appt *appointment.Appointment) error {
	if m.createError != nil {
		return m.createError
	}
	appt.ID = m.nextID
	m.nextID++
	copied := *appt
	m.appointments[appt.ID] = &copied
	return nil
}

func (m *mockAppointmentRepository) GetByID(tx *gorm.DB, id int64) (*appointment.Appointment, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	appt, ok := m.appointments[id]
	if !ok {
		return nil, internal.ErrAppointmentNotFound
	}
	copied := *appt
	return &copied, nil
}

func (m *mockAppointmentRepository) ListByParty(tx *gorm.DB, userID int64, limit, offset int) ([]*appointment.Appointment, error) {
	var result []*appointment.Appointment
	for _, appt := range m.appointments {
		if appt.IsParty(userID) {
			copied := *appt
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *mockAppointmentRepository) CountCollisions(tx *gorm.DB, clientID int64, t time.Time, excludeID int64) (int64, error) {
	if m.collisionError != nil {
		return 0, m.collisionError
	}
	return m.collisionCount, nil
}

func (m *mockAppointmentRepository) UpdateStatusGuarded(tx *gorm.DB, id int64, current string, updates map[string]interface{}) (int64, error) {
	if m.updateError != nil {
		return 0, m.updateError
	}
	if m.updateAffected != nil {
		return *m.updateAffected, nil
	}
	appt, ok := m.appointments[id]
	if !ok || appt.Status != current {
		return 0, nil
	}
	if status, ok := updates["status"].(string); ok {
		appt.Status = status
	}
	if t, ok := updates["appointment_time"].(time.Time); ok {
		appt.AppointmentTime = t
	}
	if reason, ok := updates["cancel_reason"].(string); ok {
		appt.CancelReason = &reason
	}
	if rejectedBy, ok := updates["rejected_by"].(int64); ok {
		appt.RejectedBy = &rejectedBy
	}
	if canceledAt, ok := updates["canceled_at"].(time.Time); ok {
		appt.CanceledAt = &canceledAt
	}
	if updatedAt, ok := updates["updated_at"].(time.Time); ok {
		appt.UpdatedAt = updatedAt
	}
	return 1, nil
}

func (m *mockAppointmentRepository) BulkCancelForExpiry(tx *gorm.DB, ids []int64, canceledAt time.Time, reason string) (int64, error) {
	return int64(len(ids)), nil
}

func (m *mockAppointmentRepository) UpdatePaymentStatusGuarded(tx *gorm.DB, id int64, current, target string) (int64, error) {
	appt, ok := m.appointments[id]
	if !ok || appt.PaymentStatus != current {
		return 0, nil
	}
	appt.PaymentStatus = target
	return 1, nil
}

type mockCatalogRepository struct {
	services map[int64]*catalog.Service
	getError error
}

func newMockCatalogRepository() *mockCatalogRepository {
	return &mockCatalogRepository{services: make(map[int64]*catalog.Service)}
}

func (m *mockCatalogRepository) GetAll() ([]*catalog.Service, error) {
	var result []*catalog.Service
	for _, svc := range m.services {
		result = append(result, svc)
	}
	return result, nil
}

func (m *mockCatalogRepository) GetByID(tx *gorm.DB, id int64) (*catalog.Service, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	svc, ok := m.services[id]
	if !ok {
		return nil, internal.ErrServiceNotFound
	}
	return svc, nil
}

type mockTxManager struct {
	doError error
}

func (m *mockTxManager) Do(ctx context.Context, fn database.TxFunc) error {
	if m.doError != nil {
		return m.doError
	}
	return fn(nil)
}

type mockEventPublisher struct {
	mu           sync.Mutex
	published    []events.Event
	publishError error
}

func (m *mockEventPublisher) Publish(ctx context.Context, event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	m.published = append(m.published, event)
	return nil
}

func (m *mockEventPublisher) events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.published...)
}

var _ = Describe("AppointmentService", func() {
	var (
		service     *appointment.Service
		mockRepo    *mockAppointmentRepository
		mockCatalog *mockCatalogRepository
		mockTx      *mockTxManager
		mockBus     *mockEventPublisher
		mockClock   *clock.MockClock
		ctx         context.Context

		client   *auth.Actor
		provider *auth.Actor
		now      time.Time
	)

	BeforeEach(func() {
		mockRepo = newMockAppointmentRepository()
		mockCatalog = newMockCatalogRepository()
		mockTx = &mockTxManager{}
		mockBus = &mockEventPublisher{}
		now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
		mockClock = clock.NewMockClock(now)
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = appointment.NewService(mockRepo, mockCatalog, mockTx, mockBus, mockClock, logger)
		ctx = context.Background()

		client = &auth.Actor{UserID: 10, Email: "sari@mail.com", Role: auth.RoleClient}
		provider = &auth.Actor{UserID: 20, Email: "budi@mail.com", Role: auth.RoleProvider}

		mockCatalog.services[1] = &catalog.Service{
			ID:         1,
			ProviderID: provider.UserID,
			Name:       "Haircut",
			Price:      150000,
			IsActive:   true,
		}
	})

	Describe("CreateAppointment", func() {
		var dto appointment.CreateAppointmentDTO

		BeforeEach(func() {
			dto = appointment.CreateAppointmentDTO{
				ProviderID:      provider.UserID,
				ServiceID:       1,
				AppointmentTime: now.Add(48 * time.Hour),
			}
		})

		It("should create a pending appointment with pending payment status", func() {
			// When creating a valid appointment
			created, err := service.CreateAppointment(ctx, client.UserID, dto)

			// Then it starts in pending/pending
			Expect(err).ToNot(HaveOccurred())
			Expect(created.ID).ToNot(BeZero())
			Expect(created.Status).To(Equal(appointment.StatusPending))
			Expect(created.PaymentStatus).To(Equal(appointment.PaymentStatusPending))
			Expect(created.ClientID).To(Equal(client.UserID))
			Expect(created.ProviderID).To(Equal(provider.UserID))
		})

		It("should reject an appointment time in the past", func() {
			dto.AppointmentTime = now.Add(-time.Hour)

			_, err := service.CreateAppointment(ctx, client.UserID, dto)

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("should reject a service that belongs to another provider", func() {
			// Given the service's provider differs from the requested one
			dto.ProviderID = 99

			_, err := service.CreateAppointment(ctx, client.UserID, dto)

			Expect(err).To(MatchError(internal.ErrServiceNotFound))
		})

		It("should reject an inactive service", func() {
			mockCatalog.services[1].IsActive = false

			_, err := service.CreateAppointment(ctx, client.UserID, dto)

			Expect(err).To(MatchError(internal.ErrServiceNotFound))
		})

		It("should reject a colliding time slot", func() {
			// Given another booking sits inside the collision window
			mockRepo.collisionCount = 1

			_, err := service.CreateAppointment(ctx, client.UserID, dto)

			Expect(err).To(MatchError(internal.ErrTimeSlotTaken))
		})

		It("should return internal error when the collision check fails", func() {
			mockRepo.collisionError = errors.New("database error")

			_, err := service.CreateAppointment(ctx, client.UserID, dto)

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
		})
	})

	Describe("UpdateStatus", func() {
		var appt *appointment.Appointment

		BeforeEach(func() {
			appt = &appointment.Appointment{
				ClientID:        client.UserID,
				ProviderID:      provider.UserID,
				ServiceID:       1,
				AppointmentTime: now.Add(48 * time.Hour),
				Status:          appointment.StatusPending,
				PaymentStatus:   appointment.PaymentStatusPending,
			}
			Expect(mockRepo.Create(nil, appt)).To(Succeed())
		})

		It("should let the provider confirm a pending appointment", func() {
			updated, err := service.UpdateStatus(ctx, provider, appt.ID, appointment.UpdateStatusDTO{
				Status: appointment.StatusConfirmed,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Status).To(Equal(appointment.StatusConfirmed))
		})

		It("should reject the client confirming their own appointment", func() {
			_, err := service.UpdateStatus(ctx, client, appt.ID, appointment.UpdateStatusDTO{
				Status: appointment.StatusConfirmed,
			})

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidTransition))
		})

		It("should return forbidden for an outsider before any transition check", func() {
			// Given an actor who is not a party on the appointment, asking
			// for a transition that would also be invalid
			outsider := &auth.Actor{UserID: 77, Role: auth.RoleProvider}

			_, err := service.UpdateStatus(ctx, outsider, appt.ID, appointment.UpdateStatusDTO{
				Status: appointment.StatusCompleted,
			})

			// Then the party check wins over the transition table
			Expect(err).To(MatchError(internal.ErrNotAppointmentParty))
		})

		It("should capture cancel metadata when canceling", func() {
			reason := "client asked to cancel"

			updated, err := service.UpdateStatus(ctx, client, appt.ID, appointment.UpdateStatusDTO{
				Status:       appointment.StatusCanceled,
				CancelReason: &reason,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(updated.Status).To(Equal(appointment.StatusCanceled))
			Expect(updated.CancelReason).ToNot(BeNil())
			Expect(*updated.CancelReason).To(Equal(reason))
			Expect(updated.RejectedBy).ToNot(BeNil())
			Expect(*updated.RejectedBy).To(Equal(client.UserID))
			Expect(updated.CanceledAt).ToNot(BeNil())
			Expect(*updated.CanceledAt).To(Equal(now))
		})

		It("should publish a status event to the counterpart on confirmation", func() {
			_, err := service.UpdateStatus(ctx, provider, appt.ID, appointment.UpdateStatusDTO{
				Status: appointment.StatusConfirmed,
			})
			Expect(err).ToNot(HaveOccurred())

			published := mockBus.events()
			Expect(published).To(HaveLen(1))
			Expect(published[0].EventType()).To(Equal(events.EventTypeAppointmentConfirmed))

			statusEvent, ok := published[0].(*events.AppointmentStatusEvent)
			Expect(ok).To(BeTrue())
			Expect(statusEvent.RecipientUserID).To(Equal(client.UserID))
			Expect(statusEvent.ActorUserID).To(Equal(provider.UserID))
		})

		It("should not publish when completing an appointment", func() {
			appt.Status = appointment.StatusConfirmed
			mockRepo.appointments[appt.ID].Status = appointment.StatusConfirmed

			_, err := service.UpdateStatus(ctx, provider, appt.ID, appointment.UpdateStatusDTO{
				Status: appointment.StatusCompleted,
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(mockBus.events()).To(BeEmpty())
		})

		It("should return conflict when the row was moved concurrently", func() {
			// Given the guarded update matches no rows
			zero := int64(0)
			mockRepo.updateAffected = &zero

			_, err := service.UpdateStatus(ctx, provider, appt.ID, appointment.UpdateStatusDTO{
				Status: appointment.StatusConfirmed,
			})

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeConcurrentUpdate))
		})

		It("should return not found for a missing appointment", func() {
			_, err := service.UpdateStatus(ctx, provider, 999, appointment.UpdateStatusDTO{
				Status: appointment.StatusConfirmed,
			})

			Expect(err).To(MatchError(internal.ErrAppointmentNotFound))
		})
	})

	Describe("Reschedule", func() {
		var appt *appointment.Appointment

		BeforeEach(func() {
			appt = &appointment.Appointment{
				ClientID:        client.UserID,
				ProviderID:      provider.UserID,
				ServiceID:       1,
				AppointmentTime: now.Add(48 * time.Hour),
				Status:          appointment.StatusConfirmed,
				PaymentStatus:   appointment.PaymentStatusPending,
			}
			Expect(mockRepo.Create(nil, appt)).To(Succeed())
		})

		It("should move the time and reset status to pending", func() {
			newTime := now.Add(72 * time.Hour)

			updated, err := service.Reschedule(ctx, client, appt.ID, appointment.RescheduleDTO{
				AppointmentTime: newTime,
			})

			// Then the provider must confirm again
			Expect(err).ToNot(HaveOccurred())
			Expect(updated.AppointmentTime).To(Equal(newTime))
			Expect(updated.Status).To(Equal(appointment.StatusPending))
		})

		It("should reject rescheduling a completed appointment", func() {
			mockRepo.appointments[appt.ID].Status = appointment.StatusCompleted

			_, err := service.Reschedule(ctx, client, appt.ID, appointment.RescheduleDTO{
				AppointmentTime: now.Add(72 * time.Hour),
			})

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidStatus))
		})

		It("should reject a colliding new slot", func() {
			mockRepo.collisionCount = 1

			_, err := service.Reschedule(ctx, client, appt.ID, appointment.RescheduleDTO{
				AppointmentTime: now.Add(72 * time.Hour),
			})

			Expect(err).To(MatchError(internal.ErrTimeSlotTaken))
		})
	})

	Describe("GetByID", func() {
		It("should hide other users' appointments", func() {
			appt := &appointment.Appointment{
				ClientID:        client.UserID,
				ProviderID:      provider.UserID,
				ServiceID:       1,
				AppointmentTime: now.Add(48 * time.Hour),
				Status:          appointment.StatusPending,
			}
			Expect(mockRepo.Create(nil, appt)).To(Succeed())

			outsider := &auth.Actor{UserID: 77, Role: auth.RoleClient}
			_, err := service.GetByID(ctx, outsider, appt.ID)

			Expect(err).To(MatchError(internal.ErrNotAppointmentParty))
		})
	})
})
