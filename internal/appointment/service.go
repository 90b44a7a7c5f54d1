package appointment

import (
	"context"
	"log/slog"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/auth"
	"github.com/rizalfahlevi/booking-management/internal/catalog"
	"github.com/rizalfahlevi/booking-management/internal/core/clock"
	"github.com/rizalfahlevi/booking-management/internal/core/database"
	"github.com/rizalfahlevi/booking-management/internal/core/events"
	"gorm.io/gorm"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service owns appointment booking and the role-gated status transitions.
type Service struct {
	repo        RepositoryAPI
	catalogRepo catalog.RepositoryAPI
	txManager   database.TxManager
	eventBus    EventPublisher
	clock       clock.Clock
	logger      *slog.Logger
}

func NewService(repo RepositoryAPI, catalogRepo catalog.RepositoryAPI, txManager database.TxManager, eventBus EventPublisher, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		catalogRepo: catalogRepo,
		txManager:   txManager,
		eventBus:    eventBus,
		clock:       clk,
		logger:      logger,
	}
}

// CreateAppointment books a PENDING appointment for the client. The collision
// check and insert share one transaction so two bookings for the same slot
// cannot both pass the window check.
func (s *Service) CreateAppointment(ctx context.Context, clientID int64, dto CreateAppointmentDTO) (*Appointment, error) {
	now := s.clock.Now()
	if err := dto.Validate(now); err != nil {
		s.logger.Error("appointment validation failed", "error", err, "client_id", clientID)
		return nil, err
	}

	var created *Appointment
	err := s.txManager.Do(ctx, func(tx *gorm.DB) error {
		svc, err := s.catalogRepo.GetByID(tx, dto.ServiceID)
		if err != nil {
			return err
		}
		if svc.ProviderID != dto.ProviderID || !svc.IsBookable() {
			return internal.ErrServiceNotFound
		}

		collisions, err := s.repo.CountCollisions(tx, clientID, dto.AppointmentTime, 0)
		if err != nil {
			return internal.NewInternalError("check booking collisions", err)
		}
		if collisions > 0 {
			return internal.ErrTimeSlotTaken
		}

		created = &Appointment{
			ClientID:        clientID,
			ProviderID:      dto.ProviderID,
			ServiceID:       dto.ServiceID,
			AppointmentTime: dto.AppointmentTime,
			Status:          StatusPending,
			PaymentStatus:   PaymentStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return s.repo.Create(tx, created)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment created",
		"appointment_id", created.ID,
		"client_id", clientID,
		"provider_id", dto.ProviderID,
		"appointment_time", dto.AppointmentTime)

	return created, nil
}

// UpdateStatus applies one transition from the role-gated table. The party
// check runs before the table so an outsider sees Forbidden, not the shape
// of the transition rules.
func (s *Service) UpdateStatus(ctx context.Context, actor *auth.Actor, appointmentID int64, dto UpdateStatusDTO) (*Appointment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var updated *Appointment
	err := s.txManager.Do(ctx, func(tx *gorm.DB) error {
		appt, err := s.repo.GetByID(tx, appointmentID)
		if err != nil {
			return err
		}

		if !appt.IsParty(actor.UserID) {
			return internal.ErrNotAppointmentParty
		}

		if err := ValidateTransition(actor.Role, appt.Status, dto.Status); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":     dto.Status,
			"updated_at": s.clock.Now(),
		}
		if dto.Status == StatusCanceled {
			canceledAt := s.clock.Now()
			updates["canceled_at"] = canceledAt
			updates["rejected_by"] = actor.UserID
			if dto.CancelReason != nil {
				updates["cancel_reason"] = *dto.CancelReason
			}
		}

		affected, err := s.repo.UpdateStatusGuarded(tx, appointmentID, appt.Status, updates)
		if err != nil {
			return internal.NewInternalError("update appointment status", err)
		}
		if affected == 0 {
			// another transaction moved the appointment first
			return internal.NewConflictError("appointment was modified concurrently", internal.ErrCodeConcurrentUpdate)
		}

		updated, err = s.repo.GetByID(tx, appointmentID)
		return err
	})
	if err != nil {
		s.logger.Error("appointment status update failed",
			"error", err,
			"appointment_id", appointmentID,
			"actor_id", actor.UserID,
			"target_status", dto.Status)
		return nil, err
	}

	s.logger.Info("appointment status updated",
		"appointment_id", appointmentID,
		"status", updated.Status,
		"actor_id", actor.UserID)

	s.publishStatusChange(ctx, updated, actor.UserID, dto)

	return updated, nil
}

// Reschedule moves the appointment time and resets status to PENDING so the
// provider has to confirm again. Only non-terminal appointments qualify.
func (s *Service) Reschedule(ctx context.Context, actor *auth.Actor, appointmentID int64, dto RescheduleDTO) (*Appointment, error) {
	now := s.clock.Now()
	if err := dto.Validate(now); err != nil {
		return nil, err
	}

	var updated *Appointment
	err := s.txManager.Do(ctx, func(tx *gorm.DB) error {
		appt, err := s.repo.GetByID(tx, appointmentID)
		if err != nil {
			return err
		}

		if !appt.IsParty(actor.UserID) {
			return internal.ErrNotAppointmentParty
		}
		if !appt.IsReschedulable() {
			return internal.NewInvalidStatusError("only pending or confirmed appointments can be rescheduled")
		}

		collisions, err := s.repo.CountCollisions(tx, appt.ClientID, dto.AppointmentTime, appointmentID)
		if err != nil {
			return internal.NewInternalError("check booking collisions", err)
		}
		if collisions > 0 {
			return internal.ErrTimeSlotTaken
		}

		updates := map[string]interface{}{
			"appointment_time": dto.AppointmentTime,
			"status":           StatusPending,
			"updated_at":       now,
		}
		affected, err := s.repo.UpdateStatusGuarded(tx, appointmentID, appt.Status, updates)
		if err != nil {
			return internal.NewInternalError("reschedule appointment", err)
		}
		if affected == 0 {
			return internal.NewConflictError("appointment was modified concurrently", internal.ErrCodeConcurrentUpdate)
		}

		updated, err = s.repo.GetByID(tx, appointmentID)
		return err
	})
	if err != nil {
		s.logger.Error("appointment reschedule failed",
			"error", err,
			"appointment_id", appointmentID,
			"actor_id", actor.UserID)
		return nil, err
	}

	s.logger.Info("appointment rescheduled",
		"appointment_id", appointmentID,
		"appointment_time", updated.AppointmentTime,
		"actor_id", actor.UserID)

	return updated, nil
}

// GetByID returns the appointment if the actor is a party on it.
func (s *Service) GetByID(ctx context.Context, actor *auth.Actor, appointmentID int64) (*Appointment, error) {
	appt, err := s.repo.GetByID(nil, appointmentID)
	if err != nil {
		return nil, err
	}
	if !appt.IsParty(actor.UserID) {
		return nil, internal.ErrNotAppointmentParty
	}
	return appt, nil
}

// ListForActor returns appointments where the actor is client or provider.
func (s *Service) ListForActor(ctx context.Context, actor *auth.Actor, limit, offset int) ([]*Appointment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByParty(nil, actor.UserID, limit, offset)
}

// Confirmation and cancellation notify the counterpart party. Publish is
// async and handler failures only log, so a dead mail sink never rolls back
// the transition.
func (s *Service) publishStatusChange(ctx context.Context, appt *Appointment, actorID int64, dto UpdateStatusDTO) {
	var eventType string
	switch appt.Status {
	case StatusConfirmed:
		eventType = events.EventTypeAppointmentConfirmed
	case StatusCanceled:
		eventType = events.EventTypeAppointmentCanceled
	default:
		return
	}

	reason := ""
	if dto.CancelReason != nil {
		reason = *dto.CancelReason
	}

	event := events.NewAppointmentStatusEvent(eventType, appt.ID, actorID, appt.CounterpartID(actorID), appt.Status, reason, appt.AppointmentTime)
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish appointment status event",
			"error", err,
			"appointment_id", appt.ID,
			"event_type", eventType)
	}
}
