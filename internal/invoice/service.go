package invoice

import (
	"context"
	"log/slog"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/appointment"
	"github.com/rizalfahlevi/booking-management/internal/catalog"
	"github.com/rizalfahlevi/booking-management/internal/core/clock"
	"github.com/rizalfahlevi/booking-management/internal/core/database"
	"github.com/rizalfahlevi/booking-management/internal/core/events"
	"github.com/rizalfahlevi/booking-management/internal/promotion"
	"gorm.io/gorm"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// PromotionRedeemer is the slice of the promotion service the orchestrator
// needs: resolve codes up front, consume capacity inside the transaction.
type PromotionRedeemer interface {
	ResolveCodes(tx *gorm.DB, codes []string, clientID, providerID int64) ([]*promotion.Promotion, error)
	RedeemAll(tx *gorm.DB, promotions []*promotion.Promotion, clientID, appointmentID int64) error
}

// Service issues invoices for completed appointments. Promotion redemption,
// usage records, and the invoice insert commit atomically; either the full
// discount set applies or none of it does.
type Service struct {
	repo       RepositoryAPI
	apptRepo   appointment.RepositoryAPI
	catalog    catalog.RepositoryAPI
	promotions PromotionRedeemer
	txManager  database.TxManager
	eventBus   EventPublisher
	clock      clock.Clock
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, apptRepo appointment.RepositoryAPI, catalogRepo catalog.RepositoryAPI, promotions PromotionRedeemer, txManager database.TxManager, eventBus EventPublisher, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		apptRepo:   apptRepo,
		catalog:    catalogRepo,
		promotions: promotions,
		txManager:  txManager,
		eventBus:   eventBus,
		clock:      clk,
		logger:     logger,
	}
}

// CreateInvoice computes the discounted total and opens a PENDING invoice
// due 24 hours from issue. A tryRedeem failure on any supplied code rolls
// back every redemption taken so far; partial discounts never commit.
func (s *Service) CreateInvoice(ctx context.Context, clientID int64, dto CreateInvoiceDTO) (*Invoice, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()

	var created *Invoice
	err := s.txManager.Do(ctx, func(tx *gorm.DB) error {
		appt, err := s.apptRepo.GetByID(tx, dto.AppointmentID)
		if err != nil {
			return err
		}
		if appt.ClientID != clientID {
			return internal.ErrNotAppointmentParty
		}
		if appt.Status != appointment.StatusCompleted {
			return internal.NewInvalidStatusError("invoice can only be issued for a completed appointment")
		}

		exists, err := s.repo.ExistsForAppointment(tx, dto.AppointmentID)
		if err != nil {
			return internal.NewInternalError("check existing invoice", err)
		}
		if exists {
			return internal.ErrInvoiceAlreadyExists
		}

		svc, err := s.catalog.GetByID(tx, appt.ServiceID)
		if err != nil {
			return err
		}
		basePrice := svc.Price

		var discountPercent float64
		if len(dto.PromotionCodes) > 0 {
			promos, err := s.promotions.ResolveCodes(tx, dto.PromotionCodes, clientID, appt.ProviderID)
			if err != nil {
				return err
			}
			if err := s.promotions.RedeemAll(tx, promos, clientID, appt.ID); err != nil {
				return err
			}
			for _, promo := range promos {
				discountPercent += promo.DiscountPercent
			}
		}

		created = &Invoice{
			AppointmentID: appt.ID,
			ProviderID:    appt.ProviderID,
			ClientID:      clientID,
			TotalAmount:   applyDiscount(basePrice, discountPercent),
			Status:        StatusPending,
			IssuedDate:    now,
			DueDate:       now.Add(PaymentDeadline),
		}
		return s.repo.Create(tx, created)
	})
	if err != nil {
		s.logger.Error("invoice issuance failed",
			"error", err,
			"appointment_id", dto.AppointmentID,
			"client_id", clientID)
		return nil, err
	}

	s.logger.Info("invoice issued",
		"invoice_id", created.ID,
		"appointment_id", created.AppointmentID,
		"total_amount", created.TotalAmount,
		"due_date", created.DueDate)

	event := events.NewInvoiceCreatedEvent(created.ID, created.AppointmentID, created.ClientID, created.TotalAmount, created.DueDate)
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish invoice created event", "error", err, "invoice_id", created.ID)
	}

	return created, nil
}

// GetByID returns the invoice if the actor is the client or provider on it.
func (s *Service) GetByID(ctx context.Context, userID, invoiceID int64) (*Invoice, error) {
	inv, err := s.repo.GetByID(nil, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.ClientID != userID && inv.ProviderID != userID {
		return nil, internal.ErrNotInvoiceOwner
	}
	return inv, nil
}

// applyDiscount caps the summed percentage at 100 so the total never goes
// negative.
func applyDiscount(basePrice int64, discountPercent float64) int64 {
	if discountPercent <= 0 {
		return basePrice
	}
	if discountPercent > 100 {
		discountPercent = 100
	}
	discount := int64(float64(basePrice) * discountPercent / 100)
	total := basePrice - discount
	if total < 0 {
		return 0
	}
	return total
}
