package payment

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/core/clock"
	"github.com/rizalfahlevi/booking-management/internal/core/database"
	"github.com/rizalfahlevi/booking-management/internal/invoice"
	"github.com/rizalfahlevi/booking-management/internal/paymentgateway"
	"gorm.io/gorm"
)

const paymentCurrency = "idr"

// GatewayAPI is the synchronous surface of the card-payment gateway.
type GatewayAPI interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata paymentgateway.IntentMetadata) (*paymentgateway.PaymentIntent, error)
	RetrievePaymentIntent(ctx context.Context, intentID string) (*paymentgateway.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
	CreateRefund(ctx context.Context, intentID string, amount int64, reason string) (*paymentgateway.Refund, error)
}

// Service starts payment attempts against issued invoices.
type Service struct {
	repo           RepositoryAPI
	invoiceRepo    invoice.RepositoryAPI
	gateway        GatewayAPI
	txManager      database.TxManager
	clock          clock.Clock
	publishableKey string
	logger         *slog.Logger
}

func NewService(repo RepositoryAPI, invoiceRepo invoice.RepositoryAPI, gateway GatewayAPI, txManager database.TxManager, clk clock.Clock, publishableKey string, logger *slog.Logger) *Service {
	return &Service{
		repo:           repo,
		invoiceRepo:    invoiceRepo,
		gateway:        gateway,
		txManager:      txManager,
		clock:          clk,
		publishableKey: publishableKey,
		logger:         logger,
	}
}

// InitiatePayment opens a gateway payment intent for the invoice. If a
// PENDING payment already exists its intent is retrieved instead of opening
// a second one, so repeated calls are idempotent. A DB failure after intent
// creation triggers a best-effort cancel of the gateway-side resource.
func (s *Service) InitiatePayment(ctx context.Context, clientID, invoiceID int64) (*InitiatePaymentResponse, error) {
	inv, err := s.invoiceRepo.GetByID(nil, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.ClientID != clientID {
		return nil, internal.ErrNotInvoiceOwner
	}
	if !inv.IsPayable() {
		return nil, internal.NewInvalidStatusError("invoice is not payable in its current status")
	}

	existing, err := s.repo.GetPendingByInvoiceID(nil, invoiceID)
	if err == nil {
		return s.reusePending(ctx, existing)
	}
	if appErr, ok := internal.IsAppError(err); !ok || appErr.Code != internal.ErrCodePaymentNotFound {
		return nil, err
	}

	metadata := paymentgateway.IntentMetadata{
		InvoiceID:     strconv.FormatInt(inv.ID, 10),
		AppointmentID: strconv.FormatInt(inv.AppointmentID, 10),
		ClientID:      strconv.FormatInt(inv.ClientID, 10),
		ProviderID:    strconv.FormatInt(inv.ProviderID, 10),
	}
	intent, err := s.gateway.CreatePaymentIntent(ctx, inv.TotalAmount, paymentCurrency, metadata)
	if err != nil {
		return nil, err
	}

	created := &Payment{
		InvoiceID:     inv.ID,
		AppointmentID: inv.AppointmentID,
		ClientID:      inv.ClientID,
		ProviderID:    inv.ProviderID,
		Amount:        inv.TotalAmount,
		Status:        StatusPending,
		ExternalID:    intent.ID,
	}
	err = s.txManager.Do(ctx, func(tx *gorm.DB) error {
		return s.repo.Create(tx, created)
	})
	if err != nil {
		s.logger.Error("payment record insert failed, canceling gateway intent",
			"error", err,
			"invoice_id", invoiceID,
			"intent_id", intent.ID)
		if cancelErr := s.gateway.CancelPaymentIntent(ctx, intent.ID); cancelErr != nil {
			s.logger.Error("best-effort intent cancel failed",
				"error", cancelErr,
				"intent_id", intent.ID)
		}
		// the partial unique index on pending payments means a duplicate here
		// is a concurrent initiate that won the insert; hand back its attempt
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, winnerErr := s.repo.GetPendingByInvoiceID(nil, invoiceID)
			if winnerErr != nil {
				return nil, internal.NewInternalError("load concurrent payment attempt", winnerErr)
			}
			return s.reusePending(ctx, winner)
		}
		return nil, internal.NewInternalError("create payment record", err)
	}

	s.logger.Info("payment initiated",
		"payment_id", created.ID,
		"invoice_id", invoiceID,
		"intent_id", intent.ID,
		"amount", inv.TotalAmount)

	return &InitiatePaymentResponse{
		PaymentID:      created.ID,
		ClientSecret:   intent.ClientSecret,
		PublishableKey: s.publishableKey,
	}, nil
}

// reusePending retrieves the intent behind an open payment attempt and
// answers with it, keeping at most one attempt live per invoice.
func (s *Service) reusePending(ctx context.Context, existing *Payment) (*InitiatePaymentResponse, error) {
	intent, err := s.gateway.RetrievePaymentIntent(ctx, existing.ExternalID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reusing pending payment attempt",
		"payment_id", existing.ID,
		"invoice_id", existing.InvoiceID,
		"intent_id", intent.ID)
	return &InitiatePaymentResponse{
		PaymentID:      existing.ID,
		ClientSecret:   intent.ClientSecret,
		PublishableKey: s.publishableKey,
	}, nil
}

// GetByID returns the payment if the actor is the client or provider on it.
func (s *Service) GetByID(ctx context.Context, userID, paymentID int64) (*Payment, error) {
	p, err := s.repo.GetByID(nil, paymentID)
	if err != nil {
		return nil, err
	}
	if p.ClientID != userID && p.ProviderID != userID {
		return nil, internal.ErrNotAppointmentParty
	}
	return p, nil
}
