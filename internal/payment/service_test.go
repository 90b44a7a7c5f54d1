package payment_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/core/clock"
	"github.com/rizalfahlevi/booking-management/internal/invoice"
	"github.com/rizalfahlevi/booking-management/internal/payment"
	"github.com/rizalfahlevi/booking-management/internal/paymentgateway"
)

type mockGateway struct {
	createdIntents  int
	createError     error
	retrieveError   error
	canceledIntents []string
	cancelError     error

	lastMetadata paymentgateway.IntentMetadata
}

func (m *mockGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata paymentgateway.IntentMetadata) (*paymentgateway.PaymentIntent, error) {
	if m.createError != nil {
		return nil, m.createError
	}
	m.createdIntents++
	m.lastMetadata = metadata
	return &paymentgateway.PaymentIntent{
		ID:           "pi_new",
		ClientSecret: "pi_new_secret",
		Status:       "requires_payment_method",
		Amount:       amount,
		Currency:     currency,
	}, nil
}

func (m *mockGateway) RetrievePaymentIntent(ctx context.Context, intentID string) (*paymentgateway.PaymentIntent, error) {
	if m.retrieveError != nil {
		return nil, m.retrieveError
	}
	return &paymentgateway.PaymentIntent{
		ID:           intentID,
		ClientSecret: intentID + "_secret",
		Status:       "requires_payment_method",
	}, nil
}

func (m *mockGateway) CancelPaymentIntent(ctx context.Context, intentID string) error {
	if m.cancelError != nil {
		return m.cancelError
	}
	m.canceledIntents = append(m.canceledIntents, intentID)
	return nil
}

func (m *mockGateway) CreateRefund(ctx context.Context, intentID string, amount int64, reason string) (*paymentgateway.Refund, error) {
	return &paymentgateway.Refund{ID: "re_1", Amount: amount, Status: "succeeded"}, nil
}

var _ = Describe("PaymentService", func() {
	var (
		service   *payment.Service
		mockRepo  *mockPaymentRepository
		mockInvs  *mockInvoiceRepository
		mockGw    *mockGateway
		mockTx    *mockTxManager
		mockClock *clock.MockClock
		ctx       context.Context

		clientID int64
	)

	BeforeEach(func() {
		mockRepo = newMockPaymentRepository()
		mockInvs = newMockInvoiceRepository()
		mockGw = &mockGateway{}
		mockTx = &mockTxManager{}
		mockClock = clock.NewMockClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = payment.NewService(mockRepo, mockInvs, mockGw, mockTx, mockClock, "pk_test_123", logger)
		ctx = context.Background()

		clientID = 10

		mockInvs.invoices[1] = &invoice.Invoice{
			ID:            1,
			AppointmentID: 100,
			ProviderID:    20,
			ClientID:      clientID,
			TotalAmount:   100000,
			Status:        invoice.StatusPending,
		}
	})

	Describe("InitiatePayment", func() {
		It("should open a gateway intent and record a pending payment", func() {
			resp, err := service.InitiatePayment(ctx, clientID, 1)

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.PaymentID).ToNot(BeZero())
			Expect(resp.ClientSecret).To(Equal("pi_new_secret"))
			Expect(resp.PublishableKey).To(Equal("pk_test_123"))

			stored := mockRepo.payments[resp.PaymentID]
			Expect(stored.Status).To(Equal(payment.StatusPending))
			Expect(stored.ExternalID).To(Equal("pi_new"))
			Expect(stored.Amount).To(Equal(int64(100000)))

			Expect(mockGw.lastMetadata.InvoiceID).To(Equal("1"))
			Expect(mockGw.lastMetadata.AppointmentID).To(Equal("100"))
			Expect(mockGw.lastMetadata.ClientID).To(Equal("10"))
		})

		It("should reuse the open attempt instead of opening a second intent", func() {
			first, err := service.InitiatePayment(ctx, clientID, 1)
			Expect(err).ToNot(HaveOccurred())

			second, err := service.InitiatePayment(ctx, clientID, 1)

			Expect(err).ToNot(HaveOccurred())
			Expect(second.PaymentID).To(Equal(first.PaymentID))
			Expect(mockGw.createdIntents).To(Equal(1))
		})

		It("should reject another client's invoice", func() {
			_, err := service.InitiatePayment(ctx, 77, 1)

			Expect(err).To(MatchError(internal.ErrNotInvoiceOwner))
		})

		It("should reject an invoice that is not payable", func() {
			mockInvs.invoices[1].Status = invoice.StatusPaid

			_, err := service.InitiatePayment(ctx, clientID, 1)

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidStatus))
		})

		It("should surface gateway failures on intent creation", func() {
			mockGw.createError = internal.NewExternalError("payment gateway unreachable", errors.New("connection refused"))

			_, err := service.InitiatePayment(ctx, clientID, 1)

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeGatewayFailed))
		})

		It("should cancel the intent when the payment insert fails", func() {
			mockRepo.createError = errors.New("database error")

			_, err := service.InitiatePayment(ctx, clientID, 1)

			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeInternal))
			Expect(mockGw.canceledIntents).To(ConsistOf("pi_new"))
		})

		It("should hand back the attempt that won a concurrent initiate", func() {
			mockRepo.createRacer = &payment.Payment{
				InvoiceID:  1,
				ClientID:   clientID,
				ProviderID: 20,
				Amount:     100000,
				Status:     payment.StatusPending,
				ExternalID: "pi_winner",
			}

			resp, err := service.InitiatePayment(ctx, clientID, 1)

			Expect(err).ToNot(HaveOccurred())
			Expect(resp.ClientSecret).To(Equal("pi_winner_secret"))
			// the losing intent is released at the gateway
			Expect(mockGw.canceledIntents).To(ConsistOf("pi_new"))

			stored := mockRepo.payments[resp.PaymentID]
			Expect(stored.ExternalID).To(Equal("pi_winner"))
		})

		It("should return not found for a missing invoice", func() {
			_, err := service.InitiatePayment(ctx, clientID, 999)

			Expect(err).To(MatchError(internal.ErrInvoiceNotFound))
		})
	})

	Describe("GetByID", func() {
		BeforeEach(func() {
			Expect(mockRepo.Create(nil, &payment.Payment{
				InvoiceID:  1,
				ClientID:   clientID,
				ProviderID: 20,
				Amount:     100000,
				Status:     payment.StatusPending,
				ExternalID: "pi_123",
			})).To(Succeed())
		})

		It("should return the payment to either party", func() {
			p, err := service.GetByID(ctx, clientID, 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.ID).To(Equal(int64(1)))

			p, err = service.GetByID(ctx, 20, 1)
			Expect(err).ToNot(HaveOccurred())
			Expect(p.ID).To(Equal(int64(1)))
		})

		It("should hide the payment from outsiders", func() {
			_, err := service.GetByID(ctx, 77, 1)

			Expect(err).To(MatchError(internal.ErrNotAppointmentParty))
		})
	})
})
