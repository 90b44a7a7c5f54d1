package invoice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/appointment"
	"github.com/rizalfahlevi/booking-management/internal/core/clock"
	"github.com/rizalfahlevi/booking-management/internal/core/database"
	"github.com/rizalfahlevi/booking-management/internal/core/events"
	"github.com/rizalfahlevi/booking-management/internal/promotion"
	"github.com/rizalfahlevi/booking-management/internal/user"
	"gorm.io/gorm"
)

const expiryBatchLimit = 500

const expiryCancelReason = "invoice not paid before due date"

// PaymentFailer fails any payment rows tied to the expiring invoices. A
// batch legitimately has zero payments when the client never attempted one.
type PaymentFailer interface {
	BulkFailByInvoiceIDs(tx *gorm.DB, invoiceIDs []int64, reason string) (int64, error)
}

// PromotionReleaser reverses redemptions taken at issuance time.
type PromotionReleaser interface {
	ListUsagesByAppointmentIDs(tx *gorm.DB, appointmentIDs []int64) ([]*promotion.Usage, error)
	DeleteUsages(tx *gorm.DB, usageIDs []int64) (int64, error)
	Release(tx *gorm.DB, promotionID int64, count int64) error
}

// ExpirySweeper cancels unpaid invoices past their due date and unwinds
// every side effect of issuance in one batch transaction. The sweep is
// re-entrant: a failed batch rolls back whole and gets re-selected on the
// next run.
type ExpirySweeper struct {
	repo       RepositoryAPI
	apptRepo   appointment.RepositoryAPI
	payments   PaymentFailer
	promotions PromotionReleaser
	users      user.RepositoryAPI
	txManager  database.TxManager
	eventBus   EventPublisher
	clock      clock.Clock
	logger     *slog.Logger
}

func NewExpirySweeper(repo RepositoryAPI, apptRepo appointment.RepositoryAPI, payments PaymentFailer, promotions PromotionReleaser, users user.RepositoryAPI, txManager database.TxManager, eventBus EventPublisher, clk clock.Clock, logger *slog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		repo:       repo,
		apptRepo:   apptRepo,
		payments:   payments,
		promotions: promotions,
		users:      users,
		txManager:  txManager,
		eventBus:   eventBus,
		clock:      clk,
		logger:     logger,
	}
}

// RunExpirySweep selects all PENDING invoices past due and compensates them
// as one batch. Bulk updates are checked against the expected row counts;
// any mismatch aborts the whole batch rather than committing a partial
// compensation.
func (s *ExpirySweeper) RunExpirySweep(ctx context.Context) error {
	now := s.clock.Now()

	var expiredEvents []*events.InvoiceExpiredEvent
	err := s.txManager.Do(ctx, func(tx *gorm.DB) error {
		expired, err := s.repo.FindExpiredPending(tx, now, expiryBatchLimit)
		if err != nil {
			return internal.NewInternalError("select expired invoices", err)
		}
		if len(expired) == 0 {
			return nil
		}

		invoiceIDs := make([]int64, len(expired))
		appointmentIDs := make([]int64, len(expired))
		clientIDs := make([]int64, len(expired))
		for i, inv := range expired {
			invoiceIDs[i] = inv.ID
			appointmentIDs[i] = inv.AppointmentID
			clientIDs[i] = inv.ClientID
		}

		affected, err := s.apptRepo.BulkCancelForExpiry(tx, appointmentIDs, now, expiryCancelReason)
		if err != nil {
			return internal.NewInternalError("cancel expired appointments", err)
		}
		if affected != int64(len(appointmentIDs)) {
			return internal.NewInternalStateError(
				fmt.Sprintf("appointment cancel touched %d rows, expected %d", affected, len(appointmentIDs)),
				internal.ErrCodeUnexpectedRowCount)
		}

		affected, err = s.repo.BulkCancel(tx, invoiceIDs)
		if err != nil {
			return internal.NewInternalError("cancel expired invoices", err)
		}
		if affected != int64(len(invoiceIDs)) {
			return internal.NewInternalStateError(
				fmt.Sprintf("invoice cancel touched %d rows, expected %d", affected, len(invoiceIDs)),
				internal.ErrCodeUnexpectedRowCount)
		}

		// zero payments is fine, the client may never have started one
		if _, err := s.payments.BulkFailByInvoiceIDs(tx, invoiceIDs, expiryCancelReason); err != nil {
			return internal.NewInternalError("fail payments for expired invoices", err)
		}

		if err := s.releasePromotions(tx, appointmentIDs); err != nil {
			return err
		}

		// recipients resolved inside the transaction: a missing client row
		// is a data-integrity problem that has to abort the compensation
		clients, err := s.users.GetByIDs(tx, clientIDs)
		if err != nil {
			return internal.NewInternalError("load clients for expiry notifications", err)
		}
		for _, inv := range expired {
			client, ok := clients[inv.ClientID]
			if !ok {
				return internal.NewInternalStateError(
					fmt.Sprintf("client %d missing for expired invoice %d", inv.ClientID, inv.ID),
					internal.ErrCodeInconsistentState)
			}
			expiredEvents = append(expiredEvents, events.NewInvoiceExpiredEvent(inv.ID, inv.AppointmentID, inv.ClientID, client.Email))
		}

		return nil
	})
	if err != nil {
		s.logger.Error("expiry sweep failed, batch rolled back", "error", err)
		return err
	}

	if len(expiredEvents) == 0 {
		return nil
	}

	s.logger.Info("expiry sweep compensated invoices", "count", len(expiredEvents))

	for _, event := range expiredEvents {
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish invoice expired event", "error", err, "invoice_id", event.InvoiceID)
		}
	}

	return nil
}

// releasePromotions deletes the batch's usage rows and gives the counters
// back, grouped so each promotion is released once with its exact count.
func (s *ExpirySweeper) releasePromotions(tx *gorm.DB, appointmentIDs []int64) error {
	usages, err := s.promotions.ListUsagesByAppointmentIDs(tx, appointmentIDs)
	if err != nil {
		return internal.NewInternalError("list promotion usages for expired invoices", err)
	}
	if len(usages) == 0 {
		return nil
	}

	usageIDs := make([]int64, len(usages))
	counts := make(map[int64]int64)
	for i, usage := range usages {
		usageIDs[i] = usage.ID
		counts[usage.PromotionID]++
	}

	deleted, err := s.promotions.DeleteUsages(tx, usageIDs)
	if err != nil {
		return internal.NewInternalError("delete promotion usages", err)
	}
	if deleted != int64(len(usageIDs)) {
		return internal.NewInternalStateError(
			fmt.Sprintf("usage delete touched %d rows, expected %d", deleted, len(usageIDs)),
			internal.ErrCodeUnexpectedRowCount)
	}

	for promotionID, count := range counts {
		if err := s.promotions.Release(tx, promotionID, count); err != nil {
			return err
		}
	}

	return nil
}
