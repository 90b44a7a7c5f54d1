package promotion

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rizalfahlevi/booking-management/internal"
	"github.com/rizalfahlevi/booking-management/internal/core/clock"
	"gorm.io/gorm"
)

type Service struct {
	repo   RepositoryAPI
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		clock:  clk,
		logger: logger,
	}
}

// ResolveCodes looks up each distinct discount code and checks provider
// scope, the validity window, and per-client uniqueness. It does not consume
// capacity; redemption happens later inside the issuance transaction.
func (s *Service) ResolveCodes(tx *gorm.DB, codes []string, clientID, providerID int64) ([]*Promotion, error) {
	now := s.clock.Now()

	seen := make(map[string]bool, len(codes))
	resolved := make([]*Promotion, 0, len(codes))
	for _, raw := range codes {
		code := strings.TrimSpace(raw)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		promo, err := s.repo.GetByCode(tx, code)
		if err != nil {
			return nil, err
		}

		if promo.ProviderID != providerID {
			return nil, internal.ErrPromotionNotFound
		}

		if !promo.IsRedeemableAt(now) {
			return nil, internal.NewConflictError("promotion "+code+" is not active", internal.ErrCodePromotionInactive)
		}

		used, err := s.repo.HasUsage(tx, promo.ID, clientID)
		if err != nil {
			return nil, internal.NewInternalError("check promotion usage", err)
		}
		if used {
			return nil, internal.ErrPromotionAlreadyUsed
		}

		resolved = append(resolved, promo)
	}

	return resolved, nil
}

// RedeemAll consumes one use per promotion with the guarded counter update.
// Any exhausted promotion fails the whole set; the caller's transaction
// rollback restores counts taken earlier in the loop.
func (s *Service) RedeemAll(tx *gorm.DB, promotions []*Promotion, clientID, appointmentID int64) error {
	for _, promo := range promotions {
		ok, err := s.repo.TryRedeem(tx, promo.ID)
		if err != nil {
			return internal.NewInternalError("redeem promotion", err)
		}
		if !ok {
			return internal.ErrPromotionMaxUsageReached
		}

		if err := s.repo.CreateUsage(tx, promo.ID, clientID, appointmentID); err != nil {
			return internal.NewInternalError("record promotion usage", err)
		}
	}

	return nil
}

// ExpireDue flips promotions whose end date has passed to expired. Runs on
// the worker schedule.
func (s *Service) ExpireDue(ctx context.Context) error {
	now := s.clock.Now()

	affected, err := s.repo.ExpireDue(now)
	if err != nil {
		s.logger.Error("promotion expiry sweep failed", "error", err)
		return internal.NewInternalError("expire promotions", err)
	}

	if affected > 0 {
		s.logger.Info("promotions expired", "count", affected)
	}
	return nil
}
