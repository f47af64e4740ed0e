package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"quiz-subscription-billing/internal/domain"
	"quiz-subscription-billing/internal/domain/model"
	"quiz-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// StatsUseCase serves the admin panel aggregates.
type StatsUseCase interface {
	// RevenueByPeriod totals approved intents since the start of the period
	// ("day" | "week" | "month").
	RevenueByPeriod(ctx context.Context, period string) (int64, error)

	// ActiveSubscriptionsByPlan counts currently active subscriptions per plan.
	ActiveSubscriptionsByPlan(ctx context.Context) (map[string]int, error)

	// CouponStats aggregates the usage ledger for one coupon, counting only
	// rows whose linked charge is approved.
	CouponStats(ctx context.Context, couponCode string) (*model.CouponStats, error)
}

type statsUC struct {
	intents repository.IntentRepository
	subs    repository.SubscriptionRepository
	usages  repository.CouponUsageRepository
	log     *zerolog.Logger
}

func NewStatsUseCase(
	intents repository.IntentRepository,
	subs repository.SubscriptionRepository,
	usages repository.CouponUsageRepository,
	logger *zerolog.Logger,
) *statsUC {
	return &statsUC{intents: intents, subs: subs, usages: usages, log: logger}
}

func (u *statsUC) RevenueByPeriod(ctx context.Context, period string) (int64, error) {
	switch period {
	case "day", "week", "month":
	default:
		return 0, domain.ErrInvalidArgument
	}
	return u.intents.SumApprovedByPeriod(ctx, repository.NoTX, period)
}

func (u *statsUC) ActiveSubscriptionsByPlan(ctx context.Context) (map[string]int, error) {
	return u.subs.CountActiveByPlan(ctx, repository.NoTX)
}

func (u *statsUC) CouponStats(ctx context.Context, couponCode string) (*model.CouponStats, error) {
	code := model.NormalizeCouponCode(couponCode)
	if code == "" {
		return nil, domain.ErrInvalidArgument
	}
	rows, err := u.usages.ListByCoupon(ctx, repository.NoTX, code)
	if err != nil {
		return nil, err
	}

	stats := &model.CouponStats{Code: code}
	users := make(map[string]struct{})
	for _, row := range rows {
		if row.ChargeID == nil {
			continue // quote-time soft hint that never settled
		}
		intent, err := u.intents.FindByChargeID(ctx, repository.NoTX, *row.ChargeID)
		if err != nil {
			if err == domain.ErrNotFound {
				u.log.Warn().Str("charge_id", *row.ChargeID).Msg("ledger row links missing intent")
				continue
			}
			return nil, err
		}
		if intent.Status != model.IntentStatusApproved {
			continue
		}
		stats.TotalUses++
		stats.TotalDiscountCents += row.DiscountCents
		users[row.UserID] = struct{}{}
	}
	stats.UniqueUsers = len(users)
	return stats, nil
}
