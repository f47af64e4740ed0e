package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"quiz-subscription-billing/internal/domain"
	"quiz-subscription-billing/internal/domain/model"
	"quiz-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ PricingUseCase = (*pricingUC)(nil)

// PricingUseCase resolves a plan + optional coupon into a final price. Quote
// is a pure computation: it persists nothing, and a coupon that does not apply
// degrades the discount to zero instead of failing the quote.
type PricingUseCase interface {
	Quote(ctx context.Context, userID, planID, couponCode string, at time.Time) (*model.Quote, error)
}

type pricingUC struct {
	plans   repository.PlanRepository
	coupons repository.CouponRepository
	usages  repository.CouponUsageRepository
	log     *zerolog.Logger
}

func NewPricingUseCase(
	plans repository.PlanRepository,
	coupons repository.CouponRepository,
	usages repository.CouponUsageRepository,
	logger *zerolog.Logger,
) *pricingUC {
	return &pricingUC{plans: plans, coupons: coupons, usages: usages, log: logger}
}

func (u *pricingUC) Quote(ctx context.Context, userID, planID, couponCode string, at time.Time) (*model.Quote, error) {
	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrUnknownPlan
		}
		return nil, err
	}

	q := &model.Quote{
		PlanID:          plan.ID,
		BasePriceCents:  plan.PriceCents,
		DiscountPercent: 0,
		FinalPriceCents: plan.PriceCents,
		Currency:        plan.Currency,
	}
	if couponCode == "" {
		return q, nil
	}

	code := model.NormalizeCouponCode(couponCode)
	rejection := u.resolveCoupon(ctx, userID, plan.ID, code, at, q)
	if rejection != model.CouponRejectNone {
		u.log.Debug().
			Str("coupon", code).
			Str("plan_id", plan.ID).
			Str("reason", string(rejection)).
			Msg("coupon not applied, quoting full price")
		q.CouponRejection = rejection
	}
	return q, nil
}

// resolveCoupon applies the coupon onto q when usable, returning the rejection
// reason otherwise. Lookup failures count as not-found: the quote must not
// fail because the coupon table hiccuped.
func (u *pricingUC) resolveCoupon(ctx context.Context, userID, planID, code string, at time.Time, q *model.Quote) model.CouponRejection {
	c, err := u.coupons.FindByCode(ctx, repository.NoTX, code)
	if err != nil {
		return model.CouponRejectNotFound
	}
	if rej := c.UsableAt(at, planID); rej != model.CouponRejectNone {
		return rej
	}
	if c.MaxUses > 0 {
		total, err := u.usages.CountByCoupon(ctx, repository.NoTX, code)
		if err == nil && total >= c.MaxUses {
			return model.CouponRejectMaxUses
		}
	}
	if c.MaxPerUser > 0 {
		mine, err := u.usages.CountByCouponAndUser(ctx, repository.NoTX, code, userID)
		if err == nil && mine >= c.MaxPerUser {
			return model.CouponRejectMaxPerUser
		}
	}

	q.CouponCode = code
	q.DiscountPercent = c.PercentOff
	q.FinalPriceCents = model.FinalPriceCents(q.BasePriceCents, c.PercentOff)
	return model.CouponRejectNone
}
