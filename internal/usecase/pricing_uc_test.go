//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-subscription-billing/internal/domain"
	"quiz-subscription-billing/internal/domain/model"
	"quiz-subscription-billing/internal/usecase"
)

type pricingUCTestDeps struct {
	plans   *MockPlanRepo
	coupons *MockCouponRepo
	usages  *MockCouponUsageRepo
}

func newPricingUCDeps() *pricingUCTestDeps {
	return &pricingUCTestDeps{
		plans:   NewMockPlanRepo(),
		coupons: NewMockCouponRepo(),
		usages:  NewMockCouponUsageRepo(),
	}
}

func (d *pricingUCTestDeps) uc() usecase.PricingUseCase {
	return usecase.NewPricingUseCase(d.plans, d.coupons, d.usages, newTestLogger())
}

func seedPlan(d *pricingUCTestDeps, id string, priceCents int64) *model.Plan {
	p := &model.Plan{ID: id, Name: id, DurationDays: 30, PriceCents: priceCents, Currency: "BRL"}
	d.plans.Save(context.Background(), nil, p)
	return p
}

func seedCoupon(d *pricingUCTestDeps, c *model.Coupon) {
	d.coupons.Save(context.Background(), nil, c)
}

func validWindow() (time.Time, time.Time) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	return from, until
}

func TestPricingUseCase_Quote(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("should quote full price without a coupon", func(t *testing.T) {
		deps := newPricingUCDeps()
		seedPlan(deps, "plan-monthly", 2990)

		q, err := deps.uc().Quote(ctx, "user-1", "plan-monthly", "", at)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if q.FinalPriceCents != 2990 || q.DiscountPercent != 0 {
			t.Errorf("expected full price 2990, got %d (discount %d%%)", q.FinalPriceCents, q.DiscountPercent)
		}
	})

	t.Run("should fail for an unknown plan", func(t *testing.T) {
		deps := newPricingUCDeps()

		_, err := deps.uc().Quote(ctx, "user-1", "plan-nope", "", at)
		if !errors.Is(err, domain.ErrUnknownPlan) {
			t.Fatalf("expected ErrUnknownPlan, got: %v", err)
		}
	})

	t.Run("should apply a valid coupon with half-up rounding", func(t *testing.T) {
		deps := newPricingUCDeps()
		seedPlan(deps, "plan-monthly", 2990)
		from, until := validWindow()
		seedCoupon(deps, &model.Coupon{Code: "SAVE20", PercentOff: 20, Active: true, ValidFrom: from, ValidUntil: until})

		q, err := deps.uc().Quote(ctx, "user-1", "plan-monthly", "save20", at)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if q.CouponCode != "SAVE20" {
			t.Errorf("expected normalized coupon code SAVE20, got %q", q.CouponCode)
		}
		if q.FinalPriceCents != 2392 {
			t.Errorf("expected 2392 (2990 - 20%%), got %d", q.FinalPriceCents)
		}
		if q.CouponRejection != model.CouponRejectNone {
			t.Errorf("expected no rejection, got %q", q.CouponRejection)
		}
	})

	t.Run("should round the discounted price half away from zero", func(t *testing.T) {
		deps := newPricingUCDeps()
		seedPlan(deps, "plan-odd", 999)
		from, until := validWindow()
		seedCoupon(deps, &model.Coupon{Code: "HALF", PercentOff: 15, Active: true, ValidFrom: from, ValidUntil: until})

		// 999 * 0.85 = 849.15 -> 849
		q, err := deps.uc().Quote(ctx, "user-1", "plan-odd", "HALF", at)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if q.FinalPriceCents != 849 {
			t.Errorf("expected 849, got %d", q.FinalPriceCents)
		}
	})

	t.Run("should quote full price when coupon does not exist", func(t *testing.T) {
		deps := newPricingUCDeps()
		seedPlan(deps, "plan-monthly", 2990)

		q, err := deps.uc().Quote(ctx, "user-1", "plan-monthly", "NOPE", at)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if q.FinalPriceCents != 2990 {
			t.Errorf("expected full price, got %d", q.FinalPriceCents)
		}
		if q.CouponRejection != model.CouponRejectNotFound {
			t.Errorf("expected not_found rejection, got %q", q.CouponRejection)
		}
	})

	t.Run("should reject an inactive coupon", func(t *testing.T) {
		deps := newPricingUCDeps()
		seedPlan(deps, "plan-monthly", 2990)
		from, until := validWindow()
		seedCoupon(deps, &model.Coupon{Code: "OLD", PercentOff: 20, Active: false, ValidFrom: from, ValidUntil: until})

		q, _ := deps.uc().Quote(ctx, "user-1", "plan-monthly", "OLD", at)
		if q.CouponRejection != model.CouponRejectInactive {
			t.Errorf("expected inactive rejection, got %q", q.CouponRejection)
		}
		if q.FinalPriceCents != 2990 {
			t.Errorf("expected full price, got %d", q.FinalPriceCents)
		}
	})

	t.Run("should honor the coupon through the last second of its final day", func(t *testing.T) {
		deps := newPricingUCDeps()
		seedPlan(deps, "plan-monthly", 2990)
		until := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
		seedCoupon(deps, &model.Coupon{Code: "JUNE", PercentOff: 10, Active: true, ValidFrom: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), ValidUntil: until})

		lastSecond := time.Date(2026, 6, 30, 23, 59, 59, 0, time.UTC)
		q, _ := deps.uc().Quote(ctx, "user-1", "plan-monthly", "JUNE", lastSecond)
		if q.CouponRejection != model.CouponRejectNone {
			t.Errorf("coupon should still apply at 23:59:59 of its final day, got rejection %q", q.CouponRejection)
		}

		dayAfter := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
		q, _ = deps.uc().Quote(ctx, "user-1", "plan-monthly", "JUNE", dayAfter)
		if q.CouponRejection != model.CouponRejectExpired {
			t.Errorf("coupon should be expired at midnight of the next day, got rejection %q", q.CouponRejection)
		}
	})

	t.Run("should reject a coupon scoped to other plans", func(t *testing.T) {
		deps := newPricingUCDeps()
		seedPlan(deps, "plan-monthly", 2990)
		from, until := validWindow()
		seedCoupon(deps, &model.Coupon{Code: "SEM", PercentOff: 20, Active: true, ValidFrom: from, ValidUntil: until, PlanIDs: []string{"plan-semester"}})

		q, _ := deps.uc().Quote(ctx, "user-1", "plan-monthly", "SEM", at)
		if q.CouponRejection != model.CouponRejectPlanNotCovered {
			t.Errorf("expected plan_not_covered rejection, got %q", q.CouponRejection)
		}
	})

	t.Run("should reject when the global usage cap is reached", func(t *testing.T) {
		deps := newPricingUCDeps()
		seedPlan(deps, "plan-monthly", 2990)
		from, until := validWindow()
		seedCoupon(deps, &model.Coupon{Code: "CAP1", PercentOff: 20, Active: true, ValidFrom: from, ValidUntil: until, MaxUses: 1})

		charge := "ch-1"
		deps.usages.Upsert(ctx, nil, &model.CouponUsage{ID: "u1", CouponCode: "CAP1", UserID: "other", PlanID: "plan-monthly", SessionID: "s1", ChargeID: &charge})

		q, _ := deps.uc().Quote(ctx, "user-1", "plan-monthly", "CAP1", at)
		if q.CouponRejection != model.CouponRejectMaxUses {
			t.Errorf("expected max_uses rejection, got %q", q.CouponRejection)
		}
	})

	t.Run("should reject when the per-user cap is reached", func(t *testing.T) {
		deps := newPricingUCDeps()
		seedPlan(deps, "plan-monthly", 2990)
		from, until := validWindow()
		seedCoupon(deps, &model.Coupon{Code: "ONCE", PercentOff: 20, Active: true, ValidFrom: from, ValidUntil: until, MaxPerUser: 1})

		charge := "ch-1"
		deps.usages.Upsert(ctx, nil, &model.CouponUsage{ID: "u1", CouponCode: "ONCE", UserID: "user-1", PlanID: "plan-monthly", SessionID: "s1", ChargeID: &charge})

		q, _ := deps.uc().Quote(ctx, "user-1", "plan-monthly", "ONCE", at)
		if q.CouponRejection != model.CouponRejectMaxPerUser {
			t.Errorf("expected max_uses_per_user rejection, got %q", q.CouponRejection)
		}

		// A different user is unaffected.
		q, _ = deps.uc().Quote(ctx, "user-2", "plan-monthly", "ONCE", at)
		if q.CouponRejection != model.CouponRejectNone {
			t.Errorf("other user should still get the coupon, got rejection %q", q.CouponRejection)
		}
	})

	t.Run("should return an identical quote for repeated identical inputs", func(t *testing.T) {
		deps := newPricingUCDeps()
		seedPlan(deps, "plan-monthly", 2990)
		from, until := validWindow()
		seedCoupon(deps, &model.Coupon{Code: "SAVE20", PercentOff: 20, Active: true, ValidFrom: from, ValidUntil: until})

		first, err := deps.uc().Quote(ctx, "user-1", "plan-monthly", "SAVE20", at)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		for i := 0; i < 5; i++ {
			again, err := deps.uc().Quote(ctx, "user-1", "plan-monthly", "SAVE20", at)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if *again != *first {
				t.Fatalf("quote changed between identical calls: %+v vs %+v", again, first)
			}
		}
	})
}
