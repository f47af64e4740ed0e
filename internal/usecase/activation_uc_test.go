//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-subscription-billing/internal/domain"
	"quiz-subscription-billing/internal/domain/model"
	"quiz-subscription-billing/internal/usecase"
)

type activationUCTestDeps struct {
	subs   *MockSubscriptionRepo
	users  *MockUserRepo
	usages *MockCouponUsageRepo
	tm     *MockTxManager
}

func newActivationUCDeps() *activationUCTestDeps {
	return &activationUCTestDeps{
		subs:   NewMockSubscriptionRepo(),
		users:  NewMockUserRepo(),
		usages: NewMockCouponUsageRepo(),
		tm:     NewMockTxManager(),
	}
}

func (d *activationUCTestDeps) uc() usecase.ActivationUseCase {
	return usecase.NewActivationUseCase(d.subs, d.users, d.usages, d.tm, newTestLogger())
}

func approvedIntent(chargeID, couponCode string) *model.PaymentIntent {
	coupon := (*string)(nil)
	discount := 0
	final := int64(2990)
	if couponCode != "" {
		c := couponCode
		coupon = &c
		discount = 20
		final = 2392
	}
	ch := chargeID
	return &model.PaymentIntent{
		ID:              "intent-1",
		UserID:          "user-1",
		PlanID:          "plan-monthly",
		SessionID:       "sess-1",
		ChargeID:        &ch,
		BasePriceCents:  2990,
		DiscountPercent: discount,
		CouponCode:      coupon,
		FinalPriceCents: final,
		Currency:        "BRL",
		Status:          model.IntentStatusApproved,
		SubExpiresAt:    time.Now().Add(30 * 24 * time.Hour),
	}
}

func TestActivationUseCase_Activate(t *testing.T) {
	ctx := context.Background()

	t.Run("should create one subscription and project it onto the user", func(t *testing.T) {
		deps := newActivationUCDeps()
		intent := approvedIntent("ch-1", "")

		sub, err := deps.uc().Activate(ctx, intent)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if sub.ChargeID != "ch-1" || sub.Status != model.SubscriptionStatusActive {
			t.Errorf("unexpected subscription: %+v", sub)
		}
		if !sub.ExpiresAt.Equal(intent.SubExpiresAt) {
			t.Errorf("subscription must use the intent's expiry snapshot, got %v", sub.ExpiresAt)
		}

		u, err := deps.users.FindByID(ctx, nil, "user-1")
		if err != nil {
			t.Fatalf("user projection missing: %v", err)
		}
		if u.PlanID == nil || *u.PlanID != "plan-monthly" {
			t.Errorf("expected user plan projection, got %v", u.PlanID)
		}
	})

	t.Run("should be idempotent across repeated activations for one charge", func(t *testing.T) {
		deps := newActivationUCDeps()
		intent := approvedIntent("ch-1", "")
		uc := deps.uc()

		first, err := uc.Activate(ctx, intent)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		for i := 0; i < 4; i++ {
			again, err := uc.Activate(ctx, intent)
			if err != nil {
				t.Fatalf("repeat %d: expected no error, got: %v", i, err)
			}
			if again.ID != first.ID {
				t.Errorf("repeat %d returned a different subscription: %s vs %s", i, again.ID, first.ID)
			}
		}
		if deps.subs.Count() != 1 {
			t.Errorf("expected exactly one subscription, got %d", deps.subs.Count())
		}
	})

	t.Run("should survive concurrent activations for one charge", func(t *testing.T) {
		deps := newActivationUCDeps()
		intent := approvedIntent("ch-1", "")
		uc := deps.uc()

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := uc.Activate(ctx, intent)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Errorf("concurrent activation error: %v", err)
			}
		}
		if deps.subs.Count() != 1 {
			t.Errorf("expected exactly one subscription, got %d", deps.subs.Count())
		}
	})

	t.Run("should record the coupon redemption exactly once", func(t *testing.T) {
		deps := newActivationUCDeps()
		intent := approvedIntent("ch-1", "SAVE20")
		uc := deps.uc()

		uc.Activate(ctx, intent)
		uc.Activate(ctx, intent)

		n, _ := deps.usages.CountByCoupon(ctx, nil, "SAVE20")
		if n != 1 {
			t.Errorf("expected one ledger row, got %d", n)
		}
		row, err := deps.usages.FindByCouponAndCharge(ctx, nil, "SAVE20", "ch-1")
		if err != nil {
			t.Fatalf("ledger row missing: %v", err)
		}
		if row.DiscountCents != 598 {
			t.Errorf("expected discount 598, got %d", row.DiscountCents)
		}
	})

	t.Run("should upgrade a quote-time soft row instead of duplicating it", func(t *testing.T) {
		deps := newActivationUCDeps()
		deps.usages.Upsert(ctx, nil, &model.CouponUsage{
			ID: "soft-1", CouponCode: "SAVE20", UserID: "user-1",
			PlanID: "plan-monthly", SessionID: "sess-1",
		})
		intent := approvedIntent("ch-1", "SAVE20")

		if _, err := deps.uc().Activate(ctx, intent); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		n, _ := deps.usages.CountByCoupon(ctx, nil, "SAVE20")
		if n != 1 {
			t.Errorf("expected the soft row to be upgraded, got %d rows", n)
		}
		row, err := deps.usages.FindByCouponAndCharge(ctx, nil, "SAVE20", "ch-1")
		if err != nil {
			t.Fatalf("upgraded row not found by charge: %v", err)
		}
		if row.ID != "soft-1" {
			t.Errorf("expected the original soft row, got %s", row.ID)
		}
	})

	t.Run("should not record a ledger row for a full-price purchase", func(t *testing.T) {
		deps := newActivationUCDeps()

		deps.uc().Activate(ctx, approvedIntent("ch-1", ""))

		n, _ := deps.usages.CountByCoupon(ctx, nil, "SAVE20")
		if n != 0 {
			t.Errorf("full-price purchase must not touch the ledger, got %d rows", n)
		}
	})

	t.Run("should reject an intent without a charge id", func(t *testing.T) {
		deps := newActivationUCDeps()
		intent := approvedIntent("ch-1", "")
		intent.ChargeID = nil

		_, err := deps.uc().Activate(ctx, intent)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got: %v", err)
		}
	})
}
