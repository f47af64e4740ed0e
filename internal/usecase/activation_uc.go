package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"quiz-subscription-billing/internal/domain"
	"quiz-subscription-billing/internal/domain/model"
	"quiz-subscription-billing/internal/domain/ports/repository"
	"quiz-subscription-billing/internal/infra/logging"
)

// Compile-time check
var _ ActivationUseCase = (*activationUC)(nil)

// ActivationUseCase is the single choke point that grants a subscription for
// an approved charge. It is idempotent by charge id: invoking it N times for
// the same charge produces exactly one Subscription row.
type ActivationUseCase interface {
	Activate(ctx context.Context, intent *model.PaymentIntent) (*model.Subscription, error)
}

type activationUC struct {
	subs   repository.SubscriptionRepository
	users  repository.UserRepository
	usages repository.CouponUsageRepository
	tm     repository.TransactionManager
	log    *zerolog.Logger
}

func NewActivationUseCase(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	usages repository.CouponUsageRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *activationUC {
	return &activationUC{subs: subs, users: users, usages: usages, tm: tm, log: logger}
}

func (u *activationUC) Activate(ctx context.Context, intent *model.PaymentIntent) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "ActivationUC.Activate")()
	if intent == nil || intent.ChargeID == nil || *intent.ChargeID == "" {
		return nil, domain.ErrInvalidArgument
	}
	chargeID := *intent.ChargeID

	var sub *model.Subscription
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()
		s, err := model.NewSubscription(ulid.Make().String(), intent, now)
		if err != nil {
			return err
		}

		inserted, err := u.subs.SaveIfChargeNew(ctx, tx, s)
		if err != nil {
			return err
		}
		if !inserted {
			// Guarded no-op: a concurrent or earlier activation won the insert.
			u.log.Debug().Str("charge_id", chargeID).Msg("activation already performed for charge")
			existing, err := u.subs.FindByChargeID(ctx, tx, chargeID)
			if err != nil {
				return err
			}
			sub = existing
			return nil
		}

		if err := u.users.SetCurrentPlan(ctx, tx, s.UserID, s.PlanID, s.ExpiresAt); err != nil {
			return err
		}

		if intent.HasDiscount() {
			if err := u.recordCouponUsage(ctx, tx, intent, chargeID, now); err != nil {
				return err
			}
		}

		sub = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (u *activationUC) recordCouponUsage(ctx context.Context, tx repository.Tx, intent *model.PaymentIntent, chargeID string, now time.Time) error {
	usage := &model.CouponUsage{
		ID:             ulid.Make().String(),
		CouponCode:     *intent.CouponCode,
		UserID:         intent.UserID,
		PlanID:         intent.PlanID,
		SessionID:      intent.SessionID,
		ChargeID:       &chargeID,
		BasePriceCents: intent.BasePriceCents,
		PaidCents:      intent.FinalPriceCents,
		DiscountCents:  intent.DiscountCents(),
		UsedAt:         now,
	}
	created, err := u.usages.Upsert(ctx, tx, usage)
	if err != nil {
		return err
	}
	if !created {
		u.log.Debug().
			Str("coupon", usage.CouponCode).
			Str("charge_id", chargeID).
			Msg("coupon usage already recorded for charge")
	}
	return nil
}
