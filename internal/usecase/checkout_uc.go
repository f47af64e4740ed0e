package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quiz-subscription-billing/internal/domain"
	"quiz-subscription-billing/internal/domain/model"
	"quiz-subscription-billing/internal/domain/ports/adapter"
	"quiz-subscription-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutUseCase turns a quote into a durable PaymentIntent bound to a
// gateway checkout session.
type CheckoutUseCase interface {
	// CreateIntent persists the "this is what the user agreed to pay" snapshot
	// and returns the intent plus the hosted-checkout URL.
	CreateIntent(ctx context.Context, userID, planID, couponCode string) (*model.PaymentIntent, string, error)
}

// CheckoutConfig bounds what CreateIntent will accept.
type CheckoutConfig struct {
	MinPriceCents int64
	MaxPriceCents int64
	SuccessURL    string
	FailureURL    string
	PendingURL    string
}

type checkoutUC struct {
	pricing PricingUseCase
	plans   repository.PlanRepository
	intents repository.IntentRepository
	gateway adapter.PaymentGateway
	cfg     CheckoutConfig
	log     *zerolog.Logger
}

func NewCheckoutUseCase(
	pricing PricingUseCase,
	plans repository.PlanRepository,
	intents repository.IntentRepository,
	gateway adapter.PaymentGateway,
	cfg CheckoutConfig,
	logger *zerolog.Logger,
) *checkoutUC {
	return &checkoutUC{pricing: pricing, plans: plans, intents: intents, gateway: gateway, cfg: cfg, log: logger}
}

func (u *checkoutUC) CreateIntent(ctx context.Context, userID, planID, couponCode string) (*model.PaymentIntent, string, error) {
	if userID == "" || planID == "" {
		return nil, "", domain.ErrInvalidArgument
	}

	// The plans table is the allow-list; an id outside it is a validation
	// error and no intent row is ever written for it.
	plan, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, "", domain.ErrUnknownPlan
		}
		return nil, "", err
	}
	if plan.PriceCents < u.cfg.MinPriceCents || (u.cfg.MaxPriceCents > 0 && plan.PriceCents > u.cfg.MaxPriceCents) {
		return nil, "", domain.ErrPriceOutOfRange
	}

	now := time.Now()
	quote, err := u.pricing.Quote(ctx, userID, planID, couponCode, now)
	if err != nil {
		return nil, "", err
	}

	// Expiry is computed once here and carried on the intent; activation uses
	// this snapshot instead of recomputing, so it cannot drift.
	subExpiresAt := now.Add(plan.Duration())

	meta := adapter.ChargeMetadata{
		UserID:       userID,
		PlanID:       plan.ID,
		CouponCode:   quote.CouponCode,
		SubExpiresAt: subExpiresAt,
	}
	sessionID, checkoutURL, err := u.gateway.CreateSession(ctx, adapter.SessionRequest{
		Title:          fmt.Sprintf("%s subscription", plan.Name),
		AmountCents:    quote.FinalPriceCents,
		Currency:       quote.Currency,
		SuccessURL:     u.cfg.SuccessURL,
		FailureURL:     u.cfg.FailureURL,
		PendingURL:     u.cfg.PendingURL,
		IdempotencyKey: uuid.NewString(),
		Metadata:       meta,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create gateway session: %w", err)
	}

	pi, err := model.NewPaymentIntent(uuid.NewString(), userID, plan, sessionID, quote.DiscountPercent, quote.CouponCode, subExpiresAt)
	if err != nil {
		return nil, "", err
	}
	if err := u.intents.Save(ctx, repository.NoTX, pi); err != nil {
		return nil, "", err
	}

	u.log.Info().
		Str("session_id", sessionID).
		Str("user_id", userID).
		Str("plan_id", plan.ID).
		Int64("final_price_cents", pi.FinalPriceCents).
		Msg("payment intent created")
	return pi, checkoutURL, nil
}
