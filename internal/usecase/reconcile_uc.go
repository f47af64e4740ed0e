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
	"quiz-subscription-billing/internal/infra/logging"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase is the asynchronous path: make the local intent state match
// the gateway's authoritative charge record, regardless of delivery order or
// duplication. Events may arrive more than once, out of order relative to the
// synchronous submit, or for charges this process never created locally.
type ReconcileUseCase interface {
	// HandleEvent processes one webhook delivery. The returned error is for
	// logs and metrics only; the webhook endpoint acks the delivery
	// regardless, and the stale-intent worker retries the reconciliation.
	HandleEvent(ctx context.Context, eventType, chargeID string) error

	// ReconcileCharge re-fetches one charge and applies its state locally. It
	// is the shared core of HandleEvent and the background reconciler.
	ReconcileCharge(ctx context.Context, chargeID string) error
}

type reconcileUC struct {
	intents   repository.IntentRepository
	plans     repository.PlanRepository
	subs      repository.SubscriptionRepository
	activator ActivationUseCase
	gateway   adapter.PaymentGateway
	log       *zerolog.Logger
}

func NewReconcileUseCase(
	intents repository.IntentRepository,
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	activator ActivationUseCase,
	gateway adapter.PaymentGateway,
	logger *zerolog.Logger,
) *reconcileUC {
	return &reconcileUC{intents: intents, plans: plans, subs: subs, activator: activator, gateway: gateway, log: logger}
}

// paymentEvent reports whether the webhook event type concerns a charge.
func paymentEvent(eventType string) bool {
	switch eventType {
	case "payment", "payment.created", "payment.updated":
		return true
	default:
		return false
	}
}

func (u *reconcileUC) HandleEvent(ctx context.Context, eventType, chargeID string) error {
	if !paymentEvent(eventType) {
		u.log.Debug().Str("type", eventType).Msg("ignoring non-payment webhook event")
		return nil
	}
	if chargeID == "" {
		return fmt.Errorf("payment event without charge id: %w", domain.ErrInvalidArgument)
	}
	return u.ReconcileCharge(ctx, chargeID)
}

func (u *reconcileUC) ReconcileCharge(ctx context.Context, chargeID string) error {
	defer logging.TraceDuration(u.log, "ReconcileUC.ReconcileCharge")()
	// Fast path for replayed deliveries: a locally terminal intent cannot move
	// again, so the gateway re-fetch is skipped. An approved intent must still
	// hold its subscription; if activation died after the status transition,
	// the redelivery is what repairs it.
	if known, err := u.intents.FindByChargeID(ctx, repository.NoTX, chargeID); err == nil && known.Status.Terminal() {
		if known.Status == model.IntentStatusApproved {
			if _, serr := u.subs.FindByChargeID(ctx, repository.NoTX, chargeID); serr == domain.ErrNotFound {
				u.log.Warn().
					Str("charge_id", chargeID).
					Str("intent_id", known.ID).
					Msg("approved intent without subscription, re-running activation")
				_, aerr := u.activator.Activate(ctx, known)
				return aerr
			} else if serr != nil {
				return serr
			}
		}
		u.log.Debug().Str("charge_id", chargeID).Msg("charge already settled, skipping reconcile")
		return nil
	}

	// Never trust webhook payload fields beyond the id: webhooks can be
	// replayed or forged, so the charge is re-fetched from the gateway.
	details, err := u.gateway.FetchCharge(ctx, chargeID)
	if err != nil {
		return fmt.Errorf("fetch charge %s: %w", chargeID, err)
	}

	intent, err := u.resolveIntent(ctx, details)
	if err != nil {
		return err
	}

	if intent.FinalPriceCents != details.AmountCents {
		// Amount drift between quote time and charge time is a reconciliation
		// conflict: logged for manual review, processing continues.
		u.log.Error().
			Str("charge_id", chargeID).
			Int64("intent_cents", intent.FinalPriceCents).
			Int64("charge_cents", details.AmountCents).
			Msg("charge amount mismatch")
	}

	status := model.StatusFromGateway(details.Status)
	transitioned, err := u.intents.UpdateStatusIfOpen(ctx, repository.NoTX, intent.ID, status, details.StatusDetail)
	if err != nil {
		return err
	}
	if !transitioned {
		// Duplicate delivery or lost race against the synchronous path; the
		// stored status is already terminal, so this delivery is a no-op.
		u.log.Debug().
			Str("charge_id", chargeID).
			Str("status", string(status)).
			Msg("intent already settled, webhook is a no-op")
		return nil
	}
	if status == model.IntentStatusApproved {
		intent.ChargeID = &details.ChargeID
		if _, err := u.activator.Activate(ctx, intent); err != nil {
			return err
		}
	}
	return nil
}

// resolveIntent finds the local intent for a gateway charge, in order of
// preference: by charge id; by the most recent open intent for the charge's
// (user, plan) pair (the webhook raced ahead of the submit response); or by
// reconstructing a fresh intent from the gateway's metadata (the synchronous
// path never learned its own outcome).
func (u *reconcileUC) resolveIntent(ctx context.Context, details *adapter.ChargeDetails) (*model.PaymentIntent, error) {
	intent, err := u.intents.FindByChargeID(ctx, repository.NoTX, details.ChargeID)
	if err == nil {
		return intent, nil
	}
	if err != domain.ErrNotFound {
		return nil, err
	}

	meta := details.Metadata
	if meta.UserID != "" && meta.PlanID != "" {
		open, err := u.intents.FindLatestOpenByUserPlan(ctx, repository.NoTX, meta.UserID, meta.PlanID)
		if err == nil {
			if aerr := u.intents.AttachChargeID(ctx, repository.NoTX, open.SessionID, details.ChargeID); aerr == nil {
				open.ChargeID = &details.ChargeID
				return open, nil
			} else if aerr != domain.ErrChargeConflict {
				return nil, aerr
			}
			// The open intent already belongs to another charge; fall through
			// and reconstruct a dedicated intent for this one.
			u.log.Warn().
				Str("charge_id", details.ChargeID).
				Str("session_id", open.SessionID).
				Msg("open intent bound to different charge, reconstructing")
		} else if err != domain.ErrNotFound {
			return nil, err
		}
	}

	return u.reconstructIntent(ctx, details)
}

// reconstructIntent creates an intent for a charge that has no local record,
// validating the gateway's loosely-typed metadata against the plan allow-list
// before anything enters the state machine.
func (u *reconcileUC) reconstructIntent(ctx context.Context, details *adapter.ChargeDetails) (*model.PaymentIntent, error) {
	meta := details.Metadata
	if meta.UserID == "" || meta.PlanID == "" {
		u.log.Error().
			Str("charge_id", details.ChargeID).
			Msg("charge has no resolvable intent and incomplete metadata")
		return nil, domain.ErrIntentNotResolvable
	}
	plan, err := u.plans.FindByID(ctx, repository.NoTX, meta.PlanID)
	if err != nil {
		if err == domain.ErrNotFound {
			u.log.Error().
				Str("charge_id", details.ChargeID).
				Str("plan_id", meta.PlanID).
				Msg("charge metadata names unknown plan")
			return nil, domain.ErrIntentNotResolvable
		}
		return nil, err
	}

	sessionID := details.SessionID
	if sessionID == "" {
		sessionID = "recovered-" + details.ChargeID
	}
	subExpiresAt := meta.SubExpiresAt
	if subExpiresAt.IsZero() {
		subExpiresAt = time.Now().Add(plan.Duration())
	}
	discount := reconstructDiscountPercent(plan.PriceCents, details.AmountCents)

	pi, err := model.NewPaymentIntent(uuid.NewString(), meta.UserID, plan, sessionID, discount, model.NormalizeCouponCode(meta.CouponCode), subExpiresAt)
	if err != nil {
		return nil, err
	}
	// Keep the gateway-observed amount as the agreed price; the base price
	// still comes from the local plan record.
	pi.FinalPriceCents = details.AmountCents
	pi.ChargeID = &details.ChargeID

	if err := u.intents.Save(ctx, repository.NoTX, pi); err != nil {
		return nil, err
	}
	if err := u.intents.AttachChargeID(ctx, repository.NoTX, sessionID, details.ChargeID); err != nil && err != domain.ErrChargeConflict {
		return nil, err
	}
	u.log.Info().
		Str("charge_id", details.ChargeID).
		Str("session_id", sessionID).
		Msg("intent reconstructed from gateway metadata")
	return pi, nil
}

// reconstructDiscountPercent back-derives the percentage a recovered charge
// was discounted by, clamped to 0..100.
func reconstructDiscountPercent(baseCents, paidCents int64) int {
	if baseCents <= 0 || paidCents >= baseCents {
		return 0
	}
	if paidCents < 0 {
		return 100
	}
	return int(((baseCents-paidCents)*100 + baseCents/2) / baseCents)
}
