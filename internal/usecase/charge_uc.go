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
var _ ChargeUseCase = (*chargeUC)(nil)

// SubmitOutcome is what the submit endpoint reports back to the client.
type SubmitOutcome struct {
	Status   model.IntentStatus
	ChargeID string
	Message  string
}

// ChargeUseCase is the synchronous path: submit a tokenized instrument for a
// session and map the gateway's immediate response onto the intent.
type ChargeUseCase interface {
	Submit(ctx context.Context, sessionID, instrumentToken, payerEmail string) (*SubmitOutcome, error)
}

type chargeUC struct {
	intents       repository.IntentRepository
	activator     ActivationUseCase
	gateway       adapter.PaymentGateway
	submitTimeout time.Duration
	log           *zerolog.Logger
}

func NewChargeUseCase(
	intents repository.IntentRepository,
	activator ActivationUseCase,
	gateway adapter.PaymentGateway,
	submitTimeout time.Duration,
	logger *zerolog.Logger,
) *chargeUC {
	if submitTimeout <= 0 {
		submitTimeout = 25 * time.Second
	}
	return &chargeUC{intents: intents, activator: activator, gateway: gateway, submitTimeout: submitTimeout, log: logger}
}

func (u *chargeUC) Submit(ctx context.Context, sessionID, instrumentToken, payerEmail string) (*SubmitOutcome, error) {
	defer logging.TraceDuration(u.log, "ChargeUC.Submit")()
	if sessionID == "" || instrumentToken == "" {
		return nil, domain.ErrInvalidArgument
	}
	intent, err := u.intents.FindBySessionID(ctx, repository.NoTX, sessionID)
	if err != nil {
		return nil, err
	}
	if intent.Status.Terminal() {
		return u.currentOutcome(intent, "session already settled"), nil
	}

	// Each submission attempt gets its own idempotency key so the gateway
	// dedupes network-level retries of the same attempt, while a deliberate
	// user retry (new call, new counter value) is allowed to charge again.
	seq, err := u.intents.NextSubmissionSeq(ctx, repository.NoTX, sessionID)
	if err != nil {
		return nil, err
	}
	idemKey := uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s/%s/%d", intent.UserID, sessionID, seq)).String()

	// The gateway call gets its own deadline, distinct from the caller's HTTP
	// timeout. On timeout the charge may still have succeeded at the gateway,
	// so the intent stays open for the webhook reconciler to settle.
	cctx, cancel := context.WithTimeout(ctx, u.submitTimeout)
	defer cancel()

	res, err := u.gateway.SubmitCharge(cctx, adapter.ChargeRequest{
		SessionID:       sessionID,
		AmountCents:     intent.FinalPriceCents,
		Currency:        intent.Currency,
		InstrumentToken: instrumentToken,
		PayerEmail:      payerEmail,
		Description:     fmt.Sprintf("plan %s", intent.PlanID),
		IdempotencyKey:  idemKey,
		Metadata: adapter.ChargeMetadata{
			UserID:       intent.UserID,
			PlanID:       intent.PlanID,
			CouponCode:   couponOrEmpty(intent),
			SubExpiresAt: intent.SubExpiresAt,
		},
	})
	if err != nil {
		// Timeout, 5xx, or an ambiguous response: the outcome is undetermined,
		// never a decline. Park the intent in in_review and let the webhook
		// path be the source of truth.
		u.log.Warn().Err(err).Str("session_id", sessionID).Msg("charge submission undetermined")
		if _, uerr := u.intents.UpdateStatusIfOpen(ctx, repository.NoTX, intent.ID, model.IntentStatusInReview, "gateway undetermined: "+err.Error()); uerr != nil {
			u.log.Error().Err(uerr).Str("session_id", sessionID).Msg("failed to park undetermined intent")
		}
		return &SubmitOutcome{
			Status:  model.IntentStatusInReview,
			Message: "payment undetermined, awaiting gateway confirmation",
		}, nil
	}

	if err := u.intents.AttachChargeID(ctx, repository.NoTX, sessionID, res.ChargeID); err != nil {
		if err == domain.ErrChargeConflict {
			// A different charge is already bound to this session (e.g. a
			// retried client produced two gateway charges). Never overwrite;
			// log for manual reconciliation and report the recorded state.
			u.log.Error().
				Str("session_id", sessionID).
				Str("charge_id", res.ChargeID).
				Msg("charge id conflict on attach")
			return u.currentOutcome(intent, "conflicting charge recorded, under review"), nil
		}
		return nil, err
	}
	intent.ChargeID = &res.ChargeID

	status := model.StatusFromGateway(res.Status)
	transitioned, err := u.intents.UpdateStatusIfOpen(ctx, repository.NoTX, intent.ID, status, res.StatusDetail)
	if err != nil {
		return nil, err
	}
	if transitioned && status == model.IntentStatusApproved {
		if _, err := u.activator.Activate(ctx, intent); err != nil {
			return nil, err
		}
	}
	if !transitioned && status == model.IntentStatusApproved {
		u.log.Debug().Str("charge_id", res.ChargeID).Msg("approval already applied by concurrent writer")
	}

	return &SubmitOutcome{
		Status:   status,
		ChargeID: res.ChargeID,
		Message:  res.StatusDetail,
	}, nil
}

func (u *chargeUC) currentOutcome(intent *model.PaymentIntent, msg string) *SubmitOutcome {
	out := &SubmitOutcome{Status: intent.Status, Message: msg}
	if intent.ChargeID != nil {
		out.ChargeID = *intent.ChargeID
	}
	return out
}

func couponOrEmpty(pi *model.PaymentIntent) string {
	if pi.CouponCode != nil {
		return *pi.CouponCode
	}
	return ""
}
