package repository

import (
	"context"
	"time"

	"quiz-subscription-billing/internal/domain/model"
)

// IntentRepository is the durable Payment Intent Store. Status writes and
// charge-id attachment are conditional updates so that the synchronous submit
// path and the webhook path can race safely across processes; there is no
// in-process locking anywhere above this interface.
type IntentRepository interface {
	Save(ctx context.Context, tx Tx, pi *model.PaymentIntent) error
	FindBySessionID(ctx context.Context, tx Tx, sessionID string) (*model.PaymentIntent, error)
	FindByChargeID(ctx context.Context, tx Tx, chargeID string) (*model.PaymentIntent, error)

	// FindLatestOpenByUserPlan returns the most recent pending/in_review intent
	// for (userID, planID), used when a webhook races ahead of the synchronous
	// submit response.
	FindLatestOpenByUserPlan(ctx context.Context, tx Tx, userID, planID string) (*model.PaymentIntent, error)

	// AttachChargeID binds chargeID to the session, first writer wins.
	// Returns domain.ErrChargeConflict when a different charge id is already
	// attached; attaching the same charge id again is a no-op.
	AttachChargeID(ctx context.Context, tx Tx, sessionID, chargeID string) error

	// NextSubmissionSeq atomically increments and returns the session's charge
	// submission counter, used to derive per-attempt idempotency keys.
	NextSubmissionSeq(ctx context.Context, tx Tx, sessionID string) (int, error)

	// UpdateStatusIfOpen transitions the intent only when its stored status is
	// still pending or in_review, in a single conditional write. The returned
	// bool reports whether this call performed the transition; callers use it
	// as the exactly-once activation guard.
	UpdateStatusIfOpen(ctx context.Context, tx Tx, intentID string, status model.IntentStatus, statusDetail string) (bool, error)

	// ListOpenWithChargeOlderThan returns stale open intents that already have
	// a charge id, for the background reconciler.
	ListOpenWithChargeOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error)

	// SumApprovedByPeriod totals final prices of approved intents since the
	// start of the given period ("day" | "week" | "month").
	SumApprovedByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
