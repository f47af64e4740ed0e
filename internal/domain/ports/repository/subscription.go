package repository

import (
	"context"

	"quiz-subscription-billing/internal/domain/model"
)

// SubscriptionRepository stores the append-only entitlement history.
type SubscriptionRepository interface {
	// SaveIfChargeNew inserts the subscription unless a row for its charge id
	// already exists. Returns (true, nil) when the row was inserted, and
	// (false, nil) when a subscription for the charge id was already present.
	SaveIfChargeNew(ctx context.Context, tx Tx, s *model.Subscription) (bool, error)

	FindByChargeID(ctx context.Context, tx Tx, chargeID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
	CountActiveByPlan(ctx context.Context, tx Tx) (map[string]int, error)
}
