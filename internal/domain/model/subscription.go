package model

import (
	"time"

	"quiz-subscription-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive SubscriptionStatus = "active"
)

// Subscription is one granted entitlement, created exactly once per approved
// charge. Rows are append-only history; corrections happen by creating a new
// row on renewal, never by editing an old one. The user's effective
// plan/expiry fields are a projection of the most recently created row.
type Subscription struct {
	ID              string // ULID (sortable)
	UserID          string
	PlanID          string
	Status          SubscriptionStatus
	StartAt         time.Time
	ExpiresAt       time.Time
	ChargeID        string // originating gateway charge; unique across rows
	CouponCode      *string
	DiscountPercent int
	CreatedAt       time.Time
}

// NewSubscription builds the entitlement an approved intent grants.
func NewSubscription(id string, intent *PaymentIntent, startAt time.Time) (*Subscription, error) {
	if id == "" || intent == nil || intent.ChargeID == nil || *intent.ChargeID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		ID:              id,
		UserID:          intent.UserID,
		PlanID:          intent.PlanID,
		Status:          SubscriptionStatusActive,
		StartAt:         startAt,
		ExpiresAt:       intent.SubExpiresAt,
		ChargeID:        *intent.ChargeID,
		CouponCode:      intent.CouponCode,
		DiscountPercent: intent.DiscountPercent,
		CreatedAt:       time.Now(),
	}, nil
}
