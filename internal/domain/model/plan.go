package model

import (
	"time"

	"quiz-subscription-billing/internal/domain"
)

// Plan represents a purchasable subscription plan with a fixed duration and a
// base price in integer minor units (cents).
type Plan struct {
	ID           string
	Name         string
	DurationDays int
	PriceCents   int64
	Currency     string
	CreatedAt    time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, durationDays int, priceCents int64, currency string) (*Plan, error) {
	if id == "" || name == "" || durationDays <= 0 || priceCents <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:           id,
		Name:         name,
		DurationDays: durationDays,
		PriceCents:   priceCents,
		Currency:     currency,
		CreatedAt:    time.Now(),
	}, nil
}

// Duration returns the entitlement window granted by one purchase of the plan.
func (p *Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}
