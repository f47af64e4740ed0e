package model

import (
	"time"

	"quiz-subscription-billing/internal/domain"
)

// IntentStatus is the checkout state machine.
//
// pending   -> approved | declined | in_review
// in_review -> approved | declined
//
// "in_review" covers the gateway's pending/in_process/authorized family and is
// not terminal; approved and declined are terminal for a given charge.
type IntentStatus string

const (
	IntentStatusPending  IntentStatus = "pending"
	IntentStatusInReview IntentStatus = "in_review"
	IntentStatusApproved IntentStatus = "approved"
	IntentStatusDeclined IntentStatus = "declined"
)

func (s IntentStatus) Terminal() bool {
	return s == IntentStatusApproved || s == IntentStatusDeclined
}

// OpenStatuses are the statuses a concurrent writer may still transition from.
var OpenStatuses = []IntentStatus{IntentStatusPending, IntentStatusInReview}

// StatusFromGateway maps the gateway's status vocabulary onto the local state
// machine. Unknown values map to in_review so the reconciler can settle them
// later instead of guessing a terminal outcome.
func StatusFromGateway(gw string) IntentStatus {
	switch gw {
	case "approved":
		return IntentStatusApproved
	case "rejected", "cancelled", "refunded", "charged_back":
		return IntentStatusDeclined
	case "pending", "in_process", "in_mediation", "authorized":
		return IntentStatusInReview
	default:
		return IntentStatusInReview
	}
}

// PaymentIntent is the durable record of a single checkout attempt, from quote
// to terminal charge outcome. Rows are never deleted; they are the audit trail.
type PaymentIntent struct {
	ID              string // UUID, local primary key
	UserID          string
	PlanID          string
	SessionID       string  // gateway checkout session, assigned before any charge exists
	ChargeID        *string // gateway charge id, nil until a charge is attempted
	BasePriceCents  int64
	DiscountPercent int
	CouponCode      *string // normalized upper-case, nil when no coupon applied
	FinalPriceCents int64
	Currency        string
	Status          IntentStatus
	StatusDetail    string // free-text reason from the gateway
	SubExpiresAt    time.Time // subscription expiry this purchase would grant
	SubmissionCount int       // charge submissions attempted for this session
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FinalPriceCents applies a percentage discount to a price in minor units,
// rounding half away from zero. Prices and discounts are validated upstream,
// so both operands are non-negative here.
func FinalPriceCents(baseCents int64, percentOff int) int64 {
	return (baseCents*int64(100-percentOff) + 50) / 100
}

// NewPaymentIntent constructs a pending intent for a freshly quoted checkout.
func NewPaymentIntent(id, userID string, plan *Plan, sessionID string, discountPercent int, couponCode string, subExpiresAt time.Time) (*PaymentIntent, error) {
	if id == "" || userID == "" || plan.IsZero() || sessionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if discountPercent < 0 || discountPercent > 100 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	pi := &PaymentIntent{
		ID:              id,
		UserID:          userID,
		PlanID:          plan.ID,
		SessionID:       sessionID,
		BasePriceCents:  plan.PriceCents,
		DiscountPercent: discountPercent,
		FinalPriceCents: FinalPriceCents(plan.PriceCents, discountPercent),
		Currency:        plan.Currency,
		Status:          IntentStatusPending,
		SubExpiresAt:    subExpiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if couponCode != "" {
		pi.CouponCode = &couponCode
	}
	return pi, nil
}

// HasDiscount reports whether the intent carries an applied coupon.
func (pi *PaymentIntent) HasDiscount() bool {
	return pi.CouponCode != nil && *pi.CouponCode != "" && pi.DiscountPercent > 0
}

// DiscountCents is the absolute discount granted against the base price.
func (pi *PaymentIntent) DiscountCents() int64 {
	return pi.BasePriceCents - pi.FinalPriceCents
}
