package model

import (
	"strings"
	"time"
)

// NormalizeCouponCode canonicalizes a user-entered coupon code. Codes are
// case-insensitive and stored upper-case.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Coupon is a percentage discount with a validity window expressed as
// inclusive calendar days in UTC.
type Coupon struct {
	Code       string // unique, upper-case
	PercentOff int    // 0..100
	Active     bool
	ValidFrom  time.Time // date; effective from start-of-day UTC
	ValidUntil time.Time // date; effective through end-of-day UTC
	PlanIDs    []string  // empty = applicable to every plan
	MaxUses    int       // 0 = unlimited total redemptions
	MaxPerUser int       // 0 = unlimited redemptions per user
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CouponRejection explains why a coupon did not apply. The quote still
// proceeds at full price; this is informational for the UI.
type CouponRejection string

const (
	CouponRejectNone           CouponRejection = ""
	CouponRejectNotFound       CouponRejection = "not_found"
	CouponRejectInactive       CouponRejection = "inactive"
	CouponRejectExpired        CouponRejection = "outside_validity_window"
	CouponRejectPlanNotCovered CouponRejection = "plan_not_covered"
	CouponRejectMaxUses        CouponRejection = "max_uses_reached"
	CouponRejectMaxPerUser     CouponRejection = "max_uses_per_user_reached"
)

// windowStart is start-of-day UTC of ValidFrom.
func (c *Coupon) windowStart() time.Time {
	t := c.ValidFrom.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// windowEnd is the first instant after the ValidUntil day, i.e. the coupon is
// usable at 23:59:59 of ValidUntil and unusable at 00:00:00 the day after.
func (c *Coupon) windowEnd() time.Time {
	t := c.ValidUntil.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// UsableAt reports whether the coupon can discount planID at time t, and the
// rejection reason when it cannot. Usage caps are checked separately since
// they need the ledger.
func (c *Coupon) UsableAt(t time.Time, planID string) CouponRejection {
	if !c.Active {
		return CouponRejectInactive
	}
	u := t.UTC()
	if u.Before(c.windowStart()) || !u.Before(c.windowEnd()) {
		return CouponRejectExpired
	}
	if len(c.PlanIDs) > 0 {
		covered := false
		for _, id := range c.PlanIDs {
			if id == planID {
				covered = true
				break
			}
		}
		if !covered {
			return CouponRejectPlanNotCovered
		}
	}
	return CouponRejectNone
}

// CouponUsage is one row of the append-only redemption ledger. At most one row
// exists per (coupon code, charge id); a row created at quote time carries only
// the session id and is upgraded with the charge id on first approval.
type CouponUsage struct {
	ID             string // ULID
	CouponCode     string
	UserID         string
	PlanID         string
	SessionID      string
	ChargeID       *string // nil until the charge is known
	BasePriceCents int64
	PaidCents      int64
	DiscountCents  int64
	UsedAt         time.Time
}

// CouponStats aggregates the ledger for one coupon, counting only rows whose
// linked charge reached approved.
type CouponStats struct {
	Code               string
	TotalUses          int
	UniqueUsers        int
	TotalDiscountCents int64
}
