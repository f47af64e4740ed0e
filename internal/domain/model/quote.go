package model

// Quote is the priced outcome of a plan + optional coupon lookup. It is a pure
// computation result; persisting it (as a PaymentIntent) is the caller's call.
type Quote struct {
	PlanID          string
	BasePriceCents  int64
	DiscountPercent int
	FinalPriceCents int64
	Currency        string
	CouponCode      string          // normalized; empty when none supplied or rejected
	CouponRejection CouponRejection // why the supplied coupon did not apply
}
