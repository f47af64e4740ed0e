package repository

import (
	"context"

	"quiz-subscription-billing/internal/domain/model"
)

// CouponRepository reads coupon records by canonical (upper-case) code.
type CouponRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Coupon) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Coupon, error)
	List(ctx context.Context, tx Tx) ([]*model.Coupon, error)
}

// CouponUsageRepository is the append-only redemption ledger.
type CouponUsageRepository interface {
	// Upsert records a redemption keyed by (coupon code, charge id), or by
	// (coupon code, session id) while the charge id is unknown. When a soft
	// session-keyed row already exists it is upgraded with the charge id
	// instead of inserting a duplicate. Returns (true, nil) when a new row was
	// created, (false, nil) when an existing row already covered the charge.
	Upsert(ctx context.Context, tx Tx, u *model.CouponUsage) (bool, error)

	FindByCouponAndCharge(ctx context.Context, tx Tx, code, chargeID string) (*model.CouponUsage, error)
	ListByCoupon(ctx context.Context, tx Tx, code string) ([]*model.CouponUsage, error)
	CountByCoupon(ctx context.Context, tx Tx, code string) (int, error)
	CountByCouponAndUser(ctx context.Context, tx Tx, code, userID string) (int, error)
}
