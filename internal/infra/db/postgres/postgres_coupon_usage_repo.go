package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-subscription-billing/internal/domain"
	"quiz-subscription-billing/internal/domain/model"
	"quiz-subscription-billing/internal/domain/ports/repository"
)

var _ repository.CouponUsageRepository = (*couponUsageRepo)(nil)

type couponUsageRepo struct{ pool *pgxpool.Pool }

func NewCouponUsageRepo(pool *pgxpool.Pool) *couponUsageRepo {
	return &couponUsageRepo{pool: pool}
}

const usageColumns = `id, coupon_code, user_id, plan_id, session_id, charge_id, base_price_cents, paid_cents, discount_cents, used_at`

func scanUsage(row pgx.Row) (*model.CouponUsage, error) {
	u := &model.CouponUsage{}
	if err := row.Scan(
		&u.ID, &u.CouponCode, &u.UserID, &u.PlanID, &u.SessionID, &u.ChargeID,
		&u.BasePriceCents, &u.PaidCents, &u.DiscountCents, &u.UsedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

// Upsert keeps the (coupon, charge) pair unique: an existing charge-keyed row
// wins, a session-keyed soft row is upgraded in place, and only then is a new
// row inserted. The unique index on (coupon_code, charge_id) backstops the
// read-then-write against concurrent recorders.
func (r *couponUsageRepo) Upsert(ctx context.Context, tx repository.Tx, u *model.CouponUsage) (bool, error) {
	if u.ChargeID != nil {
		existing, err := r.FindByCouponAndCharge(ctx, tx, u.CouponCode, *u.ChargeID)
		if err == nil && existing != nil {
			return false, nil
		}
		if err != nil && err != domain.ErrNotFound {
			return false, err
		}

		// Upgrade the quote-time soft row when one exists for this session.
		const upgrade = `
UPDATE coupon_usages
   SET charge_id = $3, paid_cents = $4, discount_cents = $5, used_at = $6
 WHERE coupon_code = $1 AND session_id = $2 AND charge_id IS NULL;`
		cmd, err := execSQL(ctx, r.pool, tx, upgrade, u.CouponCode, u.SessionID, u.ChargeID, u.PaidCents, u.DiscountCents, u.UsedAt)
		if err != nil {
			if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
				return false, err
			}
			return false, domain.ErrOperationFailed
		}
		if cmd.RowsAffected() >= 1 {
			return false, nil
		}
	}

	// The arbiter index on (coupon_code, charge_id) is partial, so the conflict
	// target must repeat its predicate for Postgres to infer it.
	const insert = `
INSERT INTO coupon_usages (id, coupon_code, user_id, plan_id, session_id, charge_id, base_price_cents, paid_cents, discount_cents, used_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (coupon_code, charge_id) WHERE charge_id IS NOT NULL DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, insert,
		u.ID, u.CouponCode, u.UserID, u.PlanID, u.SessionID, u.ChargeID,
		u.BasePriceCents, u.PaidCents, u.DiscountCents, u.UsedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		// The session-keyed unique constraint is not the conflict target above,
		// so a concurrent recorder for the same session surfaces here.
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *couponUsageRepo) FindByCouponAndCharge(ctx context.Context, tx repository.Tx, code, chargeID string) (*model.CouponUsage, error) {
	q := `SELECT ` + usageColumns + ` FROM coupon_usages WHERE coupon_code=$1 AND charge_id=$2 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, code, chargeID)
	if err != nil {
		return nil, err
	}
	return scanUsage(row)
}

func (r *couponUsageRepo) ListByCoupon(ctx context.Context, tx repository.Tx, code string) ([]*model.CouponUsage, error) {
	q := `SELECT ` + usageColumns + ` FROM coupon_usages WHERE coupon_code=$1 ORDER BY used_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, code)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.CouponUsage
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *couponUsageRepo) CountByCoupon(ctx context.Context, tx repository.Tx, code string) (int, error) {
	const q = `SELECT COUNT(*) FROM coupon_usages WHERE coupon_code=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *couponUsageRepo) CountByCouponAndUser(ctx context.Context, tx repository.Tx, code, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM coupon_usages WHERE coupon_code=$1 AND user_id=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, code, userID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
