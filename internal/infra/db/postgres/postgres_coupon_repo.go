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

var _ repository.CouponRepository = (*couponRepo)(nil)

type couponRepo struct{ pool *pgxpool.Pool }

func NewCouponRepo(pool *pgxpool.Pool) *couponRepo {
	return &couponRepo{pool: pool}
}

const couponColumns = `code, percent_off, active, valid_from, valid_until, plan_ids, max_uses, max_per_user, created_at, updated_at`

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	c := &model.Coupon{}
	if err := row.Scan(
		&c.Code, &c.PercentOff, &c.Active, &c.ValidFrom, &c.ValidUntil,
		&c.PlanIDs, &c.MaxUses, &c.MaxPerUser, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return c, nil
}

func (r *couponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	const q = `
INSERT INTO coupons (code, percent_off, active, valid_from, valid_until, plan_ids, max_uses, max_per_user, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (code) DO UPDATE SET
  percent_off=$2, active=$3, valid_from=$4, valid_until=$5, plan_ids=$6, max_uses=$7, max_per_user=$8, updated_at=$10;`

	_, err := execSQL(ctx, r.pool, tx, q,
		c.Code, c.PercentOff, c.Active, c.ValidFrom, c.ValidUntil,
		c.PlanIDs, c.MaxUses, c.MaxPerUser, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *couponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE code=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanCoupon(row)
}

func (r *couponRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons ORDER BY code ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
