package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-subscription-billing/internal/domain"
	"quiz-subscription-billing/internal/domain/model"
	"quiz-subscription-billing/internal/domain/ports/repository"
	"quiz-subscription-billing/internal/infra/metrics"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `id, user_id, plan_id, status, start_at, expires_at, charge_id, coupon_code, discount_percent, created_at`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	if err := row.Scan(
		&s.ID, &s.UserID, &s.PlanID, &s.Status, &s.StartAt, &s.ExpiresAt,
		&s.ChargeID, &s.CouponCode, &s.DiscountPercent, &s.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

// SaveIfChargeNew relies on the unique index on charge_id: the INSERT either
// lands or hits the conflict clause, so two concurrent activations for the
// same charge cannot both report success.
func (r *subscriptionRepo) SaveIfChargeNew(ctx context.Context, tx repository.Tx, s *model.Subscription) (bool, error) {
	const q = `
INSERT INTO subscriptions (id, user_id, plan_id, status, start_at, expires_at, charge_id, coupon_code, discount_percent, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (charge_id) DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, s.Status, s.StartAt, s.ExpiresAt,
		s.ChargeID, s.CouponCode, s.DiscountPercent, s.CreatedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	inserted := cmd.RowsAffected() >= 1
	if inserted {
		metrics.IncSubscriptionActivated(s.PlanID)
	}
	return inserted, nil
}

func (r *subscriptionRepo) FindByChargeID(ctx context.Context, tx repository.Tx, chargeID string) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE charge_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, chargeID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *subscriptionRepo) CountActiveByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	const q = `SELECT plan_id, COUNT(*) FROM subscriptions WHERE status='active' AND expires_at > NOW() GROUP BY plan_id;`
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

	out := make(map[string]int)
	for rows.Next() {
		var planID string
		var n int
		if err := rows.Scan(&planID, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[planID] = n
	}
	return out, nil
}
