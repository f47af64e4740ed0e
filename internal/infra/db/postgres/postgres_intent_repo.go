package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-subscription-billing/internal/domain"
	"quiz-subscription-billing/internal/domain/model"
	"quiz-subscription-billing/internal/domain/ports/repository"
	"quiz-subscription-billing/internal/infra/metrics"
)

var _ repository.IntentRepository = (*intentRepo)(nil)

type intentRepo struct{ pool *pgxpool.Pool }

func NewIntentRepo(pool *pgxpool.Pool) *intentRepo {
	return &intentRepo{pool: pool}
}

const intentColumns = `id, user_id, plan_id, session_id, charge_id, base_price_cents, discount_percent, coupon_code, final_price_cents, currency, status, status_detail, sub_expires_at, submission_count, created_at, updated_at`

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	pi := &model.PaymentIntent{}
	if err := row.Scan(
		&pi.ID, &pi.UserID, &pi.PlanID, &pi.SessionID, &pi.ChargeID,
		&pi.BasePriceCents, &pi.DiscountPercent, &pi.CouponCode, &pi.FinalPriceCents,
		&pi.Currency, &pi.Status, &pi.StatusDetail, &pi.SubExpiresAt,
		&pi.SubmissionCount, &pi.CreatedAt, &pi.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return pi, nil
}

func (r *intentRepo) Save(ctx context.Context, tx repository.Tx, pi *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (
  id, user_id, plan_id, session_id, charge_id, base_price_cents, discount_percent, coupon_code, final_price_cents, currency, status, status_detail, sub_expires_at, submission_count, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (id) DO UPDATE SET
  status=$11, status_detail=$12, updated_at=$16;`

	_, err := execSQL(ctx, r.pool, tx, q,
		pi.ID, pi.UserID, pi.PlanID, pi.SessionID, pi.ChargeID,
		pi.BasePriceCents, pi.DiscountPercent, pi.CouponCode, pi.FinalPriceCents,
		pi.Currency, pi.Status, pi.StatusDetail, pi.SubExpiresAt,
		pi.SubmissionCount, pi.CreatedAt, pi.UpdatedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *intentRepo) FindBySessionID(ctx context.Context, tx repository.Tx, sessionID string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE session_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, sessionID)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *intentRepo) FindByChargeID(ctx context.Context, tx repository.Tx, chargeID string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE charge_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, chargeID)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *intentRepo) FindLatestOpenByUserPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_intents
 WHERE user_id=$1 AND plan_id=$2 AND status IN ('pending','in_review')
 ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, planID)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

// AttachChargeID binds the charge in a single atomic statement: the write only
// lands when no charge is attached yet (or the same one is re-attached), so
// two concurrent submissions cannot both win.
func (r *intentRepo) AttachChargeID(ctx context.Context, tx repository.Tx, sessionID, chargeID string) error {
	const q = `
UPDATE payment_intents
   SET charge_id = $2, updated_at = NOW()
 WHERE session_id = $1
   AND (charge_id IS NULL OR charge_id = $2);`

	cmd, err := execSQL(ctx, r.pool, tx, q, sessionID, chargeID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() >= 1 {
		return nil
	}

	// Zero rows: either the session does not exist, or another charge won.
	if _, err := r.FindBySessionID(ctx, tx, sessionID); err != nil {
		return err
	}
	metrics.IncChargeConflict()
	return domain.ErrChargeConflict
}

func (r *intentRepo) NextSubmissionSeq(ctx context.Context, tx repository.Tx, sessionID string) (int, error) {
	const q = `
UPDATE payment_intents
   SET submission_count = submission_count + 1, updated_at = NOW()
 WHERE session_id = $1
RETURNING submission_count;`

	row, err := pickRow(ctx, r.pool, tx, q, sessionID)
	if err != nil {
		return 0, err
	}
	var seq int
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return seq, nil
}

// UpdateStatusIfOpen performs the status transition and the activation guard
// as one conditional write: the RETURNING clause only yields a row when this
// call moved the intent, which is what makes approval exactly-once under races.
func (r *intentRepo) UpdateStatusIfOpen(ctx context.Context, tx repository.Tx, intentID string, status model.IntentStatus, statusDetail string) (bool, error) {
	const q = `
UPDATE payment_intents
   SET status = $2, status_detail = $3, updated_at = NOW()
 WHERE id = $1
   AND status IN ('pending','in_review')
RETURNING final_price_cents, currency;`

	row, err := pickRow(ctx, r.pool, tx, q, intentID, string(status), statusDetail)
	if err != nil {
		return false, err
	}
	var cents int64
	var currency string
	if err := row.Scan(&cents, &currency); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, domain.ErrReadDatabaseRow
	}
	if status == model.IntentStatusApproved {
		metrics.AddPaymentRevenue(currency, cents)
	}
	return true, nil
}

func (r *intentRepo) ListOpenWithChargeOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + intentColumns + ` FROM payment_intents
 WHERE status IN ('pending','in_review') AND charge_id IS NOT NULL AND updated_at < $1
 ORDER BY updated_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentIntent
	for rows.Next() {
		pi, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pi)
	}
	return out, nil
}

func (r *intentRepo) SumApprovedByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(final_price_cents),0) FROM payment_intents WHERE status='approved' AND updated_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
