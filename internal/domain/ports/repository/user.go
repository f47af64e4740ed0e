package repository

import (
	"context"
	"time"

	"quiz-subscription-billing/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)

	// SetCurrentPlan projects the most recent activation onto the user's
	// effective plan/expiry fields.
	SetCurrentPlan(ctx context.Context, tx Tx, userID, planID string, expiresAt time.Time) error
}
