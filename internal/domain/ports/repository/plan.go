package repository

import (
	"context"

	"quiz-subscription-billing/internal/domain/model"
)

// PlanRepository reads the fixed plan allow-list. Authoring plans is out of
// scope for this engine; the seeder writes them once.
type PlanRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Plan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	List(ctx context.Context, tx Tx) ([]*model.Plan, error)
}
