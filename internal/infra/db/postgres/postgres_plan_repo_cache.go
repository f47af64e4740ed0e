package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quiz-subscription-billing/internal/domain/model"
	"quiz-subscription-billing/internal/domain/ports/repository"
	"quiz-subscription-billing/internal/infra/metrics"
	red "quiz-subscription-billing/internal/infra/redis"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

// planRepoCacheDecorator caches plan reads in Redis. Plans are the hottest
// read on the quote path and change only via the seeder, so a 1h TTL is safe.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient) repository.PlanRepository {
	return &planRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
	}
}

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	key := fmt.Sprintf("plan:%s", id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var plan model.Plan
		if json.Unmarshal([]byte(val), &plan) == nil {
			metrics.IncCacheRequest("plan", "hit")
			return &plan, nil
		}
	} else if err == red.Nil {
		metrics.IncCacheRequest("plan", "miss")
	} else {
		// A degraded cache must not fail the quote path.
		metrics.IncCacheRequest("plan", "error")
	}

	plan, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(plan); err == nil {
		_ = d.cache.Set(ctx, key, string(b), d.ttl)
	}
	return plan, nil
}

func (d *planRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	if err := d.inner.Save(ctx, tx, p); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, fmt.Sprintf("plan:%s", p.ID))
	return nil
}

func (d *planRepoCacheDecorator) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return d.inner.List(ctx, tx)
}
