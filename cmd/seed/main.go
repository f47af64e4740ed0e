package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"quiz-subscription-billing/internal/config"
	"quiz-subscription-billing/internal/domain/model"
	"quiz-subscription-billing/internal/domain/ports/repository"
	pg "quiz-subscription-billing/internal/infra/db/postgres"
)

func main() {
	// ---- Config ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	planRepo := pg.NewPlanRepo(pool)
	couponRepo := pg.NewCouponRepo(pool)

	// If plans already exist, do nothing
	plans, err := planRepo.List(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (days=%d, price=%d %s)\n", p.Name, p.DurationDays, p.PriceCents, p.Currency)
		}
		return
	}

	// Seed sample plans for testing the checkout flow
	seed := []struct {
		Name  string
		Days  int
		Price int64
	}{
		{"Monthly", 30, 2_990},
		{"Semester", 180, 14_300},
	}

	planIDs := make([]string, 0, len(seed))
	for _, s := range seed {
		p, err := model.NewPlan(uuid.NewString(), s.Name, s.Days, s.Price, "BRL")
		if err != nil {
			log.Fatalf("new plan %q: %v", s.Name, err)
		}
		if err := planRepo.Save(ctx, repository.NoTX, p); err != nil {
			log.Fatalf("save plan %q: %v", s.Name, err)
		}
		planIDs = append(planIDs, p.ID)
		fmt.Printf("seeded plan: %s (id=%s, days=%d, price=%d BRL cents)\n", p.Name, p.ID, p.DurationDays, p.PriceCents)
	}

	// Seed sample coupons
	now := time.Now().UTC()
	coupons := []*model.Coupon{
		{
			Code:       "SAVE20",
			PercentOff: 20,
			Active:     true,
			ValidFrom:  now,
			ValidUntil: now.AddDate(0, 3, 0),
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		{
			Code:       "WELCOME10",
			PercentOff: 10,
			Active:     true,
			ValidFrom:  now,
			ValidUntil: now.AddDate(1, 0, 0),
			PlanIDs:    planIDs[:1], // monthly only
			MaxPerUser: 1,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
	for _, c := range coupons {
		if err := couponRepo.Save(ctx, repository.NoTX, c); err != nil {
			log.Fatalf("save coupon %q: %v", c.Code, err)
		}
		fmt.Printf("seeded coupon: %s (%d%% off)\n", c.Code, c.PercentOff)
	}

	fmt.Println("✅ Seeding complete.")
}
