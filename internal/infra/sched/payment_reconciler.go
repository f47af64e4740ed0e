package sched

import (
	"context"
	"log"
	"time"

	"quiz-subscription-billing/internal/domain/ports/repository"
	"quiz-subscription-billing/internal/usecase"
)

// PaymentReconciler periodically scans for stale open intents that already have
// a charge attached and replays reconciliation against the gateway. This covers
// cases where a webhook was lost or the process crashed mid-settlement.
type PaymentReconciler struct {
	uc         usecase.ReconcileUseCase
	intents    repository.IntentRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old an open intent must be to retry
}

func NewPaymentReconciler(uc usecase.ReconcileUseCase, intents repository.IntentRepository, interval, staleAfter time.Duration) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &PaymentReconciler{uc: uc, intents: intents, interval: interval, staleAfter: staleAfter}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.intents.ListOpenWithChargeOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		log.Printf("payment-reconciler: list open error: %v", err)
		return
	}
	for _, pi := range stale {
		if pi.ChargeID == nil || *pi.ChargeID == "" {
			continue
		}
		if err := w.uc.ReconcileCharge(ctx, *pi.ChargeID); err != nil {
			log.Printf("payment-reconciler: reconcile failed intent=%s charge=%s err=%v", pi.ID, *pi.ChargeID, err)
			continue
		}
		log.Printf("payment-reconciler: reconciled intent=%s", pi.ID)
	}
}
