package payment

import (
	"context"
	"fmt"
	"sync"

	"quiz-subscription-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway for dev mode and tests.
// Every submitted charge is approved immediately.
type NoopPaymentGateway struct {
	mu      sync.Mutex
	seq     int64
	charges map[string]*adapter.ChargeDetails // charge id -> details
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		charges: make(map[string]*adapter.ChargeDetails),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s-%d", prefix, g.seq)
}

func (g *NoopPaymentGateway) CreateSession(ctx context.Context, req adapter.SessionRequest) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sessionID := g.next("noop-session")
	return sessionID, "https://example.test/pay/" + sessionID, nil
}

func (g *NoopPaymentGateway) SubmitCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next("noop-charge")
	g.charges[id] = &adapter.ChargeDetails{
		ChargeID:     id,
		SessionID:    req.SessionID,
		Status:       "approved",
		StatusDetail: "accredited",
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Metadata:     req.Metadata,
	}
	return &adapter.ChargeResult{
		ChargeID:     id,
		Status:       "approved",
		StatusDetail: "accredited",
		AmountCents:  req.AmountCents,
	}, nil
}

func (g *NoopPaymentGateway) FetchCharge(ctx context.Context, chargeID string) (*adapter.ChargeDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.charges[chargeID]
	if !ok {
		return nil, fmt.Errorf("noop: charge not found")
	}
	return d, nil
}
