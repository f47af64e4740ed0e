//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"quiz-subscription-billing/internal/domain"
	"quiz-subscription-billing/internal/domain/model"
	"quiz-subscription-billing/internal/domain/ports/adapter"
	"quiz-subscription-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// =============================
// Repositories
// =============================

// ---- Mock IntentRepository ----

// MockIntentRepo is a stateful in-memory intent store. Its conditional writes
// mirror the Postgres implementation so races in the use cases are observable
// in tests.
type MockIntentRepo struct {
	mu   sync.Mutex
	byID map[string]*model.PaymentIntent

	SaveFunc               func(ctx context.Context, tx repository.Tx, pi *model.PaymentIntent) error
	UpdateStatusIfOpenFunc func(ctx context.Context, tx repository.Tx, intentID string, status model.IntentStatus, detail string) (bool, error)
	AttachChargeIDFunc     func(ctx context.Context, tx repository.Tx, sessionID, chargeID string) error
}

var _ repository.IntentRepository = (*MockIntentRepo)(nil)

func NewMockIntentRepo() *MockIntentRepo {
	return &MockIntentRepo{byID: map[string]*model.PaymentIntent{}}
}

func cloneIntent(pi *model.PaymentIntent) *model.PaymentIntent {
	cp := *pi
	if pi.ChargeID != nil {
		c := *pi.ChargeID
		cp.ChargeID = &c
	}
	if pi.CouponCode != nil {
		c := *pi.CouponCode
		cp.CouponCode = &c
	}
	return &cp
}

func (m *MockIntentRepo) Save(ctx context.Context, tx repository.Tx, pi *model.PaymentIntent) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, pi)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[pi.ID] = cloneIntent(pi)
	return nil
}

func (m *MockIntentRepo) FindBySessionID(ctx context.Context, tx repository.Tx, sessionID string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pi := range m.byID {
		if pi.SessionID == sessionID {
			return cloneIntent(pi), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) FindByChargeID(ctx context.Context, tx repository.Tx, chargeID string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pi := range m.byID {
		if pi.ChargeID != nil && *pi.ChargeID == chargeID {
			return cloneIntent(pi), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) FindLatestOpenByUserPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.PaymentIntent
	for _, pi := range m.byID {
		if pi.UserID != userID || pi.PlanID != planID || pi.Status.Terminal() {
			continue
		}
		if latest == nil || pi.CreatedAt.After(latest.CreatedAt) {
			latest = pi
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return cloneIntent(latest), nil
}

func (m *MockIntentRepo) AttachChargeID(ctx context.Context, tx repository.Tx, sessionID, chargeID string) error {
	if m.AttachChargeIDFunc != nil {
		return m.AttachChargeIDFunc(ctx, tx, sessionID, chargeID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pi := range m.byID {
		if pi.SessionID != sessionID {
			continue
		}
		if pi.ChargeID == nil {
			c := chargeID
			pi.ChargeID = &c
			return nil
		}
		if *pi.ChargeID == chargeID {
			return nil
		}
		return domain.ErrChargeConflict
	}
	return domain.ErrNotFound
}

func (m *MockIntentRepo) NextSubmissionSeq(ctx context.Context, tx repository.Tx, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pi := range m.byID {
		if pi.SessionID == sessionID {
			pi.SubmissionCount++
			return pi.SubmissionCount, nil
		}
	}
	return 0, domain.ErrNotFound
}

func (m *MockIntentRepo) UpdateStatusIfOpen(ctx context.Context, tx repository.Tx, intentID string, status model.IntentStatus, detail string) (bool, error) {
	if m.UpdateStatusIfOpenFunc != nil {
		return m.UpdateStatusIfOpenFunc(ctx, tx, intentID, status, detail)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pi, ok := m.byID[intentID]
	if !ok {
		return false, nil
	}
	if pi.Status.Terminal() {
		return false, nil
	}
	pi.Status = status
	pi.StatusDetail = detail
	pi.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockIntentRepo) ListOpenWithChargeOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentIntent
	for _, pi := range m.byID {
		if pi.Status.Terminal() || pi.ChargeID == nil {
			continue
		}
		if pi.UpdatedAt.Before(olderThan) {
			out = append(out, cloneIntent(pi))
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MockIntentRepo) SumApprovedByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, pi := range m.byID {
		if pi.Status == model.IntentStatusApproved {
			total += pi.FinalPriceCents
		}
	}
	return total, nil
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu       sync.Mutex
	byCharge map[string]*model.Subscription

	SaveIfChargeNewFunc func(ctx context.Context, tx repository.Tx, s *model.Subscription) (bool, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{byCharge: map[string]*model.Subscription{}}
}

func (m *MockSubscriptionRepo) SaveIfChargeNew(ctx context.Context, tx repository.Tx, s *model.Subscription) (bool, error) {
	if m.SaveIfChargeNewFunc != nil {
		return m.SaveIfChargeNewFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCharge[s.ChargeID]; ok {
		return false, nil
	}
	cp := *s
	m.byCharge[s.ChargeID] = &cp
	return true, nil
}

func (m *MockSubscriptionRepo) FindByChargeID(ctx context.Context, tx repository.Tx, chargeID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byCharge[chargeID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.byCharge {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) CountActiveByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	now := time.Now()
	for _, s := range m.byCharge {
		if s.Status == model.SubscriptionStatusActive && s.ExpiresAt.After(now) {
			counts[s.PlanID]++
		}
	}
	return counts, nil
}

func (m *MockSubscriptionRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byCharge)
}

// ---- Mock PlanRepository ----

type MockPlanRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Plan
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo { return &MockPlanRepo{byID: map[string]*model.Plan{}} }

func (m *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockPlanRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Plan, 0, len(m.byID))
	for _, p := range m.byID {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ---- Mock CouponRepository ----

type MockCouponRepo struct {
	mu     sync.Mutex
	byCode map[string]*model.Coupon
}

var _ repository.CouponRepository = (*MockCouponRepo)(nil)

func NewMockCouponRepo() *MockCouponRepo { return &MockCouponRepo{byCode: map[string]*model.Coupon{}} }

func (m *MockCouponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.byCode[c.Code] = &cp
	return nil
}

func (m *MockCouponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byCode[code]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockCouponRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Coupon, 0, len(m.byCode))
	for _, c := range m.byCode {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// ---- Mock CouponUsageRepository ----

type MockCouponUsageRepo struct {
	mu   sync.Mutex
	rows []*model.CouponUsage
}

var _ repository.CouponUsageRepository = (*MockCouponUsageRepo)(nil)

func NewMockCouponUsageRepo() *MockCouponUsageRepo { return &MockCouponUsageRepo{} }

func cloneUsage(u *model.CouponUsage) *model.CouponUsage {
	cp := *u
	if u.ChargeID != nil {
		c := *u.ChargeID
		cp.ChargeID = &c
	}
	return &cp
}

// Upsert mirrors the Postgres semantics: an existing charge-keyed row wins, a
// session-keyed soft row is upgraded in place, otherwise a new row is added.
func (m *MockCouponUsageRepo) Upsert(ctx context.Context, tx repository.Tx, u *model.CouponUsage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ChargeID != nil {
		for _, row := range m.rows {
			if row.CouponCode == u.CouponCode && row.ChargeID != nil && *row.ChargeID == *u.ChargeID {
				return false, nil
			}
		}
		for _, row := range m.rows {
			if row.CouponCode == u.CouponCode && row.SessionID == u.SessionID && row.ChargeID == nil {
				c := *u.ChargeID
				row.ChargeID = &c
				row.PaidCents = u.PaidCents
				row.DiscountCents = u.DiscountCents
				row.UsedAt = u.UsedAt
				return false, nil
			}
		}
	}
	m.rows = append(m.rows, cloneUsage(u))
	return true, nil
}

func (m *MockCouponUsageRepo) FindByCouponAndCharge(ctx context.Context, tx repository.Tx, code, chargeID string) (*model.CouponUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.CouponCode == code && row.ChargeID != nil && *row.ChargeID == chargeID {
			return cloneUsage(row), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockCouponUsageRepo) ListByCoupon(ctx context.Context, tx repository.Tx, code string) ([]*model.CouponUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.CouponUsage
	for _, row := range m.rows {
		if row.CouponCode == code {
			out = append(out, cloneUsage(row))
		}
	}
	return out, nil
}

func (m *MockCouponUsageRepo) CountByCoupon(ctx context.Context, tx repository.Tx, code string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.CouponCode == code {
			n++
		}
	}
	return n, nil
}

func (m *MockCouponUsageRepo) CountByCouponAndUser(ctx context.Context, tx repository.Tx, code, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.CouponCode == code && row.UserID == userID {
			n++
		}
	}
	return n, nil
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	byID map[string]*model.User

	SetCurrentPlanFunc func(ctx context.Context, tx repository.Tx, userID, planID string, expiresAt time.Time) error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo { return &MockUserRepo{byID: map[string]*model.User{}} }

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) SetCurrentPlan(ctx context.Context, tx repository.Tx, userID, planID string, expiresAt time.Time) error {
	if m.SetCurrentPlanFunc != nil {
		return m.SetCurrentPlanFunc(ctx, tx, userID, planID, expiresAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		u = &model.User{ID: userID, RegisteredAt: time.Now()}
		m.byID[userID] = u
	}
	p := planID
	e := expiresAt
	u.PlanID = &p
	u.PlanExpiresAt = &e
	u.UpdatedAt = time.Now()
	return nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu       sync.Mutex
	sessions int
	charges  int
	Charges  map[string]*adapter.ChargeDetails // FetchCharge source of truth

	// tracing of invocations
	SubmittedKeys []string // idempotency keys seen by SubmitCharge

	CreateSessionFunc func(ctx context.Context, req adapter.SessionRequest) (string, string, error)
	SubmitChargeFunc  func(ctx context.Context, req adapter.ChargeRequest) (*adapter.ChargeResult, error)
	FetchChargeFunc   func(ctx context.Context, chargeID string) (*adapter.ChargeDetails, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreateSession(ctx context.Context, req adapter.SessionRequest) (string, string, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions++
	id := fmt.Sprintf("sess-%d", m.sessions)
	return id, "https://gateway.test/checkout/" + id, nil
}

func (m *MockPaymentGateway) SubmitCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.ChargeResult, error) {
	m.mu.Lock()
	m.SubmittedKeys = append(m.SubmittedKeys, req.IdempotencyKey)
	m.mu.Unlock()
	if m.SubmitChargeFunc != nil {
		return m.SubmitChargeFunc(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges++
	return &adapter.ChargeResult{
		ChargeID:     fmt.Sprintf("ch-%d", m.charges),
		Status:       "approved",
		StatusDetail: "accredited",
		AmountCents:  req.AmountCents,
	}, nil
}

func (m *MockPaymentGateway) FetchCharge(ctx context.Context, chargeID string) (*adapter.ChargeDetails, error) {
	if m.FetchChargeFunc != nil {
		return m.FetchChargeFunc(ctx, chargeID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.Charges[chargeID]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}
