package adapter

import (
	"context"
	"time"
)

// ChargeMetadata is the strict schema this engine round-trips through the
// gateway's free-form metadata. Everything arriving from the gateway is
// coerced into this shape at the adapter boundary before business logic runs.
type ChargeMetadata struct {
	UserID       string
	PlanID       string
	CouponCode   string
	SubExpiresAt time.Time
}

// SessionRequest creates a hosted-checkout session before any charge exists.
type SessionRequest struct {
	Title          string
	AmountCents    int64
	Currency       string
	SuccessURL     string
	FailureURL     string
	PendingURL     string
	IdempotencyKey string
	Metadata       ChargeMetadata
}

// ChargeRequest submits a tokenized instrument against a session.
type ChargeRequest struct {
	SessionID       string
	AmountCents     int64
	Currency        string
	InstrumentToken string
	PayerEmail      string
	Description     string
	IdempotencyKey  string
	Metadata        ChargeMetadata
}

// ChargeResult is the gateway's immediate response to a charge submission.
// Status carries the gateway's own vocabulary; mapping it onto the local state
// machine happens in the use-case layer.
type ChargeResult struct {
	ChargeID     string
	Status       string
	StatusDetail string
	AmountCents  int64
}

// ChargeDetails is the authoritative charge record re-fetched by id. Webhook
// payload fields beyond the id are never trusted; this is.
type ChargeDetails struct {
	ChargeID     string
	SessionID    string
	Status       string
	StatusDetail string
	AmountCents  int64
	Currency     string
	Metadata     ChargeMetadata
}

// PaymentGateway is the outbound boundary to the external payment provider.
type PaymentGateway interface {
	Name() string
	CreateSession(ctx context.Context, req SessionRequest) (sessionID, checkoutURL string, err error)
	SubmitCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	FetchCharge(ctx context.Context, chargeID string) (*ChargeDetails, error)
}
