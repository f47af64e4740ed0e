package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"quiz-subscription-billing/internal/domain/ports/adapter"
)

// MercadoPagoGateway implements adapter.PaymentGateway using direct HTTP calls.
type MercadoPagoGateway struct {
	accessToken string
	baseURL     string
	client      *http.Client
}

// NewMercadoPagoGateway creates a new direct Mercado Pago gateway.
func NewMercadoPagoGateway(accessToken, baseURL string) *MercadoPagoGateway {
	if baseURL == "" {
		baseURL = "https://api.mercadopago.com"
	}
	return &MercadoPagoGateway{
		accessToken: accessToken,
		baseURL:     baseURL,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *MercadoPagoGateway) Name() string { return "mercadopago" }

// The wire format carries decimal currency units; everything on our side is
// integer minor units. Conversion happens only here, at the boundary.
func centsToAmount(cents int64) float64 { return float64(cents) / 100 }
func amountToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type preferenceItem struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type preferenceBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type preferenceRequest struct {
	Items    []preferenceItem       `json:"items"`
	BackURLs preferenceBackURLs     `json:"back_urls"`
	Metadata map[string]interface{} `json:"metadata"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CreateSession implements adapter.PaymentGateway.CreateSession.
func (g *MercadoPagoGateway) CreateSession(ctx context.Context, req adapter.SessionRequest) (string, string, error) {
	body := preferenceRequest{
		Items: []preferenceItem{{
			Title:     req.Title,
			Quantity:  1,
			UnitPrice: centsToAmount(req.AmountCents),
		}},
		BackURLs: preferenceBackURLs{
			Success: req.SuccessURL,
			Failure: req.FailureURL,
			Pending: req.PendingURL,
		},
		Metadata: metadataFields(req.Metadata),
	}

	var resp preferenceResponse
	if err := g.post(ctx, "/checkout/preferences", req.IdempotencyKey, body, &resp); err != nil {
		return "", "", err
	}
	if resp.ID == "" {
		return "", "", fmt.Errorf("gateway returned preference without id")
	}
	return resp.ID, resp.InitPoint, nil
}

type chargeRequestBody struct {
	TransactionAmount float64                `json:"transaction_amount"`
	Token             string                 `json:"token"`
	Description       string                 `json:"description"`
	ExternalReference string                 `json:"external_reference"`
	Payer             map[string]string      `json:"payer"`
	Metadata          map[string]interface{} `json:"metadata"`
}

type chargeResponseBody struct {
	ID                int64                  `json:"id"`
	Status            string                 `json:"status"`
	StatusDetail      string                 `json:"status_detail"`
	TransactionAmount float64                `json:"transaction_amount"`
	CurrencyID        string                 `json:"currency_id"`
	ExternalReference string                 `json:"external_reference"`
	Metadata          map[string]interface{} `json:"metadata"`
}

// SubmitCharge implements adapter.PaymentGateway.SubmitCharge. The caller's
// idempotency key is forwarded so gateway-side retries of the same attempt
// cannot double-charge.
func (g *MercadoPagoGateway) SubmitCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.ChargeResult, error) {
	body := chargeRequestBody{
		TransactionAmount: centsToAmount(req.AmountCents),
		Token:             req.InstrumentToken,
		Description:       req.Description,
		ExternalReference: req.SessionID,
		Payer:             map[string]string{"email": req.PayerEmail},
		Metadata:          metadataFields(req.Metadata),
	}

	var resp chargeResponseBody
	if err := g.post(ctx, "/v1/payments", req.IdempotencyKey, body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == 0 || resp.Status == "" {
		return nil, fmt.Errorf("gateway returned charge without id or status")
	}
	return &adapter.ChargeResult{
		ChargeID:     fmt.Sprintf("%d", resp.ID),
		Status:       resp.Status,
		StatusDetail: resp.StatusDetail,
		AmountCents:  amountToCents(resp.TransactionAmount),
	}, nil
}

// FetchCharge implements adapter.PaymentGateway.FetchCharge.
func (g *MercadoPagoGateway) FetchCharge(ctx context.Context, chargeID string) (*adapter.ChargeDetails, error) {
	url := g.baseURL + "/v1/payments/" + chargeID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway error: status %d, body: %s", resp.StatusCode, string(raw))
	}

	var body chargeResponseBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
	}

	return &adapter.ChargeDetails{
		ChargeID:     fmt.Sprintf("%d", body.ID),
		SessionID:    body.ExternalReference,
		Status:       body.Status,
		StatusDetail: body.StatusDetail,
		AmountCents:  amountToCents(body.TransactionAmount),
		Currency:     body.CurrencyID,
		Metadata:     parseMetadata(body.Metadata),
	}, nil
}

func (g *MercadoPagoGateway) post(ctx context.Context, path, idempotencyKey string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("gateway error: status %d, body: %s", resp.StatusCode, string(raw))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("gateway rejected request: status %d, body: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
	}
	return nil
}

// metadataFields serializes the strict metadata schema for the gateway's
// free-form metadata object.
func metadataFields(m adapter.ChargeMetadata) map[string]interface{} {
	fields := map[string]interface{}{
		"user_id": m.UserID,
		"plan_id": m.PlanID,
	}
	if m.CouponCode != "" {
		fields["coupon_code"] = m.CouponCode
	}
	if !m.SubExpiresAt.IsZero() {
		fields["sub_expires_at"] = m.SubExpiresAt.UTC().Format(time.RFC3339)
	}
	return fields
}

// parseMetadata coerces the gateway's loosely-typed metadata back into the
// strict schema. Anything malformed degrades to the zero value; downstream
// validation decides what is recoverable.
func parseMetadata(raw map[string]interface{}) adapter.ChargeMetadata {
	var m adapter.ChargeMetadata
	if v, ok := raw["user_id"].(string); ok {
		m.UserID = v
	}
	if v, ok := raw["plan_id"].(string); ok {
		m.PlanID = v
	}
	if v, ok := raw["coupon_code"].(string); ok {
		m.CouponCode = v
	}
	if v, ok := raw["sub_expires_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			m.SubExpiresAt = t
		}
	}
	return m
}
