package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"quiz-subscription-billing/internal/domain"
	"quiz-subscription-billing/internal/infra/metrics"
	"quiz-subscription-billing/internal/usecase"
)

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

// A struct to define the expected JSON request body for quoting a plan.
type quoteRequest struct {
	UserID     string `json:"user_id"`
	PlanID     string `json:"plan_id"`
	CouponCode string `json:"coupon_code"`
}

// quoteHandler prices a plan + optional coupon without creating anything.
func quoteHandler(pricingUC usecase.PricingUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req quoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		quote, err := pricingUC.Quote(ctx, req.UserID, req.PlanID, req.CouponCode, time.Now())
		if err != nil {
			if err == domain.ErrUnknownPlan {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			if err == domain.ErrInvalidArgument {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to quote plan", http.StatusInternalServerError)
			return
		}

		response := struct {
			PlanID          string `json:"plan_id"`
			BasePriceCents  int64  `json:"base_price_cents"`
			DiscountPercent int    `json:"discount_percent"`
			FinalPriceCents int64  `json:"final_price_cents"`
			Currency        string `json:"currency"`
			CouponCode      string `json:"coupon_code,omitempty"`
			CouponRejection string `json:"coupon_rejection,omitempty"`
		}{
			PlanID:          quote.PlanID,
			BasePriceCents:  quote.BasePriceCents,
			DiscountPercent: quote.DiscountPercent,
			FinalPriceCents: quote.FinalPriceCents,
			Currency:        quote.Currency,
			CouponCode:      quote.CouponCode,
			CouponRejection: string(quote.CouponRejection),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

// checkoutHandler creates a payment intent and a gateway checkout session.
func checkoutHandler(checkoutUC usecase.CheckoutUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req quoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		intent, checkoutURL, err := checkoutUC.CreateIntent(ctx, req.UserID, req.PlanID, req.CouponCode)
		if err != nil {
			switch err {
			case domain.ErrUnknownPlan:
				http.Error(w, err.Error(), http.StatusNotFound)
			case domain.ErrInvalidArgument, domain.ErrPriceOutOfRange:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "Failed to create checkout session", http.StatusInternalServerError)
			}
			return
		}

		response := struct {
			SessionID       string `json:"session_id"`
			CheckoutURL     string `json:"checkout_url,omitempty"`
			FinalPriceCents int64  `json:"final_price_cents"`
			Currency        string `json:"currency"`
			DiscountPercent int    `json:"discount_percent"`
		}{
			SessionID:       intent.SessionID,
			CheckoutURL:     checkoutURL,
			FinalPriceCents: intent.FinalPriceCents,
			Currency:        intent.Currency,
			DiscountPercent: intent.DiscountPercent,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(response)
	}
}

type chargeSubmitRequest struct {
	SessionID       string `json:"session_id"`
	InstrumentToken string `json:"instrument_token"`
	PayerEmail      string `json:"payer_email"`
}

// chargeHandler submits a tokenized instrument against an open session.
func chargeHandler(chargeUC usecase.ChargeUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req chargeSubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		outcome, err := chargeUC.Submit(ctx, req.SessionID, req.InstrumentToken, req.PayerEmail)
		if err != nil {
			switch err {
			case domain.ErrNotFound:
				http.Error(w, "Unknown session", http.StatusNotFound)
			case domain.ErrInvalidArgument:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "Failed to submit charge", http.StatusInternalServerError)
			}
			return
		}
		metrics.IncPayment(string(outcome.Status))

		response := struct {
			Status   string `json:"status"`
			ChargeID string `json:"charge_id,omitempty"`
			Message  string `json:"message,omitempty"`
		}{
			Status:   string(outcome.Status),
			ChargeID: outcome.ChargeID,
			Message:  outcome.Message,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

// webhookPayload mirrors the gateway's notification shape. The charge id
// arrives as a string or a bare number depending on the notification channel,
// hence json.Number.
type webhookPayload struct {
	Type string `json:"type"`
	Data struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// webhookHandler accepts gateway payment notifications. The payload is only a
// pointer; the charge is always re-fetched from the gateway before any state
// change. Deliveries are always acked with 200, even on internal processing
// errors, to avoid retry storms; failed reconciliations are logged and picked
// up again by the stale-intent worker.
func webhookHandler(reconcileUC usecase.ReconcileUseCase, log *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var payload webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			log.Warn().Err(err).Msg("undecodable webhook body")
		}

		eventType := payload.Type
		chargeID := payload.Data.ID.String()
		// IPN-style delivery carries the same fields as query parameters.
		if eventType == "" {
			eventType = r.URL.Query().Get("type")
			if eventType == "" {
				eventType = r.URL.Query().Get("topic")
			}
		}
		if chargeID == "" {
			chargeID = r.URL.Query().Get("data.id")
			if chargeID == "" {
				chargeID = r.URL.Query().Get("id")
			}
		}

		if eventType == "" || chargeID == "" {
			metrics.IncWebhookEvent(eventType, "malformed")
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := reconcileUC.HandleEvent(ctx, eventType, chargeID); err != nil {
			metrics.IncWebhookEvent(eventType, "failed")
			log.Error().Err(err).
				Str("event_type", eventType).
				Str("charge_id", chargeID).
				Msg("webhook reconciliation failed")
			w.WriteHeader(http.StatusOK)
			return
		}
		metrics.IncWebhookEvent(eventType, "ok")
		w.WriteHeader(http.StatusOK)
	}
}

// ===== Admin handlers =====

func loginHandler(auth *AuthManager, adminPassword string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if adminPassword == "" || req.Password != adminPassword {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		token, err := auth.Mint(w)
		if err != nil {
			http.Error(w, "Failed to mint session", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}

func logoutHandler(auth *AuthManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

// revenueHandler sums approved charges since the start of the requested
// period ("day" | "week" | "month").
func revenueHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		period := r.URL.Query().Get("period")
		if period == "" {
			period = "month"
		}

		total, err := statsUC.RevenueByPeriod(ctx, period)
		if err != nil {
			if err == domain.ErrInvalidArgument {
				http.Error(w, "Invalid period", http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to get revenue", http.StatusInternalServerError)
			return
		}

		response := struct {
			Period            string `json:"period"`
			RevenueTotalCents int64  `json:"revenue_total_cents"`
		}{
			Period:            period,
			RevenueTotalCents: total,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

func activeSubscriptionsHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		counts, err := statsUC.ActiveSubscriptionsByPlan(ctx)
		if err != nil {
			http.Error(w, "Failed to get subscription counts", http.StatusInternalServerError)
			return
		}
		metrics.SetActiveSubscriptions(counts)

		response := struct {
			ActiveByPlan map[string]int `json:"active_by_plan"`
		}{
			ActiveByPlan: counts,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

func couponStatsHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		code := chi.URLParam(r, "code")
		if code == "" {
			http.Error(w, "Coupon code is required", http.StatusBadRequest)
			return
		}

		stats, err := statsUC.CouponStats(ctx, code)
		if err != nil {
			if err == domain.ErrNotFound {
				http.NotFound(w, r)
				return
			}
			http.Error(w, "Failed to get coupon stats", http.StatusInternalServerError)
			return
		}

		response := struct {
			Code               string `json:"code"`
			TotalUses          int    `json:"total_uses"`
			UniqueUsers        int    `json:"unique_users"`
			TotalDiscountCents int64  `json:"total_discount_cents"`
		}{
			Code:               stats.Code,
			TotalUses:          stats.TotalUses,
			UniqueUsers:        stats.UniqueUsers,
			TotalDiscountCents: stats.TotalDiscountCents,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}
