package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"quiz-subscription-billing/internal/usecase"
)

type Server struct {
	pricingUC   usecase.PricingUseCase
	checkoutUC  usecase.CheckoutUseCase
	chargeUC    usecase.ChargeUseCase
	reconcileUC usecase.ReconcileUseCase
	statsUC     usecase.StatsUseCase

	auth          *AuthManager
	adminPassword string

	httpSrv *http.Server
	log     *zerolog.Logger
}

func NewServer(
	pricingUC usecase.PricingUseCase,
	checkoutUC usecase.CheckoutUseCase,
	chargeUC usecase.ChargeUseCase,
	reconcileUC usecase.ReconcileUseCase,
	statsUC usecase.StatsUseCase,
	auth *AuthManager,
	adminPassword string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		pricingUC:     pricingUC,
		checkoutUC:    checkoutUC,
		chargeUC:      chargeUC,
		reconcileUC:   reconcileUC,
		statsUC:       statsUC,
		auth:          auth,
		adminPassword: adminPassword,
		log:           logger,
	}
}

// Router assembles the public billing API, the gateway webhook endpoint and
// the JWT-protected admin surface.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(traceID)
	r.Use(requestLog(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/billing/quotes", quoteHandler(s.pricingUC))
		r.Post("/billing/checkout", checkoutHandler(s.checkoutUC))
		r.Post("/billing/charges", chargeHandler(s.chargeUC))

		r.Post("/webhooks/payments", webhookHandler(s.reconcileUC, s.log))

		r.Post("/admin/login", loginHandler(s.auth, s.adminPassword))
		r.Post("/admin/logout", logoutHandler(s.auth))
		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Get("/admin/stats/revenue", revenueHandler(s.statsUC))
			r.Get("/admin/stats/subscriptions", activeSubscriptionsHandler(s.statsUC))
			r.Get("/admin/stats/coupons/{code}", couponStatsHandler(s.statsUC))
		})
	})

	return r
}

func (s *Server) Start(port int) error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}
	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// adminOnly rejects requests without a valid admin session token.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil || claims.Role != "admin" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
