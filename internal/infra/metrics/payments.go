package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		chargeConflictsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Charge outcomes by intent status (pending/in_review/approved/declined).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_cents_total",
			Help: "Total minor-unit value of approved charges, labeled by currency.",
		},
		[]string{"currency"},
	)

	chargeConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_charge_conflicts_total",
			Help: "Charge-id attach conflicts flagged for manual reconciliation.",
		},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amountCents int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amountCents))
}

func IncChargeConflict() {
	chargeConflictsTotal.Inc()
}
