package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsActivatedTotal,
		subscriptionsActiveGauge,
	)
}

var (
	subscriptionsActivatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_activated_total",
			Help: "Subscriptions granted per plan.",
		},
		[]string{"plan"},
	)

	subscriptionsActiveGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_active",
			Help: "Current number of active subscriptions per plan.",
		},
		[]string{"plan"},
	)
)

func IncSubscriptionActivated(planID string) {
	subscriptionsActivatedTotal.WithLabelValues(norm(planID)).Inc()
}

func SetActiveSubscriptions(counts map[string]int) {
	for plan, count := range counts {
		subscriptionsActiveGauge.WithLabelValues(norm(plan)).Set(float64(count))
	}
}
