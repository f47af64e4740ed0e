package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookFailuresTotal,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries by event type and handling result.",
		},
		[]string{"type", "result"}, // result: ok|malformed|failed
	)

	// A silently failing reconciler leaves paid users without subscriptions,
	// so failures get their own counter for alerting.
	webhookFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_failures_total",
			Help: "Webhook deliveries whose internal processing failed (still acked).",
		},
	)
)

func IncWebhookEvent(eventType, result string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(result)).Inc()
	if result == "failed" {
		webhookFailuresTotal.Inc()
	}
}
