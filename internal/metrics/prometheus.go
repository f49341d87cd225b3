package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ActiveConnections tracks currently open widget/dashboard connections
	// on this instance.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "engage_active_connections",
			Help: "Number of open websocket connections",
		},
	)

	// EventsTotal counts inbound events by name.
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_events_total",
			Help: "Inbound events processed, by event name",
		},
		[]string{"event"},
	)

	// RateLimitedTotal counts events rejected by the sliding window.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engage_rate_limited_total",
			Help: "Events rejected by the per-connection rate limiter",
		},
	)

	// LeadsCapturedTotal counts leads captured over the socket path.
	LeadsCapturedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engage_leads_captured_total",
			Help: "Leads captured through the chat widget",
		},
	)

	// WelcomesSentTotal counts proactive welcome messages created.
	WelcomesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engage_welcomes_sent_total",
			Help: "Proactive welcome messages created",
		},
	)

	// WebhookDeliveriesTotal counts outbound webhook attempts by outcome.
	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engage_webhook_deliveries_total",
			Help: "Outbound lead webhook attempts, by status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		ActiveConnections,
		EventsTotal,
		RateLimitedTotal,
		LeadsCapturedTotal,
		WelcomesSentTotal,
		WebhookDeliveriesTotal,
	)
}
