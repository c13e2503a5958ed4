// Package metrics provides Prometheus instrumentation for the chat sync
// server. It exposes gauges for connection and subscription counts, counters
// for event throughput, and a histogram for publish-side latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hearth_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// SubscriptionsActive tracks the number of channel keys with at least one
	// local subscriber.
	SubscriptionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hearth_subscriptions_active_keys",
		Help: "Channel keys with at least one active local subscriber",
	})

	// EventsPublished counts events published to channel keys, labeled by
	// event type.
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_events_published_total",
		Help: "Total events published after committed mutations",
	}, []string{"type"})

	// EventsDelivered counts event deliveries to local subscribers.
	EventsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hearth_events_delivered_total",
		Help: "Total event deliveries to locally subscribed connections",
	})

	// MessagesTotal counts inbound message sends, labeled by outcome:
	// "created", "duplicate", or "rejected".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hearth_messages_total",
		Help: "Total message send commands processed",
	}, []string{"outcome"})

	// PublishLatency records the time from mutation commit to event publish.
	PublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hearth_publish_latency_seconds",
		Help:    "Latency between mutation commit and event publish",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		SubscriptionsActive,
		EventsPublished,
		EventsDelivered,
		MessagesTotal,
		PublishLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
