// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SessionEventsTotal tracks events applied by the session reducer.
	SessionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_events_total",
			Help: "Total events applied by the session state machine",
		},
		[]string{"event"},
	)

	// SendsTotal tracks message sends by outcome.
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_sends_total",
			Help: "Total message sends by outcome",
		},
		[]string{"outcome"},
	)

	// StreamActive tracks whether an answer stream is currently live.
	StreamActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_stream_active",
			Help: "Whether an answer stream is currently live (0 or 1)",
		},
	)

	// PushMessagesTotal tracks server-pushed messages received.
	PushMessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_push_messages_total",
			Help: "Total server-pushed messages received",
		},
	)

	// RelatedFetchesTotal tracks related-question fetches by status.
	RelatedFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_related_fetches_total",
			Help: "Total related-question fetches by status",
		},
		[]string{"status"},
	)

	// TransportRPCDuration tracks outbound RPC duration.
	TransportRPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transport_rpc_duration_seconds",
			Help:    "Outbound transport RPC duration",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordSessionEvent records one applied reducer event.
func RecordSessionEvent(event string) {
	SessionEventsTotal.WithLabelValues(event).Inc()
}

// RecordSend records a send outcome ("accepted" or "rejected").
func RecordSend(outcome string) {
	SendsTotal.WithLabelValues(outcome).Inc()
}

// SetStreamActive records whether an answer stream is live.
func SetStreamActive(active bool) {
	if active {
		StreamActive.Set(1)
		return
	}
	StreamActive.Set(0)
}

// RecordPushMessage records one received push message.
func RecordPushMessage() {
	PushMessagesTotal.Inc()
}

// RecordRelatedFetch records a related-question fetch status.
func RecordRelatedFetch(status string) {
	RelatedFetchesTotal.WithLabelValues(status).Inc()
}

// RecordTransportRPC records one outbound RPC.
func RecordTransportRPC(op, status string, duration float64) {
	TransportRPCDuration.WithLabelValues(op, status).Observe(duration)
}
