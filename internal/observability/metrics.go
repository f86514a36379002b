package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	chatConnectionsGauge  prometheus.Gauge
	chatMessagesTotal     *prometheus.CounterVec
	moderationActionsVec  *prometheus.CounterVec
	auditWriteFailuresCtr prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opvera_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opvera_http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		chatConnectionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opvera_chat_connections",
			Help: "Number of currently open chat websocket connections.",
		})

		chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opvera_chat_messages_total",
			Help: "Total number of chat messages delivered, by kind.",
		}, []string{"kind"})

		moderationActionsVec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opvera_moderation_actions_total",
			Help: "Total number of audited moderation actions, by action tag.",
		}, []string{"action"})

		auditWriteFailuresCtr = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opvera_audit_write_failures_total",
			Help: "Audit entries that failed to persist after a committed mutation.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			chatConnectionsGauge,
			chatMessagesTotal,
			moderationActionsVec,
			auditWriteFailuresCtr,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// ChatConnections exposes the open-connection gauge.
func ChatConnections() prometheus.Gauge {
	RegisterMetrics()
	return chatConnectionsGauge
}

// ChatMessages exposes the delivered-message counter.
func ChatMessages() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesTotal
}

// ModerationActions exposes the audited-action counter.
func ModerationActions() *prometheus.CounterVec {
	RegisterMetrics()
	return moderationActionsVec
}

// AuditWriteFailures exposes the swallowed audit failure counter.
func AuditWriteFailures() prometheus.Counter {
	RegisterMetrics()
	return auditWriteFailuresCtr
}
