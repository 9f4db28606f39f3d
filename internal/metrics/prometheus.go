package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus implements Recorder on top of client_golang collectors.
type Prometheus struct {
	webhooksTotal         *prometheus.CounterVec
	webhookDuration       *prometheus.HistogramVec
	directoryCallsTotal   *prometheus.CounterVec
	directoryCallDuration *prometheus.HistogramVec
	breakerStateChanges   *prometheus.CounterVec
}

func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	factory := promauto.With(reg)

	return &Prometheus{
		webhooksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Total number of payment webhook deliveries by event and outcome.",
		}, []string{"event", "outcome"}),

		webhookDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "processing_duration_seconds",
			Help:      "Duration of webhook processing in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),

		directoryCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "calls_total",
			Help:      "Total number of directory API calls by operation and status.",
		}, []string{"op", "status"}),

		directoryCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "call_duration_seconds",
			Help:      "Duration of directory API calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		breakerStateChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "breaker_state_changes_total",
			Help:      "Circuit breaker transitions by breaker and new state.",
		}, []string{"breaker", "state"}),
	}
}

func (m *Prometheus) RecordWebhook(event, outcome string) {
	m.webhooksTotal.WithLabelValues(event, outcome).Inc()
}

func (m *Prometheus) RecordWebhookDuration(event string, d time.Duration) {
	m.webhookDuration.WithLabelValues(event).Observe(d.Seconds())
}

func (m *Prometheus) RecordDirectoryCall(op, status string) {
	m.directoryCallsTotal.WithLabelValues(op, status).Inc()
}

func (m *Prometheus) RecordDirectoryCallDuration(op string, d time.Duration) {
	m.directoryCallDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Prometheus) RecordBreakerState(name, state string) {
	m.breakerStateChanges.WithLabelValues(name, state).Inc()
}
