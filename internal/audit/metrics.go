package audit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit ledger and outbox relay.
type Metrics struct {
	AppendDuration  *prometheus.HistogramVec
	AppendFailures  *prometheus.CounterVec
	RelayPublished  prometheus.Counter
	RelayFailures   prometheus.Counter
	RelayBacklogAge prometheus.Gauge
}

// NewMetrics registers the audit metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		AppendDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docverify_audit_append_duration_seconds",
			Help:    "Duration of audit ledger appends by action",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"action"}),

		AppendFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_audit_append_failures_total",
			Help: "Audit appends that failed and forced the lifecycle operation to fail",
		}, []string{"action"}),

		RelayPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docverify_audit_outbox_published_total",
			Help: "Outbox messages published to Kafka",
		}),

		RelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docverify_audit_outbox_publish_failures_total",
			Help: "Outbox relay batches that failed to publish",
		}),

		RelayBacklogAge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "docverify_audit_outbox_oldest_unpublished_seconds",
			Help: "Age of the oldest unpublished outbox message seen by the relay",
		}),
	}
}

func (m *Metrics) ObserveAppend(action Action, d time.Duration) {
	if m != nil {
		m.AppendDuration.WithLabelValues(action.String()).Observe(d.Seconds())
	}
}

func (m *Metrics) IncAppendFailures(action Action) {
	if m != nil {
		m.AppendFailures.WithLabelValues(action.String()).Inc()
	}
}

func (m *Metrics) AddPublished(n int) {
	if m != nil {
		m.RelayPublished.Add(float64(n))
	}
}

func (m *Metrics) IncRelayFailures() {
	if m != nil {
		m.RelayFailures.Inc()
	}
}

func (m *Metrics) SetBacklogAge(d time.Duration) {
	if m != nil {
		m.RelayBacklogAge.Set(d.Seconds())
	}
}
