package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification lifecycle.
type Metrics struct {
	// Submissions by verification type
	Submissions *prometheus.CounterVec

	// Decisions by outcome (approved, rejected)
	Decisions *prometheus.CounterVec

	// Decide calls that lost the pending guard or targeted an unknown request
	DecideGuardMisses prometheus.Counter

	// Decisions persisted without their audit entry; must stay at zero
	DecisionAuditInconsistency prometheus.Counter

	// Lifecycle operation latency by operation
	OperationLatency *prometheus.HistogramVec
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_verification_submissions_total",
			Help: "Verification requests submitted by verification type",
		}, []string{"verification_type"}),

		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docverify_verification_decisions_total",
			Help: "Review decisions by resulting status",
		}, []string{"status"}),

		DecideGuardMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docverify_verification_decide_not_pending_total",
			Help: "Decide attempts on requests that were missing or already decided",
		}),

		DecisionAuditInconsistency: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docverify_decision_audit_inconsistency_total",
			Help: "Decisions persisted without an audit entry because the store had no transaction support",
		}),

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docverify_verification_operation_duration_seconds",
			Help:    "Duration of lifecycle operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncSubmission(verificationType string) {
	if m != nil {
		m.Submissions.WithLabelValues(verificationType).Inc()
	}
}

func (m *Metrics) IncDecision(status string) {
	if m != nil {
		m.Decisions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncGuardMiss() {
	if m != nil {
		m.DecideGuardMisses.Inc()
	}
}

func (m *Metrics) IncAuditInconsistency() {
	if m != nil {
		m.DecisionAuditInconsistency.Inc()
	}
}

// ObserveLatency records the duration of a lifecycle operation.
func (m *Metrics) ObserveLatency(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
