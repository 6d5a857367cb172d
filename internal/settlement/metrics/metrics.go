package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the settlement ledger.
type Metrics struct {
	Recorded    *prometheus.CounterVec
	Transitions *prometheus.CounterVec
}

// New creates and registers all settlement metrics.
func New() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "courseflow_payments_recorded_total",
			Help: "Payment record attempts by outcome",
		}, []string{"outcome"}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "courseflow_payment_transitions_total",
			Help: "Payment status transition attempts by edge and outcome",
		}, []string{"from", "to", "outcome"}),
	}
}

// ObserveRecorded records one payment creation attempt.
func (m *Metrics) ObserveRecorded(outcome string) {
	if m != nil {
		m.Recorded.WithLabelValues(outcome).Inc()
	}
}

// ObserveTransition records one payment transition attempt.
func (m *Metrics) ObserveTransition(from, to, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to, outcome).Inc()
	}
}
