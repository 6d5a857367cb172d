package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the course lifecycle.
type Metrics struct {
	// Transitions by from/to status and outcome (ok, denied, invalid,
	// aborted, error).
	Transitions *prometheus.CounterVec

	// Courses created, labelled by outcome.
	Created *prometheus.CounterVec
}

// New creates and registers all course lifecycle metrics.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "courseflow_course_transitions_total",
			Help: "Course status transition attempts by edge and outcome",
		}, []string{"from", "to", "outcome"}),

		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "courseflow_courses_created_total",
			Help: "Course creation attempts by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveTransition records one transition attempt.
func (m *Metrics) ObserveTransition(from, to, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to, outcome).Inc()
	}
}

// ObserveCreated records one creation attempt.
func (m *Metrics) ObserveCreated(outcome string) {
	if m != nil {
		m.Created.WithLabelValues(outcome).Inc()
	}
}
