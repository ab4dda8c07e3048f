// Package metrics exposes Prometheus counters for guard decisions and
// session changes.
package metrics

import (
	"estate/internal/guard"
	"estate/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the web service counters
type Metrics struct {
	guardDecisions *prometheus.CounterVec
	sessionChanges *prometheus.CounterVec
}

// New registers the counters on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		guardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "estate",
			Name:      "guard_decisions_total",
			Help:      "Route guard decisions by outcome.",
		}, []string{"decision"}),
		sessionChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "estate",
			Name:      "session_changes_total",
			Help:      "Session mutations by kind.",
		}, []string{"kind"}),
	}
}

// ObserveDecision is a guard.DecisionObserver
func (m *Metrics) ObserveDecision(_ guard.Requirement, d guard.Decision) {
	m.guardDecisions.WithLabelValues(d.String()).Inc()
}

// ObserveChange is a session.Observer
func (m *Metrics) ObserveChange(change session.Change) {
	m.sessionChanges.WithLabelValues(string(change.Kind)).Inc()
}
