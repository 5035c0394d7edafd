package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the identity transition counters. A nil *Metrics is valid and
// records nothing, so unit tests skip registry setup.
type Metrics struct {
	UsersRegistered       prometheus.Counter
	VerificationDecisions *prometheus.CounterVec
	TransitionsRejected   prometheus.Counter
}

// New creates and registers the identity metrics.
func New() *Metrics {
	return &Metrics{
		UsersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carledger_users_registered_total",
			Help: "Total user records created.",
		}),
		VerificationDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carledger_user_verification_decisions_total",
			Help: "Government verification decisions by outcome.",
		}, []string{"outcome"}),
		TransitionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carledger_identity_transitions_rejected_total",
			Help: "Identity transitions refused by the state machine.",
		}),
	}
}

func (m *Metrics) IncRegistered() {
	if m == nil {
		return
	}
	m.UsersRegistered.Inc()
}

func (m *Metrics) IncDecision(outcome string) {
	if m == nil {
		return
	}
	m.VerificationDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	m.TransitionsRejected.Inc()
}
