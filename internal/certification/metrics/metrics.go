package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the certification counters. A nil *Metrics records nothing.
type Metrics struct {
	ReportsIssued       *prometheus.CounterVec
	ReportsApproved     *prometheus.CounterVec
	TransitionsRejected prometheus.Counter
}

// New creates and registers the certification metrics.
func New() *Metrics {
	return &Metrics{
		ReportsIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carledger_reports_issued_total",
			Help: "Reports created, by type (inspection/conformity).",
		}, []string{"type"}),
		ReportsApproved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carledger_reports_approved_total",
			Help: "Owner approvals recorded, by report type.",
		}, []string{"type"}),
		TransitionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carledger_certification_transitions_rejected_total",
			Help: "Certification transitions refused by the state machine.",
		}),
	}
}

func (m *Metrics) IncIssued(reportType string) {
	if m == nil {
		return
	}
	m.ReportsIssued.WithLabelValues(reportType).Inc()
}

func (m *Metrics) IncApproved(reportType string) {
	if m == nil {
		return
	}
	m.ReportsApproved.WithLabelValues(reportType).Inc()
}

func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	m.TransitionsRejected.Inc()
}
