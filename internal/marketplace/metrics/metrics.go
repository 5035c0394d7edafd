package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the marketplace counters. A nil *Metrics records nothing.
type Metrics struct {
	BuyRequestsCreated  prometheus.Counter
	BuyRequestsDecided  *prometheus.CounterVec
	CarsTransferred     prometheus.Counter
	TransitionsRejected prometheus.Counter
}

// New creates and registers the marketplace metrics.
func New() *Metrics {
	return &Metrics{
		BuyRequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carledger_buy_requests_created_total",
			Help: "Buy requests opened against for-sale cars.",
		}),
		BuyRequestsDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carledger_buy_requests_decided_total",
			Help: "Buy request decisions, by outcome (accepted/rejected).",
		}, []string{"outcome"}),
		CarsTransferred: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carledger_cars_transferred_total",
			Help: "Ownership transfers, via sale or direct transfer.",
		}),
		TransitionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carledger_marketplace_transitions_rejected_total",
			Help: "Marketplace transitions refused by the state machine.",
		}),
	}
}

func (m *Metrics) IncRequested() {
	if m == nil {
		return
	}
	m.BuyRequestsCreated.Inc()
}

func (m *Metrics) IncDecided(outcome string) {
	if m == nil {
		return
	}
	m.BuyRequestsDecided.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncTransferred() {
	if m == nil {
		return
	}
	m.CarsTransferred.Inc()
}

func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	m.TransitionsRejected.Inc()
}
