package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the vehicle-registry counters. A nil *Metrics records
// nothing.
type Metrics struct {
	CarsRegistered      prometheus.Counter
	SaleListings        *prometheus.CounterVec
	TransitionsRejected prometheus.Counter
}

// New creates and registers the registry metrics.
func New() *Metrics {
	return &Metrics{
		CarsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carledger_cars_registered_total",
			Help: "Total car records created.",
		}),
		SaleListings: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carledger_sale_listing_changes_total",
			Help: "Sale listing flips by direction (listed/unlisted).",
		}, []string{"direction"}),
		TransitionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carledger_registry_transitions_rejected_total",
			Help: "Registry transitions refused by the state machine.",
		}),
	}
}

func (m *Metrics) IncRegistered() {
	if m == nil {
		return
	}
	m.CarsRegistered.Inc()
}

func (m *Metrics) IncListing(direction string) {
	if m == nil {
		return
	}
	m.SaleListings.WithLabelValues(direction).Inc()
}

func (m *Metrics) IncRejected() {
	if m == nil {
		return
	}
	m.TransitionsRejected.Inc()
}
