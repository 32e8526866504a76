package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the capability module.
type Metrics struct {
	CreatorsCreated   prometheus.Counter
	AuthorizeFailures prometheus.Counter
}

// New creates a new Metrics instance with all capability module metrics registered.
func New() *Metrics {
	return &Metrics{
		CreatorsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subvault_creators_created_total",
			Help: "Total number of creator accounts minted",
		}),
		AuthorizeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subvault_capability_authorize_failures_total",
			Help: "Total number of capability checks that rejected a mismatched binding",
		}),
	}
}

// IncrementCreatorsCreated records a successful account creation.
func (m *Metrics) IncrementCreatorsCreated() {
	m.CreatorsCreated.Inc()
}

// IncrementAuthorizeFailures records a rejected capability presentation.
func (m *Metrics) IncrementAuthorizeFailures() {
	m.AuthorizeFailures.Inc()
}
