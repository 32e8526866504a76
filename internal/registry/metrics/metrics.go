package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the subscription registry module.
type Metrics struct {
	SubscriptionsCreated prometheus.Counter
	Purchases            prometheus.Counter
	Cancellations        prometheus.Counter
	Unsubscribes         prometheus.Counter
	ContentReads         prometheus.Counter
	AccessDenied         *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		SubscriptionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subvault_subscriptions_created_total",
			Help: "Total number of subscriptions published",
		}),
		Purchases: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subvault_subscription_purchases_total",
			Help: "Total number of access grants issued, repurchases included",
		}),
		Cancellations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subvault_subscription_cancellations_total",
			Help: "Total number of subscriptions cancelled by their creator",
		}),
		Unsubscribes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subvault_subscription_unsubscribes_total",
			Help: "Total number of grants revoked by their holder",
		}),
		ContentReads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subvault_content_reads_total",
			Help: "Total number of successful content reads",
		}),
		AccessDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subvault_access_denied_total",
			Help: "Content reads rejected, partitioned by reason",
		}, []string{"reason"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "subvault_registry_operation_duration_seconds",
			Help:    "Registry operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// ObserveOperation records the latency of one registry operation.
func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	m.OperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrementAccessDenied records a rejected content read.
func (m *Metrics) IncrementAccessDenied(reason string) {
	m.AccessDenied.WithLabelValues(reason).Inc()
}
