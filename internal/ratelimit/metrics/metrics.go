package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected    *prometheus.CounterVec
	StoreErrors prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sniugb_ratelimit_rejected_total",
			Help: "Total number of requests rejected by rate limiting, by scope",
		}, []string{"scope"}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sniugb_ratelimit_store_errors_total",
			Help: "Total number of rate limit checks that failed open on a store error",
		}),
	}
}

func (m *Metrics) IncrementRejected(scope string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(scope).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}
