package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected *prometheus.CounterVec
	Degraded prometheus.Gauge
	Errors   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "microbonds_ratelimit_rejected_total",
			Help: "Requests rejected by the rate limiter by endpoint class and key scope",
		}, []string{"class", "scope"}),
		Degraded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "microbonds_ratelimit_degraded",
			Help: "1 while the limiter serves from its in-memory fallback",
		}),
		Errors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "microbonds_ratelimit_store_errors_total",
			Help: "Rate limit store errors",
		}),
	}
}

func (m *Metrics) IncrementRejected(class, scope string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(class, scope).Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.Degraded.Set(1)
		return
	}
	m.Degraded.Set(0)
}

func (m *Metrics) IncrementErrors() {
	if m == nil {
		return
	}
	m.Errors.Inc()
}
