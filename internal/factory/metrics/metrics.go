package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the factory module.
// Tracks registry growth and the deployment round trip.
type Metrics struct {
	VersionsAdded       prometheus.Counter
	RegistryEntries     *prometheus.CounterVec
	DeploymentsStarted  prometheus.Counter
	DeploymentsResolved *prometheus.CounterVec
	DeploymentDuration  prometheus.Histogram
}

// New creates a new Metrics instance with all factory metrics registered.
func New() *Metrics {
	return &Metrics{
		VersionsAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "microbonds_factory_token_versions_added_total",
			Help: "Total number of token code versions stored",
		}),
		RegistryEntries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "microbonds_factory_registry_entries_total",
			Help: "Total number of registry entries created by kind",
		}, []string{"kind"}),
		DeploymentsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "microbonds_factory_deployments_started_total",
			Help: "Total number of token deployments handed to the ledger",
		}),
		DeploymentsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "microbonds_factory_deployments_resolved_total",
			Help: "Total number of token deployments resolved by outcome",
		}, []string{"status"}),
		DeploymentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "microbonds_factory_deployment_duration_seconds",
			Help:    "Time from accepting a deployment to its callback",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
	}
}

func (m *Metrics) IncrementVersionAdded() {
	if m == nil {
		return
	}
	m.VersionsAdded.Inc()
}

// IncrementRegistryEntry records a new municipality, project or token.
func (m *Metrics) IncrementRegistryEntry(kind string) {
	if m == nil {
		return
	}
	m.RegistryEntries.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementDeploymentStarted() {
	if m == nil {
		return
	}
	m.DeploymentsStarted.Inc()
}

// ObserveDeploymentResolved records the outcome and how long the deployment
// was pending.
func (m *Metrics) ObserveDeploymentResolved(status string, since time.Time) {
	if m == nil {
		return
	}
	m.DeploymentsResolved.WithLabelValues(status).Inc()
	m.DeploymentDuration.Observe(time.Since(since).Seconds())
}
