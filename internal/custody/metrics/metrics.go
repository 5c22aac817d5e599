package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks custody deposits, account links and withdrawals.
type Metrics struct {
	TokensInCustody   prometheus.Gauge
	AccountLinks      *prometheus.CounterVec
	TransfersStarted  prometheus.Counter
	TransfersResolved *prometheus.CounterVec
	TransferDuration  prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		TokensInCustody: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "microbonds_custody_tokens_held",
			Help: "Tokens recorded in custody since process start, net of withdrawals",
		}),
		AccountLinks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "microbonds_custody_account_links_total",
			Help: "Account link writes by kind (link, change)",
		}, []string{"kind"}),
		TransfersStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "microbonds_custody_transfers_started_total",
			Help: "Total number of withdrawals handed to the ledger",
		}),
		TransfersResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "microbonds_custody_transfers_resolved_total",
			Help: "Total number of withdrawals resolved by outcome",
		}, []string{"status"}),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "microbonds_custody_transfer_duration_seconds",
			Help:    "Time from accepting a withdrawal to its callback",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
	}
}

func (m *Metrics) IncrementTokenAdded() {
	if m == nil {
		return
	}
	m.TokensInCustody.Inc()
}

// IncrementLink records a first link or a change of linked account.
func (m *Metrics) IncrementLink(kind string) {
	if m == nil {
		return
	}
	m.AccountLinks.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementTransferStarted() {
	if m == nil {
		return
	}
	m.TransfersStarted.Inc()
}

// ObserveTransferResolved records the outcome. A committed withdrawal also
// releases the token from the custody gauge.
func (m *Metrics) ObserveTransferResolved(status string, committed bool, since time.Time) {
	if m == nil {
		return
	}
	m.TransfersResolved.WithLabelValues(status).Inc()
	m.TransferDuration.Observe(time.Since(since).Seconds())
	if committed {
		m.TokensInCustody.Dec()
	}
}
