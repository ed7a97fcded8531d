package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Upgrade outcome labels.
const (
	outcomeSuccess      = "success"
	outcomeInsufficient = "insufficient"
	outcomeInvalid      = "invalid"
	outcomeConflict     = "conflict"
	outcomeError        = "error"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	upgrades    *prometheus.CounterVec
	retries     prometheus.Counter
	duration    prometheus.Histogram
	collections *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		upgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stickers",
			Name:      "upgrades_total",
			Help:      "Upgrade attempts by outcome.",
		}, []string{"outcome", "target_rank"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stickers",
			Name:      "upgrade_retries_total",
			Help:      "Upgrade transactions retried after a conflict.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stickers",
			Name:      "upgrade_duration_seconds",
			Help:      "Wall time of ExecuteUpgrade, lock wait included.",
			Buckets:   prometheus.DefBuckets,
		}),
		collections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stickers",
			Name:      "collection_mutations_total",
			Help:      "Grant and deduct operations by result.",
		}, []string{"op", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.upgrades, m.retries, m.duration, m.collections)
	}
	return m
}

func (m *Metrics) observeUpgrade(outcome, target string, started time.Time) {
	m.upgrades.WithLabelValues(outcome, target).Inc()
	m.duration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeCollection(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.collections.WithLabelValues(op, result).Inc()
}
