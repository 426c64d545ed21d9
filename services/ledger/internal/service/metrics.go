package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SettlementsTotal   *prometheus.CounterVec
	SettlementErrors   *prometheus.CounterVec
	SettlementDuration prometheus.Histogram
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		SettlementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_settlements_total",
				Help: "Total settlement events handled.",
			},
			[]string{"status"},
		),
		SettlementErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_settlement_errors_total",
				Help: "Total settlement errors.",
			},
			[]string{"reason"},
		),
		SettlementDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledger_settlement_duration_seconds",
				Help:    "Settlement processing duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		m.SettlementsTotal,
		m.SettlementErrors,
		m.SettlementDuration,
	)
	return m
}

// settled counts one handled event; status is applied, duplicate or skipped.
func (m *Metrics) settled(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SettlementsTotal.WithLabelValues(status).Inc()
	m.SettlementDuration.Observe(duration.Seconds())
}

func (m *Metrics) failed(reason string) {
	if m == nil {
		return
	}
	m.SettlementErrors.WithLabelValues(reason).Inc()
}
