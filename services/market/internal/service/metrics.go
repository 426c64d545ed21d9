package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	FetchTotal    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	StaleDrops    prometheus.Counter
	StreamClients prometheus.Gauge
	PollDuration  prometheus.Histogram
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_fetch_total",
				Help: "Upstream market data fetches.",
			},
			[]string{"kind", "status"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "market_fetch_duration_seconds",
				Help:    "Upstream market data fetch duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		StaleDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "market_cache_stale_drops_total",
				Help: "Snapshots discarded because a newer generation was cached.",
			},
		),
		StreamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "market_stream_clients",
				Help: "Open websocket streams.",
			},
		),
		PollDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "market_poll_duration_seconds",
				Help:    "Duration of one poll over all watched symbols.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		m.FetchTotal,
		m.FetchDuration,
		m.StaleDrops,
		m.StreamClients,
		m.PollDuration,
	)
	return m
}

func (m *Metrics) fetched(kind string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.FetchTotal.WithLabelValues(kind, status).Inc()
	m.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) staleDrop() {
	if m == nil {
		return
	}
	m.StaleDrops.Inc()
}

func (m *Metrics) polled(d time.Duration) {
	if m == nil {
		return
	}
	m.PollDuration.Observe(d.Seconds())
}

// StreamOpened tracks a websocket client; call the returned func on close.
func (m *Metrics) StreamOpened() func() {
	if m == nil {
		return func() {}
	}
	m.StreamClients.Inc()
	return m.StreamClients.Dec
}
