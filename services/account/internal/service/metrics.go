package service

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	AdminMutations *prometheus.CounterVec
	Withdrawals    *prometheus.CounterVec
	Settlements    *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AdminMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_admin_mutations_total",
				Help: "Admin mutations by action.",
			},
			[]string{"action"},
		),
		Withdrawals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_withdrawal_requests_total",
				Help: "Withdrawal requests by result.",
			},
			[]string{"result"},
		),
		Settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_settlements_total",
				Help: "Transactions settled by type and status.",
			},
			[]string{"type", "status"},
		),
	}

	registry.MustRegister(m.AdminMutations, m.Withdrawals, m.Settlements)
	return m
}

func (m *Metrics) mutation(action string) {
	if m != nil {
		m.AdminMutations.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) withdrawal(result string) {
	if m != nil {
		m.Withdrawals.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) settled(txType, status string) {
	if m != nil {
		m.Settlements.WithLabelValues(txType, status).Inc()
	}
}
