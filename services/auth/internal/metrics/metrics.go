package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Logins        *prometheus.CounterVec
	Registrations prometheus.Counter
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_logins_total",
				Help: "Login attempts by result.",
			},
			[]string{"result"},
		),
		Registrations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_registrations_total",
				Help: "Accounts registered.",
			},
		),
	}

	registry.MustRegister(m.Logins, m.Registrations)
	return m
}

func (m *Metrics) Login(result string) { m.Logins.WithLabelValues(result).Inc() }
func (m *Metrics) Registered()         { m.Registrations.Inc() }
