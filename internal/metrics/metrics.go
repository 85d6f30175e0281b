package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"campusportal/internal/models"
)

// Metrics is safe to use through a nil pointer, which records nothing.
type Metrics struct {
	logins    *prometheus.CounterVec
	redirects *prometheus.CounterVec
	secrets   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "login_attempts_total",
			Help:      "Login attempts by role and outcome.",
		}, []string{"role", "outcome"}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "guard_redirects_total",
			Help:      "Route guard redirects by target.",
		}, []string{"target"}),
		secrets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "secret_exchange_total",
			Help:      "One-time secret operations by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	reg.MustRegister(m.logins, m.redirects, m.secrets)
	return m
}

func (m *Metrics) Login(role models.Role, outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(string(role), outcome).Inc()
}

func (m *Metrics) Redirect(target string) {
	if m == nil {
		return
	}
	m.redirects.WithLabelValues(target).Inc()
}

func (m *Metrics) Secret(kind string, outcome string) {
	if m == nil {
		return
	}
	m.secrets.WithLabelValues(kind, outcome).Inc()
}
