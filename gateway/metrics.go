package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts gateway outcomes. A nil *Metrics records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	forcedLogouts prometheus.Counter
}

// NewMetrics creates the gateway counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bimi",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Authenticated requests by final state.",
		}, []string{"state", "retried"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bimi",
			Subsystem: "gateway",
			Name:      "refreshes_total",
			Help:      "Token refresh attempts by result.",
		}, []string{"result"}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bimi",
			Subsystem: "gateway",
			Name:      "forced_logouts_total",
			Help:      "Sessions cleared because a refresh was impossible or failed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.refreshes, m.forcedLogouts)
	}
	return m
}

func (m *Metrics) request(state State, retried bool) {
	if m == nil {
		return
	}
	r := "false"
	if retried {
		r = "true"
	}
	m.requests.WithLabelValues(state.String(), r).Inc()
}

func (m *Metrics) refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) forcedLogout() {
	if m == nil {
		return
	}
	m.forcedLogouts.Inc()
}
