package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records the bot activity.
type Metrics struct {
	mutex      *sync.Mutex
	prometheus Prometheus
	states     map[string]string
	pnl        map[string]float64
}

// NewMetrics creates and registers the bot metrics.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	p := NewPrometheusMetrics()
	for _, c := range p.collectors() {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return &Metrics{
		mutex:      new(sync.Mutex),
		prometheus: p,
		states:     make(map[string]string),
		pnl:        make(map[string]float64),
	}, nil
}

// Void creates metrics that are not registered anywhere.
func Void() *Metrics {
	m, _ := NewMetrics(prometheus.NewRegistry())
	return m
}

// Cycle counts a control loop cycle.
func (m *Metrics) Cycle(coin, outcome string) {
	m.prometheus.Cycles.WithLabelValues(coin, outcome).Inc()
}

// Decision counts a fused decision.
func (m *Metrics) Decision(coin, signal, source string) {
	m.prometheus.Decisions.WithLabelValues(coin, signal, source).Inc()
}

// Rejection counts a risk rejection.
func (m *Metrics) Rejection(coin, reason string) {
	m.prometheus.Rejections.WithLabelValues(coin, reason).Inc()
}

// Execution counts an execution outcome.
func (m *Metrics) Execution(coin, algorithm, status string) {
	m.prometheus.Orders.WithLabelValues(coin, algorithm, status).Inc()
}

// State sets the current state of the instrument.
func (m *Metrics) State(coin, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if previous, ok := m.states[coin]; ok {
		m.prometheus.State.WithLabelValues(coin, previous).Set(0)
	}
	m.prometheus.State.WithLabelValues(coin, state).Set(1)
	m.states[coin] = state
}

// Realized adds the realized profit or loss of the instrument.
func (m *Metrics) Realized(coin string, pnl float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.pnl[coin] += pnl
	m.prometheus.PnL.WithLabelValues(coin).Set(m.pnl[coin])
}
