package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "futures"

// Prometheus holds the prometheus collectors of the bot.
type Prometheus struct {
	Cycles     *prometheus.CounterVec
	Decisions  *prometheus.CounterVec
	Rejections *prometheus.CounterVec
	Orders     *prometheus.CounterVec
	State      *prometheus.GaugeVec
	PnL        *prometheus.GaugeVec
}

// NewPrometheusMetrics creates the collectors.
func NewPrometheusMetrics() Prometheus {
	return Prometheus{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Control loop cycles by outcome.",
			}, []string{"coin", "outcome"}),
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Fused decisions by signal and source.",
			}, []string{"coin", "signal", "source"}),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "risk_rejections_total",
				Help:      "Risk gate rejections by reason.",
			}, []string{"coin", "reason"}),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Executions by algorithm and status.",
			}, []string{"coin", "algorithm", "status"}),
		State: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state",
				Help:      "Current control loop state per instrument.",
			}, []string{"coin", "state"}),
		PnL: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "realized_pnl",
				Help:      "Realized profit and loss per instrument.",
			}, []string{"coin"}),
	}
}

func (p Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{p.Cycles, p.Decisions, p.Rejections, p.Orders, p.State, p.PnL}
}
