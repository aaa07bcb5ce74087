package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// -----------------------------------------------------------------------------
// Prometheus instrumentation for the control loop. Each agent owns its own
// registry so tests can build agents freely; the server exposes it at
// /metrics.
// -----------------------------------------------------------------------------

type Metrics struct {
	registry *prometheus.Registry

	Ticks           prometheus.Counter
	KillSwitchTrips prometheus.Counter
	PersistFailures prometheus.Counter
	ResearchCalls   prometheus.Counter
	OrdersSubmitted prometheus.Counter

	stageLatency *prometheus.HistogramVec
	stageErrors  *prometheus.CounterVec

	positionsHeld prometheus.Gauge
	signalsCached prometheus.Gauge
	equity        prometheus.Gauge
	llmGuardOpen  prometheus.Gauge
}

// -----------------------------------------------------------------------------

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_ticks_total",
			Help: "Control loop ticks started.",
		}),
		KillSwitchTrips: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_kill_switch_trips_total",
			Help: "Ticks skipped because the kill switch was active.",
		}),
		PersistFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_persist_failures_total",
			Help: "State persistence attempts that failed after the degrade ladder.",
		}),
		ResearchCalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_research_calls_total",
			Help: "Completed reasoning-layer research calls.",
		}),
		OrdersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "agent_orders_submitted_total",
			Help: "Orders accepted by the execution gateway.",
		}),
		stageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agent_stage_latency_ms",
			Help:    "Stage wall time in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(50, 2, 12),
		}, []string{"stage"}),
		stageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_stage_errors_total",
			Help: "Stage executions that returned an error.",
		}, []string{"stage"}),
		positionsHeld: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agent_positions_held",
			Help: "Currently held positions.",
		}),
		signalsCached: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agent_signals_cached",
			Help: "Signals in the bounded cache.",
		}),
		equity: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agent_equity_usd",
			Help: "Last observed account equity.",
		}),
		llmGuardOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agent_llm_guard_open",
			Help: "1 while the reasoning-layer breaker or auth cool-off is open.",
		}),
	}
}

// -----------------------------------------------------------------------------

// Registry exposes the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// -----------------------------------------------------------------------------

func (m *Metrics) ObserveStage(stage string, latencyMs float64, failed bool) {
	m.stageLatency.WithLabelValues(stage).Observe(latencyMs)
	if failed {
		m.stageErrors.WithLabelValues(stage).Inc()
	}
}

// -----------------------------------------------------------------------------

func (m *Metrics) SetPortfolio(positions, cachedSignals int, equity float64) {
	m.positionsHeld.Set(float64(positions))
	m.signalsCached.Set(float64(cachedSignals))
	m.equity.Set(equity)
}

// -----------------------------------------------------------------------------

func (m *Metrics) SetGuardOpen(open bool) {
	if open {
		m.llmGuardOpen.Set(1)
	} else {
		m.llmGuardOpen.Set(0)
	}
}
