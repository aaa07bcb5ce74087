package agent

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trade-agent/src/config"
	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// Operator surface. These are the accessors the HTTP layer calls; every one
// serializes through the agent mutex and works on snapshots, never on live
// references.
// -----------------------------------------------------------------------------

// MStatusSnapshot is the point-in-time view served by /api/status.
type MStatusSnapshot struct {
	Name        string    `json:"name"`
	Environment string    `json:"environment"`
	Enabled     bool      `json:"enabled"`
	KillSwitch  bool      `json:"kill_switch"`
	TickCount   int64     `json:"tick_count"`
	StartedAt   time.Time `json:"started_at"`
	LastPersist time.Time `json:"last_persist"`

	Positions     map[string]*models.MPositionEntry `json:"positions"`
	Regime        models.MMarketRegime              `json:"regime"`
	RiskProfile   models.MRiskProfile               `json:"risk_profile"`
	Stress        *models.MStressTestResult         `json:"stress,omitempty"`
	Equity        float64                           `json:"equity"`
	DailyPnL      float64                           `json:"daily_pnl"`
	SignalCount   int                               `json:"signal_count"`
	ResearchCount int                               `json:"research_count"`
	EpisodeCount  int                               `json:"episode_count"`

	SwarmHealthy   bool      `json:"swarm_healthy"`
	SwarmCheckedAt time.Time `json:"swarm_checked_at"`
	LastAuthError  string    `json:"last_auth_error,omitempty"`
	BrokerError    string    `json:"broker_error,omitempty"`
}

// -----------------------------------------------------------------------------

func (a *Agent) StatusSnapshot() MStatusSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]*models.MPositionEntry, len(a.state.Positions))
	for symbol, pos := range a.state.Positions {
		cp := *pos
		positions[symbol] = &cp
	}

	return MStatusSnapshot{
		Name:           a.state.Config.Name,
		Environment:    a.state.Config.Environment,
		Enabled:        a.state.Config.Enabled,
		KillSwitch:     a.state.KillSwitch,
		TickCount:      a.state.TickCount,
		StartedAt:      a.state.StartedAt,
		LastPersist:    a.state.LastPersist,
		Positions:      positions,
		Regime:         a.state.Regime,
		RiskProfile:    a.state.RiskProfile,
		Stress:         a.state.Stress,
		Equity:         a.currentEquity(),
		DailyPnL:       a.state.DailyPnL,
		SignalCount:    len(a.state.Signals),
		ResearchCount:  len(a.state.Research),
		EpisodeCount:   len(a.state.Episodes),
		SwarmHealthy:   a.swarmHealthy,
		SwarmCheckedAt: a.swarmCheckedAt,
		LastAuthError:  a.state.LastAuthError,
		BrokerError:    a.lastBrokerError,
	}
}

// -----------------------------------------------------------------------------

// ConfigSnapshot returns a deep copy of the live config.
func (a *Agent) ConfigSnapshot() *models.MAgentConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Config.Clone()
}

// -----------------------------------------------------------------------------

// UpdateConfig validates and installs a candidate config. On any validation
// failure the prior config stays in place untouched.
func (a *Agent) UpdateConfig(candidate *models.MAgentConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	production := strings.EqualFold(a.state.Config.Environment, config.EnvProduction)

	// The environment itself is not updatable at runtime.
	candidate.Environment = a.state.Config.Environment

	if err := config.ValidateUpdate(candidate, production); err != nil {
		return err
	}

	config.EnforceSafety(candidate)
	a.state.Config = candidate.Clone()
	a.logLocked("INFO", "config updated by operator")
	a.persistLocked()
	return nil
}

// -----------------------------------------------------------------------------

// MMetricsSnapshot is the JSON metrics view served by /api/metrics, distinct
// from the Prometheus exposition at /metrics.
type MMetricsSnapshot struct {
	TickCount     int64                              `json:"tick_count"`
	Stages        map[string]*models.MStageTelemetry `json:"stages"`
	Adjustments   int                                `json:"adjustments"`
	LastOptimized time.Time                          `json:"last_optimized"`
	CacheCleanups int                                `json:"cache_cleanups"`
	Cost          models.MCostTracker                `json:"cost"`
}

func (a *Agent) MetricsSnapshot() MMetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	stages := make(map[string]*models.MStageTelemetry, len(a.state.Optimization.Stages))
	for stage, tele := range a.state.Optimization.Stages {
		cp := *tele
		stages[stage] = &cp
	}

	return MMetricsSnapshot{
		TickCount:     a.state.TickCount,
		Stages:        stages,
		Adjustments:   a.state.Optimization.Adjustments,
		LastOptimized: a.state.Optimization.LastOptimized,
		CacheCleanups: a.state.CacheCleanups,
		Cost:          a.state.Cost,
	}
}

// -----------------------------------------------------------------------------

// MetricsRegistry exposes the Prometheus registry for the /metrics handler.
func (a *Agent) MetricsRegistry() *prometheus.Registry {
	return a.metrics.Registry()
}

// -----------------------------------------------------------------------------

// Logs returns the newest n retained log entries, oldest first.
func (a *Agent) Logs(n int) []models.MLogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	logs := a.state.Logs
	if n > 0 && len(logs) > n {
		logs = logs[len(logs)-n:]
	}
	return append([]models.MLogEntry(nil), logs...)
}

// -----------------------------------------------------------------------------

func (a *Agent) Enable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Config.Enabled = true
	a.logLocked("INFO", "agent enabled by operator")
	a.persistLocked()
}

func (a *Agent) Disable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Config.Enabled = false
	a.logLocked("WARNING", "agent disabled by operator")
	a.persistLocked()
}

// -----------------------------------------------------------------------------

// Kill engages the local kill switch. It stays set until an operator clears
// it through a config cycle; there is deliberately no unkill endpoint.
func (a *Agent) Kill() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.KillSwitch = true
	a.logLocked("CRITICAL", "kill switch engaged by operator")
	a.persistLocked()
}

// -----------------------------------------------------------------------------

// TriggerTick runs one tick immediately, outside the timer cadence.
func (a *Agent) TriggerTick(ctx context.Context) {
	a.Tick(ctx)
}

// TriggerStress refreshes the stress result on demand.
func (a *Agent) TriggerStress() *models.MStressTestResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runStressLocked()
	return a.state.Stress
}
