package agent

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"trade-agent/src/config"
	datasource "trade-agent/src/data_source"
	"trade-agent/src/execution"
	"trade-agent/src/interfaces"
	"trade-agent/src/logger"
	"trade-agent/src/models"
	"trade-agent/src/reliability"
	"trade-agent/src/signals"
	"trade-agent/src/storage"
)

// -----------------------------------------------------------------------------
// Agent is the single-writer control loop. Exactly one goroutine mutates the
// aggregate state: whoever holds mu. Timer ticks, cron side activities and
// operator endpoints all serialize through it.
// -----------------------------------------------------------------------------

// maxRetainedLogs bounds the in-state log tail between degrade rungs.
const maxRetainedLogs = 500

type Deps struct {
	Store   *storage.ResilientStore
	Gateway *execution.Gateway
	Sources *datasource.MultiSourceManager
	Broker  interfaces.IBroker
	Market  interfaces.IMarketData
	LLM     interfaces.ILLMProvider
	RiskMgr interfaces.IRiskManager
	Swarm   interfaces.ISwarmRegistry
	Bucket  *reliability.TokenBucket
	Logger  *logger.Logger
}

type Agent struct {
	mu    sync.Mutex
	state *models.MAgentState

	store   *storage.ResilientStore
	gateway *execution.Gateway
	sources *datasource.MultiSourceManager
	broker  interfaces.IBroker
	market  interfaces.IMarketData
	llm     interfaces.ILLMProvider
	riskMgr interfaces.IRiskManager
	swarm   interfaces.ISwarmRegistry
	bucket  *reliability.TokenBucket

	llmGuard *reliability.LLMGuard
	cache    *signals.Cache
	metrics  *Metrics
	logger   *logger.Logger
	now      func() time.Time

	// Cached swarm verdict refreshed by the sync side activity.
	swarmHealthy    bool
	swarmCheckedAt  time.Time
	lastBrokerError string
}

// -----------------------------------------------------------------------------

// New builds an agent around a fresh or restored state.
func New(cfg *models.MAgentConfig, deps Deps) (*Agent, error) {
	restored, err := deps.Store.Restore()
	if err != nil {
		return nil, fmt.Errorf("failed to restore state: %w", err)
	}

	var state *models.MAgentState
	if restored != nil {
		state = restored
		// The live config wins over the persisted one, and a persisted bypass
		// flag must never survive a production boot.
		state.Config = cfg
		config.EnforceSafety(state.Config)
		if state.Positions == nil {
			state.Positions = make(map[string]*models.MPositionEntry)
		}
		if state.Research == nil {
			state.Research = make(map[string]*models.MResearchResult)
		}
		if state.LastRun == nil {
			state.LastRun = make(map[string]time.Time)
		}
		if state.Predictive == nil {
			state.Predictive = models.NewPredictiveModel()
		}
		if state.Optimization == nil || len(state.Optimization.Stages) == 0 {
			state.Optimization = models.NewOptimizationState(
				cfg.PollIntervalSeconds, cfg.ResearchIntervalSeconds, cfg.AnalystIntervalSeconds)
		}
		deps.Logger.Info("Restored persisted state: tick=%d positions=%d signals=%d",
			state.TickCount, len(state.Positions), len(state.Signals))
	} else {
		state = models.NewAgentState(cfg)
		deps.Logger.Info("No persisted state found, starting fresh")
	}

	a := &Agent{
		state:        state,
		store:        deps.Store,
		gateway:      deps.Gateway,
		sources:      deps.Sources,
		broker:       deps.Broker,
		market:       deps.Market,
		llm:          deps.LLM,
		riskMgr:      deps.RiskMgr,
		swarm:        deps.Swarm,
		bucket:       deps.Bucket,
		llmGuard:     reliability.NewLLMGuard(),
		cache:        signals.NewCache(),
		metrics:      NewMetrics(),
		logger:       deps.Logger.Named("Agent"),
		now:          time.Now,
		swarmHealthy: true,
	}

	// Every emitted log line lands on the state so /api/logs survives
	// restarts with the rest of the snapshot.
	deps.Logger.SetSink(a.retainLog)

	return a, nil
}

// -----------------------------------------------------------------------------

// retainLog appends a log line to the bounded in-state tail. Called from the
// logger on any goroutine. mu is not reentrant, so lines emitted while a
// tick holds the lock are dropped here; the tick retains its own lines via
// appendLogLocked directly.
func (a *Agent) retainLog(level, message string) {
	if !a.mu.TryLock() {
		return
	}
	defer a.mu.Unlock()
	a.appendLogLocked(level, message)
}

func (a *Agent) appendLogLocked(level, message string) {
	a.state.Logs = append(a.state.Logs, models.MLogEntry{
		Timestamp: a.now().UTC(), Level: level, Message: message,
	})
	if len(a.state.Logs) > maxRetainedLogs {
		a.state.Logs = a.state.Logs[len(a.state.Logs)-maxRetainedLogs:]
	}
}

// logLocked writes to stdout and retains the line while mu is held.
func (a *Agent) logLocked(level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	switch level {
	case "ERROR":
		a.logger.Error("%s", msg)
	case "WARNING":
		a.logger.Warning("%s", msg)
	default:
		a.logger.Info("%s", msg)
	}
	a.appendLogLocked(level, msg)
}

// -----------------------------------------------------------------------------

// Run drives the tick loop until the context is cancelled. The timer fires
// every TickSeconds; re-arming is implicit in the ticker, and persistence
// runs inside Tick regardless of outcome.
func (a *Agent) Run(ctx context.Context) {
	interval := time.Duration(a.state.Config.TickSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	a.logger.Info("Control loop starting: tick every %v", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// First tick immediately rather than waiting a full interval.
	a.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Control loop stopping: %v", ctx.Err())
			a.mu.Lock()
			a.persistLocked()
			a.mu.Unlock()
			return
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

// -----------------------------------------------------------------------------

// Tick runs one pass of the control loop. Every gate short-circuits with a
// log line; the deferred persist runs no matter which gate fired or which
// stage failed.
func (a *Agent) Tick(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.TickCount++
	a.metrics.Ticks.Inc()
	now := a.now().UTC()

	defer a.persistLocked()

	if !a.state.Config.Enabled {
		a.logLocked("INFO", "tick skipped: agent disabled")
		return
	}

	if active, reason := a.killSwitchActive(ctx); active {
		a.logLocked("WARNING", "tick skipped: kill switch (%s)", reason)
		a.metrics.KillSwitchTrips.Inc()
		return
	}

	if !a.swarmAllowsTick() {
		a.logLocked("WARNING", "tick skipped: swarm unhealthy")
		return
	}

	a.rollDailyPnL(now)

	// Stage dispatch: each stage runs when its adaptive interval has
	// elapsed. A stage failure records a telemetry sample and never stops
	// the remaining stages or the deferred persist.
	for _, stage := range models.Stages {
		tele := a.state.Optimization.Stages[stage]
		if tele == nil {
			continue
		}
		elapsed := now.Sub(a.state.LastRun[stage])
		if elapsed < time.Duration(tele.IntervalSeconds*float64(time.Second)) {
			continue
		}

		start := a.now()
		err := a.runStage(ctx, stage)
		latencyMs := float64(a.now().Sub(start)) / float64(time.Millisecond)

		a.state.LastRun[stage] = now
		a.recordStageSample(stage, latencyMs, err != nil)
		a.metrics.ObserveStage(stage, latencyMs, err != nil)

		if err != nil {
			a.logLocked("ERROR", "stage %s failed: %v", stage, err)
		}
	}

	a.pruneEpisodesLocked(now)
	a.metrics.SetPortfolio(len(a.state.Positions), len(a.state.Signals), a.currentEquity())
	a.metrics.SetGuardOpen(!a.llmGuard.Allow())
}

// -----------------------------------------------------------------------------

func (a *Agent) runStage(ctx context.Context, stage string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", stage, r)
		}
	}()

	switch stage {
	case models.StageGather:
		return a.runGather(ctx)
	case models.StageResearch:
		return a.runResearch(ctx)
	case models.StageAnalyst:
		return a.runAnalyst(ctx)
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
}

// -----------------------------------------------------------------------------

// killSwitchActive consults the local flag, the environment override and the
// risk manager. An unreachable risk manager counts as active: fail closed.
func (a *Agent) killSwitchActive(ctx context.Context) (bool, string) {
	if a.state.KillSwitch {
		return true, "local flag"
	}
	if v := os.Getenv("AGENT_KILL_SWITCH"); v == "1" || strings.EqualFold(v, "true") {
		return true, "environment override"
	}

	statusCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	status, err := a.riskMgr.Status(statusCtx)
	if err != nil {
		return true, fmt.Sprintf("risk manager unreachable: %v", err)
	}
	if status.KillSwitchActive {
		return true, "risk manager"
	}
	return false, ""
}

// -----------------------------------------------------------------------------

// swarmAllowsTick applies the cached swarm verdict. The bypass only works
// outside production; EnforceSafety has already cleared it otherwise, but
// the environment is checked again here so a mutated state cannot sneak by.
func (a *Agent) swarmAllowsTick() bool {
	if a.swarmHealthy {
		return true
	}
	if strings.EqualFold(a.state.Config.Environment, config.EnvProduction) {
		return false
	}
	return a.state.Config.AllowUnhealthySwarm
}

// -----------------------------------------------------------------------------

// SyncSwarmHealth refreshes the cached registry verdict. Run as a side
// activity every 2 minutes; registry errors leave the previous verdict in
// place rather than flapping the loop.
func (a *Agent) SyncSwarmHealth(ctx context.Context) {
	healthCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	health, err := a.swarm.Health(healthCtx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.logLocked("WARNING", "swarm health sync failed: %v", err)
		return
	}
	if health.Healthy != a.swarmHealthy {
		a.logLocked("INFO", "swarm health changed: healthy=%v", health.Healthy)
	}
	a.swarmHealthy = health.Healthy
	a.swarmCheckedAt = a.now().UTC()
}

// -----------------------------------------------------------------------------

func (a *Agent) rollDailyPnL(now time.Time) {
	today := now.Format("2006-01-02")
	if a.state.DailyPnLDate != today {
		a.state.DailyPnLDate = today
		a.state.DailyPnL = 0
	}
}

// -----------------------------------------------------------------------------

func (a *Agent) currentEquity() float64 {
	if n := len(a.state.EquityHistory); n > 0 {
		return a.state.EquityHistory[n-1].Equity
	}
	return 0
}

func (a *Agent) equityValues() []float64 {
	out := make([]float64, len(a.state.EquityHistory))
	for i, p := range a.state.EquityHistory {
		out[i] = p.Equity
	}
	return out
}

// -----------------------------------------------------------------------------

// persistLocked flushes the state through the degrade ladder. Failure is
// logged and the state stays in memory for the next attempt.
func (a *Agent) persistLocked() {
	if err := a.store.Persist(a.state); err != nil {
		a.logLocked("ERROR", "persist failed: %v", err)
		a.metrics.PersistFailures.Inc()
		return
	}
	a.state.LastPersist = a.now().UTC()
}
