package models

import "time"

// -----------------------------------------------------------------------------
// MAgentState is the aggregate root. Exactly one instance per agent: loaded
// once at startup, mutated in place only by the active tick, flushed to
// durable storage after every tick and on critical events.
// -----------------------------------------------------------------------------

// MaxEquityHistory bounds the retained equity curve.
const MaxEquityHistory = 180

type MAgentState struct {
	Config *MAgentConfig `json:"config"`

	Signals   []MSignal                   `json:"signals"`
	Positions map[string]*MPositionEntry  `json:"positions"`
	Research  map[string]*MResearchResult `json:"research"`

	Predictive   *MPredictiveModel   `json:"predictive"`
	Regime       MMarketRegime       `json:"regime"`
	RiskProfile  MRiskProfile        `json:"risk_profile"`
	Stress       *MStressTestResult  `json:"stress,omitempty"`
	Optimization *MOptimizationState `json:"optimization"`

	EquityHistory []MEquityPoint `json:"equity_history"`
	DailyPnL      float64        `json:"daily_pnl"`
	DailyPnLDate  string         `json:"daily_pnl_date"` // YYYY-MM-DD the daily counter belongs to

	Episodes []MMemoryEpisode `json:"episodes"`
	Logs     []MLogEntry      `json:"logs"`
	Cost     MCostTracker     `json:"cost"`

	// Bookkeeping.
	LastRun          map[string]time.Time `json:"last_run"` // per stage
	TickCount        int64                `json:"tick_count"`
	KillSwitch       bool                 `json:"kill_switch"`
	LastAuthError    string               `json:"last_auth_error,omitempty"`
	CacheCleanups    int                  `json:"cache_cleanups"`
	LastCacheCleanup time.Time            `json:"last_cache_cleanup"`
	LastPersist      time.Time            `json:"last_persist"`
	StartedAt        time.Time            `json:"started_at"`
}

// -----------------------------------------------------------------------------

type MEquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// -----------------------------------------------------------------------------

type MLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// -----------------------------------------------------------------------------

// MCostTracker accumulates LLM spend from reported usage.
type MCostTracker struct {
	TotalCostUSD    string            `json:"total_cost_usd"` // decimal string, exact
	CostByModel     map[string]string `json:"cost_by_model"`
	TokensByModel   map[string]int64  `json:"tokens_by_model"`
	RequestsByModel map[string]int64  `json:"requests_by_model"`
}

// -----------------------------------------------------------------------------

// NewAgentState builds a fresh state around a config.
func NewAgentState(cfg *MAgentConfig) *MAgentState {
	return &MAgentState{
		Config:     cfg,
		Positions:  make(map[string]*MPositionEntry),
		Research:   make(map[string]*MResearchResult),
		Predictive: NewPredictiveModel(),
		Optimization: NewOptimizationState(
			cfg.PollIntervalSeconds, cfg.ResearchIntervalSeconds, cfg.AnalystIntervalSeconds),
		LastRun:   make(map[string]time.Time),
		StartedAt: time.Now().UTC(),
		Cost: MCostTracker{
			TotalCostUSD:    "0",
			CostByModel:     make(map[string]string),
			TokensByModel:   make(map[string]int64),
			RequestsByModel: make(map[string]int64),
		},
	}
}

// -----------------------------------------------------------------------------

// AppendEquity pushes an equity observation and enforces the retention cap.
func (s *MAgentState) AppendEquity(equity float64, at time.Time) {
	s.EquityHistory = append(s.EquityHistory, MEquityPoint{Timestamp: at, Equity: equity})
	if len(s.EquityHistory) > MaxEquityHistory {
		s.EquityHistory = s.EquityHistory[len(s.EquityHistory)-MaxEquityHistory:]
	}
}

// -----------------------------------------------------------------------------

// EquityReturns converts the retained equity curve into simple returns.
func (s *MAgentState) EquityReturns() []float64 {
	if len(s.EquityHistory) < 2 {
		return nil
	}
	out := make([]float64, 0, len(s.EquityHistory)-1)
	for i := 1; i < len(s.EquityHistory); i++ {
		prev := s.EquityHistory[i-1].Equity
		if prev == 0 {
			continue
		}
		out = append(out, (s.EquityHistory[i].Equity-prev)/prev)
	}
	return out
}

// -----------------------------------------------------------------------------

// TrimForStorage applies one degrade-ladder rung: each limit is a hard cap,
// newest entries win. Re-applying a rung that already fits is a no-op.
func (s *MAgentState) TrimForStorage(maxLogs, maxEpisodes, maxEquity, maxSignals int) {
	if len(s.Logs) > maxLogs {
		s.Logs = s.Logs[len(s.Logs)-maxLogs:]
	}
	if len(s.Episodes) > maxEpisodes {
		s.Episodes = s.Episodes[len(s.Episodes)-maxEpisodes:]
	}
	if len(s.EquityHistory) > maxEquity {
		s.EquityHistory = s.EquityHistory[len(s.EquityHistory)-maxEquity:]
	}
	if len(s.Signals) > maxSignals {
		s.Signals = s.Signals[:maxSignals]
	}
}
