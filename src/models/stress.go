package models

import "time"

// -----------------------------------------------------------------------------
// Stress testing: point-in-time scenario shocks projected against current
// gross exposure. Regenerated every 5 minutes or on demand.
// -----------------------------------------------------------------------------

type MStressScenario struct {
	Name          string  `json:"name"`
	EquityShock   float64 `json:"equity_shock"` // fractional, e.g. -0.10
	CryptoShock   float64 `json:"crypto_shock"`
	ProjectedLoss float64 `json:"projected_loss"` // dollars
	DrawdownPct   float64 `json:"drawdown_pct"`   // fraction of equity
}

// -----------------------------------------------------------------------------

type MStressTestResult struct {
	Scenarios                 []MStressScenario `json:"scenarios"`
	WorstCase                 string            `json:"worst_case"`
	WorstCaseDrawdown         float64           `json:"worst_case_drawdown"` // fraction of equity
	Passed                    bool              `json:"passed"`
	RecommendedRiskMultiplier float64           `json:"recommended_risk_multiplier"`
	GrossExposure             float64           `json:"gross_exposure"`
	Equity                    float64           `json:"equity"`
	RanAt                     time.Time         `json:"ran_at"`
}

// -----------------------------------------------------------------------------

// MRiskProfile is the dynamic risk output consumed by position sizing.
type MRiskProfile struct {
	Volatility           float64 `json:"volatility"`
	MaxDrawdown          float64 `json:"max_drawdown"` // fraction, peak-to-trough
	Sharpe               float64 `json:"sharpe"`
	Regime               string  `json:"regime"`
	SizeMultiplier       float64 `json:"size_multiplier"`        // clamped [0.25, 1.2]
	SuggestedPositionPct float64 `json:"suggested_position_pct"` // clamped [3, 20]

	// Penalty breakdown, for the dashboard.
	VolatilityPenalty float64 `json:"volatility_penalty"`
	DrawdownPenalty   float64 `json:"drawdown_penalty"`
	DailyLossPenalty  float64 `json:"daily_loss_penalty"`
	RegimePenalty     float64 `json:"regime_penalty"`
	StressPenalty     float64 `json:"stress_penalty"`
}
