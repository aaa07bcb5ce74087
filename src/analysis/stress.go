package analysis

import (
	"math"
	"time"

	"trade-agent/src/analysis/core"
	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// Scenario stress testing: fixed shocks projected against current gross
// exposure. Regenerated every 5 minutes or on operator demand.
// -----------------------------------------------------------------------------

const (
	// StressPassDrawdown is the worst-case drawdown a passing portfolio may show.
	StressPassDrawdown = 0.12

	flashCrashShock   = -0.10
	macroBearEquity   = -0.16
	macroBearCrypto   = -0.20
	volSpikeShock     = -0.12
	tailPercentile    = 10.0
	minTailMultiplier = 5.0 // a single tick return scaled to a day-scale shock
)

// -----------------------------------------------------------------------------

// RunStressTest projects the shock scenarios against the open positions.
// equityReturns is the retained per-observation return series used to derive
// the historical tail scenario.
func RunStressTest(positions map[string]*models.MPositionEntry, equity float64,
	equityReturns []float64, now time.Time) *models.MStressTestResult {

	var equityExposure, cryptoExposure float64
	for _, p := range positions {
		notional := p.Qty * p.LastPrice
		if notional <= 0 {
			notional = p.Qty * p.EntryPrice
		}
		if p.IsCrypto {
			cryptoExposure += notional
		} else {
			equityExposure += notional
		}
	}
	gross := equityExposure + cryptoExposure

	// Historical tail: the 10th-percentile observed return, scaled up to a
	// day-scale shock, never milder than the flash crash.
	tailShock := flashCrashShock
	if len(equityReturns) >= 10 {
		tail := core.Percentile(equityReturns, tailPercentile) * minTailMultiplier
		if tail < tailShock {
			tailShock = tail
		}
	}

	scenarios := []models.MStressScenario{
		{Name: "flash_crash", EquityShock: flashCrashShock, CryptoShock: flashCrashShock},
		{Name: "macro_bear", EquityShock: macroBearEquity, CryptoShock: macroBearCrypto},
		{Name: "volatility_spike", EquityShock: volSpikeShock, CryptoShock: volSpikeShock},
		{Name: "historical_tail", EquityShock: tailShock, CryptoShock: tailShock},
	}

	result := &models.MStressTestResult{
		GrossExposure: gross,
		Equity:        equity,
		RanAt:         now,
	}

	worst := 0.0
	for i := range scenarios {
		s := &scenarios[i]
		s.ProjectedLoss = -(equityExposure*s.EquityShock + cryptoExposure*s.CryptoShock)
		if equity > 0 {
			s.DrawdownPct = s.ProjectedLoss / equity
		}
		if s.DrawdownPct > worst {
			worst = s.DrawdownPct
			result.WorstCase = s.Name
		}
	}

	result.Scenarios = scenarios
	result.WorstCaseDrawdown = worst
	result.Passed = worst <= StressPassDrawdown
	if result.Passed {
		result.RecommendedRiskMultiplier = math.Max(0.7, 1-worst)
	} else {
		result.RecommendedRiskMultiplier = math.Max(0.3, 0.95-worst*2.5)
	}

	return result
}
