package analysis

import (
	"math"
	"time"

	"trade-agent/src/analysis/core"
	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// Dynamic risk profile and regime classification, recomputed every analyst
// pass from the retained equity curve.
// -----------------------------------------------------------------------------

const (
	// volatilityWindow is how many recent returns feed the regime stdev.
	volatilityWindow = 30

	volatileStdThreshold        = 0.03
	volatileDispersionThreshold = 0.45
	trendingTrendThreshold      = 0.35
	trendingSharpeThreshold     = 0.5

	minSizeMultiplier = 0.25
	maxSizeMultiplier = 1.2
	minPositionPct    = 3.0
	maxPositionPct    = 20.0
)

// -----------------------------------------------------------------------------

// ClassifyRegime derives the market regime from recent equity returns and the
// signal sentiment dispersion. prev carries the Since timestamp forward when
// the classification is unchanged.
func ClassifyRegime(equity []float64, dispersion float64, prev models.MMarketRegime, now time.Time) models.MMarketRegime {
	returns := toReturns(equity)
	if len(returns) > volatilityWindow {
		returns = returns[len(returns)-volatilityWindow:]
	}

	mean, std := core.CalculateMeanStd(returns)
	trend := core.LinearTrend(equity)

	sharpe := 0.0
	if std > 0 {
		sharpe = mean / std * math.Sqrt(math.Min(float64(len(returns)), 252))
	}

	regime := models.RegimeRanging
	confidence := 0.5
	switch {
	case std > volatileStdThreshold || dispersion > volatileDispersionThreshold:
		regime = models.RegimeVolatile
		confidence = clamp(math.Max(std/volatileStdThreshold, dispersion/volatileDispersionThreshold)/2, 0.5, 1)
	case math.Abs(trend) > trendingTrendThreshold && math.Abs(sharpe) > trendingSharpeThreshold:
		regime = models.RegimeTrending
		confidence = clamp(math.Abs(trend)/trendingTrendThreshold/2, 0.5, 1)
	}

	since := now
	if prev.Regime == regime && !prev.Since.IsZero() {
		since = prev.Since
	}

	return models.MMarketRegime{
		Regime:     regime,
		Confidence: confidence,
		Since:      since,
		Volatility: std,
		Trend:      trend,
		Sharpe:     sharpe,
		Dispersion: dispersion,
	}
}

// -----------------------------------------------------------------------------

// BuildRiskProfile combines the equity curve, daily P&L, regime and the latest
// stress result into the position-sizing multiplier.
func BuildRiskProfile(equity []float64, dailyPnL, currentEquity float64,
	regime models.MMarketRegime, stress *models.MStressTestResult, basePct float64) models.MRiskProfile {

	returns := toReturns(equity)
	windowed := returns
	if len(windowed) > volatilityWindow {
		windowed = windowed[len(windowed)-volatilityWindow:]
	}
	mean, std := core.CalculateMeanStd(windowed)

	sharpe := 0.0
	if std > 0 {
		sharpe = mean / std * math.Sqrt(math.Min(float64(len(windowed)), 252))
	}

	maxDD := core.MaxDrawdown(equity)

	p := models.MRiskProfile{
		Volatility:  std,
		MaxDrawdown: maxDD,
		Sharpe:      sharpe,
		Regime:      regime.Regime,
	}

	// Each penalty is bounded so no single factor can zero out sizing alone.
	p.VolatilityPenalty = clamp((std-0.015)*8, 0, 0.30)
	p.DrawdownPenalty = clamp(maxDD*1.5, 0, 0.30)
	if dailyPnL < 0 && currentEquity > 0 {
		p.DailyLossPenalty = clamp(-dailyPnL/currentEquity*5, 0, 0.25)
	}
	switch regime.Regime {
	case models.RegimeVolatile:
		p.RegimePenalty = 0.25
	case models.RegimeTrending:
		p.RegimePenalty = -0.20 // tailwind, lets the multiplier exceed 1
	}
	if stress != nil && !stress.Passed {
		p.StressPenalty = 0.20
	}

	p.SizeMultiplier = clamp(
		1-p.VolatilityPenalty-p.DrawdownPenalty-p.DailyLossPenalty-p.RegimePenalty-p.StressPenalty,
		minSizeMultiplier, maxSizeMultiplier)
	p.SuggestedPositionPct = clamp(basePct*p.SizeMultiplier, minPositionPct, maxPositionPct)

	return p
}

// -----------------------------------------------------------------------------

func toReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		out = append(out, (equity[i]-equity[i-1])/equity[i-1])
	}
	return out
}
