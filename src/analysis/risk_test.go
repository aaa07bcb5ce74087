package analysis

import (
	"math"
	"testing"
	"time"

	"trade-agent/src/models"

	"github.com/stretchr/testify/assert"
)

// equityCurve builds an equity series from a start value and per-step returns.
func equityCurve(start float64, returns ...float64) []float64 {
	out := []float64{start}
	v := start
	for _, r := range returns {
		v *= 1 + r
		out = append(out, v)
	}
	return out
}

// repeat returns n copies of r.
func repeat(r float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r
	}
	return out
}

// -----------------------------------------------------------------------------

func TestClassifyRegimeVolatileOnStdev(t *testing.T) {
	// Alternate +/-5% returns: stdev 0.05 > 0.03.
	var returns []float64
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			returns = append(returns, 0.05)
		} else {
			returns = append(returns, -0.05)
		}
	}
	eq := equityCurve(100_000, returns...)

	r := ClassifyRegime(eq, 0.1, models.MMarketRegime{}, time.Now())
	assert.Equal(t, models.RegimeVolatile, r.Regime)
	assert.Greater(t, r.Volatility, 0.03)
}

// -----------------------------------------------------------------------------

func TestClassifyRegimeVolatileOnDispersionAlone(t *testing.T) {
	eq := equityCurve(100_000, repeat(0.0001, 40)...)

	r := ClassifyRegime(eq, 0.6, models.MMarketRegime{}, time.Now())
	assert.Equal(t, models.RegimeVolatile, r.Regime)
}

// -----------------------------------------------------------------------------

func TestClassifyRegimeTrending(t *testing.T) {
	// Steady gains with a hair of noise: low stdev, strong drift.
	var returns []float64
	for i := 0; i < 40; i++ {
		r := 0.01
		if i%5 == 0 {
			r = 0.008
		}
		returns = append(returns, r)
	}
	eq := equityCurve(100_000, returns...)

	r := ClassifyRegime(eq, 0.1, models.MMarketRegime{}, time.Now())
	assert.Equal(t, models.RegimeTrending, r.Regime)
	assert.Greater(t, math.Abs(r.Trend), trendingTrendThreshold)
	assert.Greater(t, math.Abs(r.Sharpe), trendingSharpeThreshold)
}

// -----------------------------------------------------------------------------

func TestClassifyRegimeRangingDefault(t *testing.T) {
	// Small mean-zero noise: neither volatile nor trending.
	var returns []float64
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			returns = append(returns, 0.002)
		} else {
			returns = append(returns, -0.002)
		}
	}
	eq := equityCurve(100_000, returns...)

	r := ClassifyRegime(eq, 0.1, models.MMarketRegime{}, time.Now())
	assert.Equal(t, models.RegimeRanging, r.Regime)
}

// -----------------------------------------------------------------------------

func TestClassifyRegimeKeepsSinceWhenUnchanged(t *testing.T) {
	eq := equityCurve(100_000, repeat(0.0001, 10)...)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := ClassifyRegime(eq, 0.1, models.MMarketRegime{}, t0)
	second := ClassifyRegime(eq, 0.1, first, t0.Add(time.Hour))
	assert.Equal(t, t0, second.Since)

	flipped := ClassifyRegime(eq, 0.9, second, t0.Add(2*time.Hour))
	assert.Equal(t, models.RegimeVolatile, flipped.Regime)
	assert.Equal(t, t0.Add(2*time.Hour), flipped.Since)
}

// -----------------------------------------------------------------------------

func TestBuildRiskProfileCalmMarket(t *testing.T) {
	eq := equityCurve(100_000, repeat(0.001, 40)...)
	regime := models.MMarketRegime{Regime: models.RegimeRanging}

	p := BuildRiskProfile(eq, 0, 104_000, regime, nil, 10)
	assert.InDelta(t, 1.0, p.SizeMultiplier, 0.05)
	assert.InDelta(t, 10, p.SuggestedPositionPct, 0.5)
	assert.Zero(t, p.DailyLossPenalty)
	assert.Zero(t, p.StressPenalty)
}

// -----------------------------------------------------------------------------

func TestBuildRiskProfilePenaltiesStack(t *testing.T) {
	// Crash then chop: real drawdown, high vol, a daily loss and a failed
	// stress test all at once.
	returns := append([]float64{-0.08, -0.06, 0.05, -0.05, 0.04}, repeat(-0.01, 10)...)
	eq := equityCurve(100_000, returns...)
	regime := models.MMarketRegime{Regime: models.RegimeVolatile}
	stress := &models.MStressTestResult{Passed: false}

	p := BuildRiskProfile(eq, -3_000, 80_000, regime, stress, 10)

	assert.Greater(t, p.VolatilityPenalty, 0.0)
	assert.Greater(t, p.DrawdownPenalty, 0.0)
	assert.Greater(t, p.DailyLossPenalty, 0.0)
	assert.Equal(t, 0.25, p.RegimePenalty)
	assert.Equal(t, 0.20, p.StressPenalty)
	assert.Equal(t, minSizeMultiplier, p.SizeMultiplier, "stacked penalties bottom out at the clamp")
	assert.Equal(t, minPositionPct, p.SuggestedPositionPct)
}

// -----------------------------------------------------------------------------

func TestBuildRiskProfileTrendingBoost(t *testing.T) {
	eq := equityCurve(100_000, repeat(0.001, 40)...)
	regime := models.MMarketRegime{Regime: models.RegimeTrending}

	p := BuildRiskProfile(eq, 500, 104_000, regime, &models.MStressTestResult{Passed: true}, 10)
	assert.Greater(t, p.SizeMultiplier, 1.0)
	assert.LessOrEqual(t, p.SizeMultiplier, maxSizeMultiplier)
	assert.Greater(t, p.SuggestedPositionPct, 10.0)
}

// -----------------------------------------------------------------------------

func TestBuildRiskProfileEmptyHistory(t *testing.T) {
	p := BuildRiskProfile(nil, 0, 0, models.MMarketRegime{Regime: models.RegimeRanging}, nil, 10)
	assert.Equal(t, 1.0, p.SizeMultiplier)
	assert.Equal(t, 10.0, p.SuggestedPositionPct)
}
