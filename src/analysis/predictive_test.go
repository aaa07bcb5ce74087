package analysis

import (
	"testing"
	"time"

	"trade-agent/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func neutralFeatures() Features {
	return Features{
		Sentiment:       0.6,
		Freshness:       0.8,
		SourceDiversity: 0.5,
		LogVolume:       0.4,
		RegimeAlignment: 0.5,
	}
}

// -----------------------------------------------------------------------------

func TestPredictScoreBounds(t *testing.T) {
	m := models.NewPredictiveModel()

	assert.InDelta(t, 0.5, PredictScore(m, Features{}), 1e-9, "fresh model is neutral")

	// Saturated weights stay inside (0, 1).
	for i := range m.Weights {
		m.Weights[i] = 3
	}
	m.Bias = 3
	s := PredictScore(m, Features{Sentiment: 1, Freshness: 1, SourceDiversity: 1, LogVolume: 1, RegimeAlignment: 1})
	assert.Greater(t, s, 0.99)
	assert.Less(t, s, 1.0)
}

// -----------------------------------------------------------------------------

func TestRecordOutcomeMovesWeightsTowardOutcome(t *testing.T) {
	m := models.NewPredictiveModel()
	f := neutralFeatures()

	before := PredictScore(m, f)
	RecordOutcome(m, "AAPL", f, true, 2.5)
	assert.Greater(t, PredictScore(m, f), before, "a win raises the score for the same features")

	m2 := models.NewPredictiveModel()
	RecordOutcome(m2, "AAPL", f, false, -1.5)
	assert.Less(t, PredictScore(m2, f), before, "a loss lowers it")
}

// -----------------------------------------------------------------------------

func TestRecordOutcomeClampsWeights(t *testing.T) {
	m := models.NewPredictiveModel()
	f := Features{Sentiment: 1, Freshness: 1, SourceDiversity: 1, LogVolume: 1, RegimeAlignment: 1}

	for i := 0; i < 10_000; i++ {
		RecordOutcome(m, "TSLA", f, true, 1)
	}

	assert.LessOrEqual(t, m.Bias, 3.0)
	for i, w := range m.Weights {
		assert.LessOrEqual(t, w, 3.0, "weight %d", i)
		assert.GreaterOrEqual(t, w, -3.0, "weight %d", i)
	}
}

// -----------------------------------------------------------------------------

func TestTwelveConsecutiveLossesShrinkSizing(t *testing.T) {
	m := models.NewPredictiveModel()
	f := neutralFeatures()

	// Warm the model up with mixed outcomes first.
	for i := 0; i < 6; i++ {
		RecordOutcome(m, "NVDA", f, i%2 == 0, 0.5)
	}

	before := SizeAdjustment(m, f)
	prev := before
	for i := 0; i < 12; i++ {
		RecordOutcome(m, "NVDA", f, false, -1)
		cur := SizeAdjustment(m, f)
		require.Less(t, cur, prev, "loss %d must strictly shrink sizing", i+1)
		prev = cur
	}
	assert.Less(t, prev, before)
}

// -----------------------------------------------------------------------------

func TestRecordOutcomeTracksStats(t *testing.T) {
	m := models.NewPredictiveModel()
	f := neutralFeatures()

	RecordOutcome(m, "AAPL", f, true, 4)
	RecordOutcome(m, "AAPL", f, false, -2)
	RecordOutcome(m, "MSFT", f, true, 1)

	assert.Equal(t, 3, m.Samples)
	assert.Equal(t, 2, m.Hits)
	assert.InDelta(t, 2.0/3.0, m.HitRate, 1e-9)
	assert.Greater(t, m.MSE, 0.0)

	st := m.SymbolStats["AAPL"]
	require.NotNil(t, st)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.InDelta(t, 1.0, st.AvgReturn, 1e-9)
}

// -----------------------------------------------------------------------------

func TestExtractFeatures(t *testing.T) {
	now := time.Now()
	sigs := []models.MSignal{
		{Symbol: "AAPL", Source: "stocktwits", SourceDetail: "a", Sentiment: 0.8, WeightedSentiment: 0.6, Volume: 500_000, Freshness: 0.9, Timestamp: now},
		{Symbol: "AAPL", Source: "newsfeed", SourceDetail: "b", Sentiment: 0.4, WeightedSentiment: 0.4, Volume: 500_000, Freshness: 0.7, Timestamp: now},
	}

	f := ExtractFeatures(sigs, models.RegimeTrending)
	assert.InDelta(t, 0.5, f.Sentiment, 1e-9)
	assert.InDelta(t, 0.8, f.Freshness, 1e-9)
	assert.InDelta(t, 0.5, f.SourceDiversity, 1e-9, "two distinct sources out of four")
	assert.Equal(t, 1.0, f.RegimeAlignment, "positive sentiment aligned with trend")
	assert.Equal(t, 1.0, f.LogVolume, "1M total volume saturates")

	f = ExtractFeatures(sigs, models.RegimeVolatile)
	assert.Equal(t, 0.25, f.RegimeAlignment)

	assert.Equal(t, Features{}, ExtractFeatures(nil, models.RegimeRanging))
}
