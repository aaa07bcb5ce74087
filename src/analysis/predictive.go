package analysis

import (
	"math"

	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// Online predictive scoring: a logistic function over five normalized
// features. One gradient step per closed trade; never batch-retrained.
// -----------------------------------------------------------------------------

const weightClamp = 3.0

// Features is the normalized input vector for one candidate.
type Features struct {
	Sentiment       float64 // [-1, 1]
	Freshness       float64 // [0, 1]
	SourceDiversity float64 // [0, 1]
	LogVolume       float64 // normalized log volume, ~[0, 1]
	RegimeAlignment float64 // [0, 1]
}

// -----------------------------------------------------------------------------

func (f Features) vector() [models.NumFeatures]float64 {
	return [models.NumFeatures]float64{
		f.Sentiment, f.Freshness, f.SourceDiversity, f.LogVolume, f.RegimeAlignment,
	}
}

// -----------------------------------------------------------------------------

// ExtractFeatures builds the feature vector for a symbol from its cached
// signals and the current regime.
func ExtractFeatures(sigs []models.MSignal, regime string) Features {
	if len(sigs) == 0 {
		return Features{}
	}

	var sentiment, freshness, volume float64
	details := make(map[string]bool)
	for _, s := range sigs {
		sentiment += s.WeightedSentiment
		freshness += s.Freshness
		volume += s.Volume
		details[s.Source] = true
	}
	n := float64(len(sigs))
	sentiment /= n
	freshness /= n

	// log-volume squashed to ~[0,1]: 1e6 total volume maps to ~1.0.
	logVol := 0.0
	if volume > 0 {
		logVol = math.Log10(1+volume) / 6
		if logVol > 1 {
			logVol = 1
		}
	}

	diversity := float64(len(details)) / 4
	if diversity > 1 {
		diversity = 1
	}

	alignment := 0.5
	switch regime {
	case models.RegimeTrending:
		if sentiment > 0 {
			alignment = 1.0
		} else {
			alignment = 0.2
		}
	case models.RegimeVolatile:
		alignment = 0.25
	}

	return Features{
		Sentiment:       clamp(sentiment, -1, 1),
		Freshness:       clamp(freshness, 0, 1),
		SourceDiversity: diversity,
		LogVolume:       logVol,
		RegimeAlignment: alignment,
	}
}

// -----------------------------------------------------------------------------

// PredictScore returns the win probability for the features, in [0, 1].
func PredictScore(m *models.MPredictiveModel, f Features) float64 {
	z := m.Bias
	v := f.vector()
	for i := 0; i < models.NumFeatures; i++ {
		z += m.Weights[i] * v[i]
	}
	return 1 / (1 + math.Exp(-z))
}

// -----------------------------------------------------------------------------

// RecordOutcome applies one online gradient step for a closed trade.
// outcome is 1 for a win, 0 for a loss; returnPct feeds per-symbol stats.
func RecordOutcome(m *models.MPredictiveModel, symbol string, f Features, won bool, returnPct float64) {
	pred := PredictScore(m, f)

	outcome := 0.0
	if won {
		outcome = 1.0
	}
	err := outcome - pred

	v := f.vector()
	m.Bias = clamp(m.Bias+m.LearningRate*err, -weightClamp, weightClamp)
	for i := 0; i < models.NumFeatures; i++ {
		m.Weights[i] = clamp(m.Weights[i]+m.LearningRate*err*v[i], -weightClamp, weightClamp)
	}

	// Incremental sample stats.
	m.Samples++
	if won {
		m.Hits++
	}
	m.HitRate = float64(m.Hits) / float64(m.Samples)
	m.MSE += (err*err - m.MSE) / float64(m.Samples)

	// Per-symbol stats: running average, no decay.
	if m.SymbolStats == nil {
		m.SymbolStats = make(map[string]*models.MSymbolStats)
	}
	st, ok := m.SymbolStats[symbol]
	if !ok {
		st = &models.MSymbolStats{}
		m.SymbolStats[symbol] = st
	}
	if won {
		st.Wins++
	} else {
		st.Losses++
	}
	total := float64(st.Wins + st.Losses)
	st.AvgReturn += (returnPct - st.AvgReturn) / total
}

// -----------------------------------------------------------------------------

// SizeAdjustment scales position sizing by the model's conviction. A neutral
// score of 0.5 maps to 1.0; the output stays within [0.6, 1.4].
func SizeAdjustment(m *models.MPredictiveModel, f Features) float64 {
	return 0.6 + 0.8*PredictScore(m, f)
}

// -----------------------------------------------------------------------------

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
