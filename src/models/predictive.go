package models

// -----------------------------------------------------------------------------
// MPredictiveModel is the online scoring model: a logistic function over five
// normalized features. Updated one gradient step per closed trade, never
// batch-retrained, never reset except on full agent reset.
// -----------------------------------------------------------------------------

// Feature indexes into MPredictiveModel.Weights.
const (
	FeatSentiment = iota
	FeatFreshness
	FeatSourceDiversity
	FeatLogVolume
	FeatRegimeAlignment
	NumFeatures
)

type MPredictiveModel struct {
	Bias         float64             `json:"bias"`
	Weights      [NumFeatures]float64 `json:"weights"`
	LearningRate float64             `json:"learning_rate"`
	Samples      int                 `json:"samples"`
	Hits         int                 `json:"hits"`
	HitRate      float64             `json:"hit_rate"`
	MSE          float64             `json:"mse"`

	// Per-symbol outcome stats. Deliberately carries no decay or recency
	// weighting, unlike memory episodes.
	SymbolStats map[string]*MSymbolStats `json:"symbol_stats"`
}

// -----------------------------------------------------------------------------

type MSymbolStats struct {
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	AvgReturn float64 `json:"avg_return"`
}

// -----------------------------------------------------------------------------

// NewPredictiveModel returns a neutral model.
func NewPredictiveModel() *MPredictiveModel {
	return &MPredictiveModel{
		LearningRate: 0.05,
		SymbolStats:  make(map[string]*MSymbolStats),
	}
}
