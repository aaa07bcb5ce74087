package models

import "time"

// -----------------------------------------------------------------------------
// Market regime classification, recomputed every tick from recent equity
// returns.
// -----------------------------------------------------------------------------

const (
	RegimeTrending = "trending"
	RegimeRanging  = "ranging"
	RegimeVolatile = "volatile"
)

type MMarketRegime struct {
	Regime     string    `json:"regime"`
	Confidence float64   `json:"confidence"`
	Since      time.Time `json:"since"`

	// Characteristics that produced the classification.
	Volatility float64 `json:"volatility"` // stdev of recent returns
	Trend      float64 `json:"trend"`
	Sharpe     float64 `json:"sharpe"` // annualized mean/stdev
	Dispersion float64 `json:"dispersion"` // signal sentiment dispersion
}
