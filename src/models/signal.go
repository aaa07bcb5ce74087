package models

import "time"

// -----------------------------------------------------------------------------
// MSignal is one observation emitted by a data source.
// -----------------------------------------------------------------------------

type MSignal struct {
	Symbol            string    `json:"symbol"`
	Source            string    `json:"source"`
	SourceDetail      string    `json:"source_detail"` // e.g. feed/board name; dedup key with Symbol
	Sentiment         float64   `json:"sentiment"`     // raw, in [-1, 1]
	WeightedSentiment float64   `json:"weighted_sentiment"`
	Volume            float64   `json:"volume"`
	Freshness         float64   `json:"freshness"` // decay factor in [0, 1]
	SourceWeight      float64   `json:"source_weight"`
	Timestamp         time.Time `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// DedupKey identifies the logical origin of a signal for deduplication.
func (s *MSignal) DedupKey() string {
	return s.Symbol + "|" + s.SourceDetail
}

// -----------------------------------------------------------------------------

// Valid reports whether the signal carries the required fields.
func (s *MSignal) Valid() bool {
	return s.Symbol != "" && s.Source != "" && !s.Timestamp.IsZero()
}
