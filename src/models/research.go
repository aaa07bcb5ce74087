package models

import "time"

// -----------------------------------------------------------------------------
// Research verdicts.
// -----------------------------------------------------------------------------

const (
	VerdictBuy  = "BUY"
	VerdictSkip = "SKIP"
	VerdictWait = "WAIT"
)

// ResearchTTL is how long a cached research result stays fresh.
const ResearchTTL = 3 * time.Minute

// -----------------------------------------------------------------------------
// MResearchResult is a cached reasoning outcome for one symbol.
// -----------------------------------------------------------------------------

type MResearchResult struct {
	Symbol       string    `json:"symbol"`
	Verdict      string    `json:"verdict"` // BUY / SKIP / WAIT
	Confidence   float64   `json:"confidence"`
	EntryQuality string    `json:"entry_quality"` // e.g. A / B / C tier
	Reasoning    string    `json:"reasoning"`
	RedFlags     []string  `json:"red_flags"`
	Catalysts    []string  `json:"catalysts"`
	Timestamp    time.Time `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// Fresh reports whether the result is still inside its TTL at now.
func (r *MResearchResult) Fresh(now time.Time) bool {
	return now.Sub(r.Timestamp) < ResearchTTL
}
