package models

import (
	"math"
	"time"
)

// -----------------------------------------------------------------------------
// MMemoryEpisode is a timestamped, tagged, importance-scored note used to bias
// subsequent research prompts.
// -----------------------------------------------------------------------------

const (
	// EpisodeHalfLife controls exponential importance decay.
	EpisodeHalfLife = 7 * 24 * time.Hour
	// EpisodeRetention is the hard age limit for low-importance episodes.
	EpisodeRetention = 30 * 24 * time.Hour
	// MaxEpisodes caps the episode list, oldest-first eviction.
	MaxEpisodes = 500
	// MinDecayedImportance is the prune floor for aged episodes.
	MinDecayedImportance = 0.05
)

type MMemoryEpisode struct {
	Timestamp  time.Time `json:"timestamp"`
	Tags       []string  `json:"tags"`
	Note       string    `json:"note"`
	Impact     float64   `json:"impact"`
	Confidence float64   `json:"confidence"`
	Novelty    float64   `json:"novelty"`
	Importance float64   `json:"importance"` // impact × confidence × novelty at creation
}

// -----------------------------------------------------------------------------

// DecayedImportance applies the 7-day half-life to the stored importance.
func (e *MMemoryEpisode) DecayedImportance(now time.Time) float64 {
	age := now.Sub(e.Timestamp)
	if age <= 0 {
		return e.Importance
	}
	halfLives := float64(age) / float64(EpisodeHalfLife)
	return e.Importance * math.Pow(0.5, halfLives)
}
