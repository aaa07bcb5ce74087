package agent

import (
	"sort"
	"time"

	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// Episodic memory: importance-scored notes that bias research prompts.
// Importance decays with a 7-day half-life; pruning runs every tick.
// -----------------------------------------------------------------------------

// recordEpisodeLocked scores and appends an episode. Importance is the
// product of impact, confidence and novelty at creation time.
func (a *Agent) recordEpisodeLocked(ep models.MMemoryEpisode) {
	ep.Importance = ep.Impact * ep.Confidence * ep.Novelty
	a.state.Episodes = append(a.state.Episodes, ep)
}

// -----------------------------------------------------------------------------

// pruneEpisodesLocked drops episodes that are both old and unimportant, then
// enforces the hard cap oldest-first.
func (a *Agent) pruneEpisodesLocked(now time.Time) {
	kept := a.state.Episodes[:0]
	for _, ep := range a.state.Episodes {
		age := now.Sub(ep.Timestamp)
		if age > models.EpisodeRetention {
			continue
		}
		if ep.DecayedImportance(now) < models.MinDecayedImportance && age > models.EpisodeHalfLife {
			continue
		}
		kept = append(kept, ep)
	}

	if len(kept) > models.MaxEpisodes {
		kept = kept[len(kept)-models.MaxEpisodes:]
	}
	a.state.Episodes = kept
}

// -----------------------------------------------------------------------------

// topEpisodesLocked returns the n most important episodes by decayed score,
// newest first among equals.
func (a *Agent) topEpisodesLocked(n int) []models.MMemoryEpisode {
	if len(a.state.Episodes) == 0 || n <= 0 {
		return nil
	}
	now := a.now().UTC()

	ranked := append([]models.MMemoryEpisode(nil), a.state.Episodes...)
	sort.Slice(ranked, func(i, j int) bool {
		di, dj := ranked[i].DecayedImportance(now), ranked[j].DecayedImportance(now)
		if di != dj {
			return di > dj
		}
		return ranked[i].Timestamp.After(ranked[j].Timestamp)
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
