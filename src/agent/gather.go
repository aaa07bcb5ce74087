package agent

import (
	"context"
	"fmt"
)

// -----------------------------------------------------------------------------
// Gather stage: fan out to every signal source, weight what settled, fold it
// into the bounded cache.
// -----------------------------------------------------------------------------

func (a *Agent) runGather(ctx context.Context) error {
	cfg := a.state.Config

	merged, outcomes := a.sources.FetchAll(ctx, cfg.Symbols)

	fetched, failed, skipped := 0, 0, 0
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			skipped++
		case o.Err != nil:
			failed++
		default:
			fetched += o.Signals
		}
	}

	// Config-level source weights override whatever the source stamped.
	for i := range merged {
		if w, ok := cfg.SourceWeights[merged[i].Source]; ok {
			merged[i].SourceWeight = w
			merged[i].WeightedSentiment = merged[i].Sentiment * w * merged[i].Freshness
		}
	}

	now := a.now().UTC()
	cached, cleanup := a.cache.Ingest(a.state.Signals, merged, now)
	a.state.Signals = cached
	if cleanup.BudgetEvicted {
		a.state.CacheCleanups++
		a.state.LastCacheCleanup = cleanup.At
		a.logLocked("WARNING", "signal cache over budget: evicted down to %d entries", cleanup.Kept)
	}

	a.logLocked("INFO", "gather: %d signals in (%d failed, %d skipped sources), cache=%d",
		fetched, failed, skipped, len(a.state.Signals))

	if fetched == 0 && failed > 0 && failed >= len(outcomes)-skipped {
		return fmt.Errorf("all %d attempted sources failed", failed)
	}
	return nil
}
