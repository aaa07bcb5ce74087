package agent

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"trade-agent/src/analysis"
	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// Side activities run on their own schedules, independent of the tick loop.
// Each one serializes through the agent mutex like everything else.
// -----------------------------------------------------------------------------

// StartSideActivities schedules the recurring background jobs and returns the
// running scheduler. The caller stops it on shutdown.
func (a *Agent) StartSideActivities(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc("@every 5m", func() { a.RunStress() }); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc("@every 2m", func() { a.SyncSwarmHealth(ctx) }); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc("@every 3m", func() { a.Reoptimize() }); err != nil {
		return nil, err
	}

	c.Start()
	a.logger.Info("Side activities scheduled: stress 5m, swarm sync 2m, reoptimize 3m")
	return c, nil
}

// -----------------------------------------------------------------------------

// RunStress refreshes the stress-test result against current exposure.
func (a *Agent) RunStress() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runStressLocked()
}

func (a *Agent) runStressLocked() {
	now := a.now().UTC()
	equity := a.currentEquity()

	previous := a.state.Stress
	result := analysis.RunStressTest(a.state.Positions, equity, a.state.EquityReturns(), now)
	a.state.Stress = result

	if result != nil && !result.Passed {
		a.logLocked("WARNING", "stress test failed: worst=%s drawdown=%.1f%% multiplier=%.2f",
			result.WorstCase, result.WorstCaseDrawdown*100, result.RecommendedRiskMultiplier)

		// Only the transition into failure is worth remembering.
		if previous == nil || previous.Passed {
			a.recordEpisodeLocked(models.MMemoryEpisode{
				Timestamp:  now,
				Tags:       []string{"stress", result.WorstCase},
				Note:       fmt.Sprintf("stress test failed: %s drawdown %.1f%%", result.WorstCase, result.WorstCaseDrawdown*100),
				Impact:     clamp01(result.WorstCaseDrawdown / 0.12),
				Confidence: 1.0,
				Novelty:    0.7,
			})
		}
	}
}
