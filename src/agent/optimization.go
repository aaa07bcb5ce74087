package agent

import (
	"time"

	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// Runtime self-tuning: a proportional controller over EMA-smoothed latency
// and error-rate telemetry. No integral or derivative term, so every interval
// change is auditable from the last sample alone.
// -----------------------------------------------------------------------------

const (
	latencyAlpha = 0.3
	errorAlpha   = 0.2

	overloadedErrorRate = 0.2
	healthyErrorRate    = 0.05

	backoffFactor = 1.13
	speedupFactor = 0.93

	// Interval bounds relative to the configured base.
	minIntervalFactor = 0.5
	maxIntervalFactor = 4.0
)

// Per-stage latency ceilings (overload) and floors (headroom), in ms.
var latencyCeilingMs = map[string]float64{
	models.StageGather:   5_000,
	models.StageResearch: 10_000,
	models.StageAnalyst:  8_000,
}

var latencyFloorMs = map[string]float64{
	models.StageGather:   1_500,
	models.StageResearch: 4_000,
}

// -----------------------------------------------------------------------------

// recordStageSample folds one stage completion into the telemetry EMAs.
func (a *Agent) recordStageSample(stage string, latencyMs float64, failed bool) {
	tele := a.state.Optimization.Stages[stage]
	if tele == nil {
		return
	}

	errSample := 0.0
	if failed {
		errSample = 1.0
	}

	if tele.Samples == 0 {
		tele.LatencyEMAMs = latencyMs
		tele.ErrorRateEMA = errSample
	} else {
		tele.LatencyEMAMs = latencyAlpha*latencyMs + (1-latencyAlpha)*tele.LatencyEMAMs
		tele.ErrorRateEMA = errorAlpha*errSample + (1-errorAlpha)*tele.ErrorRateEMA
	}
	tele.Samples++
}

// -----------------------------------------------------------------------------

// Reoptimize re-derives the adaptive intervals from current telemetry. Run
// as a side activity every 3 minutes.
func (a *Agent) Reoptimize() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reoptimizeLocked()
}

func (a *Agent) reoptimizeLocked() {
	opt := a.state.Optimization

	worstError := 0.0
	latencyOverCeiling := false
	for stage, tele := range opt.Stages {
		if tele.ErrorRateEMA > worstError {
			worstError = tele.ErrorRateEMA
		}
		if ceiling, ok := latencyCeilingMs[stage]; ok && tele.LatencyEMAMs > ceiling {
			latencyOverCeiling = true
		}
	}

	overloaded := worstError > overloadedErrorRate || latencyOverCeiling

	healthy := worstError < healthyErrorRate
	for stage, floor := range latencyFloorMs {
		if tele := opt.Stages[stage]; tele == nil || tele.LatencyEMAMs >= floor {
			healthy = false
		}
	}

	if !overloaded && !healthy {
		return
	}

	factor := speedupFactor
	if overloaded {
		factor = backoffFactor
	}

	for stage, tele := range opt.Stages {
		base := a.baseIntervalSeconds(stage)
		next := tele.IntervalSeconds * factor
		if next > base*maxIntervalFactor {
			next = base * maxIntervalFactor
		}
		if next < base*minIntervalFactor {
			next = base * minIntervalFactor
		}
		tele.IntervalSeconds = next
	}

	opt.Adjustments++
	opt.LastOptimized = a.now().UTC()
	a.logLocked("INFO", "intervals re-derived: overloaded=%v worst_err=%.3f gather=%.1fs research=%.1fs analyst=%.1fs",
		overloaded, worstError,
		opt.Stages[models.StageGather].IntervalSeconds,
		opt.Stages[models.StageResearch].IntervalSeconds,
		opt.Stages[models.StageAnalyst].IntervalSeconds)
}

// -----------------------------------------------------------------------------

func (a *Agent) baseIntervalSeconds(stage string) float64 {
	cfg := a.state.Config
	switch stage {
	case models.StageGather:
		return float64(cfg.PollIntervalSeconds)
	case models.StageResearch:
		return float64(cfg.ResearchIntervalSeconds)
	case models.StageAnalyst:
		return float64(cfg.AnalystIntervalSeconds)
	default:
		return 60
	}
}

// -----------------------------------------------------------------------------

// StageIntervals reports the live adaptive intervals, for /api/metrics.
func (a *Agent) StageIntervals() map[string]time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]time.Duration, len(a.state.Optimization.Stages))
	for stage, tele := range a.state.Optimization.Stages {
		out[stage] = time.Duration(tele.IntervalSeconds * float64(time.Second))
	}
	return out
}
