package models

import "time"

// -----------------------------------------------------------------------------
// Stage identifiers used by the control loop and the optimizer.
// -----------------------------------------------------------------------------

const (
	StageGather   = "gather"
	StageResearch = "research"
	StageAnalyst  = "analyst"
)

// Stages lists every adaptive stage in execution order.
var Stages = []string{StageGather, StageResearch, StageAnalyst}

// -----------------------------------------------------------------------------
// MStageTelemetry is the EMA-smoothed latency/error view of one stage plus its
// currently-active adaptive interval.
// -----------------------------------------------------------------------------

type MStageTelemetry struct {
	LatencyEMAMs    float64 `json:"latency_ema_ms"`
	ErrorRateEMA    float64 `json:"error_rate_ema"`
	IntervalSeconds float64 `json:"interval_seconds"`
	Samples         int     `json:"samples"`
}

// -----------------------------------------------------------------------------

type MOptimizationState struct {
	Stages        map[string]*MStageTelemetry `json:"stages"`
	LastOptimized time.Time                   `json:"last_optimized"`
	Adjustments   int                         `json:"adjustments"`
}

// -----------------------------------------------------------------------------

// NewOptimizationState seeds telemetry with the configured base intervals.
func NewOptimizationState(pollSec, researchSec, analystSec int) *MOptimizationState {
	return &MOptimizationState{
		Stages: map[string]*MStageTelemetry{
			StageGather:   {IntervalSeconds: float64(pollSec)},
			StageResearch: {IntervalSeconds: float64(researchSec)},
			StageAnalyst:  {IntervalSeconds: float64(analystSec)},
		},
	}
}
