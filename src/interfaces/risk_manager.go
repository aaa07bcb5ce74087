package interfaces

import (
	"context"

	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// IRiskManager fronts the external risk-manager service. Buys must be approved
// before they reach the execution gateway; the gateway itself performs no risk
// checks.
// -----------------------------------------------------------------------------

type IRiskManager interface {

	// Validate asks for approval of an order.
	Validate(ctx context.Context, order models.MOrderSpec) (*MRiskVerdict, error)

	// -----------------------------------------------------------------------------

	// Status returns the kill-switch flag. A transport error must be treated
	// by callers as "kill switch active" (fail-closed).
	Status(ctx context.Context) (*MRiskStatus, error)

	// -----------------------------------------------------------------------------

	// UpdateLoss reports realized P&L.
	UpdateLoss(ctx context.Context, realizedPnL float64) error
}

// -----------------------------------------------------------------------------

type MRiskVerdict struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

type MRiskStatus struct {
	KillSwitchActive bool `json:"killSwitchActive"`
}
