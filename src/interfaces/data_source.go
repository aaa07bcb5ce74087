package interfaces

import (
	"context"

	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// ISignalSource is the contract for gatherers. Each source returns a finite
// batch of raw signals per fetch; the agent maps, weights and caches them.
// -----------------------------------------------------------------------------

type ISignalSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// Fetch retrieves the current batch of signals for the given symbols.
	// Implementations must honor ctx cancellation/deadline.
	Fetch(ctx context.Context, symbols []string) ([]models.MSignal, error)

	// -----------------------------------------------------------------------------

	// Timeout returns the per-fetch deadline for this source (4–12s).
	Timeout() int

	// -----------------------------------------------------------------------------

	// Budgeted reports whether fetches spend the daily read budget.
	Budgeted() bool
}
