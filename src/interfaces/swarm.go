package interfaces

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// ISwarmRegistry is the health/dispatch view of the multi-agent swarm. Only
// consumed, never implemented here.
// -----------------------------------------------------------------------------

type ISwarmRegistry interface {

	// Health reports overall swarm health.
	Health(ctx context.Context) (*MSwarmHealth, error)

	// -----------------------------------------------------------------------------

	// Agents returns the registered agents keyed by id.
	Agents(ctx context.Context) (map[string]MSwarmAgent, error)
}

// -----------------------------------------------------------------------------

type MSwarmHealth struct {
	Healthy bool `json:"healthy"`
}

type MSwarmAgent struct {
	Type          string    `json:"type"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}
