package clients

import (
	"context"
	"fmt"
	"time"

	"trade-agent/src/interfaces"
	"trade-agent/src/logger"

	"github.com/go-resty/resty/v2"
)

// -----------------------------------------------------------------------------
// SwarmClient reads the swarm registry. Unlike the risk manager, registry
// failures are not fail-closed by themselves; the control loop decides what
// an unhealthy or unreachable swarm means.
// -----------------------------------------------------------------------------

type SwarmClient struct {
	client *resty.Client
	logger *logger.Logger
}

var _ interfaces.ISwarmRegistry = (*SwarmClient)(nil)

// -----------------------------------------------------------------------------

func NewSwarmClient(baseURL string, log *logger.Logger) *SwarmClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(4 * time.Second)

	return &SwarmClient{
		client: client,
		logger: log.Named("SwarmClient"),
	}
}

// -----------------------------------------------------------------------------

func (c *SwarmClient) Health(ctx context.Context) (*interfaces.MSwarmHealth, error) {
	var health interfaces.MSwarmHealth
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&health).
		Get("/health")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("swarm registry /health returned %d", resp.StatusCode())
	}
	return &health, nil
}

// -----------------------------------------------------------------------------

func (c *SwarmClient) Agents(ctx context.Context) (map[string]interfaces.MSwarmAgent, error) {
	agents := make(map[string]interfaces.MSwarmAgent)
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&agents).
		Get("/agents")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("swarm registry /agents returned %d", resp.StatusCode())
	}
	return agents, nil
}
