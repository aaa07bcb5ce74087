package clients

import (
	"context"
	"fmt"
	"time"

	"trade-agent/src/interfaces"
	"trade-agent/src/logger"
	"trade-agent/src/models"

	"github.com/go-resty/resty/v2"
)

// -----------------------------------------------------------------------------
// RiskManagerClient talks to the external risk-manager service. A failed or
// unreachable /status call is surfaced as an error so the control loop can
// fail closed.
// -----------------------------------------------------------------------------

type RiskManagerClient struct {
	client *resty.Client
	logger *logger.Logger
}

var _ interfaces.IRiskManager = (*RiskManagerClient)(nil)

// -----------------------------------------------------------------------------

func NewRiskManagerClient(baseURL string, log *logger.Logger) *RiskManagerClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(6 * time.Second)

	return &RiskManagerClient{
		client: client,
		logger: log.Named("RiskManagerClient"),
	}
}

// -----------------------------------------------------------------------------

// Validate asks the risk manager to approve an order intent.
func (c *RiskManagerClient) Validate(ctx context.Context, spec models.MOrderSpec) (*interfaces.MRiskVerdict, error) {
	var verdict interfaces.MRiskVerdict
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(spec).
		SetResult(&verdict).
		Post("/validate")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("risk manager /validate returned %d", resp.StatusCode())
	}
	return &verdict, nil
}

// -----------------------------------------------------------------------------

// Status returns the kill-switch state. Callers must treat an error here as
// "kill switch active".
func (c *RiskManagerClient) Status(ctx context.Context) (*interfaces.MRiskStatus, error) {
	var status interfaces.MRiskStatus
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/status")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("risk manager /status returned %d", resp.StatusCode())
	}
	return &status, nil
}

// -----------------------------------------------------------------------------

// UpdateLoss reports realized P&L after an exit. Best effort.
func (c *RiskManagerClient) UpdateLoss(ctx context.Context, realizedPnL float64) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"realized_pnl": realizedPnL}).
		Post("/update-loss")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("risk manager /update-loss returned %d", resp.StatusCode())
	}
	return nil
}
