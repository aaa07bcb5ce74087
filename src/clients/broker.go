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
// BrokerClient is a thin HTTP adapter over the brokerage sidecar. 401/403
// responses are mapped onto the broker error classification so the control
// loop can pick fail-open vs fail-closed handling.
// -----------------------------------------------------------------------------

type BrokerClient struct {
	client *resty.Client
	logger *logger.Logger
}

var (
	_ interfaces.IBroker     = (*BrokerClient)(nil)
	_ interfaces.IMarketData = (*BrokerClient)(nil)
)

// -----------------------------------------------------------------------------

func NewBrokerClient(baseURL, apiKey string, log *logger.Logger) *BrokerClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(8 * time.Second)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &BrokerClient{
		client: client,
		logger: log.Named("BrokerClient"),
	}
}

// -----------------------------------------------------------------------------

// classify maps an HTTP status onto a BrokerError.
func classify(status int, path string) error {
	msg := fmt.Sprintf("%s returned %d", path, status)
	switch status {
	case 401:
		return &interfaces.BrokerError{Classification: interfaces.BrokerErrUnauthorized, Message: msg}
	case 403:
		return &interfaces.BrokerError{Classification: interfaces.BrokerErrForbidden, Message: msg}
	default:
		return &interfaces.BrokerError{Classification: interfaces.BrokerErrOther, Message: msg}
	}
}

// -----------------------------------------------------------------------------

func (c *BrokerClient) get(ctx context.Context, path string, out interface{}) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(out).
		Get(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return classify(resp.StatusCode(), path)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *BrokerClient) GetAccount(ctx context.Context) (*interfaces.MAccount, error) {
	var account interfaces.MAccount
	if err := c.get(ctx, "/account", &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// -----------------------------------------------------------------------------

func (c *BrokerClient) GetPositions(ctx context.Context) ([]interfaces.MBrokerPosition, error) {
	var positions []interfaces.MBrokerPosition
	if err := c.get(ctx, "/positions", &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// -----------------------------------------------------------------------------

func (c *BrokerClient) GetPosition(ctx context.Context, symbol string) (*interfaces.MBrokerPosition, error) {
	var position interfaces.MBrokerPosition
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&position).
		Get("/positions/" + symbol)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 404 {
		return nil, nil // flat
	}
	if resp.IsError() {
		return nil, classify(resp.StatusCode(), "/positions/"+symbol)
	}
	return &position, nil
}

// -----------------------------------------------------------------------------

func (c *BrokerClient) GetClock(ctx context.Context) (*interfaces.MMarketClock, error) {
	var clock interfaces.MMarketClock
	if err := c.get(ctx, "/clock", &clock); err != nil {
		return nil, err
	}
	return &clock, nil
}

// -----------------------------------------------------------------------------

func (c *BrokerClient) CreateOrder(ctx context.Context, spec models.MOrderSpec) (*models.MOrderResult, error) {
	var result models.MOrderResult
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(spec).
		SetResult(&result).
		Post("/orders")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, classify(resp.StatusCode(), "/orders")
	}
	return &result, nil
}

// -----------------------------------------------------------------------------

func (c *BrokerClient) GetAsset(ctx context.Context, symbol string) (*interfaces.MAsset, error) {
	var asset interfaces.MAsset
	if err := c.get(ctx, "/assets/"+symbol, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// -----------------------------------------------------------------------------

func (c *BrokerClient) GetPortfolioHistory(ctx context.Context, period string) (*interfaces.MPortfolioHistory, error) {
	var history interfaces.MPortfolioHistory
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("period", period).
		SetResult(&history).
		Get("/portfolio/history")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, classify(resp.StatusCode(), "/portfolio/history")
	}
	return &history, nil
}

// -----------------------------------------------------------------------------

func (c *BrokerClient) GetSnapshot(ctx context.Context, symbol string) (*interfaces.MQuote, error) {
	var quote interfaces.MQuote
	if err := c.get(ctx, "/snapshot/"+symbol, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// -----------------------------------------------------------------------------

func (c *BrokerClient) GetBars(ctx context.Context, symbol string, limit int) ([]float64, error) {
	var bars []float64
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprint(limit)).
		SetResult(&bars).
		Get("/bars/" + symbol)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, classify(resp.StatusCode(), "/bars/"+symbol)
	}
	return bars, nil
}
