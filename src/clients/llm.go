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
// LLMClient fronts the reasoning backend. Timeouts are deliberately long
// compared to the other clients; the research pool bounds concurrency.
// -----------------------------------------------------------------------------

type LLMClient struct {
	client *resty.Client
	logger *logger.Logger
}

var _ interfaces.ILLMProvider = (*LLMClient)(nil)

// -----------------------------------------------------------------------------

func NewLLMClient(baseURL, apiKey string, log *logger.Logger) *LLMClient {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(12 * time.Second)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &LLMClient{
		client: client,
		logger: log.Named("LLMClient"),
	}
}

// -----------------------------------------------------------------------------

func (c *LLMClient) Complete(ctx context.Context, req interfaces.MLLMRequest) (*interfaces.MLLMResponse, error) {
	var result interfaces.MLLMResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/complete")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		// The status text is part of the error so auth classification
		// (401, unauthorized) can pattern-match on it upstream.
		return nil, fmt.Errorf("llm backend returned %d: %s", resp.StatusCode(), resp.Status())
	}
	return &result, nil
}
