package network

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"trade-agent/src/helpers"
	"trade-agent/src/interfaces"
	"trade-agent/src/logger"
	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// Manager issues outbound GET requests with bounded retries. The caller's
// context bounds the whole call, backoff sleeps included; auth-class
// responses abort the retry loop immediately.
// -----------------------------------------------------------------------------

type Manager struct {
	Config *models.MNetworkConfig
	Client *resty.Client
	Logger *logger.Logger

	backoff time.Duration
}

var _ interfaces.INetworkManager = (*Manager)(nil)

// -----------------------------------------------------------------------------

func NewManager(cfg *models.MNetworkConfig, log *logger.Logger) *Manager {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Manager{
		Config:  cfg,
		Client:  client,
		Logger:  log.Named("Network"),
		backoff: time.Second,
	}
}

// -----------------------------------------------------------------------------

// Get performs a GET request with retries and exponential backoff.
func (nm *Manager) Get(ctx context.Context, urlStr string, params map[string]string) ([]byte, error) {
	attempts := nm.Config.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var body []byte
	attempt := 0

	err := helpers.RetryWithBackoff(ctx, "GET "+urlStr, attempts, nm.backoff, func() error {
		attempt++

		resp, err := nm.Client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(urlStr)
		if err != nil {
			nm.Logger.Info("Request failed (attempt %d/%d): %v", attempt, attempts, err)
			return &helpers.NetworkError{AgentError: helpers.AgentError{Message: "request failed", Cause: err}}
		}

		switch status := resp.StatusCode(); {
		case status == 401:
			return &helpers.AuthError{
				AgentError:     helpers.AgentError{Message: fmt.Sprintf("%s returned %d", urlStr, status)},
				Classification: interfaces.BrokerErrUnauthorized,
			}
		case status == 403:
			return &helpers.AuthError{
				AgentError:     helpers.AgentError{Message: fmt.Sprintf("%s returned %d", urlStr, status)},
				Classification: interfaces.BrokerErrForbidden,
			}
		case status != 200:
			nm.Logger.Info("Bad status %d (attempt %d/%d)", status, attempt, attempts)
			return &helpers.NetworkError{AgentError: helpers.AgentError{Message: fmt.Sprintf("bad status: %d", status)}}
		}

		body = resp.Body()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
