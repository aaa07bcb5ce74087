package interfaces

import (
	"context"
	"time"

	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// IBroker is the execution/account venue contract. Concrete adapters live
// outside this repository; tests use fakes.
// -----------------------------------------------------------------------------

type IBroker interface {

	// -----------------------------------------------------------------------------

	// GetAccount returns equity and buying power.
	GetAccount(ctx context.Context) (*MAccount, error)

	// -----------------------------------------------------------------------------

	// GetPositions lists currently held broker positions.
	GetPositions(ctx context.Context) ([]MBrokerPosition, error)

	// -----------------------------------------------------------------------------

	// GetPosition returns one position, or nil when flat.
	GetPosition(ctx context.Context, symbol string) (*MBrokerPosition, error)

	// -----------------------------------------------------------------------------

	// GetClock reports whether the equity market is open.
	GetClock(ctx context.Context) (*MMarketClock, error)

	// -----------------------------------------------------------------------------

	// CreateOrder submits an order; the returned state decides acceptance.
	CreateOrder(ctx context.Context, spec models.MOrderSpec) (*models.MOrderResult, error)

	// -----------------------------------------------------------------------------

	// GetAsset resolves symbol metadata (tradability, asset class).
	GetAsset(ctx context.Context, symbol string) (*MAsset, error)

	// -----------------------------------------------------------------------------

	// GetPortfolioHistory returns the account equity curve for a period
	// such as "1D" or "1M".
	GetPortfolioHistory(ctx context.Context, period string) (*MPortfolioHistory, error)
}

// -----------------------------------------------------------------------------
// IMarketData is the market-data sibling of IBroker.
// -----------------------------------------------------------------------------

type IMarketData interface {

	// GetSnapshot returns the latest trade price for a symbol.
	GetSnapshot(ctx context.Context, symbol string) (*MQuote, error)

	// -----------------------------------------------------------------------------

	// GetBars returns recent closes, newest last.
	GetBars(ctx context.Context, symbol string, limit int) ([]float64, error)
}

// -----------------------------------------------------------------------------
// Broker error classification. The control loop uses this to pick fail-open
// (serve stale) vs fail-closed behavior.
// -----------------------------------------------------------------------------

const (
	BrokerErrUnauthorized = "UNAUTHORIZED"
	BrokerErrForbidden    = "FORBIDDEN"
	BrokerErrOther        = "OTHER"
)

type BrokerError struct {
	Classification string
	Message        string
}

func (e *BrokerError) Error() string {
	return e.Classification + ": " + e.Message
}

// -----------------------------------------------------------------------------

type MAccount struct {
	Equity      float64 `json:"equity"`
	Cash        float64 `json:"cash"`
	BuyingPower float64 `json:"buying_power"`
}

type MBrokerPosition struct {
	Symbol       string  `json:"symbol"`
	Qty          float64 `json:"qty"`
	MarketValue  float64 `json:"market_value"`
	CurrentPrice float64 `json:"current_price"`
}

type MMarketClock struct {
	IsOpen   bool      `json:"is_open"`
	NextOpen time.Time `json:"next_open"`
}

type MAsset struct {
	Symbol   string `json:"symbol"`
	Tradable bool   `json:"tradable"`
	Class    string `json:"class"` // us_equity / crypto
}

type MQuote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

type MPortfolioHistory struct {
	Timestamps []int64   `json:"timestamps"`
	Equity     []float64 `json:"equity"`
}
