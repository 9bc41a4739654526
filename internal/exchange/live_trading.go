package exchange

import (
	"context"
	"time"

	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
)

// Execution places and inspects orders. A failed call is an error, never an
// order that merely looks pending.
type Execution interface {
	PlaceMarketOrder(ctx context.Context, req OrderRequest) (*types.Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (bool, error)
	GetOrderStatus(ctx context.Context, symbol, orderID string) (*types.Order, error)
}

// MarketData answers the two questions asked before every sizing decision.
// Implementations must not cache constraints.
type MarketData interface {
	GetMarketConstraints(ctx context.Context, symbol string) (types.MarketConstraints, error)
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
}

// HistoricalData returns candles ordered oldest first.
type HistoricalData interface {
	GetKlines(ctx context.Context, req KlineRequest) ([]types.OHLCV, error)
}

// Account proves the credentials work and reports balances.
type Account interface {
	Authenticate(ctx context.Context) (Identity, error)
	GetBalance(ctx context.Context, asset string) (float64, error)
}

// LiveTradingExchange is everything a venue adapter provides.
type LiveTradingExchange interface {
	Execution
	MarketData
	HistoricalData
	Account

	GetName() string
	GetEnvironment() string
}

// KlineRequest represents parameters for kline/candlestick data requests.
// Interval uses the human form ("5m", "1h", "1d"); adapters translate it.
type KlineRequest struct {
	Symbol   string     `json:"symbol" validate:"required"`
	Interval string     `json:"interval" validate:"required,oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 12h 1d 1w"`
	Limit    int        `json:"limit" validate:"gte=0,lte=1000"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
}

// OrderRequest is a market order. StopLoss and TakeProfit are optional
// attachments for venues that support them.
type OrderRequest struct {
	Symbol     string          `json:"symbol" validate:"required,alphanum,uppercase"`
	Side       types.OrderSide `json:"side" validate:"required,oneof=Buy Sell"`
	Quantity   float64         `json:"quantity" validate:"gt=0"`
	StopLoss   float64         `json:"stop_loss,omitempty" validate:"gte=0"`
	TakeProfit float64         `json:"take_profit,omitempty" validate:"gte=0"`
	// Precision is the number of decimals the venue accepts for Quantity.
	Precision int    `json:"precision" validate:"gte=0,lte=18"`
	ClientID  string `json:"client_id,omitempty" validate:"omitempty,max=36"`
}

// Identity is what Authenticate learned about the account.
type Identity struct {
	Venue       string `json:"venue"`
	Environment string `json:"environment"`
	AccountType string `json:"account_type"`
	Status      string `json:"status"`
}
