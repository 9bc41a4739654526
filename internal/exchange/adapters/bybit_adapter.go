package adapters

import (
	"context"
	"fmt"
	"strconv"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/shopspring/decimal"
)

// BybitAdapter implements LiveTradingExchange on the Bybit v5 API.
type BybitAdapter struct {
	client *bybit.Client
	config exchange.ExchangeConfig
}

// NewBybitAdapter creates a new Bybit adapter instance
func NewBybitAdapter(config exchange.ExchangeConfig) *BybitAdapter {
	config.Normalize()
	client := bybit.NewClient(bybit.Config{
		APIKey:    config.APIKey,
		APISecret: config.APISecret,
		Testnet:   config.Testnet,
		Demo:      config.Demo,
		Category:  config.Category,
		Timeout:   config.Timeout,
		RateLimit: config.RateLimit,
	})
	return &BybitAdapter{client: client, config: config}
}

func (b *BybitAdapter) GetName() string { return "bybit" }

func (b *BybitAdapter) GetEnvironment() string { return b.client.GetEnvironment() }

// Client exposes the underlying venue client.
func (b *BybitAdapter) Client() *bybit.Client { return b.client }

func (b *BybitAdapter) PlaceMarketOrder(ctx context.Context, req exchange.OrderRequest) (*types.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return b.client.PlaceOrder(ctx, bybit.PlaceOrderParams{
		Symbol:      req.Symbol,
		Side:        req.Side,
		Qty:         formatQuantity(req.Quantity, req.Precision),
		OrderLinkID: req.ClientID,
		StopLoss:    formatPrice(req.StopLoss),
		TakeProfit:  formatPrice(req.TakeProfit),
	})
}

func (b *BybitAdapter) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	return b.client.CancelOrder(ctx, symbol, orderID)
}

func (b *BybitAdapter) GetOrderStatus(ctx context.Context, symbol, orderID string) (*types.Order, error) {
	return b.client.GetOrder(ctx, symbol, orderID)
}

func (b *BybitAdapter) GetMarketConstraints(ctx context.Context, symbol string) (types.MarketConstraints, error) {
	info, err := b.client.GetInstrumentInfo(ctx, symbol)
	if err != nil {
		return types.MarketConstraints{}, err
	}
	if !info.Tradable() {
		return types.MarketConstraints{}, boterrors.NewValidationError("bybit", "GetMarketConstraints",
			fmt.Sprintf("%s is not trading (status %s)", symbol, info.Status))
	}
	return info.Constraints(), nil
}

func (b *BybitAdapter) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	return b.client.GetLatestPrice(ctx, symbol)
}

func (b *BybitAdapter) GetKlines(ctx context.Context, req exchange.KlineRequest) ([]types.OHLCV, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	interval, err := bybit.IntervalFromString(req.Interval)
	if err != nil {
		return nil, err
	}

	klines, err := b.client.GetKlines(ctx, bybit.KlineParams{
		Symbol:   req.Symbol,
		Interval: interval,
		Start:    req.Start,
		End:      req.End,
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, err
	}

	candles := make([]types.OHLCV, len(klines))
	for i, k := range klines {
		candles[i] = types.OHLCV{
			Open:      k.OpenPrice,
			High:      k.HighPrice,
			Low:       k.LowPrice,
			Close:     k.ClosePrice,
			Volume:    k.Volume,
			Timestamp: k.StartTime,
		}
	}
	return candles, nil
}

// Authenticate performs a signed request; bad keys surface as a fatal error.
func (b *BybitAdapter) Authenticate(ctx context.Context) (exchange.Identity, error) {
	status, err := b.client.GetAccountInfo(ctx)
	if err != nil {
		return exchange.Identity{}, err
	}
	return exchange.Identity{
		Venue:       b.GetName(),
		Environment: b.GetEnvironment(),
		AccountType: string(bybit.AccountTypeUnified),
		Status:      status,
	}, nil
}

// GetBalance returns the available amount of asset in the unified account.
func (b *BybitAdapter) GetBalance(ctx context.Context, asset string) (float64, error) {
	bal, err := b.client.GetCoinBalance(ctx, bybit.AccountTypeUnified, asset)
	if err != nil {
		return 0, err
	}
	return bal.Available, nil
}

// formatQuantity truncates to the venue precision; rounding up could exceed
// the balance that was sized against.
func formatQuantity(q float64, precision int) string {
	return decimal.NewFromFloat(q).Truncate(int32(precision)).StringFixed(int32(precision))
}

func formatPrice(p float64) string {
	if p <= 0 {
		return ""
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}
