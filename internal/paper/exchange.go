// Package paper simulates order execution against live prices with an
// in-memory wallet.
package paper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config of the simulated wallet.
type Config struct {
	InitialBalance float64 `yaml:"initial_balance" json:"initial_balance" env-default:"10000" validate:"gt=0"`
	FeeRate        float64 `yaml:"fee_rate" json:"fee_rate" env-default:"0" validate:"gte=0,lt=1"`
	QuoteAsset     string  `yaml:"-" json:"-"`
}

// Exchange fills every market order immediately at the current price.
// Prices and constraints come from the wrapped market; orders never touch it.
type Exchange struct {
	market  exchange.MarketData
	history exchange.HistoricalData
	cfg     Config

	mu       sync.Mutex
	quote    decimal.Decimal
	holdings map[string]decimal.Decimal
	orders   map[string]types.Order
	now      func() time.Time
}

var _ exchange.LiveTradingExchange = (*Exchange)(nil)

// NewExchange creates a paper venue. history may be nil when no candles are needed.
func NewExchange(market exchange.MarketData, history exchange.HistoricalData, cfg Config) *Exchange {
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	return &Exchange{
		market:   market,
		history:  history,
		cfg:      cfg,
		quote:    decimal.NewFromFloat(cfg.InitialBalance),
		holdings: make(map[string]decimal.Decimal),
		orders:   make(map[string]types.Order),
		now:      time.Now,
	}
}

func (e *Exchange) GetName() string { return "paper" }

func (e *Exchange) GetEnvironment() string { return "paper" }

// PlaceMarketOrder fills at the latest price. A buy that costs more than the
// wallet holds, or a sell of more than is held, is rejected.
func (e *Exchange) PlaceMarketOrder(ctx context.Context, req exchange.OrderRequest) (*types.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	price, err := e.market.GetLatestPrice(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	base := e.baseAsset(req.Symbol)
	qty := decimal.NewFromFloat(req.Quantity)
	px := decimal.NewFromFloat(price)
	notional := qty.Mul(px)
	fee := notional.Mul(decimal.NewFromFloat(e.cfg.FeeRate))

	e.mu.Lock()
	defer e.mu.Unlock()

	switch req.Side {
	case types.SideBuy:
		cost := notional.Add(fee)
		if cost.GreaterThan(e.quote) {
			return nil, boterrors.NewOrderError("paper", "PlaceMarketOrder",
				fmt.Errorf("insufficient funds: need %s %s, have %s", cost.StringFixed(2), e.cfg.QuoteAsset, e.quote.StringFixed(2)))
		}
		e.quote = e.quote.Sub(cost)
		e.holdings[base] = e.holdings[base].Add(qty)
	case types.SideSell:
		held := e.holdings[base]
		if qty.GreaterThan(held) {
			return nil, boterrors.NewOrderError("paper", "PlaceMarketOrder",
				fmt.Errorf("insufficient %s: selling %s, holding %s", base, qty.String(), held.String()))
		}
		e.holdings[base] = held.Sub(qty)
		e.quote = e.quote.Add(notional.Sub(fee))
	}

	feeF, _ := fee.Float64()
	order := types.Order{
		ID:         uuid.NewString(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       types.OrderTypeMarket,
		Price:      price,
		Quantity:   req.Quantity,
		CreatedAt:  e.now(),
		Status:     types.OrderStatusFilled,
		Fee:        feeF,
		FilledQty:  req.Quantity,
		AvgPrice:   price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	}
	e.orders[order.ID] = order
	return &order, nil
}

// CancelOrder always reports false: paper orders fill on placement.
func (e *Exchange) CancelOrder(_ context.Context, _ string, orderID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.orders[orderID]; !ok {
		return false, boterrors.NewValidationError("paper", "CancelOrder", fmt.Sprintf("unknown order %s", orderID))
	}
	return false, nil
}

func (e *Exchange) GetOrderStatus(_ context.Context, _ string, orderID string) (*types.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return nil, boterrors.NewValidationError("paper", "GetOrderStatus", fmt.Sprintf("unknown order %s", orderID))
	}
	return &o, nil
}

func (e *Exchange) GetMarketConstraints(ctx context.Context, symbol string) (types.MarketConstraints, error) {
	return e.market.GetMarketConstraints(ctx, symbol)
}

func (e *Exchange) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	return e.market.GetLatestPrice(ctx, symbol)
}

func (e *Exchange) GetKlines(ctx context.Context, req exchange.KlineRequest) ([]types.OHLCV, error) {
	if e.history == nil {
		return nil, boterrors.NewConfigurationError("paper", "GetKlines", "no historical data source configured")
	}
	return e.history.GetKlines(ctx, req)
}

func (e *Exchange) Authenticate(context.Context) (exchange.Identity, error) {
	return exchange.Identity{Venue: "paper", Environment: "paper", AccountType: "SIMULATED", Status: "ok"}, nil
}

// GetBalance returns the quote balance or the holding of a base asset.
func (e *Exchange) GetBalance(_ context.Context, asset string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if asset == e.cfg.QuoteAsset {
		f, _ := e.quote.Float64()
		return f, nil
	}
	f, _ := e.holdings[asset].Float64()
	return f, nil
}

func (e *Exchange) baseAsset(symbol string) string {
	if base := strings.TrimSuffix(symbol, e.cfg.QuoteAsset); base != symbol && base != "" {
		return base
	}
	return symbol
}
