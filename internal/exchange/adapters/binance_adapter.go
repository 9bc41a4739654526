package adapters

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/safety"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/sizing"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/google/uuid"
)

// BinanceTestnetURL is the spot testnet REST host.
const BinanceTestnetURL = "https://testnet.binance.vision"

// BinanceAdapter implements LiveTradingExchange on Binance spot.
type BinanceAdapter struct {
	client  *binance.Client
	config  exchange.ExchangeConfig
	limiter *safety.RateLimiter
	breaker *safety.CircuitBreaker
}

// NewBinanceAdapter creates a new Binance adapter instance
func NewBinanceAdapter(config exchange.ExchangeConfig) *BinanceAdapter {
	config.Normalize()
	client := binance.NewClient(config.APIKey, config.APISecret)
	if config.Testnet {
		client.BaseURL = BinanceTestnetURL
	}
	client.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &BinanceAdapter{
		client:  client,
		config:  config,
		limiter: safety.NewRateLimiter("binance", config.RateLimit, config.RateLimit),
		breaker: safety.NewCircuitBreaker("binance", safety.CircuitBreakerConfig{}),
	}
}

func (b *BinanceAdapter) GetName() string { return "binance" }

func (b *BinanceAdapter) GetEnvironment() string { return b.config.Environment() }

// call rate-limits fn, runs it through the breaker and converts its error.
func (b *BinanceAdapter) call(ctx context.Context, operation string, fn func() error) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return convertBinanceError(operation, err)
	}
	return b.breaker.Call(func() error {
		return convertBinanceError(operation, fn())
	})
}

func (b *BinanceAdapter) PlaceMarketOrder(ctx context.Context, req exchange.OrderRequest) (*types.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}

	side := binance.SideTypeBuy
	if req.Side == types.SideSell {
		side = binance.SideTypeSell
	}

	var resp *binance.CreateOrderResponse
	err := b.call(ctx, "PlaceMarketOrder", func() error {
		var err error
		resp, err = b.client.NewCreateOrderService().
			Symbol(req.Symbol).
			Side(side).
			Type(binance.OrderTypeMarket).
			Quantity(formatQuantity(req.Quantity, req.Precision)).
			NewClientOrderID(req.ClientID).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	order := orderFromCreateResponse(resp)
	// Spot market orders carry no attached exits; the lifecycle watches them.
	order.StopLoss = req.StopLoss
	order.TakeProfit = req.TakeProfit
	return order, nil
}

func (b *BinanceAdapter) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return false, err
	}
	err = b.call(ctx, "CancelOrder", func() error {
		_, err := b.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx)
		return err
	})
	if err != nil {
		if isUnknownOrder(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *BinanceAdapter) GetOrderStatus(ctx context.Context, symbol, orderID string) (*types.Order, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return nil, err
	}
	var o *binance.Order
	err = b.call(ctx, "GetOrderStatus", func() error {
		var err error
		o, err = b.client.NewGetOrderService().Symbol(symbol).OrderID(id).Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orderFromBinance(o), nil
}

// GetMarketConstraints reads the LOT_SIZE and NOTIONAL filters fresh.
func (b *BinanceAdapter) GetMarketConstraints(ctx context.Context, symbol string) (types.MarketConstraints, error) {
	var info *binance.ExchangeInfo
	err := b.call(ctx, "GetMarketConstraints", func() error {
		var err error
		info, err = b.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return types.MarketConstraints{}, err
	}

	for i := range info.Symbols {
		s := info.Symbols[i]
		if s.Symbol != symbol {
			continue
		}
		if s.Status != "" && s.Status != "TRADING" {
			return types.MarketConstraints{}, boterrors.NewValidationError("binance", "GetMarketConstraints",
				fmt.Sprintf("%s is not trading (status %s)", symbol, s.Status))
		}
		return constraintsFromSymbol(&s)
	}
	return types.MarketConstraints{}, boterrors.NewValidationError("binance", "GetMarketConstraints",
		fmt.Sprintf("symbol %s not found", symbol))
}

func constraintsFromSymbol(s *binance.Symbol) (types.MarketConstraints, error) {
	lot := s.LotSizeFilter()
	if lot == nil {
		return types.MarketConstraints{}, boterrors.NewBotError(boterrors.ErrorCategoryExchange, "binance",
			"GetMarketConstraints", fmt.Sprintf("%s has no LOT_SIZE filter", s.Symbol))
	}
	c := types.MarketConstraints{
		Symbol:          s.Symbol,
		Step:            parseFloat(lot.StepSize),
		TargetPrecision: sizing.StepPrecision(lot.StepSize),
		MinQuantity:     parseFloat(lot.MinQuantity),
		MaxQuantity:     parseFloat(lot.MaxQuantity),
	}
	if market := s.MarketLotSizeFilter(); market != nil {
		if maxQty := parseFloat(market.MaxQuantity); maxQty > 0 && (c.MaxQuantity == 0 || maxQty < c.MaxQuantity) {
			c.MaxQuantity = maxQty
		}
	}
	if notional := s.NotionalFilter(); notional != nil {
		c.MinNotional = parseFloat(notional.MinNotional)
	}
	return c, nil
}

func (b *BinanceAdapter) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	var prices []*binance.SymbolPrice
	err := b.call(ctx, "GetLatestPrice", func() error {
		var err error
		prices, err = b.client.NewListPricesService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	for _, p := range prices {
		if p.Symbol == symbol {
			if price := parseFloat(p.Price); price > 0 {
				return price, nil
			}
		}
	}
	return 0, boterrors.NewBotError(boterrors.ErrorCategoryExchange, "binance", "GetLatestPrice",
		fmt.Sprintf("no price for %s", symbol))
}

func (b *BinanceAdapter) GetKlines(ctx context.Context, req exchange.KlineRequest) ([]types.OHLCV, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var klines []*binance.Kline
	err := b.call(ctx, "GetKlines", func() error {
		svc := b.client.NewKlinesService().Symbol(req.Symbol).Interval(req.Interval).Limit(req.Limit)
		if req.Start != nil {
			svc = svc.StartTime(req.Start.UnixMilli())
		}
		if req.End != nil {
			svc = svc.EndTime(req.End.UnixMilli())
		}
		var err error
		klines, err = svc.Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	candles := make([]types.OHLCV, len(klines))
	for i, k := range klines {
		candles[i] = types.OHLCV{
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			Timestamp: time.UnixMilli(k.OpenTime),
		}
	}
	return candles, nil
}

func (b *BinanceAdapter) Authenticate(ctx context.Context) (exchange.Identity, error) {
	account, err := b.account(ctx)
	if err != nil {
		return exchange.Identity{}, err
	}
	if !account.CanTrade {
		return exchange.Identity{}, boterrors.NewCredentialsError("binance", "Authenticate",
			"API key has no spot trading permission")
	}
	return exchange.Identity{
		Venue:       b.GetName(),
		Environment: b.GetEnvironment(),
		AccountType: account.AccountType,
		Status:      "can trade",
	}, nil
}

func (b *BinanceAdapter) GetBalance(ctx context.Context, asset string) (float64, error) {
	account, err := b.account(ctx)
	if err != nil {
		return 0, err
	}
	for _, bal := range account.Balances {
		if bal.Asset == asset {
			return parseFloat(bal.Free), nil
		}
	}
	return 0, nil
}

func (b *BinanceAdapter) account(ctx context.Context) (*binance.Account, error) {
	var account *binance.Account
	err := b.call(ctx, "GetAccount", func() error {
		var err error
		account, err = b.client.NewGetAccountService().Do(ctx)
		return err
	})
	return account, err
}

func orderFromCreateResponse(r *binance.CreateOrderResponse) *types.Order {
	qty := parseFloat(r.OrigQuantity)
	filled := parseFloat(r.ExecutedQuantity)
	quote := parseFloat(r.CummulativeQuoteQuantity)

	var fee float64
	for _, f := range r.Fills {
		fee += parseFloat(f.Commission)
	}

	o := &types.Order{
		ID:           strconv.FormatInt(r.OrderID, 10),
		Symbol:       r.Symbol,
		Side:         sideFromBinance(r.Side),
		Type:         types.OrderTypeMarket,
		Price:        parseFloat(r.Price),
		Quantity:     qty,
		CreatedAt:    time.UnixMilli(r.TransactTime),
		Status:       types.NormalizeOrderStatus(string(r.Status)),
		Fee:          fee,
		FilledQty:    filled,
		RemainingQty: qty - filled,
	}
	if filled > 0 {
		o.AvgPrice = quote / filled
	}
	return o
}

func orderFromBinance(r *binance.Order) *types.Order {
	qty := parseFloat(r.OrigQuantity)
	filled := parseFloat(r.ExecutedQuantity)
	quote := parseFloat(r.CummulativeQuoteQuantity)

	o := &types.Order{
		ID:           strconv.FormatInt(r.OrderID, 10),
		Symbol:       r.Symbol,
		Side:         sideFromBinance(r.Side),
		Type:         types.OrderTypeMarket,
		Price:        parseFloat(r.Price),
		Quantity:     qty,
		CreatedAt:    time.UnixMilli(r.Time),
		Status:       types.NormalizeOrderStatus(string(r.Status)),
		FilledQty:    filled,
		RemainingQty: qty - filled,
	}
	if filled > 0 {
		o.AvgPrice = quote / filled
	}
	return o
}

func sideFromBinance(s binance.SideType) types.OrderSide {
	if s == binance.SideTypeSell {
		return types.SideSell
	}
	return types.SideBuy
}

func parseOrderID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, boterrors.NewValidationError("binance", "parseOrderID", fmt.Sprintf("invalid order id %q", id))
	}
	return n, nil
}

// Binance error codes the adapter distinguishes.
const (
	binanceDisconnected     = -1001
	binanceTimeout          = -1007
	binanceTooManyRequests  = -1003
	binanceTimestamp        = -1021
	binanceBadSignature     = -1022
	binanceFilterFailure    = -1013
	binanceOrderRejected    = -2010
	binanceCancelRejected   = -2011
	binanceNoSuchOrder      = -2013
	binanceBadAPIKey        = -2014
	binanceBadAPIKeyOrPerms = -2015
)

func binanceCategory(code int64) boterrors.ErrorCategory {
	switch code {
	case binanceTooManyRequests:
		return boterrors.ErrorCategoryRateLimit
	case binanceDisconnected:
		return boterrors.ErrorCategoryNetwork
	case binanceTimeout:
		return boterrors.ErrorCategoryTimeout
	case binanceTimestamp, binanceBadSignature, binanceBadAPIKey, binanceBadAPIKeyOrPerms:
		return boterrors.ErrorCategoryCredentials
	case binanceOrderRejected, binanceCancelRejected, binanceNoSuchOrder:
		return boterrors.ErrorCategoryOrder
	case binanceFilterFailure:
		return boterrors.ErrorCategoryValidation
	}
	if code <= -1100 && code >= -1199 {
		return boterrors.ErrorCategoryValidation
	}
	return boterrors.ErrorCategoryExchange
}

// convertBinanceError turns common.APIError and transport failures into BotError.
func convertBinanceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := boterrors.As(err); ok {
		return err
	}
	var apiErr *common.APIError
	if stderrors.As(err, &apiErr) {
		return boterrors.WrapError(err, binanceCategory(apiErr.Code), "binance", operation).
			WithMessage(apiErr.Message).
			WithContext("code", apiErr.Code)
	}
	return boterrors.CategorizeError(err, "binance", operation)
}

func isUnknownOrder(err error) bool {
	var apiErr *common.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code == binanceCancelRejected || apiErr.Code == binanceNoSuchOrder
	}
	return false
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
