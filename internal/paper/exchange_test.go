package paper

import (
	"context"
	"testing"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedMarket struct{ price float64 }

func (m *fixedMarket) GetLatestPrice(context.Context, string) (float64, error) { return m.price, nil }

func (m *fixedMarket) GetMarketConstraints(_ context.Context, symbol string) (types.MarketConstraints, error) {
	return types.MarketConstraints{Symbol: symbol, Step: 0.01, TargetPrecision: 2, MinQuantity: 0.01}, nil
}

func order(side types.OrderSide, qty float64) exchange.OrderRequest {
	return exchange.OrderRequest{Symbol: "BTCUSDT", Side: side, Quantity: qty, Precision: 2}
}

func TestPaperRoundTrip(t *testing.T) {
	ctx := context.Background()
	market := &fixedMarket{price: 250}
	ex := NewExchange(market, nil, Config{InitialBalance: 1000, FeeRate: 0.001, QuoteAsset: "USDT"})

	buy, err := ex.PlaceMarketOrder(ctx, order(types.SideBuy, 2))
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, buy.Status)
	assert.Equal(t, 250.0, buy.ExecutionPrice())
	assert.InDelta(t, 0.5, buy.Fee, 1e-9)
	assert.NotEmpty(t, buy.ID)

	usdt, _ := ex.GetBalance(ctx, "USDT")
	assert.InDelta(t, 499.5, usdt, 1e-9)
	btc, _ := ex.GetBalance(ctx, "BTC")
	assert.Equal(t, 2.0, btc)

	market.price = 300
	sell, err := ex.PlaceMarketOrder(ctx, order(types.SideSell, 2))
	require.NoError(t, err)
	assert.InDelta(t, 0.6, sell.Fee, 1e-9)

	usdt, _ = ex.GetBalance(ctx, "USDT")
	assert.InDelta(t, 1098.9, usdt, 1e-9)

	status, err := ex.GetOrderStatus(ctx, "BTCUSDT", buy.ID)
	require.NoError(t, err)
	assert.Equal(t, buy.ID, status.ID)

	cancelled, err := ex.CancelOrder(ctx, "BTCUSDT", buy.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)
}

func TestPaperInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	ex := NewExchange(&fixedMarket{price: 100}, nil, Config{InitialBalance: 100})

	_, err := ex.PlaceMarketOrder(ctx, order(types.SideBuy, 1.01))
	require.Error(t, err)
	assert.True(t, boterrors.IsValidation(err))
	assert.Contains(t, err.Error(), "insufficient funds")

	_, err = ex.PlaceMarketOrder(ctx, order(types.SideSell, 1))
	assert.True(t, boterrors.IsValidation(err))

	usdt, _ := ex.GetBalance(ctx, "USDT")
	assert.Equal(t, 100.0, usdt)
}

func TestPaperRejectsInvalidRequest(t *testing.T) {
	ex := NewExchange(&fixedMarket{price: 100}, nil, Config{InitialBalance: 100})
	_, err := ex.PlaceMarketOrder(context.Background(), order(types.SideBuy, 0))
	assert.True(t, boterrors.IsValidation(err))

	_, err = ex.GetKlines(context.Background(), exchange.KlineRequest{Symbol: "BTCUSDT", Interval: "5m"})
	assert.Equal(t, boterrors.KindFatal, boterrors.KindOf(err))
}

func TestPaperIdentity(t *testing.T) {
	ex := NewExchange(&fixedMarket{}, nil, Config{InitialBalance: 1})
	id, err := ex.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "paper", id.Venue)
	assert.Equal(t, "paper", ex.GetName())
}
