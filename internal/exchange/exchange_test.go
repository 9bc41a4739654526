package exchange

import (
	"testing"
	"time"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRequestValidate(t *testing.T) {
	ok := OrderRequest{Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 0.01, StopLoss: 99, TakeProfit: 102, Precision: 3}
	require.NoError(t, ok.Validate())

	cases := map[string]OrderRequest{
		"missing symbol": {Side: types.SideBuy, Quantity: 1},
		"lower symbol":   {Symbol: "btcusdt", Side: types.SideBuy, Quantity: 1},
		"bad side":       {Symbol: "BTCUSDT", Side: "Hold", Quantity: 1},
		"zero quantity":  {Symbol: "BTCUSDT", Side: types.SideSell},
		"negative sl":    {Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 1, StopLoss: -1},
		"inverted":       {Symbol: "BTCUSDT", Side: types.SideBuy, Quantity: 1, StopLoss: 105, TakeProfit: 100},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			err := req.Validate()
			require.Error(t, err)
			assert.True(t, boterrors.IsValidation(err))
		})
	}
}

func TestKlineRequestValidate(t *testing.T) {
	req := KlineRequest{Symbol: "ETHUSDT", Interval: "5m"}
	require.NoError(t, req.Validate())
	assert.Equal(t, 200, req.Limit)

	bad := KlineRequest{Symbol: "ETHUSDT", Interval: "7m"}
	assert.True(t, boterrors.IsValidation(bad.Validate()))

	start := time.Now()
	end := start.Add(-time.Hour)
	reversed := KlineRequest{Symbol: "ETHUSDT", Interval: "1h", Start: &start, End: &end}
	assert.Error(t, reversed.Validate())
}

func TestValidateConfig(t *testing.T) {
	cfg := ExchangeConfig{Name: " Bybit ", APIKey: "k", APISecret: "s", Demo: true}
	require.NoError(t, ValidateConfig(cfg, true))
	assert.Equal(t, "demo", cfg.Environment())

	err := ValidateConfig(ExchangeConfig{Name: "kraken"}, false)
	require.Error(t, err)
	assert.Equal(t, boterrors.KindFatal, boterrors.KindOf(err))

	err = ValidateConfig(ExchangeConfig{Name: "bybit"}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BYBIT_API_KEY")

	assert.NoError(t, ValidateConfig(ExchangeConfig{Name: "binance"}, false))
	assert.Error(t, ValidateConfig(ExchangeConfig{Name: "binance", Demo: true}, false))
	assert.Error(t, ValidateConfig(ExchangeConfig{Name: "bybit", Demo: true, Testnet: true}, false))
}

func TestNormalize(t *testing.T) {
	cfg := ExchangeConfig{Name: "BINANCE"}
	cfg.Normalize()
	assert.Equal(t, "binance", cfg.Name)
	assert.Equal(t, "spot", cfg.Category)
	assert.Equal(t, DefaultHTTPTimeout, cfg.Timeout)
	assert.Equal(t, "mainnet", cfg.Environment())
}
