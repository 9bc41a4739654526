package adapters

import (
	"fmt"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange"
)

var (
	_ exchange.LiveTradingExchange = (*BybitAdapter)(nil)
	_ exchange.LiveTradingExchange = (*BinanceAdapter)(nil)
)

// NewExchange creates the venue adapter named by config. Credentials are
// checked only when requireCredentials is set.
func NewExchange(config exchange.ExchangeConfig, requireCredentials bool) (exchange.LiveTradingExchange, error) {
	config.Normalize()
	if err := exchange.ValidateConfig(config, requireCredentials); err != nil {
		return nil, err
	}

	switch config.Name {
	case "bybit":
		return NewBybitAdapter(config), nil
	case "binance":
		return NewBinanceAdapter(config), nil
	default:
		return nil, boterrors.NewConfigurationError("adapters", "NewExchange",
			fmt.Sprintf("exchange %q is not supported", config.Name))
	}
}
