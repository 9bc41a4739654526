package exchange

import (
	"fmt"
	"strings"
	"time"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
)

// SupportedExchanges lists the venues an adapter exists for.
var SupportedExchanges = []string{"bybit", "binance"}

// DefaultHTTPTimeout bounds every REST call of an adapter.
const DefaultHTTPTimeout = 10 * time.Second

// ExchangeConfig holds configuration for creating exchange instances. The
// adapters package turns it into a LiveTradingExchange.
type ExchangeConfig struct {
	Name      string        `yaml:"name" json:"name" env:"EXCHANGE_NAME" env-default:"bybit" validate:"required,oneof=bybit binance"`
	APIKey    string        `yaml:"api_key" json:"-" env:"EXCHANGE_API_KEY"`
	APISecret string        `yaml:"api_secret" json:"-" env:"EXCHANGE_API_SECRET"`
	Testnet   bool          `yaml:"testnet" json:"testnet" env:"EXCHANGE_TESTNET"`
	Demo      bool          `yaml:"demo" json:"demo" env:"EXCHANGE_DEMO"`
	Category  string        `yaml:"category" json:"category" env-default:"spot" validate:"omitempty,oneof=spot linear inverse"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" env-default:"10s"`
	// RateLimit is the REST request budget per second.
	RateLimit int `yaml:"rate_limit" json:"rate_limit" env-default:"10" validate:"gte=0"`
}

// Normalize lowercases the name and applies defaults.
func (c *ExchangeConfig) Normalize() {
	c.Name = strings.ToLower(strings.TrimSpace(c.Name))
	if c.Category == "" {
		c.Category = "spot"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultHTTPTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
}

// Environment describes where orders go.
func (c ExchangeConfig) Environment() string {
	switch {
	case c.Demo:
		return "demo"
	case c.Testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}

// ValidateConfig validates the exchange configuration. Credentials are only
// required when requireCredentials is set; paper trading reads public data.
func ValidateConfig(config ExchangeConfig, requireCredentials bool) error {
	config.Normalize()
	if err := validate.Struct(config); err != nil {
		return boterrors.NewConfigurationError("exchange", "ValidateConfig",
			fmt.Sprintf("exchange %q: %v (supported: %s)", config.Name, err, strings.Join(SupportedExchanges, ", ")))
	}

	if requireCredentials {
		envPrefix := strings.ToUpper(config.Name)
		if config.APIKey == "" {
			return boterrors.NewCredentialsError("exchange", "ValidateConfig",
				fmt.Sprintf("%s API key is required (set %s_API_KEY)", config.Name, envPrefix))
		}
		if config.APISecret == "" {
			return boterrors.NewCredentialsError("exchange", "ValidateConfig",
				fmt.Sprintf("%s API secret is required (set %s_API_SECRET)", config.Name, envPrefix))
		}
	}

	if config.Testnet && config.Demo {
		return boterrors.NewConfigurationError("exchange", "ValidateConfig",
			"cannot use both testnet and demo mode simultaneously")
	}
	if config.Name == "binance" && config.Demo {
		return boterrors.NewConfigurationError("exchange", "ValidateConfig",
			"binance has no demo environment, use testnet")
	}
	return nil
}
