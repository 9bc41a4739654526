package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/lifecycle"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/paper"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/positionbook"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/tradelog"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigDir is where bare config names are looked up.
const DefaultConfigDir = "configs"

// BotConfig is the complete configuration of the confluence bot.
type BotConfig struct {
	Exchange      exchange.ExchangeConfig `yaml:"exchange" json:"exchange"`
	Trading       TradingConfig           `yaml:"trading" json:"trading"`
	Indicators    indicators.Params       `yaml:"indicators" json:"indicators"`
	Retry         lifecycle.RetryConfig   `yaml:"retry" json:"retry"`
	Paper         paper.Config            `yaml:"paper" json:"paper"`
	TradeLog      TradeLogConfig          `yaml:"trade_log" json:"trade_log"`
	PositionBook  PositionBookConfig      `yaml:"position_book" json:"position_book"`
	Monitoring    MonitoringConfig        `yaml:"monitoring" json:"monitoring"`
	Notifications NotificationConfig      `yaml:"notifications" json:"notifications"`
}

// TradingConfig holds the per-pair trading parameters shared by every lifecycle.
type TradingConfig struct {
	Pairs         []string `yaml:"pairs" json:"pairs" env:"TRADING_PAIRS" env-separator:"," validate:"required,min=1,dive,required,alphanum,uppercase"`
	Investment    float64  `yaml:"investment" json:"investment" env:"TRADING_INVESTMENT" validate:"gte=0"`
	MinInvestment float64  `yaml:"min_investment" json:"min_investment" env-default:"100" validate:"gt=0"`

	StopLossPct float64 `yaml:"stop_loss_pct" json:"stop_loss_pct" env-default:"0.01" validate:"gt=0,lt=1"`
	RewardRatio float64 `yaml:"reward_ratio" json:"reward_ratio" env-default:"2" validate:"gt=0"`
	ExitPolicy  string  `yaml:"exit_policy" json:"exit_policy" env:"TRADING_EXIT_POLICY" env-default:"fixed" validate:"oneof=fixed trailing"`
	TrailingPct float64 `yaml:"trailing_pct" json:"trailing_pct" env-default:"0.005" validate:"gt=0,lt=1"`

	// AttachExitOrders also sends the stop loss and take profit with the entry
	// order, so the venue can close the position on its own.
	AttachExitOrders bool `yaml:"attach_exit_orders" json:"attach_exit_orders" env:"TRADING_ATTACH_EXIT_ORDERS"`

	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" env-default:"5s" validate:"gt=0"`
	Interval     string        `yaml:"interval" json:"interval" env-default:"5m" validate:"required"`
	KlineLimit   int           `yaml:"kline_limit" json:"kline_limit" env-default:"200" validate:"gt=0"`

	// SignalInterval is the wait between evaluations while a pair stays idle.
	SignalInterval time.Duration `yaml:"signal_interval" json:"signal_interval" env-default:"1m" validate:"gt=0"`
	Continuous     bool          `yaml:"continuous" json:"continuous" env:"TRADING_CONTINUOUS"`

	WalletThreshold float64 `yaml:"wallet_threshold" json:"wallet_threshold" env-default:"100" validate:"gte=0"`
	QuoteAsset      string  `yaml:"quote_asset" json:"quote_asset" env-default:"USDT" validate:"required,alphanum"`

	// StreamPrices serves prices from the public ticker stream, falling back to REST.
	StreamPrices bool `yaml:"stream_prices" json:"stream_prices" env:"TRADING_STREAM_PRICES"`
}

type TradeLogConfig struct {
	CSVPath     string                `yaml:"csv_path" json:"csv_path" env:"TRADE_LOG_CSV" env-default:"logs/trades.csv"`
	XLSXPath    string                `yaml:"xlsx_path" json:"xlsx_path" env:"TRADE_LOG_XLSX"`
	PostgresDSN string                `yaml:"postgres_dsn" json:"-" env:"TRADE_LOG_POSTGRES_DSN"`
	NATS        NATSConfig            `yaml:"nats" json:"nats"`
	Influx      tradelog.InfluxConfig `yaml:"influx" json:"influx"`
}

type NATSConfig struct {
	URL     string `yaml:"url" json:"url" env:"NATS_URL" validate:"omitempty,url"`
	Subject string `yaml:"subject" json:"subject" env:"NATS_SUBJECT" env-default:"trades"`
}

// Position book kinds.
const (
	BookMemory = "memory"
	BookFile   = "file"
	BookRedis  = "redis"
)

type PositionBookConfig struct {
	Kind  string                   `yaml:"kind" json:"kind" env:"POSITION_BOOK" env-default:"memory" validate:"oneof=memory file redis"`
	Path  string                   `yaml:"path" json:"path" env-default:"state/positions.json"`
	Redis positionbook.RedisConfig `yaml:"redis" json:"redis"`
}

type MonitoringConfig struct {
	ListenAddr string        `yaml:"listen_addr" json:"listen_addr" env:"MONITORING_ADDR"`
	StaleAfter time.Duration `yaml:"stale_after" json:"stale_after" env-default:"5m" validate:"gte=0"`
}

type NotificationConfig struct {
	TelegramToken string `yaml:"telegram_token" json:"-" env:"TELEGRAM_BOT_TOKEN"`
	TelegramChat  string `yaml:"telegram_chat" json:"telegram_chat" env:"TELEGRAM_CHAT_ID" validate:"required_with=TelegramToken"`
}

// Enabled reports whether Telegram alerts are configured.
func (n NotificationConfig) Enabled() bool {
	return n.TelegramToken != "" && n.TelegramChat != ""
}

var validate = validator.New()

// LoadBotConfig loads configuration from file. Bare names are looked up
// under configs/ and default to the .yaml extension.
func LoadBotConfig(configFile string) (*BotConfig, error) {
	configFile = ResolvePath(configFile)

	if _, err := os.Stat(configFile); err != nil {
		return nil, boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, "config", "LoadBotConfig").
			WithMessage(fmt.Sprintf("config file %s not found", configFile))
	}

	var config BotConfig
	if err := cleanenv.ReadConfig(configFile, &config); err != nil {
		return nil, boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, "config", "LoadBotConfig").
			WithMessage(fmt.Sprintf("failed to read config file %s", configFile))
	}

	config.setDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default builds a configuration from env-default values and the environment only.
func Default() (*BotConfig, error) {
	var config BotConfig
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, "config", "Default")
	}
	config.setDefaults()
	return &config, nil
}

// ResolvePath maps a bare config name onto configs/<name>.yaml.
func ResolvePath(configFile string) string {
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join(DefaultConfigDir, configFile)
	}
	if filepath.Ext(configFile) == "" {
		configFile += ".yaml"
	}
	return configFile
}

// Overrides are command line values that win over the file.
type Overrides struct {
	Pairs      []string
	Investment float64
	Demo       bool
	Testnet    bool
	ExitPolicy string
}

// Apply merges o into the configuration and validates the result.
func (c *BotConfig) Apply(o Overrides) error {
	if len(o.Pairs) > 0 {
		c.Trading.Pairs = o.Pairs
	}
	if o.Investment > 0 {
		c.Trading.Investment = o.Investment
	}
	if o.Demo {
		c.Exchange.Demo = true
		c.Exchange.Testnet = false
	}
	if o.Testnet {
		c.Exchange.Testnet = true
		c.Exchange.Demo = false
	}
	if o.ExitPolicy != "" {
		c.Trading.ExitPolicy = o.ExitPolicy
	}
	c.setDefaults()
	return c.validate()
}

// setDefaults sets default values for missing configuration
func (c *BotConfig) setDefaults() {
	c.Exchange.Normalize()
	// venue specific variables, e.g. BYBIT_API_KEY, fill missing credentials
	prefix := strings.ToUpper(c.Exchange.Name)
	if c.Exchange.APIKey == "" {
		c.Exchange.APIKey = getEnv(prefix+"_API_KEY", "")
	}
	if c.Exchange.APISecret == "" {
		c.Exchange.APISecret = getEnv(prefix+"_API_SECRET", "")
	}

	t := &c.Trading
	for i, pair := range t.Pairs {
		t.Pairs[i] = strings.ToUpper(strings.TrimSpace(pair))
	}
	if t.MinInvestment <= 0 {
		t.MinInvestment = 100
	}
	if t.Investment == 0 {
		t.Investment = t.MinInvestment
	}
	if t.StopLossPct == 0 {
		t.StopLossPct = 0.01
	}
	if t.RewardRatio == 0 {
		t.RewardRatio = 2
	}
	t.ExitPolicy = strings.ToLower(t.ExitPolicy)
	if t.ExitPolicy == "" {
		t.ExitPolicy = string(lifecycle.ExitFixed)
	}
	if t.TrailingPct == 0 {
		t.TrailingPct = lifecycle.DefaultTrailingPct
	}
	if t.PollInterval == 0 {
		t.PollInterval = lifecycle.DefaultPollInterval
	}
	if t.Interval == "" {
		t.Interval = lifecycle.DefaultInterval
	}
	if t.KlineLimit == 0 {
		t.KlineLimit = lifecycle.DefaultKlineLimit
	}
	if t.SignalInterval == 0 {
		t.SignalInterval = time.Minute
	}
	t.QuoteAsset = strings.ToUpper(t.QuoteAsset)
	if t.QuoteAsset == "" {
		t.QuoteAsset = "USDT"
	}

	if c.Indicators == (indicators.Params{}) {
		c.Indicators = indicators.DefaultParams()
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = lifecycle.DefaultMaxRetryDelay
	}

	if c.Paper.InitialBalance == 0 {
		c.Paper.InitialBalance = 10000
	}
	c.Paper.QuoteAsset = t.QuoteAsset

	if c.TradeLog.NATS.Subject == "" {
		c.TradeLog.NATS.Subject = tradelog.DefaultSubject
	}
	if c.PositionBook.Kind == "" {
		c.PositionBook.Kind = BookMemory
	}
	if c.PositionBook.Redis.Prefix == "" {
		c.PositionBook.Redis.Prefix = positionbook.DefaultRedisPrefix
	}
}

// validate validates the configuration
func (c *BotConfig) validate() error {
	if err := validate.Struct(c); err != nil {
		return boterrors.NewConfigurationError("config", "validate", err.Error())
	}
	if c.Trading.Investment < c.Trading.MinInvestment {
		return boterrors.NewConfigurationError("config", "validate",
			fmt.Sprintf("investment %.2f is below the minimum of %.2f", c.Trading.Investment, c.Trading.MinInvestment))
	}
	if warm := c.Indicators.WarmUp(); c.Trading.KlineLimit <= warm+1 {
		return boterrors.NewConfigurationError("config", "validate",
			fmt.Sprintf("kline_limit %d must exceed the indicator warm-up of %d candles", c.Trading.KlineLimit, warm+1))
	}
	if c.PositionBook.Kind == BookFile && c.PositionBook.Path == "" {
		return boterrors.NewConfigurationError("config", "validate", "position_book.path is required for the file book")
	}
	if c.PositionBook.Kind == BookRedis && c.PositionBook.Redis.Addr == "" {
		return boterrors.NewConfigurationError("config", "validate", "position_book.redis.addr is required for the redis book")
	}
	seen := make(map[string]bool, len(c.Trading.Pairs))
	for _, pair := range c.Trading.Pairs {
		if seen[pair] {
			return boterrors.NewConfigurationError("config", "validate", fmt.Sprintf("pair %s listed twice", pair))
		}
		seen[pair] = true
	}
	return exchange.ValidateConfig(c.Exchange, false)
}

// Lifecycle returns the lifecycle settings of this configuration.
func (c *BotConfig) Lifecycle() lifecycle.Config {
	return lifecycle.Config{
		PollInterval:     c.Trading.PollInterval,
		ExitPolicy:       lifecycle.ExitPolicy(c.Trading.ExitPolicy),
		TrailingPct:      c.Trading.TrailingPct,
		AttachExitOrders: c.Trading.AttachExitOrders,
		KlineLimit:       c.Trading.KlineLimit,
		QuoteAsset:       c.Trading.QuoteAsset,
		Retry:            c.Retry,
	}
}

// Redacted returns a copy with secrets masked, fit for printing.
func (c BotConfig) Redacted() BotConfig {
	c.Trading.Pairs = append([]string(nil), c.Trading.Pairs...)
	c.Exchange.APIKey = mask(c.Exchange.APIKey)
	c.Exchange.APISecret = mask(c.Exchange.APISecret)
	c.TradeLog.PostgresDSN = mask(c.TradeLog.PostgresDSN)
	c.TradeLog.Influx.Token = mask(c.TradeLog.Influx.Token)
	c.PositionBook.Redis.Password = mask(c.PositionBook.Redis.Password)
	c.Notifications.TelegramToken = mask(c.Notifications.TelegramToken)
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
