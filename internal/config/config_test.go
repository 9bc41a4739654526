package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadBotConfigDefaults(t *testing.T) {
	cfg, err := LoadBotConfig(writeConfig(t, "trading:\n  pairs: [btcusdt]\n"))
	require.NoError(t, err)

	assert.Equal(t, "bybit", cfg.Exchange.Name)
	assert.Equal(t, "spot", cfg.Exchange.Category)
	assert.Equal(t, 10*time.Second, cfg.Exchange.Timeout)

	tr := cfg.Trading
	assert.Equal(t, []string{"BTCUSDT"}, tr.Pairs)
	assert.Equal(t, 100.0, tr.MinInvestment)
	assert.Equal(t, 100.0, tr.Investment)
	assert.Equal(t, 0.01, tr.StopLossPct)
	assert.Equal(t, 2.0, tr.RewardRatio)
	assert.Equal(t, "fixed", tr.ExitPolicy)
	assert.Equal(t, 0.005, tr.TrailingPct)
	assert.Equal(t, 5*time.Second, tr.PollInterval)
	assert.Equal(t, "5m", tr.Interval)
	assert.Equal(t, 200, tr.KlineLimit)
	assert.Equal(t, 100.0, tr.WalletThreshold)
	assert.Equal(t, "USDT", tr.QuoteAsset)

	assert.Equal(t, indicators.DefaultParams(), cfg.Indicators)
	assert.Equal(t, 20, cfg.Retry.MaxConsecutivePriceFailures)
	assert.Equal(t, time.Minute, cfg.Retry.MaxDelay)
	assert.Equal(t, 10000.0, cfg.Paper.InitialBalance)
	assert.Equal(t, "USDT", cfg.Paper.QuoteAsset)
	assert.Equal(t, "logs/trades.csv", cfg.TradeLog.CSVPath)
	assert.Equal(t, "trades", cfg.TradeLog.NATS.Subject)
	assert.Equal(t, BookMemory, cfg.PositionBook.Kind)
	assert.Equal(t, "confluence-bot", cfg.PositionBook.Redis.Prefix)
	assert.False(t, cfg.Notifications.Enabled())
}

func TestLoadBotConfigSample(t *testing.T) {
	cfg, err := LoadBotConfig(filepath.Join("..", "..", "configs", "confluence.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Trading.Pairs)
	assert.Equal(t, 200.0, cfg.Trading.Investment)
	assert.True(t, cfg.Exchange.Demo)
	assert.Equal(t, BookFile, cfg.PositionBook.Kind)
	assert.Equal(t, ":9090", cfg.Monitoring.ListenAddr)
	assert.Equal(t, 0.001, cfg.Paper.FeeRate)
}

func TestLoadBotConfigVenueCredentials(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "venue-key")
	t.Setenv("BYBIT_API_SECRET", "venue-secret")

	cfg, err := LoadBotConfig(writeConfig(t, "trading:\n  pairs: [BTCUSDT]\n"))
	require.NoError(t, err)
	assert.Equal(t, "venue-key", cfg.Exchange.APIKey)
	assert.Equal(t, "venue-secret", cfg.Exchange.APISecret)

	t.Setenv("EXCHANGE_API_KEY", "generic-key")
	cfg, err = LoadBotConfig(writeConfig(t, "trading:\n  pairs: [BTCUSDT]\n"))
	require.NoError(t, err)
	assert.Equal(t, "generic-key", cfg.Exchange.APIKey)
}

func TestLoadBotConfigRejects(t *testing.T) {
	cases := map[string]string{
		"no pairs":           "trading:\n  investment: 200\n",
		"below minimum":      "trading:\n  pairs: [BTCUSDT]\n  investment: 50\n",
		"unknown policy":     "trading:\n  pairs: [BTCUSDT]\n  exit_policy: martingale\n",
		"short history":      "trading:\n  pairs: [BTCUSDT]\n  kline_limit: 30\n",
		"stop loss":          "trading:\n  pairs: [BTCUSDT]\n  stop_loss_pct: 1.5\n",
		"duplicate pair":     "trading:\n  pairs: [BTCUSDT, btcusdt]\n",
		"bad pair":           "trading:\n  pairs: [BTC/USDT]\n",
		"unknown exchange":   "exchange:\n  name: kraken\ntrading:\n  pairs: [BTCUSDT]\n",
		"testnet and demo":   "exchange:\n  testnet: true\n  demo: true\ntrading:\n  pairs: [BTCUSDT]\n",
		"binance demo":       "exchange:\n  name: binance\n  demo: true\ntrading:\n  pairs: [BTCUSDT]\n",
		"unknown book":       "trading:\n  pairs: [BTCUSDT]\nposition_book:\n  kind: sqlite\n",
		"chat missing":       "trading:\n  pairs: [BTCUSDT]\nnotifications:\n  telegram_token: abc\n",
		"influx without org": "trading:\n  pairs: [BTCUSDT]\ntrade_log:\n  influx:\n    url: http://localhost:8086\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadBotConfig(writeConfig(t, body))
			require.Error(t, err)
			assert.Equal(t, boterrors.KindFatal, boterrors.KindOf(err))
		})
	}
}

func TestLoadBotConfigMissingFile(t *testing.T) {
	_, err := LoadBotConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, boterrors.KindFatal, boterrors.KindOf(err))
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, filepath.Join("configs", "confluence.yaml"), ResolvePath("confluence"))
	assert.Equal(t, filepath.Join("configs", "bot.json"), ResolvePath("bot.json"))
	assert.Equal(t, "./bot.yml", ResolvePath("./bot.yml"))
	assert.Equal(t, "/etc/bot/prod.yaml", ResolvePath("/etc/bot/prod"))
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := LoadBotConfig(writeConfig(t, "exchange:\n  testnet: true\ntrading:\n  pairs: [BTCUSDT]\n"))
	require.NoError(t, err)

	require.NoError(t, cfg.Apply(Overrides{
		Pairs:      []string{"solusdt"},
		Investment: 250,
		Demo:       true,
		ExitPolicy: "TRAILING",
	}))
	assert.Equal(t, []string{"SOLUSDT"}, cfg.Trading.Pairs)
	assert.Equal(t, 250.0, cfg.Trading.Investment)
	assert.True(t, cfg.Exchange.Demo)
	assert.False(t, cfg.Exchange.Testnet)
	assert.Equal(t, "trailing", cfg.Trading.ExitPolicy)

	err = cfg.Apply(Overrides{Investment: 20})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below the minimum")
}

func TestLifecycleSettings(t *testing.T) {
	cfg, err := LoadBotConfig(writeConfig(t, "trading:\n  pairs: [BTCUSDT]\n  exit_policy: trailing\n  poll_interval: 2s\n"))
	require.NoError(t, err)

	lc := cfg.Lifecycle()
	assert.Equal(t, lifecycle.ExitTrailing, lc.ExitPolicy)
	assert.Equal(t, 2*time.Second, lc.PollInterval)
	assert.Equal(t, 0.005, lc.TrailingPct)
	assert.Equal(t, 200, lc.KlineLimit)
	assert.Equal(t, "USDT", lc.QuoteAsset)
	assert.Equal(t, cfg.Retry, lc.Retry)
	assert.False(t, lc.AttachExitOrders)

	cfg, err = LoadBotConfig(writeConfig(t, "trading:\n  pairs: [BTCUSDT]\n  attach_exit_orders: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Lifecycle().AttachExitOrders)
}

func TestRedacted(t *testing.T) {
	cfg, err := LoadBotConfig(writeConfig(t, "exchange:\n  api_key: abcdefghijkl\n  api_secret: short\ntrading:\n  pairs: [BTCUSDT]\n"))
	require.NoError(t, err)

	red := cfg.Redacted()
	assert.Equal(t, "abcd****", red.Exchange.APIKey)
	assert.Equal(t, "****", red.Exchange.APISecret)
	assert.Empty(t, red.Notifications.TelegramToken)
	assert.Equal(t, "abcdefghijkl", cfg.Exchange.APIKey)

	red.Trading.Pairs[0] = "XRPUSDT"
	assert.Equal(t, "BTCUSDT", cfg.Trading.Pairs[0])
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 0.01, cfg.Trading.StopLossPct)
	assert.Equal(t, indicators.DefaultParams(), cfg.Indicators)

	require.Error(t, cfg.Apply(Overrides{}))
	require.NoError(t, cfg.Apply(Overrides{Pairs: []string{"BTCUSDT"}}))
}
