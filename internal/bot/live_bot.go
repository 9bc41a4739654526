package bot

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-confluence-bot/internal/config"
	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange/adapters"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange/stream"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/lifecycle"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/logger"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/monitoring"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/paper"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/positionbook"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/risk"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/supervisor"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/tradelog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
)

// Mode selects where orders go.
type Mode string

const (
	ModeLive  Mode = "live"
	ModePaper Mode = "paper"
)

// streamMaxAge is how old a streamed quote may be before REST is asked instead.
const streamMaxAge = 15 * time.Second

// Options are the run time switches of a bot.
type Options struct {
	Mode      Mode
	Debug     bool
	Resume    bool
	Immediate bool
	// LogDir holds the per-pair session logs. Defaults to logs.
	LogDir string
	// Quiet keeps session logs off the console.
	Quiet bool
	// Out receives the startup and result tables. Defaults to stdout.
	Out io.Writer
}

// Bot wires the configured venue, books and sinks into one supervised
// lifecycle per pair.
type Bot struct {
	cfg  *config.BotConfig
	opts Options

	venue    exchange.LiveTradingExchange
	exchange exchange.LiveTradingExchange
	feed     *stream.Feed

	positions lifecycle.PositionBook
	trades    *tradelog.BestEffortRecorder
	closers   []io.Closer

	registry *prometheus.Registry
	health   *monitoring.HealthChecker
	metrics  *monitoring.Metrics
	notifier notifications.Notifier

	sys *logger.Logger

	mu      sync.Mutex
	loggers map[string]*logger.Logger
}

// New connects to the configured venue and assembles the bot. Live mode
// needs credentials; paper mode only reads public market data.
func New(ctx context.Context, cfg *config.BotConfig, opts Options) (*Bot, error) {
	if cfg == nil {
		return nil, boterrors.NewConfigurationError("bot", "New", "bot configuration is required")
	}
	venue, err := adapters.NewExchange(cfg.Exchange, opts.Mode != ModePaper)
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange: %w", err)
	}
	return NewWithVenue(ctx, cfg, opts, venue)
}

// NewWithVenue assembles the bot around an existing venue.
func NewWithVenue(ctx context.Context, cfg *config.BotConfig, opts Options, venue exchange.LiveTradingExchange) (*Bot, error) {
	if opts.Mode == "" {
		opts.Mode = ModeLive
	}
	if opts.Mode != ModeLive && opts.Mode != ModePaper {
		return nil, boterrors.NewConfigurationError("bot", "New", fmt.Sprintf("unknown mode %q", opts.Mode))
	}
	if opts.LogDir == "" {
		opts.LogDir = "logs"
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	sys, err := logger.NewLoggerWithOptions("SYSTEM", string(opts.Mode), logger.Options{Dir: opts.LogDir, Debug: opts.Debug, Console: !opts.Quiet})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	b := &Bot{
		cfg:      cfg,
		opts:     opts,
		venue:    venue,
		exchange: venue,
		registry: prometheus.NewRegistry(),
		health:   monitoring.NewHealthChecker(cfg.Monitoring.StaleAfter),
		sys:      sys,
		loggers:  make(map[string]*logger.Logger),
	}
	b.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	b.metrics = monitoring.NewMetrics(b.registry, b.health)

	if cfg.Notifications.Enabled() {
		b.notifier = notifications.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChat)
	}

	b.setupPrices()
	if opts.Mode == ModePaper {
		b.exchange = paper.NewExchange(b.exchange, venue, cfg.Paper)
	}

	positions, closer, err := openPositionBook(ctx, cfg.PositionBook)
	if err != nil {
		_ = sys.Close()
		return nil, err
	}
	b.positions = positions
	if closer != nil {
		b.closers = append(b.closers, closer)
	}

	b.trades = tradelog.BestEffort(openRecorders(ctx, cfg.TradeLog, sys), sys.Zap())
	b.closers = append(b.closers, b.trades)
	return b, nil
}

// setupPrices puts the public ticker stream in front of REST prices when asked.
func (b *Bot) setupPrices() {
	if !b.cfg.Trading.StreamPrices {
		return
	}
	if b.cfg.Exchange.Name != "bybit" {
		b.sys.LogWarning("price stream", "no public stream for %s, using REST prices", b.cfg.Exchange.Name)
		return
	}
	url := stream.URLFor(b.cfg.Exchange.Category, b.cfg.Exchange.Testnet)
	b.feed = stream.NewFeed(url, b.cfg.Trading.Pairs, b.venue, streamMaxAge, b.sys)
	b.exchange = streamedVenue{LiveTradingExchange: b.venue, prices: b.feed}
}

// streamedVenue serves prices from the stream and everything else from the venue.
type streamedVenue struct {
	exchange.LiveTradingExchange
	prices exchange.MarketData
}

func (v streamedVenue) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	return v.prices.GetLatestPrice(ctx, symbol)
}

func openPositionBook(ctx context.Context, cfg config.PositionBookConfig) (lifecycle.PositionBook, io.Closer, error) {
	switch cfg.Kind {
	case config.BookFile:
		book, err := positionbook.NewFile(cfg.Path)
		if err != nil {
			return nil, nil, boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, "bot", "openPositionBook")
		}
		return book, nil, nil
	case config.BookRedis:
		book := positionbook.NewRedis(cfg.Redis)
		if err := book.Ping(ctx); err != nil {
			_ = book.Close()
			return nil, nil, boterrors.NewUnavailableError("bot", "openPositionBook", err)
		}
		return book, book, nil
	default:
		return positionbook.NewMemory(), nil, nil
	}
}

// openRecorders opens every configured trade sink. A sink that cannot be
// reached is skipped with a warning; trading never waits on the journal.
func openRecorders(ctx context.Context, cfg config.TradeLogConfig, log *logger.Logger) tradelog.Recorder {
	var recorders []tradelog.Recorder
	if cfg.CSVPath != "" {
		recorders = append(recorders, tradelog.NewCSVRecorder(cfg.CSVPath))
	}
	if cfg.XLSXPath != "" {
		recorders = append(recorders, tradelog.NewXLSXRecorder(cfg.XLSXPath))
	}
	if cfg.PostgresDSN != "" {
		if rec, err := tradelog.NewPostgresRecorder(ctx, cfg.PostgresDSN); err != nil {
			log.LogError("postgres trade log disabled", err)
		} else {
			recorders = append(recorders, rec)
		}
	}
	if cfg.NATS.URL != "" {
		if rec, err := tradelog.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject); err != nil {
			log.LogError("nats trade events disabled", err)
		} else {
			recorders = append(recorders, rec)
		}
	}
	if cfg.Influx.URL != "" {
		if rec, err := tradelog.NewInfluxRecorder(ctx, cfg.Influx); err != nil {
			log.LogError("influx trade points disabled", err)
		} else {
			recorders = append(recorders, rec)
		}
	}
	if len(recorders) == 0 {
		return tradelog.Nop{}
	}
	return tradelog.Multi(recorders...)
}

// Exchange is where orders go: the venue, or the paper exchange in front of it.
func (b *Bot) Exchange() exchange.LiveTradingExchange { return b.exchange }

// Registry exposes the metrics registry.
func (b *Bot) Registry() *prometheus.Registry { return b.registry }

// Health exposes the health checker.
func (b *Bot) Health() *monitoring.HealthChecker { return b.health }

// Positions exposes the position book.
func (b *Bot) Positions() lifecycle.PositionBook { return b.positions }

// Authenticate proves the credentials against the venue and checks the
// quote balance against the wallet threshold.
func (b *Bot) Authenticate(ctx context.Context) (exchange.Identity, float64, error) {
	id, err := b.exchange.Authenticate(ctx)
	if err != nil {
		return exchange.Identity{}, 0, err
	}
	b.sys.Info("authenticated with %s (%s, %s)", id.Venue, id.Environment, id.AccountType)

	quote := b.cfg.Trading.QuoteAsset
	balance, err := b.exchange.GetBalance(ctx, quote)
	if err != nil {
		b.sys.LogError("wallet balance unavailable", err)
		return id, 0, nil
	}
	if balance < b.cfg.Trading.WalletThreshold {
		msg := fmt.Sprintf("wallet balance %.2f %s is below the %.2f threshold", balance, quote, b.cfg.Trading.WalletThreshold)
		b.sys.LogWarning("wallet", "%s", msg)
		b.alert("warning", msg)
	}
	return id, balance, nil
}

// PreCheck verifies the investment fits the market bounds of pair:
// minQty*price <= investment <= maxQty*price.
func (b *Bot) PreCheck(ctx context.Context, pair string, investment float64) error {
	c, err := b.exchange.GetMarketConstraints(ctx, pair)
	if err != nil {
		return err
	}
	price, err := b.exchange.GetLatestPrice(ctx, pair)
	if err != nil {
		return err
	}
	return checkBounds(pair, investment, price, c.MinQuantity, c.MaxQuantity)
}

func checkBounds(pair string, investment, price, minQty, maxQty float64) error {
	if minQty*price > investment {
		return boterrors.NewValidationError("bot", "PreCheck",
			fmt.Sprintf("%s: investment %.2f is below the minimum order value %.2f (%g at %g)", pair, investment, minQty*price, minQty, price))
	}
	if maxQty > 0 && investment > maxQty*price {
		return boterrors.NewValidationError("bot", "PreCheck",
			fmt.Sprintf("%s: investment %.2f is above the maximum order value %.2f (%g at %g)", pair, investment, maxQty*price, maxQty, price))
	}
	return nil
}

// Run pre-checks every pair, then supervises one lifecycle per pair until
// each stops or ctx ends. The metrics server runs alongside when configured.
func (b *Bot) Run(ctx context.Context) ([]supervisor.Result, error) {
	var errs error
	for _, pair := range b.cfg.Trading.Pairs {
		errs = multierr.Append(errs, b.PreCheck(ctx, pair, b.cfg.Trading.Investment))
	}
	if errs != nil {
		return nil, errs
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if b.feed != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.feed.Run(runCtx); err != nil && runCtx.Err() == nil {
				b.sys.LogError("price stream stopped", err)
			}
		}()
	}
	if addr := b.cfg.Monitoring.ListenAddr; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := monitoring.Serve(runCtx, addr, monitoring.NewRouter(b.registry, b.health), b.sys.Zap()); err != nil {
				b.sys.LogError("monitoring server stopped", err)
			}
		}()
	}

	b.alert("info", fmt.Sprintf("Confluence bot started in %s mode for %v", b.opts.Mode, b.cfg.Trading.Pairs))

	sup := supervisor.New(supervisor.Config{
		SignalInterval: b.cfg.Trading.SignalInterval,
		Continuous:     b.cfg.Trading.Continuous,
	}, b.newRunner, b.sys.Zap())

	results, err := sup.Run(runCtx, b.requests())
	cancel()
	wg.Wait()
	return results, err
}

func (b *Bot) requests() []lifecycle.Request {
	reqs := make([]lifecycle.Request, 0, len(b.cfg.Trading.Pairs))
	for _, pair := range b.cfg.Trading.Pairs {
		reqs = append(reqs, lifecycle.Request{
			Pair:       pair,
			Investment: b.cfg.Trading.Investment,
			Interval:   b.cfg.Trading.Interval,
			Resume:     b.opts.Resume,
			Immediate:  b.opts.Immediate,
		})
	}
	return reqs
}

// newRunner builds the lifecycle of one pair with its own session logger.
func (b *Bot) newRunner(pair string) (supervisor.Runner, error) {
	log, err := b.pairLogger(pair)
	if err != nil {
		return nil, err
	}
	tr := b.cfg.Trading
	return lifecycle.New(b.cfg.Lifecycle(), lifecycle.Deps{
		Exchange:   b.exchange,
		Strategy:   strategy.NewConfluence(strategy.DefaultThresholds()),
		Risk:       risk.NewRiskManager(tr.MinInvestment, tr.StopLossPct, tr.RewardRatio),
		Indicators: b.cfg.Indicators,
		Positions:  b.positions,
		Trades:     b.trades,
		Logger:     log,
		Observer:   b.metrics,
		Notifier:   b.notifier,
	})
}

func (b *Bot) pairLogger(pair string) (*logger.Logger, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.loggers[pair]; ok {
		return l, nil
	}
	l, err := logger.NewLoggerWithOptions(pair, b.cfg.Trading.Interval, logger.Options{
		Dir:     b.opts.LogDir,
		Debug:   b.opts.Debug,
		Console: !b.opts.Quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger for %s: %w", pair, err)
	}
	b.loggers[pair] = l
	return l, nil
}

func (b *Bot) alert(level, msg string) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.SendAlert(level, msg); err != nil {
		b.sys.LogError("notification failed", err)
	}
}

// Close releases the trade sinks, the position book and every session log.
func (b *Bot) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i].Close())
	}
	b.mu.Lock()
	for pair, l := range b.loggers {
		err = multierr.Append(err, l.Close())
		delete(b.loggers, pair)
	}
	b.mu.Unlock()
	return multierr.Append(err, b.sys.Close())
}
