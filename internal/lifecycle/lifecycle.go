// Package lifecycle runs one trading cycle per pair: signal, entry, monitoring
// and exit.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/logger"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/notifications"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/oms"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/risk"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/sizing"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/tradelog"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/jpillora/backoff"
)

const (
	DefaultPollInterval                = 5 * time.Second
	DefaultMaxConsecutivePriceFailures = 20
	DefaultMaxRetryDelay               = time.Minute
	DefaultInterval                    = "5m"
	DefaultKlineLimit                  = 200
	DefaultTrailingPct                 = 0.005
)

// RetryConfig bounds how long an open position tolerates a dead price feed.
type RetryConfig struct {
	// MaxConsecutivePriceFailures of 0 retries until the context ends.
	MaxConsecutivePriceFailures int           `yaml:"max_consecutive_price_failures" json:"max_consecutive_price_failures" env-default:"20" validate:"gte=0"`
	MaxDelay                    time.Duration `yaml:"max_delay" json:"max_delay" env-default:"1m" validate:"gte=0"`
}

type Config struct {
	PollInterval time.Duration
	ExitPolicy   ExitPolicy
	TrailingPct  float64
	KlineLimit   int
	QuoteAsset   string
	Retry        RetryConfig

	// AttachExitOrders sends SL/TP with the entry order. The venue may then
	// close the position before the poll loop does.
	AttachExitOrders bool
}

func (c *Config) setDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ExitPolicy == "" {
		c.ExitPolicy = ExitFixed
	}
	if c.ExitPolicy == ExitTrailing && c.TrailingPct <= 0 {
		c.TrailingPct = DefaultTrailingPct
	}
	if c.KlineLimit <= 0 {
		c.KlineLimit = DefaultKlineLimit
	}
	if c.QuoteAsset == "" {
		c.QuoteAsset = "USDT"
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = DefaultMaxRetryDelay
	}
	if c.Retry.MaxDelay < c.PollInterval {
		c.Retry.MaxDelay = c.PollInterval
	}
}

// Deps are the collaborators of a lifecycle. Orders, Trades, Logger, Observer
// and Notifier are optional.
type Deps struct {
	Exchange   exchange.LiveTradingExchange
	Orders     *oms.Book
	Strategy   strategy.Strategy
	Risk       *risk.Manager
	Indicators indicators.Params
	Positions  PositionBook
	Trades     tradelog.Recorder
	Logger     *logger.Logger
	Observer   Observer
	Notifier   notifications.Notifier
}

// Request is one cycle for one pair.
type Request struct {
	Pair       string
	Investment float64
	Interval   string
	// Resume monitors a position already in the book instead of asking for a signal.
	Resume bool
	// Immediate enters without waiting for a buy signal.
	Immediate bool
}

// Outcome is how a cycle ended.
type Outcome struct {
	State      State
	Decision   strategy.TradeDecision
	Position   *Position
	EntryOrder *types.Order
	ExitOrder  *types.Order
	ExitReason ExitReason
	PnL        float64
	// NoOp marks a decision that asked for an order nothing could satisfy.
	NoOp bool
}

type Lifecycle struct {
	cfg       Config
	ex        exchange.LiveTradingExchange
	orders    *oms.Book
	strategy  strategy.Strategy
	risk      *risk.Manager
	params    indicators.Params
	positions PositionBook
	trades    tradelog.Recorder
	log       *logger.Logger
	obs       Observer
	notifier  notifications.Notifier
	now       func() time.Time
}

func New(cfg Config, deps Deps) (*Lifecycle, error) {
	switch {
	case deps.Exchange == nil:
		return nil, boterrors.NewConfigurationError("lifecycle", "New", "exchange is required")
	case deps.Strategy == nil:
		return nil, boterrors.NewConfigurationError("lifecycle", "New", "strategy is required")
	case deps.Risk == nil:
		return nil, boterrors.NewConfigurationError("lifecycle", "New", "risk manager is required")
	case deps.Positions == nil:
		return nil, boterrors.NewConfigurationError("lifecycle", "New", "position book is required")
	}
	if cfg.ExitPolicy != "" && cfg.ExitPolicy != ExitFixed && cfg.ExitPolicy != ExitTrailing {
		return nil, boterrors.NewConfigurationError("lifecycle", "New", fmt.Sprintf("unknown exit policy %q", cfg.ExitPolicy))
	}
	cfg.setDefaults()

	if deps.Orders == nil {
		deps.Orders = oms.NewBook(deps.Exchange)
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Indicators == (indicators.Params{}) {
		deps.Indicators = indicators.DefaultParams()
	}

	return &Lifecycle{
		cfg:       cfg,
		ex:        deps.Exchange,
		orders:    deps.Orders,
		strategy:  deps.Strategy,
		risk:      deps.Risk,
		params:    deps.Indicators,
		positions: deps.Positions,
		trades:    tradelog.BestEffort(deps.Trades, deps.Logger.Zap()),
		log:       deps.Logger,
		obs:       deps.Observer,
		notifier:  deps.Notifier,
		now:       time.Now,
	}, nil
}

// Orders exposes the order book the lifecycle tracks its orders in.
func (l *Lifecycle) Orders() *oms.Book { return l.orders }

// Run executes one cycle. It returns when the position is closed, the cycle
// is aborted, the decision needs no position, or ctx ends. A cancelled
// context leaves an open position in the book and returns ctx.Err().
func (l *Lifecycle) Run(ctx context.Context, req Request) (Outcome, error) {
	if req.Pair == "" {
		return Outcome{State: StateIdle}, boterrors.NewValidationError("lifecycle", "Run", "pair is required")
	}
	if req.Interval == "" {
		req.Interval = DefaultInterval
	}

	m := &machine{state: StateIdle}
	m.onChange = func(from, to State) {
		l.log.Debug("%s: %s -> %s", req.Pair, from, to)
		l.obs.StateChanged(req.Pair, from, to)
	}

	existing, found, err := l.positions.Get(ctx, req.Pair)
	if err != nil {
		return l.abort(m, req.Pair, nil, boterrors.NewUnavailableError("lifecycle", "positions.Get", err))
	}

	if req.Resume && found {
		l.log.Info("Resuming %s position: entry %.8g, qty %g, SL %.8g, TP %.8g",
			req.Pair, existing.EntryPrice, existing.Quantity, existing.StopLoss, existing.TakeProfit)
		if err := m.to(StateOpen); err != nil {
			return Outcome{State: m.state}, err
		}
		return l.monitor(ctx, m, existing, Outcome{})
	}

	decision := l.decide(ctx, req)
	out := Outcome{State: StateIdle, Decision: decision}

	switch decision.Action {
	case strategy.ActionBuy:
		if found {
			l.log.LogWarning("Buy signal ignored", "%s already has an open position from %s", req.Pair,
				existing.OpenedAt.Format(time.RFC3339))
			out.NoOp = true
			return out, nil
		}
		return l.enter(ctx, m, req, out)

	case strategy.ActionSell:
		if !found {
			l.log.LogWarning("Sell signal ignored", "no recorded position for %s", req.Pair)
			out.NoOp = true
			return out, nil
		}
		return l.liquidate(ctx, m, existing, out)

	case strategy.ActionError:
		l.log.LogError(fmt.Sprintf("signal evaluation failed for %s", req.Pair), decision.Err)
		l.obs.Error(req.Pair, decision.Err)
		return out, nil

	default:
		l.log.Info("HOLD %s: %s", req.Pair, decision.Reason)
		return out, nil
	}
}

// decide fetches candles and classifies them. Failures become an error decision.
func (l *Lifecycle) decide(ctx context.Context, req Request) strategy.TradeDecision {
	if req.Immediate {
		return strategy.TradeDecision{Action: strategy.ActionBuy, Reason: "immediate entry", Timestamp: l.now()}
	}

	candles, err := l.ex.GetKlines(ctx, exchange.KlineRequest{
		Symbol:   req.Pair,
		Interval: req.Interval,
		Limit:    l.cfg.KlineLimit,
	})
	var d strategy.TradeDecision
	if err == nil {
		var snaps []indicators.Snapshot
		snaps, err = indicators.Compute(candles, l.params)
		if err == nil {
			d = l.strategy.Evaluate(snaps)
		}
	}
	if err != nil {
		d = strategy.TradeDecision{Action: strategy.ActionError, Err: err, Reason: err.Error(), Timestamp: l.now()}
	}

	l.obs.Signal(req.Pair, d)
	if d.Actionable() {
		l.log.Info("%s signal for %s (strength %.2f%%) long[%s] short[%s]",
			d.Action, req.Pair, d.Strength, d.Long, d.Short)
	}
	return d
}

func (l *Lifecycle) enter(ctx context.Context, m *machine, req Request, out Outcome) (Outcome, error) {
	if err := m.to(StateEntryPending); err != nil {
		return out, err
	}

	investment, err := l.risk.ValidateInvestment(req.Investment)
	if err != nil {
		return l.abort(m, req.Pair, nil, err)
	}

	constraints, err := l.ex.GetMarketConstraints(ctx, req.Pair)
	if err != nil {
		return l.abort(m, req.Pair, nil, err)
	}
	price, err := l.ex.GetLatestPrice(ctx, req.Pair)
	if err != nil {
		return l.abort(m, req.Pair, nil, err)
	}
	l.obs.Price(req.Pair, price)

	levels, err := l.risk.Levels(price)
	if err != nil {
		return l.abort(m, req.Pair, nil,
			boterrors.WrapError(err, boterrors.ErrorCategoryComputation, "lifecycle", "enter").
				WithContext("price", price))
	}

	qty, err := sizing.Size(investment, price, constraints)
	if err != nil {
		return l.abort(m, req.Pair, nil, err)
	}

	buy := exchange.OrderRequest{
		Symbol:    req.Pair,
		Side:      types.SideBuy,
		Quantity:  qty,
		Precision: constraints.TargetPrecision,
	}
	if l.cfg.AttachExitOrders {
		buy.StopLoss, buy.TakeProfit = levels.StopLoss, levels.TakeProfit
	}
	order, err := l.orders.Place(ctx, buy)
	if err != nil {
		return l.abort(m, req.Pair, nil, err)
	}

	entry := order.ExecutionPrice()
	if entry <= 0 {
		entry = price
	}
	pos := Position{
		Pair:          req.Pair,
		EntryPrice:    entry,
		Quantity:      qty,
		Precision:     constraints.TargetPrecision,
		Investment:    investment,
		StopLoss:      levels.StopLoss,
		TakeProfit:    levels.TakeProfit,
		WalletBalance: l.walletBalance(ctx),
		MaxPriceSeen:  entry,
		OpenedAt:      l.now(),
		EntryOrderID:  order.ID,
	}
	out.EntryOrder = order

	if err := m.to(StateOpen); err != nil {
		return out, err
	}
	if err := l.positions.Put(ctx, pos); err != nil {
		l.log.LogError("failed to record position in book", err)
	}

	l.log.LogTradeExecution("BUY", order.ID, qty, entry, levels.StopLoss, levels.TakeProfit)
	l.log.Info("Reward/risk %.2f", risk.RewardToRisk(levels, price))
	l.trades.Record(ctx, tradelog.Trade{
		Time:          pos.OpenedAt,
		Pair:          req.Pair,
		Side:          types.SideBuy,
		OrderID:       order.ID,
		CurrentPrice:  price,
		Investment:    investment,
		Quantity:      qty,
		WalletBalance: pos.WalletBalance,
		StopLoss:      levels.StopLoss,
		TakeProfit:    levels.TakeProfit,
		InitialPrice:  entry,
		BuyPrice:      entry,
	})
	l.obs.Trade(req.Pair, types.SideBuy, qty*entry)
	l.notify("success", "Bought %g %s at %.8g\nSL %.8g | TP %.8g", qty, req.Pair, entry, levels.StopLoss, levels.TakeProfit)

	return l.monitor(ctx, m, pos, out)
}

// monitor polls the price until an exit condition fires. Price failures back
// off exponentially and, past the configured limit, abort with the position
// left in the book.
func (l *Lifecycle) monitor(ctx context.Context, m *machine, pos Position, out Outcome) (Outcome, error) {
	b := &backoff.Backoff{
		Min:    l.cfg.PollInterval,
		Max:    l.cfg.Retry.MaxDelay,
		Factor: 2,
		Jitter: true,
	}
	limit := l.cfg.Retry.MaxConsecutivePriceFailures
	failures := 0
	var wait time.Duration

	for {
		if err := sleep(ctx, wait); err != nil {
			l.log.Info("Monitoring of %s stopped: %v", pos.Pair, err)
			out.State = m.state
			out.Position = &pos
			return out, err
		}

		price, err := l.ex.GetLatestPrice(ctx, pos.Pair)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			failures++
			l.obs.PriceFailure(pos.Pair)
			if boterrors.KindOf(err) == boterrors.KindFatal {
				return l.abort(m, pos.Pair, &pos, err)
			}
			if limit > 0 && failures > limit {
				return l.abort(m, pos.Pair, &pos, boterrors.NewUnavailableError("lifecycle", "monitor",
					fmt.Errorf("%d consecutive price failures: %w", failures, err)).
					WithContext("failures", failures))
			}
			wait = b.Duration()
			l.log.LogWarning("Price fetch failed", "%s attempt %d, retrying in %s: %v", pos.Pair, failures, wait, err)
			continue
		}

		failures = 0
		b.Reset()
		wait = l.cfg.PollInterval
		l.obs.Price(pos.Pair, price)

		reason, moved := Tick(&pos, price, l.cfg.ExitPolicy, l.cfg.TrailingPct)
		l.log.LogMarketStatus(price, pos.EntryPrice, pos.StopLoss, pos.TakeProfit, string(m.state))
		if moved {
			l.log.Debug("Trailing stop for %s raised to %.8g (peak %.8g)", pos.Pair, pos.StopLoss, pos.MaxPriceSeen)
			if err := l.positions.Put(ctx, pos); err != nil {
				l.log.LogError("failed to update position in book", err)
			}
		}
		if reason != ExitNone {
			l.log.Trade("%s triggered for %s at %.8g", reason, pos.Pair, price)
			if err := m.to(StateExitPending); err != nil {
				return out, err
			}
			return l.closePosition(ctx, m, pos, pos.Quantity, pos.Precision, price, reason, out)
		}
	}
}

// liquidate sells a position from the book on a sell signal. The held
// quantity is floored onto the current grid, never re-derived from its value.
func (l *Lifecycle) liquidate(ctx context.Context, m *machine, pos Position, out Outcome) (Outcome, error) {
	if err := m.to(StateExitPending); err != nil {
		return out, err
	}

	constraints, err := l.ex.GetMarketConstraints(ctx, pos.Pair)
	if err != nil {
		return l.abort(m, pos.Pair, &pos, err)
	}
	price, err := l.ex.GetLatestPrice(ctx, pos.Pair)
	if err != nil {
		return l.abort(m, pos.Pair, &pos, err)
	}
	qty, err := sizing.Floor(pos.Quantity, constraints)
	if err != nil {
		return l.abort(m, pos.Pair, &pos, err)
	}
	return l.closePosition(ctx, m, pos, qty, constraints.TargetPrecision, price, ExitSignal, out)
}

func (l *Lifecycle) closePosition(ctx context.Context, m *machine, pos Position, qty float64, precision int,
	price float64, reason ExitReason, out Outcome) (Outcome, error) {
	out.ExitReason = reason

	if l.cfg.AttachExitOrders && l.closedByVenue(ctx, pos) {
		l.log.Info("%s already sold by the venue's exit orders, recording the close at %.8g", pos.Pair, price)
		return l.finish(ctx, m, pos, qty, price, nil, reason, out)
	}

	order, err := l.orders.Place(ctx, exchange.OrderRequest{
		Symbol:    pos.Pair,
		Side:      types.SideSell,
		Quantity:  qty,
		Precision: precision,
	})
	if err != nil {
		return l.abort(m, pos.Pair, &pos, err)
	}
	return l.finish(ctx, m, pos, qty, price, order, reason, out)
}

// closedByVenue reports whether the base asset no longer covers the position,
// meaning attached exit orders already sold it. An unknown balance is treated
// as still held.
func (l *Lifecycle) closedByVenue(ctx context.Context, pos Position) bool {
	base := strings.TrimSuffix(pos.Pair, l.cfg.QuoteAsset)
	if base == "" || base == pos.Pair {
		return false
	}
	held, err := l.ex.GetBalance(ctx, base)
	if err != nil {
		l.log.LogWarning("Base balance unavailable", "%s: %v", base, err)
		return false
	}
	return held < pos.Quantity/2
}

// finish closes the cycle. A nil order means the venue sold on its own and the
// trigger price stands in for the fill.
func (l *Lifecycle) finish(ctx context.Context, m *machine, pos Position, qty, price float64,
	order *types.Order, reason ExitReason, out Outcome) (Outcome, error) {
	exit, orderID := price, ""
	if order != nil {
		orderID = order.ID
		if p := order.ExecutionPrice(); p > 0 {
			exit = p
		}
	}
	pnl := (exit - pos.EntryPrice) * qty

	if err := m.to(StateClosed); err != nil {
		return out, err
	}
	if err := l.positions.Delete(ctx, pos.Pair); err != nil {
		l.log.LogError("failed to clear position from book", err)
	}

	wallet := l.walletBalance(ctx)
	l.log.LogTradeExecution("SELL", orderID, qty, exit, 0, 0)
	l.log.LogCycleCompletion(exit, pos.EntryPrice, pnl, string(reason))
	l.trades.Record(ctx, tradelog.Trade{
		Time:          l.now(),
		Pair:          pos.Pair,
		Side:          types.SideSell,
		OrderID:       orderID,
		CurrentPrice:  price,
		Investment:    pos.Investment,
		Quantity:      qty,
		WalletBalance: wallet,
		InitialPrice:  pos.EntryPrice,
		Profit:        pnl,
		BuyPrice:      pos.EntryPrice,
		SellPrice:     exit,
		Reason:        string(reason),
	})
	l.obs.Trade(pos.Pair, types.SideSell, qty*exit)
	l.notify("success", "Sold %g %s at %.8g (%s)\nP&L: %.2f", qty, pos.Pair, exit, reason, pnl)

	out.State = m.state
	out.Position = &pos
	out.ExitOrder = order
	out.PnL = pnl
	return out, nil
}

func (l *Lifecycle) abort(m *machine, pair string, pos *Position, err error) (Outcome, error) {
	if terr := m.to(StateAborted); terr != nil {
		return Outcome{State: m.state, Position: pos}, errors.Join(err, terr)
	}
	l.log.LogError(fmt.Sprintf("%s cycle aborted", pair), err)
	l.obs.Error(pair, err)
	l.notify("error", "%s cycle aborted: %v", pair, err)
	return Outcome{State: StateAborted, Position: pos}, err
}

func (l *Lifecycle) walletBalance(ctx context.Context) float64 {
	bal, err := l.ex.GetBalance(ctx, l.cfg.QuoteAsset)
	if err != nil {
		l.log.LogWarning("Wallet balance unavailable", "%v", err)
		return 0
	}
	return bal
}

func (l *Lifecycle) notify(level, format string, args ...interface{}) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.SendAlert(level, fmt.Sprintf(format, args...)); err != nil {
		l.log.LogWarning("Notification failed", "%v", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
