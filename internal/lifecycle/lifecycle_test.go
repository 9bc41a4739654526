package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/indicators"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/risk"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/tradelog"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// venue is a scripted exchange. priceAt answers the n-th price request and
// orders fill at the last quoted price.
type venue struct {
	mu          sync.Mutex
	priceAt     func(call int) (float64, error)
	calls       int
	last        float64
	constraints types.MarketConstraints
	consErr     error
	candles     []types.OHLCV
	placeErr    map[types.OrderSide]error
	placed      []exchange.OrderRequest
	balance     float64
	// holdings overrides balance per asset
	holdings map[string]float64
}

func scripted(prices ...float64) func(int) (float64, error) {
	return func(call int) (float64, error) {
		if call < len(prices) {
			return prices[call], nil
		}
		return prices[len(prices)-1], nil
	}
}

func newVenue(priceAt func(int) (float64, error)) *venue {
	return &venue{
		priceAt:     priceAt,
		constraints: types.MarketConstraints{Symbol: "BTCUSDT", Step: 0.001, TargetPrecision: 3, MinQuantity: 0.001},
		candles:     candles(60),
		placeErr:    map[types.OrderSide]error{},
		balance:     5000,
	}
}

func candles(n int) []types.OHLCV {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]types.OHLCV, n)
	for i := range out {
		base := 100 + 3*math.Sin(float64(i)/4)
		out[i] = types.OHLCV{Open: base, High: base + 1, Low: base - 1, Close: base, Volume: 1000, Timestamp: start.Add(time.Duration(i) * 5 * time.Minute)}
	}
	return out
}

func (v *venue) PlaceMarketOrder(_ context.Context, req exchange.OrderRequest) (*types.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.placeErr[req.Side]; err != nil {
		return nil, err
	}
	v.placed = append(v.placed, req)
	return &types.Order{
		ID:        fmt.Sprintf("ord-%d", len(v.placed)),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      types.OrderTypeMarket,
		Quantity:  req.Quantity,
		Status:    types.OrderStatusFilled,
		FilledQty: req.Quantity,
		AvgPrice:  v.last,
	}, nil
}

func (v *venue) CancelOrder(context.Context, string, string) (bool, error) { return false, nil }

func (v *venue) GetOrderStatus(context.Context, string, string) (*types.Order, error) {
	return nil, errors.New("not tracked")
}

func (v *venue) GetMarketConstraints(context.Context, string) (types.MarketConstraints, error) {
	return v.constraints, v.consErr
}

func (v *venue) GetLatestPrice(context.Context, string) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	call := v.calls
	v.calls++
	p, err := v.priceAt(call)
	if err != nil {
		return 0, err
	}
	v.last = p
	return p, nil
}

func (v *venue) GetKlines(context.Context, exchange.KlineRequest) ([]types.OHLCV, error) {
	return v.candles, nil
}

func (v *venue) Authenticate(context.Context) (exchange.Identity, error) {
	return exchange.Identity{Venue: "test"}, nil
}

func (v *venue) GetBalance(_ context.Context, asset string) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if held, ok := v.holdings[asset]; ok {
		return held, nil
	}
	return v.balance, nil
}

func (v *venue) GetName() string { return "test" }
func (v *venue) GetEnvironment() string { return "test" }

func (v *venue) sides() []types.OrderSide {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]types.OrderSide, len(v.placed))
	for i, p := range v.placed {
		out[i] = p.Side
	}
	return out
}

type fixedStrategy struct{ d strategy.TradeDecision }

func (f fixedStrategy) Evaluate([]indicators.Snapshot) strategy.TradeDecision { return f.d }
func (f fixedStrategy) GetName() string { return "fixed" }

var (
	buySignal  = fixedStrategy{strategy.TradeDecision{Action: strategy.ActionBuy, Strength: 60}}
	sellSignal = fixedStrategy{strategy.TradeDecision{Action: strategy.ActionSell, Strength: 60}}
	holdSignal = fixedStrategy{strategy.TradeDecision{Action: strategy.ActionHold, Reason: "no confluence"}}
)

type memBook struct {
	mu  sync.Mutex
	pos map[string]Position
}

func newMemBook() *memBook { return &memBook{pos: map[string]Position{}} }

func (b *memBook) Get(_ context.Context, pair string) (Position, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pos[pair]
	return p, ok, nil
}

func (b *memBook) Put(_ context.Context, p Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pos[p.Pair] = p
	return nil
}

func (b *memBook) Delete(_ context.Context, pair string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pos, pair)
	return nil
}

func (b *memBook) List(context.Context) ([]Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Position, 0, len(b.pos))
	for _, p := range b.pos {
		out = append(out, p)
	}
	return out, nil
}

type tradeSink struct {
	mu     sync.Mutex
	trades []tradelog.Trade
}

func (s *tradeSink) Record(_ context.Context, t tradelog.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
	return nil
}

type counter struct {
	mu            sync.Mutex
	signals       int
	priceFailures int
	errors        int
	transitions   []State
}

func (c *counter) Signal(string, strategy.TradeDecision) {
	c.mu.Lock()
	c.signals++
	c.mu.Unlock()
}

func (c *counter) StateChanged(_ string, _, to State) {
	c.mu.Lock()
	c.transitions = append(c.transitions, to)
	c.mu.Unlock()
}
func (c *counter) Price(string, float64) {}

func (c *counter) PriceFailure(string) {
	c.mu.Lock()
	c.priceFailures++
	c.mu.Unlock()
}

func (c *counter) Trade(string, types.OrderSide, float64) {}

func (c *counter) Error(string, error) {
	c.mu.Lock()
	c.errors++
	c.mu.Unlock()
}

type harness struct {
	venue  *venue
	book   *memBook
	trades *tradeSink
	obs    *counter
	lc     *Lifecycle
}

func newHarness(t *testing.T, v *venue, s strategy.Strategy, rm *risk.Manager, cfg Config) *harness {
	t.Helper()
	h := &harness{venue: v, book: newMemBook(), trades: &tradeSink{}, obs: &counter{}}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 2 * time.Millisecond
	}
	lc, err := New(cfg, Deps{
		Exchange:  v,
		Strategy:  s,
		Risk:      rm,
		Positions: h.book,
		Trades:    h.trades,
		Observer:  h.obs,
	})
	require.NoError(t, err)
	h.lc = lc
	return h
}

func run(t *testing.T, h *harness, req Request) (Outcome, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if req.Pair == "" {
		req.Pair = "BTCUSDT"
	}
	return h.lc.Run(ctx, req)
}

func TestTrailingStopExample(t *testing.T) {
	v := newVenue(scripted(100, 110, 105, 108, 90))
	// a wide target keeps take profit out of the way
	h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 20),
		Config{ExitPolicy: ExitTrailing, TrailingPct: 0.005})

	out, err := run(t, h, Request{Investment: 1000})
	require.NoError(t, err)

	assert.Equal(t, StateClosed, out.State)
	assert.Equal(t, ExitTrailingStop, out.ExitReason)
	require.NotNil(t, out.ExitOrder)
	assert.Equal(t, 105.0, out.ExitOrder.AvgPrice)
	assert.InDelta(t, 109.45, out.Position.StopLoss, 1e-9)
	assert.Equal(t, 110.0, out.Position.MaxPriceSeen)
	assert.InDelta(t, 50.0, out.PnL, 1e-9)

	assert.Equal(t, []types.OrderSide{types.SideBuy, types.SideSell}, v.sides())
	assert.Equal(t, v.placed[0].Quantity, v.placed[1].Quantity)
	assert.Equal(t, []State{StateEntryPending, StateOpen, StateExitPending, StateClosed}, h.obs.transitions)

	_, found, _ := h.book.Get(context.Background(), "BTCUSDT")
	assert.False(t, found)

	require.Len(t, h.trades.trades, 2)
	assert.Equal(t, types.SideBuy, h.trades.trades[0].Side)
	assert.Equal(t, 99.0, h.trades.trades[0].StopLoss)
	assert.InDelta(t, 50.0, h.trades.trades[1].Profit, 1e-9)
	assert.Equal(t, 105.0, h.trades.trades[1].SellPrice)

	assert.Len(t, h.lc.Orders().History(), 2)
	assert.Empty(t, h.lc.Orders().Active())
}

func TestFixedLevelsExit(t *testing.T) {
	cases := []struct {
		name   string
		prices []float64
		reason ExitReason
		pnl    float64
	}{
		{"stop loss", []float64{100, 100.5, 101.9, 98.5}, ExitStopLoss, -15},
		{"take profit", []float64{100, 99.5, 102}, ExitTakeProfit, 20},
		{"stop at exact level", []float64{100, 99}, ExitStopLoss, -10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newVenue(scripted(tc.prices...))
			h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 2), Config{})

			out, err := run(t, h, Request{Investment: 1000})
			require.NoError(t, err)
			assert.Equal(t, StateClosed, out.State)
			assert.Equal(t, tc.reason, out.ExitReason)
			assert.InDelta(t, tc.pnl, out.PnL, 1e-9)
			// levels never move under the fixed policy
			assert.Equal(t, 99.0, out.Position.StopLoss)
			assert.Equal(t, 102.0, out.Position.TakeProfit)
		})
	}
}

func TestPriceFailuresRetryThenRecover(t *testing.T) {
	v := newVenue(func(call int) (float64, error) {
		switch {
		case call == 0:
			return 100, nil
		case call <= 3:
			return 0, boterrors.NewNetworkError("test", "price", errors.New("connection reset"))
		default:
			return 102, nil
		}
	})
	h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 2),
		Config{Retry: RetryConfig{MaxConsecutivePriceFailures: 3}})

	out, err := run(t, h, Request{Investment: 1000})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, out.State)
	assert.Equal(t, ExitTakeProfit, out.ExitReason)
	assert.Equal(t, 3, h.obs.priceFailures)
}

func TestPriceFailuresAbortKeepsPosition(t *testing.T) {
	v := newVenue(func(call int) (float64, error) {
		if call == 0 {
			return 100, nil
		}
		return 0, boterrors.NewTimeoutError("test", "price", errors.New("timeout"))
	})
	h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 2),
		Config{Retry: RetryConfig{MaxConsecutivePriceFailures: 2}})

	out, err := run(t, h, Request{Investment: 1000})
	require.Error(t, err)
	assert.True(t, boterrors.IsTransient(err))
	assert.Equal(t, StateAborted, out.State)
	require.NotNil(t, out.Position)
	assert.Equal(t, 3, h.obs.priceFailures)

	pos, found, _ := h.book.Get(context.Background(), "BTCUSDT")
	require.True(t, found)
	assert.Equal(t, 10.0, pos.Quantity)
	assert.Equal(t, []types.OrderSide{types.SideBuy}, v.sides())
}

func TestFatalPriceFailureAbortsImmediately(t *testing.T) {
	v := newVenue(func(call int) (float64, error) {
		if call == 0 {
			return 100, nil
		}
		return 0, boterrors.NewCredentialsError("test", "price", "api key revoked")
	})
	h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 2), Config{})

	out, err := run(t, h, Request{Investment: 1000})
	require.Error(t, err)
	assert.Equal(t, StateAborted, out.State)
	assert.Equal(t, 1, h.obs.priceFailures)
}

func TestEntryFailuresAbort(t *testing.T) {
	cases := []struct {
		name       string
		investment float64
		setup      func(v *venue)
		check      func(t *testing.T, err error)
	}{
		{
			name:       "investment below minimum",
			investment: 50,
			check:      func(t *testing.T, err error) { assert.True(t, boterrors.IsValidation(err)) },
		},
		{
			name:       "constraints unavailable",
			investment: 1000,
			setup: func(v *venue) {
				v.consErr = boterrors.NewNetworkError("test", "constraints", errors.New("dial tcp"))
			},
			check: func(t *testing.T, err error) { assert.True(t, boterrors.IsTransient(err)) },
		},
		{
			name:       "price unavailable",
			investment: 1000,
			setup: func(v *venue) {
				v.priceAt = func(int) (float64, error) { return 0, errors.New("connection refused") }
			},
			check: func(t *testing.T, err error) { assert.True(t, boterrors.IsTransient(err)) },
		},
		{
			name:       "quantity below minimum",
			investment: 1000,
			setup:      func(v *venue) { v.constraints.MinQuantity = 50 },
			check:      func(t *testing.T, err error) { assert.True(t, boterrors.IsValidation(err)) },
		},
		{
			name:       "order rejected",
			investment: 1000,
			setup: func(v *venue) {
				v.placeErr[types.SideBuy] = boterrors.NewOrderError("test", "place", errors.New("insufficient balance"))
			},
			check: func(t *testing.T, err error) { assert.True(t, boterrors.IsValidation(err)) },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newVenue(scripted(100))
			if tc.setup != nil {
				tc.setup(v)
			}
			h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 2), Config{})

			out, err := run(t, h, Request{Investment: tc.investment})
			require.Error(t, err)
			tc.check(t, err)
			assert.Equal(t, StateAborted, out.State)
			assert.Nil(t, out.Position)
			assert.Empty(t, h.book.pos)
			assert.Empty(t, h.trades.trades)
			assert.Equal(t, 1, h.obs.errors)
		})
	}
}

func TestFailedExitAbortsWithPositionInBook(t *testing.T) {
	v := newVenue(scripted(100, 98))
	v.placeErr[types.SideSell] = boterrors.NewNetworkError("test", "place", errors.New("connection reset"))
	h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 2), Config{})

	out, err := run(t, h, Request{Investment: 1000})
	require.Error(t, err)
	assert.Equal(t, StateAborted, out.State)
	assert.Equal(t, ExitNone, out.ExitReason)
	require.NotNil(t, out.Position)

	_, found, _ := h.book.Get(context.Background(), "BTCUSDT")
	assert.True(t, found)
	assert.Len(t, h.trades.trades, 1)
}

func TestSellWithoutPositionIsNoOp(t *testing.T) {
	v := newVenue(scripted(100))
	h := newHarness(t, v, sellSignal, risk.NewRiskManager(100, 0.01, 2), Config{})

	out, err := run(t, h, Request{Investment: 1000})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, out.State)
	assert.True(t, out.NoOp)
	assert.Empty(t, v.sides())
}

func TestSellLiquidatesBookEntry(t *testing.T) {
	v := newVenue(scripted(110))
	h := newHarness(t, v, sellSignal, risk.NewRiskManager(100, 0.01, 2), Config{})
	require.NoError(t, h.book.Put(context.Background(), Position{
		Pair: "BTCUSDT", EntryPrice: 100, Quantity: 10, Investment: 1000, StopLoss: 99, TakeProfit: 102,
	}))

	out, err := run(t, h, Request{Investment: 1000})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, out.State)
	assert.Equal(t, ExitSignal, out.ExitReason)
	assert.InDelta(t, 100.0, out.PnL, 1e-9)
	assert.Equal(t, []types.OrderSide{types.SideSell}, v.sides())
	assert.Equal(t, 10.0, v.placed[0].Quantity)

	assert.Empty(t, h.book.pos)
	require.Len(t, h.trades.trades, 1)
	assert.InDelta(t, 100.0, h.trades.trades[0].Profit, 1e-9)
	assert.Equal(t, 100.0, h.trades.trades[0].BuyPrice)
}

func TestBuyWithOpenPositionIsNoOp(t *testing.T) {
	v := newVenue(scripted(100))
	h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 2), Config{})
	require.NoError(t, h.book.Put(context.Background(), Position{Pair: "BTCUSDT", EntryPrice: 95, Quantity: 1}))

	out, err := run(t, h, Request{Investment: 1000})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, out.State)
	assert.True(t, out.NoOp)
	assert.Empty(t, v.sides())
}

func TestHoldAndErrorDecisionsStayIdle(t *testing.T) {
	v := newVenue(scripted(100))
	h := newHarness(t, v, holdSignal, risk.NewRiskManager(100, 0.01, 2), Config{})

	out, err := run(t, h, Request{Investment: 1000})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, out.State)
	assert.False(t, out.NoOp)
	assert.Equal(t, strategy.ActionHold, out.Decision.Action)

	// too little history to compute indicators
	v.candles = candles(10)
	out, err = run(t, h, Request{Investment: 1000})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, out.State)
	assert.Equal(t, strategy.ActionError, out.Decision.Action)
	assert.True(t, boterrors.IsComputation(out.Decision.Err))
	assert.Equal(t, 1, h.obs.errors)
	assert.Equal(t, 2, h.obs.signals)
	assert.Empty(t, v.sides())
}

func TestResumeMonitorsBookPosition(t *testing.T) {
	v := newVenue(scripted(101, 103))
	h := newHarness(t, v, holdSignal, risk.NewRiskManager(100, 0.01, 2), Config{})
	require.NoError(t, h.book.Put(context.Background(), Position{
		Pair: "BTCUSDT", EntryPrice: 100, Quantity: 2, StopLoss: 99, TakeProfit: 102, MaxPriceSeen: 100,
	}))

	out, err := run(t, h, Request{Resume: true})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, out.State)
	assert.Equal(t, ExitTakeProfit, out.ExitReason)
	assert.InDelta(t, 6.0, out.PnL, 1e-9)
	assert.Equal(t, 0, h.obs.signals)
}

func TestImmediateEntrySkipsSignal(t *testing.T) {
	v := newVenue(scripted(100, 102))
	h := newHarness(t, v, holdSignal, risk.NewRiskManager(100, 0.01, 2), Config{})

	out, err := run(t, h, Request{Investment: 1000, Immediate: true})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, out.State)
}

func TestCancelLeavesPositionOpen(t *testing.T) {
	v := newVenue(scripted(100))
	h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 2), Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	out, err := h.lc.Run(ctx, Request{Pair: "BTCUSDT", Investment: 1000})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateOpen, out.State)
	require.NotNil(t, out.Position)

	_, found, _ := h.book.Get(context.Background(), "BTCUSDT")
	assert.True(t, found)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, Deps{})
	require.Error(t, err)
	assert.Equal(t, boterrors.KindFatal, boterrors.KindOf(err))

	_, err = New(Config{ExitPolicy: "moonshot"}, Deps{
		Exchange: newVenue(scripted(1)), Strategy: holdSignal, Risk: risk.NewRiskManager(0, 0.01, 2), Positions: newMemBook(),
	})
	require.Error(t, err)
}

func TestRunRequiresPair(t *testing.T) {
	h := newHarness(t, newVenue(scripted(100)), holdSignal, risk.NewRiskManager(100, 0.01, 2), Config{})
	_, err := h.lc.Run(context.Background(), Request{})
	assert.True(t, boterrors.IsValidation(err))
}

func TestTrailingToleratesDipBelowEntry(t *testing.T) {
	v := newVenue(scripted(100, 100, 99.4, 99.8, 102))
	h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 2),
		Config{ExitPolicy: ExitTrailing, TrailingPct: 0.005})

	out, err := run(t, h, Request{Investment: 1000})
	require.NoError(t, err)
	// 99.4 sits above the initial stop, so only the final new high moves it
	assert.Equal(t, ExitTakeProfit, out.ExitReason)
	assert.InDelta(t, 101.49, out.Position.StopLoss, 1e-9)
	assert.InDelta(t, 20.0, out.PnL, 1e-9)
	assert.Equal(t, []types.OrderSide{types.SideBuy, types.SideSell}, v.sides())
}

func TestExitLevelsStayLocalByDefault(t *testing.T) {
	v := newVenue(scripted(100, 98))
	h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 2), Config{})

	_, err := run(t, h, Request{Investment: 1000})
	require.NoError(t, err)
	require.Len(t, v.placed, 2)
	assert.Zero(t, v.placed[0].StopLoss)
	assert.Zero(t, v.placed[0].TakeProfit)
}

func TestAttachedExitOrders(t *testing.T) {
	t.Run("venue sold first", func(t *testing.T) {
		v := newVenue(scripted(100, 98))
		v.holdings = map[string]float64{"BTC": 0}
		h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 2), Config{AttachExitOrders: true})

		out, err := run(t, h, Request{Investment: 1000})
		require.NoError(t, err)
		assert.Equal(t, StateClosed, out.State)
		assert.Equal(t, ExitStopLoss, out.ExitReason)
		assert.Nil(t, out.ExitOrder)
		assert.InDelta(t, -20.0, out.PnL, 1e-9)

		require.Len(t, v.placed, 1)
		assert.Equal(t, 99.0, v.placed[0].StopLoss)
		assert.Equal(t, 102.0, v.placed[0].TakeProfit)

		assert.Empty(t, h.book.pos)
		require.Len(t, h.trades.trades, 2)
		assert.Empty(t, h.trades.trades[1].OrderID)
		assert.Equal(t, 98.0, h.trades.trades[1].SellPrice)
	})

	t.Run("still held", func(t *testing.T) {
		v := newVenue(scripted(100, 103))
		v.holdings = map[string]float64{"BTC": 10}
		h := newHarness(t, v, buySignal, risk.NewRiskManager(100, 0.01, 2), Config{AttachExitOrders: true})

		out, err := run(t, h, Request{Investment: 1000})
		require.NoError(t, err)
		assert.Equal(t, ExitTakeProfit, out.ExitReason)
		require.NotNil(t, out.ExitOrder)
		assert.Equal(t, []types.OrderSide{types.SideBuy, types.SideSell}, v.sides())
	})
}

func TestSellLiquidatesHeldQuantityExactly(t *testing.T) {
	v := newVenue(scripted(3.3))
	h := newHarness(t, v, sellSignal, risk.NewRiskManager(100, 0.01, 2), Config{})
	require.NoError(t, h.book.Put(context.Background(), Position{
		Pair: "BTCUSDT", EntryPrice: 3, Quantity: 0.003, Investment: 0.009, StopLoss: 2.97, TakeProfit: 3.06,
	}))

	out, err := run(t, h, Request{Investment: 1000})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, out.State)
	require.Len(t, v.placed, 1)
	assert.Equal(t, 0.003, v.placed[0].Quantity)
	assert.Empty(t, h.book.pos)
}
