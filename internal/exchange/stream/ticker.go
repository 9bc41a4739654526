// Package stream keeps last prices current from Bybit's public ticker
// WebSocket and serves them as exchange.MarketData.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ducminhle1904/crypto-confluence-bot/internal/exchange"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/logger"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

const (
	MainnetSpotURL = "wss://stream.bybit.com/v5/public/spot"
	TestnetSpotURL = "wss://stream-testnet.bybit.com/v5/public/spot"

	pingInterval = 20 * time.Second
)

// URLFor picks the public stream for a category and environment. Demo
// trading reads mainnet market data.
func URLFor(category string, testnet bool) string {
	if category == "" {
		category = "spot"
	}
	host := "stream.bybit.com"
	if testnet {
		host = "stream-testnet.bybit.com"
	}
	return fmt.Sprintf("wss://%s/v5/public/%s", host, category)
}

type quote struct {
	price float64
	at    time.Time
}

// Feed caches ticker prices pushed over the WebSocket. A price older than
// MaxAge, or one never received, is fetched from the fallback instead.
type Feed struct {
	url      string
	symbols  []string
	fallback exchange.MarketData
	maxAge   time.Duration
	log      *logger.Logger
	dialer   *websocket.Dialer

	mu     sync.RWMutex
	quotes map[string]quote
	now    func() time.Time
}

// NewFeed creates a feed for symbols. Run must be started for the cache to fill.
func NewFeed(url string, symbols []string, fallback exchange.MarketData, maxAge time.Duration, log *logger.Logger) *Feed {
	if maxAge <= 0 {
		maxAge = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Feed{
		url:      url,
		symbols:  symbols,
		fallback: fallback,
		maxAge:   maxAge,
		log:      log,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		quotes:   make(map[string]quote),
		now:      time.Now,
	}
}

// GetLatestPrice implements exchange.MarketData.
func (f *Feed) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	if price, ok := f.Cached(symbol); ok {
		return price, nil
	}
	return f.fallback.GetLatestPrice(ctx, symbol)
}

// GetMarketConstraints always goes to the fallback; constraints are never cached.
func (f *Feed) GetMarketConstraints(ctx context.Context, symbol string) (types.MarketConstraints, error) {
	return f.fallback.GetMarketConstraints(ctx, symbol)
}

// Cached returns the streamed price if it is fresh enough.
func (f *Feed) Cached(symbol string) (float64, bool) {
	f.mu.RLock()
	q, ok := f.quotes[symbol]
	f.mu.RUnlock()
	if !ok || f.now().Sub(q.at) > f.maxAge {
		return 0, false
	}
	return q.price, true
}

// Run connects and reconnects until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	b := &backoff.Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: true}
	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		wait := b.Duration()
		f.log.Zap().Warn("ticker stream disconnected", zap.Error(err), zap.Duration("retry_in", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails or ctx is done.
func (f *Feed) session(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeMessage(f.symbols)); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}
	f.log.Zap().Info("ticker stream subscribed", zap.String("url", f.url), zap.Strings("symbols", f.symbols))

	done := make(chan struct{})
	defer close(done)
	var writeMu sync.Mutex
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				writeMu.Lock()
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				writeMu.Unlock()
				_ = conn.Close()
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteJSON(map[string]string{"op": "ping"})
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}
		f.handleMessage(message)
	}
}

func subscribeMessage(symbols []string) map[string]interface{} {
	args := make([]string, len(symbols))
	for i, s := range symbols {
		args[i] = "tickers." + s
	}
	return map[string]interface{}{"op": "subscribe", "args": args}
}

type tickerMessage struct {
	Topic string `json:"topic"`
	Ts    int64  `json:"ts"`
	Data  struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"data"`
}

// handleMessage stores ticker pushes and ignores acks and pongs.
func (f *Feed) handleMessage(message []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(message, &msg); err != nil || !strings.HasPrefix(msg.Topic, "tickers.") {
		return
	}
	price, err := strconv.ParseFloat(msg.Data.LastPrice, 64)
	if err != nil || price <= 0 {
		return
	}
	symbol := msg.Data.Symbol
	if symbol == "" {
		symbol = strings.TrimPrefix(msg.Topic, "tickers.")
	}

	f.mu.Lock()
	f.quotes[symbol] = quote{price: price, at: f.now()}
	f.mu.Unlock()
}
