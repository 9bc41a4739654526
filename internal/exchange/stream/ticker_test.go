package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticMarket struct {
	price float64
	calls int
}

func (m *staticMarket) GetLatestPrice(context.Context, string) (float64, error) {
	m.calls++
	return m.price, nil
}

func (m *staticMarket) GetMarketConstraints(_ context.Context, symbol string) (types.MarketConstraints, error) {
	return types.MarketConstraints{Symbol: symbol, Step: 0.01}, nil
}

func TestHandleMessageAndStaleness(t *testing.T) {
	fallback := &staticMarket{price: 50}
	feed := NewFeed("", []string{"BTCUSDT"}, fallback, 5*time.Second, nil)
	clock := time.Unix(1700000000, 0)
	feed.now = func() time.Time { return clock }

	feed.handleMessage([]byte(`{"success":true,"op":"subscribe"}`))
	feed.handleMessage([]byte(`not json`))
	_, ok := feed.Cached("BTCUSDT")
	assert.False(t, ok)

	feed.handleMessage([]byte(`{"topic":"tickers.BTCUSDT","ts":1,"type":"snapshot","data":{"symbol":"BTCUSDT","lastPrice":"64000.5"}}`))
	price, err := feed.GetLatestPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 64000.5, price)
	assert.Zero(t, fallback.calls)

	clock = clock.Add(6 * time.Second)
	price, err = feed.GetLatestPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 50.0, price)
	assert.Equal(t, 1, fallback.calls)

	c, err := feed.GetMarketConstraints(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.01, c.Step)
}

func TestURLFor(t *testing.T) {
	assert.Equal(t, MainnetSpotURL, URLFor("", false))
	assert.Equal(t, TestnetSpotURL, URLFor("spot", true))
	assert.Equal(t, "wss://stream.bybit.com/v5/public/linear", URLFor("linear", false))
}

func TestFeedRunReceivesTicker(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub struct {
			Op   string   `json:"op"`
			Args []string `json:"args"`
		}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- strings.Join(sub.Args, ",")
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"topic":"tickers.ETHUSDT","data":{"symbol":"ETHUSDT","lastPrice":"3150.25"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	feed := NewFeed(url, []string{"ETHUSDT"}, &staticMarket{}, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	assert.Equal(t, "tickers.ETHUSDT", <-subscribed)
	assert.Eventually(t, func() bool {
		p, ok := feed.Cached("ETHUSDT")
		return ok && p == 3150.25
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop")
	}
}
