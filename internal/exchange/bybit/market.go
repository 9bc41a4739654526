package bybit

import (
	"context"
	"fmt"
	"sort"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
)

// KlineInterval represents the time interval for kline data
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval3m  KlineInterval = "3"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval30m KlineInterval = "30"
	Interval1h  KlineInterval = "60"
	Interval2h  KlineInterval = "120"
	Interval4h  KlineInterval = "240"
	Interval6h  KlineInterval = "360"
	Interval12h KlineInterval = "720"
	Interval1d  KlineInterval = "D"
	Interval1w  KlineInterval = "W"
)

var intervals = map[string]KlineInterval{
	"1m": Interval1m, "3m": Interval3m, "5m": Interval5m, "15m": Interval15m, "30m": Interval30m,
	"1h": Interval1h, "2h": Interval2h, "4h": Interval4h, "6h": Interval6h, "12h": Interval12h,
	"1d": Interval1d, "1w": Interval1w,
}

// IntervalFromString converts "5m", "1h" or "1d" into Bybit's notation.
func IntervalFromString(s string) (KlineInterval, error) {
	if iv, ok := intervals[s]; ok {
		return iv, nil
	}
	return "", boterrors.NewValidationError("bybit", "IntervalFromString", fmt.Sprintf("unsupported interval %q", s))
}

// Kline represents a single kline/candlestick data point
type Kline struct {
	StartTime  time.Time
	OpenPrice  float64
	HighPrice  float64
	LowPrice   float64
	ClosePrice float64
	Volume     float64
	Turnover   float64
}

// KlineParams holds parameters for fetching kline data
type KlineParams struct {
	Symbol   string
	Interval KlineInterval
	Start    *time.Time
	End      *time.Time
	Limit    int // max 1000, default 200
}

// GetKlines fetches candles oldest first.
func (c *Client) GetKlines(ctx context.Context, params KlineParams) ([]Kline, error) {
	if params.Limit == 0 {
		params.Limit = 200
	}
	if params.Limit > 1000 {
		params.Limit = 1000
	}

	reqParams := c.params(params.Symbol)
	reqParams["interval"] = string(params.Interval)
	reqParams["limit"] = params.Limit
	if params.Start != nil {
		reqParams["start"] = params.Start.UnixMilli()
	}
	if params.End != nil {
		reqParams["end"] = params.End.UnixMilli()
	}

	var result klineResult
	err := c.withRetry(ctx, func() error {
		return c.do(ctx, "GetKlines", func(ctx context.Context) (*bybit_api.ServerResponse, error) {
			return c.httpClient.NewUtaBybitServiceWithParams(reqParams).GetMarketKline(ctx)
		}, &result)
	})
	if err != nil {
		return nil, err
	}
	return parseKlines(result), nil
}

func parseKlines(result klineResult) []Kline {
	klines := make([]Kline, 0, len(result.List))
	for _, item := range result.List {
		if len(item) < 7 {
			continue
		}
		klines = append(klines, Kline{
			StartTime:  time.UnixMilli(parseInt64(item[0])),
			OpenPrice:  parseFloat64(item[1]),
			HighPrice:  parseFloat64(item[2]),
			LowPrice:   parseFloat64(item[3]),
			ClosePrice: parseFloat64(item[4]),
			Volume:     parseFloat64(item[5]),
			Turnover:   parseFloat64(item[6]),
		})
	}
	sort.Slice(klines, func(i, j int) bool { return klines[i].StartTime.Before(klines[j].StartTime) })
	return klines
}

// GetLatestPrice returns the last traded price. It is not retried: the
// caller owns the polling cadence.
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	var result tickerResult
	err := c.do(ctx, "GetLatestPrice", func(ctx context.Context) (*bybit_api.ServerResponse, error) {
		return c.httpClient.NewUtaBybitServiceWithParams(c.params(symbol)).GetMarketTickers(ctx)
	}, &result)
	if err != nil {
		return 0, err
	}
	return parseLastPrice(result, symbol)
}

func parseLastPrice(result tickerResult, symbol string) (float64, error) {
	for _, t := range result.List {
		if t.Symbol != symbol {
			continue
		}
		price := parseFloat64(t.LastPrice)
		if price <= 0 {
			return 0, boterrors.NewBotError(boterrors.ErrorCategoryExchange, "bybit", "GetLatestPrice",
				fmt.Sprintf("no valid last price for %s", symbol))
		}
		return price, nil
	}
	return 0, boterrors.NewBotError(boterrors.ErrorCategoryExchange, "bybit", "GetLatestPrice",
		fmt.Sprintf("no ticker data for %s", symbol))
}
