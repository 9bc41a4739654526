package types

import "time"

// OHLCV is one candle as returned by the historical data endpoints.
type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// MarketConstraints are the per-pair quantity rules a venue enforces on orders.
// Adapters fetch them fresh on every call; they may change during a session.
type MarketConstraints struct {
	Symbol          string
	Step            float64
	TargetPrecision int
	MinQuantity     float64
	MaxQuantity     float64 // 0 means unbounded
	MinNotional     float64
}
