package lifecycle

import (
	"context"
	"time"
)

// Position is an open long on one pair. There is at most one per pair.
type Position struct {
	Pair          string    `json:"pair"`
	EntryPrice    float64   `json:"entry_price"`
	Quantity      float64   `json:"quantity"`
	Precision     int       `json:"precision"`
	Investment    float64   `json:"investment"`
	StopLoss      float64   `json:"stop_loss"`
	TakeProfit    float64   `json:"take_profit"`
	WalletBalance float64   `json:"wallet_balance"`
	MaxPriceSeen  float64   `json:"max_price_seen"`
	OpenedAt      time.Time `json:"opened_at"`
	EntryOrderID  string    `json:"entry_order_id,omitempty"`
}

// UnrealizedPnL is the profit of selling the whole position at price.
func (p Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Quantity
}

// PositionBook stores open positions across runs. The caller owns it and may
// share it between lifecycles of different pairs.
type PositionBook interface {
	Get(ctx context.Context, pair string) (Position, bool, error)
	Put(ctx context.Context, p Position) error
	Delete(ctx context.Context, pair string) error
	List(ctx context.Context) ([]Position, error)
}
