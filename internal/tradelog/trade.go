// Package tradelog appends executed trades to one or more journals.
package tradelog

import (
	"context"
	"io"
	"time"

	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Trade is one executed order as seen by the lifecycle that placed it.
type Trade struct {
	Time          time.Time       `json:"time"`
	Pair          string          `json:"pair"`
	Side          types.OrderSide `json:"side"`
	OrderID       string          `json:"order_id"`
	CurrentPrice  float64         `json:"current_price"`
	Investment    float64         `json:"investment"`
	Quantity      float64         `json:"quantity"`
	WalletBalance float64         `json:"wallet_balance"`
	StopLoss      float64         `json:"stop_loss,omitempty"`
	TakeProfit    float64         `json:"take_profit,omitempty"`
	InitialPrice  float64         `json:"initial_price,omitempty"`
	Profit        float64         `json:"profit"`
	BuyPrice      float64         `json:"buy_price,omitempty"`
	SellPrice     float64         `json:"sell_price,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

// Recorder appends trades. Implementations never rewrite earlier entries.
type Recorder interface {
	Record(ctx context.Context, t Trade) error
}

type multi []Recorder

// Multi fans a trade out to every recorder and joins their errors.
func Multi(recorders ...Recorder) Recorder {
	out := make(multi, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multi) Record(ctx context.Context, t Trade) error {
	var err error
	for _, r := range m {
		err = multierr.Append(err, r.Record(ctx, t))
	}
	return err
}

// Close closes every recorder that holds resources.
func (m multi) Close() error {
	var err error
	for _, r := range m {
		if c, ok := r.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

// BestEffortRecorder never fails. Errors are logged and dropped so that a
// broken journal cannot stop a trading decision.
type BestEffortRecorder struct {
	next Recorder
	log  *zap.Logger
}

func BestEffort(next Recorder, log *zap.Logger) *BestEffortRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	if next == nil {
		next = Nop{}
	}
	if be, ok := next.(*BestEffortRecorder); ok {
		return be
	}
	return &BestEffortRecorder{next: next, log: log}
}

func (b *BestEffortRecorder) Record(ctx context.Context, t Trade) error {
	if err := b.next.Record(ctx, t); err != nil {
		for _, e := range multierr.Errors(err) {
			b.log.Warn("trade log write failed",
				zap.String("pair", t.Pair),
				zap.String("side", string(t.Side)),
				zap.String("order_id", t.OrderID),
				zap.Error(e))
		}
	}
	return nil
}

func (b *BestEffortRecorder) Close() error {
	if c, ok := b.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Nop discards trades.
type Nop struct{}

func (Nop) Record(context.Context, Trade) error { return nil }
