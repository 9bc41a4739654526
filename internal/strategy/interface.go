package strategy

import (
	"time"

	"github.com/ducminhle1904/crypto-confluence-bot/internal/indicators"
)

// Strategy classifies the most recent indicator snapshots into a decision.
type Strategy interface {
	// Evaluate inspects snapshots ordered oldest first.
	Evaluate(snapshots []indicators.Snapshot) TradeDecision

	GetName() string
}

// TradeDecision represents a trading decision made by a strategy
type TradeDecision struct {
	Action    TradeAction
	Strength  float64 // 0..100
	Price     float64 // close of the latest snapshot
	Reason    string
	Timestamp time.Time
	Long      Factors
	Short     Factors
	Err       error
}

// Confidence is Strength scaled to 0..1.
func (d TradeDecision) Confidence() float64 {
	return d.Strength / 100
}

// Actionable reports whether the decision asks for an order.
func (d TradeDecision) Actionable() bool {
	return d.Action == ActionBuy || d.Action == ActionSell
}

// TradeAction represents the type of trading action
type TradeAction int

const (
	ActionHold TradeAction = iota
	ActionBuy
	ActionSell
	ActionError
)

func (ta TradeAction) String() string {
	switch ta {
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	case ActionError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
