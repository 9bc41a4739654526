package lifecycle

import "github.com/ducminhle1904/crypto-confluence-bot/internal/risk"

// ExitPolicy decides how the stop behaves while a position is open.
type ExitPolicy string

const (
	// ExitFixed keeps the levels computed at entry.
	ExitFixed ExitPolicy = "fixed"
	// ExitTrailing ratchets the stop up behind the highest price seen.
	ExitTrailing ExitPolicy = "trailing"
)

// ExitReason says why a position was closed.
type ExitReason string

const (
	ExitNone         ExitReason = ""
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTrailingStop ExitReason = "trailing_stop"
	ExitTakeProfit   ExitReason = "take_profit"
	ExitSignal       ExitReason = "sell_signal"
)

// Tick applies one price observation to pos. With a trailing policy a new
// high ratchets the stop first, and it only ever moves up; the exit
// conditions are checked afterwards against the updated stop. It reports the
// exit reason, if any, and whether the stop moved.
func Tick(pos *Position, price float64, policy ExitPolicy, trailingPct float64) (ExitReason, bool) {
	moved := false
	if policy == ExitTrailing {
		if price > pos.MaxPriceSeen {
			pos.MaxPriceSeen = price
			if cand := risk.TrailingStop(price, trailingPct); cand > pos.StopLoss {
				pos.StopLoss = cand
				moved = true
			}
		}
	}

	switch {
	case price <= pos.StopLoss:
		if policy == ExitTrailing {
			return ExitTrailingStop, moved
		}
		return ExitStopLoss, moved
	case pos.TakeProfit > 0 && price >= pos.TakeProfit:
		return ExitTakeProfit, moved
	}
	return ExitNone, moved
}
