package lifecycle

import (
	"github.com/ducminhle1904/crypto-confluence-bot/internal/strategy"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
)

// Observer receives lifecycle events for metrics.
type Observer interface {
	Signal(pair string, d strategy.TradeDecision)
	StateChanged(pair string, from, to State)
	Price(pair string, price float64)
	PriceFailure(pair string)
	Trade(pair string, side types.OrderSide, notional float64)
	Error(pair string, err error)
}

type nopObserver struct{}

func (nopObserver) Signal(string, strategy.TradeDecision) {}
func (nopObserver) StateChanged(string, State, State) {}
func (nopObserver) Price(string, float64) {}
func (nopObserver) PriceFailure(string) {}
func (nopObserver) Trade(string, types.OrderSide, float64) {}
func (nopObserver) Error(string, error) {}
