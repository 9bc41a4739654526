package risk

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// levelPlaces is the number of fractional digits levels are rounded to.
const levelPlaces = 9

// ErrLevelsUnavailable means levels could not be derived; the decision cycle should be abandoned.
var ErrLevelsUnavailable = errors.New("risk levels unavailable")

// Levels are the exit bounds of a long position.
type Levels struct {
	StopLoss   float64
	TakeProfit float64
}

// ComputeLevels places the stop pct below entry and the target pct*ratio above it.
func ComputeLevels(entry, stopLossPct, rewardRatio float64) (Levels, error) {
	for _, v := range []float64{entry, stopLossPct, rewardRatio} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Levels{}, ErrLevelsUnavailable
		}
	}
	if entry <= 0 || stopLossPct <= 0 || stopLossPct >= 1 || rewardRatio <= 0 {
		return Levels{}, ErrLevelsUnavailable
	}

	e := decimal.NewFromFloat(entry)
	pct := decimal.NewFromFloat(stopLossPct)
	one := decimal.NewFromInt(1)

	sl := e.Mul(one.Sub(pct)).Round(levelPlaces)
	tp := e.Mul(one.Add(pct.Mul(decimal.NewFromFloat(rewardRatio)))).Round(levelPlaces)

	return Levels{
		StopLoss:   sl.InexactFloat64(),
		TakeProfit: tp.InexactFloat64(),
	}, nil
}

// RewardToRisk is the ratio of upside to downside measured from entry.
func RewardToRisk(l Levels, entry float64) float64 {
	risk := entry - l.StopLoss
	if risk <= 0 {
		return 0
	}
	return (l.TakeProfit - entry) / risk
}

// TrailingStop is the stop that trails peak by pct, rounded like the levels.
// It returns 0 when the inputs cannot produce a stop.
func TrailingStop(peak, pct float64) float64 {
	if math.IsNaN(peak) || math.IsInf(peak, 0) || math.IsNaN(pct) || peak <= 0 || pct <= 0 || pct >= 1 {
		return 0
	}
	p := decimal.NewFromFloat(peak)
	return p.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(pct))).Round(levelPlaces).InexactFloat64()
}
