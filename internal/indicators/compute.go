package indicators

import (
	"fmt"
	"math"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/markcheno/go-talib"
)

// Params holds the indicator periods.
type Params struct {
	RSIPeriod    int     `yaml:"rsi_period" json:"rsi_period" env-default:"14" validate:"gte=2"`
	MACDFast     int     `yaml:"macd_fast" json:"macd_fast" env-default:"12" validate:"gte=2"`
	MACDSlow     int     `yaml:"macd_slow" json:"macd_slow" env-default:"26" validate:"gtfield=MACDFast"`
	MACDSignal   int     `yaml:"macd_signal" json:"macd_signal" env-default:"9" validate:"gte=2"`
	EMAFast      int     `yaml:"ema_fast" json:"ema_fast" env-default:"9" validate:"gte=2"`
	EMASlow      int     `yaml:"ema_slow" json:"ema_slow" env-default:"21" validate:"gtfield=EMAFast"`
	BBPeriod     int     `yaml:"bb_period" json:"bb_period" env-default:"20" validate:"gte=2"`
	BBStdDev     float64 `yaml:"bb_std_dev" json:"bb_std_dev" env-default:"2" validate:"gt=0"`
	StochKPeriod int     `yaml:"stoch_k_period" json:"stoch_k_period" env-default:"14" validate:"gte=2"`
	StochKSmooth int     `yaml:"stoch_k_smooth" json:"stoch_k_smooth" env-default:"3" validate:"gte=1"`
	StochDPeriod int     `yaml:"stoch_d_period" json:"stoch_d_period" env-default:"3" validate:"gte=1"`
	ATRPeriod    int     `yaml:"atr_period" json:"atr_period" env-default:"14" validate:"gte=1"`
}

// DefaultParams are RSI 14, MACD 12/26/9, EMA 9/21, BB 20/2, Stoch 14/3/3 and ATR 14.
func DefaultParams() Params {
	return Params{
		RSIPeriod:    14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		EMAFast:      9,
		EMASlow:      21,
		BBPeriod:     20,
		BBStdDev:     2,
		StochKPeriod: 14,
		StochKSmooth: 3,
		StochDPeriod: 3,
		ATRPeriod:    14,
	}
}

func (p Params) macdLookback() int  { return p.MACDSlow - 1 + p.MACDSignal - 1 }
func (p Params) stochLookback() int { return p.StochKPeriod - 1 + p.StochKSmooth - 1 + p.StochDPeriod - 1 }

// WarmUp is the number of leading candles that lack at least one required indicator.
func (p Params) WarmUp() int {
	warm := 0
	for _, l := range []int{p.RSIPeriod, p.macdLookback(), p.EMASlow - 1, p.BBPeriod - 1, p.stochLookback()} {
		if l > warm {
			warm = l
		}
	}
	return warm
}

// Compute evaluates all indicators over candles (oldest first) and returns one
// snapshot per candle.
func Compute(candles []types.OHLCV, p Params) ([]Snapshot, error) {
	if len(candles) == 0 {
		return nil, boterrors.NewComputationError("indicators", "Compute", "no candles")
	}
	if len(candles) <= p.WarmUp() {
		return nil, boterrors.NewComputationError("indicators", "Compute",
			fmt.Sprintf("need more than %d candles, got %d", p.WarmUp(), len(candles)))
	}

	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	rsi := talib.Rsi(closes, p.RSIPeriod)
	macd, macdSignal, macdHist := talib.Macd(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	emaFast := talib.Ema(closes, p.EMAFast)
	emaSlow := talib.Ema(closes, p.EMASlow)
	upper, middle, lower := talib.BBands(closes, p.BBPeriod, p.BBStdDev, p.BBStdDev, talib.SMA)
	stochK, stochD := talib.Stoch(highs, lows, closes, p.StochKPeriod, p.StochKSmooth, talib.SMA, p.StochDPeriod, talib.SMA)
	atr := talib.Atr(highs, lows, closes, p.ATRPeriod)

	// talib pads the warm-up region with zeros.
	blank(rsi, p.RSIPeriod)
	blank(macd, p.macdLookback())
	blank(macdSignal, p.macdLookback())
	blank(macdHist, p.macdLookback())
	blank(emaFast, p.EMAFast-1)
	blank(emaSlow, p.EMASlow-1)
	blank(upper, p.BBPeriod-1)
	blank(middle, p.BBPeriod-1)
	blank(lower, p.BBPeriod-1)
	blank(stochK, p.stochLookback())
	blank(stochD, p.stochLookback())
	blank(atr, p.ATRPeriod)

	out := make([]Snapshot, n)
	for i, c := range candles {
		out[i] = Snapshot{
			Timestamp:  c.Timestamp,
			Close:      c.Close,
			Volume:     c.Volume,
			RSI:        at(rsi, i),
			MACD:       at(macd, i),
			MACDSignal: at(macdSignal, i),
			MACDHist:   at(macdHist, i),
			EMAFast:    at(emaFast, i),
			EMASlow:    at(emaSlow, i),
			BBUpper:    at(upper, i),
			BBMiddle:   at(middle, i),
			BBLower:    at(lower, i),
			StochK:     at(stochK, i),
			StochD:     at(stochD, i),
			ATR:        at(atr, i),
		}
	}
	return out, nil
}

func blank(series []float64, lookback int) {
	for i := 0; i < lookback && i < len(series); i++ {
		series[i] = math.NaN()
	}
}

func at(series []float64, i int) float64 {
	if i >= len(series) {
		return math.NaN()
	}
	return series[i]
}
