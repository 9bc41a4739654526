package indicators

import (
	"math"
	"time"
)

// Snapshot is the indicator state of a single closed candle. Values that
// could not be computed yet (warm-up) are NaN.
type Snapshot struct {
	Timestamp time.Time
	Close     float64
	Volume    float64

	RSI        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	EMAFast    float64
	EMASlow    float64
	BBUpper    float64
	BBMiddle   float64
	BBLower    float64
	StochK     float64
	StochD     float64
	ATR        float64
}

// Missing lists the required fields that are not available. ATR is informational
// and never required.
func (s Snapshot) Missing() []string {
	var missing []string
	fields := []struct {
		name  string
		value float64
	}{
		{"close", s.Close},
		{"volume", s.Volume},
		{"rsi", s.RSI},
		{"macd", s.MACD},
		{"macd_signal", s.MACDSignal},
		{"ema_fast", s.EMAFast},
		{"ema_slow", s.EMASlow},
		{"bb_upper", s.BBUpper},
		{"bb_middle", s.BBMiddle},
		{"bb_lower", s.BBLower},
		{"stoch_k", s.StochK},
		{"stoch_d", s.StochD},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Complete reports whether every required field is present.
func (s Snapshot) Complete() bool {
	return len(s.Missing()) == 0
}

// EmptySnapshot returns a snapshot with every indicator unset.
func EmptySnapshot() Snapshot {
	nan := math.NaN()
	return Snapshot{
		RSI: nan, MACD: nan, MACDSignal: nan, MACDHist: nan,
		EMAFast: nan, EMASlow: nan,
		BBUpper: nan, BBMiddle: nan, BBLower: nan,
		StochK: nan, StochD: nan, ATR: nan,
	}
}
