package strategy

import (
	"fmt"
	"math"
	"strings"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/indicators"
)

// Factors records each confluence condition for one direction.
type Factors struct {
	Trend     bool
	Volume    bool
	RSI       bool
	MACDCross bool
	Bollinger bool
	Stoch     bool
}

// All reports whether every factor holds.
func (f Factors) All() bool {
	return f.Trend && f.Volume && f.RSI && f.MACDCross && f.Bollinger && f.Stoch
}

// Count is the number of factors that hold.
func (f Factors) Count() int {
	n := 0
	for _, ok := range []bool{f.Trend, f.Volume, f.RSI, f.MACDCross, f.Bollinger, f.Stoch} {
		if ok {
			n++
		}
	}
	return n
}

func (f Factors) String() string {
	return fmt.Sprintf("trend=%t volume=%t rsi=%t macd=%t bb=%t stoch=%t",
		f.Trend, f.Volume, f.RSI, f.MACDCross, f.Bollinger, f.Stoch)
}

// Thresholds of the confluence rules.
type Thresholds struct {
	VolumeMultiplier float64 `yaml:"volume_multiplier" json:"volume_multiplier" env-default:"1.2" validate:"gt=0"`
	RSIOversold      float64 `yaml:"rsi_oversold" json:"rsi_oversold" env-default:"30" validate:"gte=0,lte=100"`
	RSIOverbought    float64 `yaml:"rsi_overbought" json:"rsi_overbought" env-default:"70" validate:"gte=0,lte=100"`
	StochOversold    float64 `yaml:"stoch_oversold" json:"stoch_oversold" env-default:"20" validate:"gte=0,lte=100"`
	StochOverbought  float64 `yaml:"stoch_overbought" json:"stoch_overbought" env-default:"80" validate:"gte=0,lte=100"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		VolumeMultiplier: 1.2,
		RSIOversold:      30,
		RSIOverbought:    70,
		StochOversold:    20,
		StochOverbought:  80,
	}
}

// Confluence emits buy or sell only when all six factors of a direction agree.
type Confluence struct {
	t Thresholds
}

func NewConfluence(t Thresholds) *Confluence {
	return &Confluence{t: t}
}

func (c *Confluence) GetName() string { return "six-factor confluence" }

// Evaluate implements Strategy.
func (c *Confluence) Evaluate(snapshots []indicators.Snapshot) TradeDecision {
	if len(snapshots) < 2 {
		err := boterrors.NewComputationError("strategy", "Evaluate",
			fmt.Sprintf("need at least 2 periods, got %d", len(snapshots)))
		return TradeDecision{Action: ActionError, Reason: err.Message, Err: err}
	}

	prev, cur := snapshots[len(snapshots)-2], snapshots[len(snapshots)-1]
	decision := TradeDecision{Price: cur.Close, Timestamp: cur.Timestamp}

	if missing := append(prev.Missing(), cur.Missing()...); len(missing) > 0 {
		decision.Action = ActionHold
		decision.Reason = "missing indicators: " + strings.Join(missing, ",")
		return decision
	}

	decision.Long = c.longFactors(prev, cur)
	decision.Short = c.shortFactors(prev, cur)
	decision.Strength = Strength(cur)

	switch {
	case decision.Long.All():
		decision.Action = ActionBuy
		decision.Reason = "long confluence"
	case decision.Short.All():
		decision.Action = ActionSell
		decision.Reason = "short confluence"
	default:
		decision.Action = ActionHold
		decision.Reason = fmt.Sprintf("no confluence (long %d/6, short %d/6)", decision.Long.Count(), decision.Short.Count())
	}
	return decision
}

func (c *Confluence) longFactors(prev, cur indicators.Snapshot) Factors {
	return Factors{
		Trend:     cur.EMAFast > cur.EMASlow && cur.Close > cur.EMAFast,
		Volume:    cur.Volume > c.t.VolumeMultiplier*prev.Volume,
		RSI:       cur.RSI < c.t.RSIOversold,
		MACDCross: cur.MACD > cur.MACDSignal && prev.MACD <= prev.MACDSignal,
		Bollinger: cur.Close <= cur.BBLower,
		Stoch:     cur.StochK < c.t.StochOversold,
	}
}

func (c *Confluence) shortFactors(prev, cur indicators.Snapshot) Factors {
	return Factors{
		Trend:     cur.EMAFast < cur.EMASlow && cur.Close < cur.EMAFast,
		Volume:    cur.Volume > c.t.VolumeMultiplier*prev.Volume,
		RSI:       cur.RSI > c.t.RSIOverbought,
		MACDCross: cur.MACD < cur.MACDSignal && prev.MACD >= prev.MACDSignal,
		Bollinger: cur.Close >= cur.BBUpper,
		Stoch:     cur.StochK > c.t.StochOverbought,
	}
}

// Strength scores how stretched the market is, 0..100. A flat Bollinger band
// counts as width 1.
func Strength(s indicators.Snapshot) float64 {
	if !s.Complete() {
		return 0
	}
	width := s.BBUpper - s.BBMiddle
	if width <= 0 {
		width = 1
	}
	score := 0.3*math.Abs(50-s.RSI)/50 +
		0.3*math.Abs(s.MACD-s.MACDSignal) +
		0.2*math.Abs(s.Close-s.BBMiddle)/width +
		0.2*math.Abs(50-s.StochK)/50
	score *= 100
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
