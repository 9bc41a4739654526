package strategy

import (
	"math"
	"testing"
	"time"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/internal/indicators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSnapshot() indicators.Snapshot {
	return indicators.Snapshot{
		Timestamp:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Close:      100,
		Volume:     1000,
		RSI:        50,
		MACD:       0,
		MACDSignal: 0,
		EMAFast:    100,
		EMASlow:    100,
		BBUpper:    109,
		BBMiddle:   100,
		BBLower:    91,
		StochK:     50,
		StochD:     50,
		ATR:        1,
	}
}

func buyFixture() (indicators.Snapshot, indicators.Snapshot) {
	prev := baseSnapshot()
	prev.MACD, prev.MACDSignal = -1, -0.5

	cur := baseSnapshot()
	cur.Timestamp = prev.Timestamp.Add(5 * time.Minute)
	cur.Close = 90
	cur.EMAFast, cur.EMASlow = 85, 80
	cur.Volume = 1300
	cur.RSI = 25
	cur.MACD, cur.MACDSignal = 0.2, 0.1
	cur.StochK, cur.StochD = 15, 18
	return prev, cur
}

func sellFixture() (indicators.Snapshot, indicators.Snapshot) {
	prev := baseSnapshot()
	prev.MACD, prev.MACDSignal = 1, 0.5

	cur := baseSnapshot()
	cur.Timestamp = prev.Timestamp.Add(5 * time.Minute)
	cur.Close = 110
	cur.EMAFast, cur.EMASlow = 115, 120
	cur.Volume = 1300
	cur.RSI = 75
	cur.MACD, cur.MACDSignal = -0.2, -0.1
	cur.StochK, cur.StochD = 85, 82
	return prev, cur
}

// each breaker flips exactly one long factor
var buyBreakers = map[string]func(prev, cur *indicators.Snapshot){
	"trend":     func(_, cur *indicators.Snapshot) { cur.EMAFast = 79 },
	"volume":    func(_, cur *indicators.Snapshot) { cur.Volume = 1100 },
	"rsi":       func(_, cur *indicators.Snapshot) { cur.RSI = 35 },
	"macd":      func(prev, _ *indicators.Snapshot) { prev.MACD = 0.2 },
	"bollinger": func(_, cur *indicators.Snapshot) { cur.BBLower = 89 },
	"stoch":     func(_, cur *indicators.Snapshot) { cur.StochK = 25 },
}

func TestConfluenceBuy(t *testing.T) {
	c := NewConfluence(DefaultThresholds())
	prev, cur := buyFixture()

	d := c.Evaluate([]indicators.Snapshot{prev, cur})
	assert.Equal(t, ActionBuy, d.Action)
	assert.True(t, d.Long.All())
	assert.Equal(t, 6, d.Long.Count())
	assert.False(t, d.Short.All())
	assert.Equal(t, 90.0, d.Price)
	assert.Equal(t, cur.Timestamp, d.Timestamp)
	assert.True(t, d.Actionable())
	assert.InDelta(t, 54.2222, d.Strength, 1e-3)
}

func TestConfluenceSell(t *testing.T) {
	c := NewConfluence(DefaultThresholds())
	prev, cur := sellFixture()

	d := c.Evaluate([]indicators.Snapshot{prev, cur})
	assert.Equal(t, ActionSell, d.Action)
	assert.True(t, d.Short.All())
	assert.False(t, d.Long.All())
	assert.Equal(t, "SELL", d.Action.String())
}

func TestConfluenceSingleFactorDemotesToHold(t *testing.T) {
	c := NewConfluence(DefaultThresholds())

	for name, breaker := range buyBreakers {
		t.Run(name, func(t *testing.T) {
			prev, cur := buyFixture()
			breaker(&prev, &cur)

			d := c.Evaluate([]indicators.Snapshot{prev, cur})
			assert.Equal(t, ActionHold, d.Action)
			assert.Equal(t, 5, d.Long.Count())
			assert.False(t, d.Actionable())
		})
	}
}

func TestConfluenceAnyCombinationOfMissingFactorsHolds(t *testing.T) {
	c := NewConfluence(DefaultThresholds())
	names := []string{"trend", "volume", "rsi", "macd", "bollinger", "stoch"}

	for mask := 0; mask < 1<<len(names); mask++ {
		prev, cur := buyFixture()
		broken := 0
		for i, name := range names {
			if mask&(1<<i) != 0 {
				buyBreakers[name](&prev, &cur)
				broken++
			}
		}

		d := c.Evaluate([]indicators.Snapshot{prev, cur})
		assert.Equal(t, 6-broken, d.Long.Count(), "mask %06b", mask)
		if broken == 0 {
			assert.Equal(t, ActionBuy, d.Action)
		} else {
			assert.Equal(t, ActionHold, d.Action, "mask %06b", mask)
		}
	}
}

func TestConfluenceUsesLastTwoSnapshots(t *testing.T) {
	c := NewConfluence(DefaultThresholds())
	prev, cur := buyFixture()
	older := indicators.EmptySnapshot()

	d := c.Evaluate([]indicators.Snapshot{older, baseSnapshot(), prev, cur})
	assert.Equal(t, ActionBuy, d.Action)
}

func TestConfluenceNeedsTwoPeriods(t *testing.T) {
	c := NewConfluence(DefaultThresholds())
	_, cur := buyFixture()

	for _, in := range [][]indicators.Snapshot{nil, {cur}} {
		d := c.Evaluate(in)
		assert.Equal(t, ActionError, d.Action)
		require.Error(t, d.Err)
		assert.True(t, boterrors.IsComputation(d.Err))
	}
}

func TestConfluenceMissingFieldHolds(t *testing.T) {
	c := NewConfluence(DefaultThresholds())

	prev, cur := buyFixture()
	cur.StochD = math.NaN()
	d := c.Evaluate([]indicators.Snapshot{prev, cur})
	assert.Equal(t, ActionHold, d.Action)
	assert.Contains(t, d.Reason, "stoch_d")
	assert.NoError(t, d.Err)

	prev, cur = buyFixture()
	prev.MACDSignal = math.NaN()
	d = c.Evaluate([]indicators.Snapshot{prev, cur})
	assert.Equal(t, ActionHold, d.Action)
	assert.Contains(t, d.Reason, "macd_signal")
}

func TestStrength(t *testing.T) {
	s := baseSnapshot()
	assert.Equal(t, 0.0, Strength(s))

	s.RSI, s.StochK = 0, 100
	s.MACD, s.MACDSignal = 50, 0
	s.Close = 1000
	assert.Equal(t, 100.0, Strength(s))

	flat := baseSnapshot()
	flat.BBUpper, flat.BBMiddle, flat.BBLower = 100, 100, 100
	flat.Close = 100.5
	assert.InDelta(t, 10.0, Strength(flat), 1e-9)

	assert.Equal(t, 0.0, Strength(indicators.EmptySnapshot()))
}

func TestFactorsString(t *testing.T) {
	f := Factors{Trend: true, Stoch: true}
	assert.Equal(t, 2, f.Count())
	assert.Equal(t, "trend=true volume=false rsi=false macd=false bb=false stoch=true", f.String())
}
