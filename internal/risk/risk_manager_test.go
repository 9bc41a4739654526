package risk

import (
	"math"
	"testing"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInvestment(t *testing.T) {
	rm := NewRiskManager(0, 0.01, 2)
	assert.Equal(t, DefaultMinInvestment, rm.MinInvestment())

	amount, err := rm.ValidateInvestment(100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, amount)

	_, err = rm.ValidateInvestment(99.99)
	require.Error(t, err)
	assert.True(t, boterrors.IsValidation(err))

	_, err = rm.ValidateInvestment(math.NaN())
	assert.True(t, boterrors.IsValidation(err))
}

func TestValidateInvestmentConfigurableMinimum(t *testing.T) {
	rm := NewRiskManager(102, 0.01, 2)

	_, err := rm.ValidateInvestment(101)
	assert.Error(t, err)
	_, err = rm.ValidateInvestment(102)
	assert.NoError(t, err)
}

func TestComputeLevelsExample(t *testing.T) {
	levels, err := ComputeLevels(100, 0.01, 2)
	require.NoError(t, err)
	assert.Equal(t, 99.0, levels.StopLoss)
	assert.Equal(t, 102.0, levels.TakeProfit)
	assert.InDelta(t, 2.0, RewardToRisk(levels, 100), 1e-9)
}

func TestComputeLevelsProperties(t *testing.T) {
	entries := []float64{0.000123, 0.5, 1, 27.3, 100, 3150.75, 64000.12}
	pcts := []float64{0.001, 0.01, 0.05, 0.2, 0.5, 0.9}
	ratios := []float64{0.5, 1, 1.5, 2, 3.7}

	for _, entry := range entries {
		for _, pct := range pcts {
			for _, ratio := range ratios {
				levels, err := ComputeLevels(entry, pct, ratio)
				require.NoError(t, err)
				assert.Less(t, levels.StopLoss, entry)
				assert.Greater(t, levels.TakeProfit, entry)

				upside := levels.TakeProfit - entry
				downside := entry - levels.StopLoss
				assert.InDelta(t, ratio*downside, upside, 1e-9*math.Max(1, ratio)+1e-9,
					"entry=%v pct=%v ratio=%v", entry, pct, ratio)
			}
		}
	}
}

func TestComputeLevelsSentinel(t *testing.T) {
	cases := [][3]float64{
		{0, 0.01, 2},
		{-5, 0.01, 2},
		{100, 0, 2},
		{100, 1, 2},
		{100, 0.01, 0},
		{math.NaN(), 0.01, 2},
		{100, math.Inf(1), 2},
	}
	for _, c := range cases {
		_, err := ComputeLevels(c[0], c[1], c[2])
		assert.ErrorIs(t, err, ErrLevelsUnavailable, "%v", c)
	}
}

func TestManagerLevels(t *testing.T) {
	rm := NewRiskManager(100, 0.01, 1.5)
	levels, err := rm.Levels(200)
	require.NoError(t, err)
	assert.Equal(t, 198.0, levels.StopLoss)
	assert.Equal(t, 203.0, levels.TakeProfit)
}

func TestTrailingStop(t *testing.T) {
	assert.Equal(t, 109.45, TrailingStop(110, 0.005))
	assert.Equal(t, 0.0, TrailingStop(0, 0.005))
	assert.Equal(t, 0.0, TrailingStop(110, 0))
	assert.Equal(t, 0.0, TrailingStop(math.NaN(), 0.005))
}
