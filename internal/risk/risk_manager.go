package risk

import (
	"fmt"
	"math"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
)

// DefaultMinInvestment is the smallest quote amount a cycle may commit.
const DefaultMinInvestment = 100.0

// Manager guards capital inputs and derives exit levels.
type Manager struct {
	minInvestment float64
	stopLossPct   float64
	rewardRatio   float64
}

// NewRiskManager creates a new risk manager instance. A non-positive
// minInvestment falls back to DefaultMinInvestment.
func NewRiskManager(minInvestment, stopLossPct, rewardRatio float64) *Manager {
	if minInvestment <= 0 {
		minInvestment = DefaultMinInvestment
	}
	return &Manager{
		minInvestment: minInvestment,
		stopLossPct:   stopLossPct,
		rewardRatio:   rewardRatio,
	}
}

func (rm *Manager) MinInvestment() float64 { return rm.minInvestment }

// ValidateInvestment returns amount unchanged when it meets the minimum.
func (rm *Manager) ValidateInvestment(amount float64) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, boterrors.NewValidationError("risk", "ValidateInvestment", "investment is not a finite number")
	}
	if amount < rm.minInvestment {
		return 0, boterrors.NewValidationError("risk", "ValidateInvestment",
			fmt.Sprintf("investment %.2f is below the minimum of %.2f", amount, rm.minInvestment)).
			WithContext("amount", amount).
			WithContext("minimum", rm.minInvestment)
	}
	return amount, nil
}

// Levels derives stop loss and take profit for entry with the configured percentages.
func (rm *Manager) Levels(entry float64) (Levels, error) {
	return ComputeLevels(entry, rm.stopLossPct, rm.rewardRatio)
}
