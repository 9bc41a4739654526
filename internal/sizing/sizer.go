// Package sizing turns a quote amount into an order quantity the venue accepts.
package sizing

import (
	"fmt"
	"math"
	"strings"

	boterrors "github.com/ducminhle1904/crypto-confluence-bot/internal/errors"
	"github.com/ducminhle1904/crypto-confluence-bot/pkg/types"
	"github.com/shopspring/decimal"
)

// Size floors investment/price onto the constraint grid and enforces its bounds.
// The result never spends more than investment.
func Size(investment, price float64, c types.MarketConstraints) (float64, error) {
	if !finite(investment) || investment <= 0 {
		return 0, boterrors.NewValidationError("sizing", "Size", fmt.Sprintf("investment must be positive, got %v", investment))
	}
	if !finite(price) || price <= 0 {
		return 0, boterrors.NewValidationError("sizing", "Size", fmt.Sprintf("price must be positive, got %v", price))
	}
	if !finite(c.Step) || c.Step < 0 {
		return 0, boterrors.NewValidationError("sizing", "Size", fmt.Sprintf("invalid step size %v", c.Step))
	}

	raw := decimal.NewFromFloat(investment).Div(decimal.NewFromFloat(price))
	return onGrid("Size", raw, c)
}

// Floor snaps a held quantity down onto the constraint grid, without a round
// trip through its quote value, and enforces the bounds.
func Floor(quantity float64, c types.MarketConstraints) (float64, error) {
	if !finite(quantity) || quantity <= 0 {
		return 0, boterrors.NewValidationError("sizing", "Floor", fmt.Sprintf("quantity must be positive, got %v", quantity))
	}
	if !finite(c.Step) || c.Step < 0 {
		return 0, boterrors.NewValidationError("sizing", "Floor", fmt.Sprintf("invalid step size %v", c.Step))
	}
	return onGrid("Floor", decimal.NewFromFloat(quantity), c)
}

func onGrid(op string, raw decimal.Decimal, c types.MarketConstraints) (float64, error) {
	step := decimal.NewFromFloat(c.Step)
	if step.IsZero() {
		step = decimal.NewFromInt(1)
	}

	qty := raw.Div(step).Floor().Mul(step)
	if c.TargetPrecision == 0 {
		qty = qty.Floor()
	}

	quantity := qty.InexactFloat64()
	if quantity < c.MinQuantity {
		return 0, boterrors.NewSizingError("sizing", op,
			fmt.Sprintf("quantity %v is below the minimum quantity %v", quantity, c.MinQuantity)).
			WithContext("bound", "min_quantity").
			WithContext("quantity", quantity)
	}
	if c.MaxQuantity > 0 && quantity > c.MaxQuantity {
		return 0, boterrors.NewSizingError("sizing", op,
			fmt.Sprintf("quantity %v is above the maximum quantity %v", quantity, c.MaxQuantity)).
			WithContext("bound", "max_quantity").
			WithContext("quantity", quantity)
	}
	return quantity, nil
}

// FormatQuantity renders q with the decimals implied by the step, as venues expect it in requests.
func FormatQuantity(q float64, c types.MarketConstraints) string {
	places := int32(c.TargetPrecision)
	if c.Step > 0 {
		if exp := -decimal.NewFromFloat(c.Step).Exponent(); exp > places {
			places = exp
		}
	}
	if places < 0 {
		places = 0
	}
	return decimal.NewFromFloat(q).Truncate(places).StringFixed(places)
}

// StepPrecision counts the significant decimals of a venue step such as "0.00100".
func StepPrecision(step string) int {
	d, err := decimal.NewFromString(step)
	if err != nil || d.Sign() <= 0 {
		return 0
	}
	s := d.String()
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
