package reward

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Curve maps the number of successful steps to a payout multiplier.
// Step k (1-based) pays Curve[k-1].
type Curve []float64

// Validate checks that the curve is non-empty, starts at or above 1 and is
// strictly increasing.
func (c Curve) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("empty curve: %w", ErrRngConfiguration)
	}

	if c[0] < 1 {
		return fmt.Errorf("curve starts below 1 (%v): %w", c[0], ErrRngConfiguration)
	}

	for i := 1; i < len(c); i++ {
		if c[i] <= c[i-1] {
			return fmt.Errorf("curve not increasing at step %d (%v <= %v): %w", i+1, c[i], c[i-1], ErrRngConfiguration)
		}
	}

	return nil
}

// At returns the multiplier after steps successful steps. Zero steps is 1.0.
func (c Curve) At(steps int) (float64, error) {
	if steps == 0 {
		return 1, nil
	}

	if steps < 0 || steps > len(c) {
		return 0, fmt.Errorf("step %d outside curve of length %d: %w", steps, len(c), ErrRngConfiguration)
	}

	return c[steps-1], nil
}

// Final returns the last multiplier of the curve.
func (c Curve) Final() float64 {
	if len(c) == 0 {
		return 1
	}

	return c[len(c)-1]
}

// Payout returns floor(stake * multiplier) computed in decimal arithmetic so
// that multipliers like 2.3 do not lose a unit to binary rounding.
func Payout(stake int64, multiplier float64) int64 {
	if stake <= 0 || multiplier <= 0 {
		return 0
	}

	return decimal.NewFromInt(stake).
		Mul(decimal.NewFromFloat(multiplier)).
		Floor().
		IntPart()
}

// Round2 rounds a multiplier to two decimals, half away from zero.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Floor2 truncates a multiplier to two decimals.
func Floor2(v float64) float64 {
	return decimal.NewFromFloat(v).Truncate(2).InexactFloat64()
}
