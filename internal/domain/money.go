package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Centavos is the internal representation of money: a signed integer count of
// 1/100 of the client's display currency unit. Conversions to and from the
// display (pesos) representation happen only at serialization boundaries.
type Centavos int64

// MaxSafeCentavos bounds accepted amounts to what survives a float64 round
// trip through JSON payloads.
const MaxSafeCentavos = int64(1) << 53

// ToCentavos converts a display-unit amount to centavos, rounding half away
// from zero at the 0.01 boundary.
func ToCentavos(d decimal.Decimal) (Centavos, error) {
	rounded := d.Mul(decimal.NewFromInt(100)).Round(0)
	if rounded.Abs().GreaterThan(decimal.NewFromInt(MaxSafeCentavos)) {
		return 0, ErrInvalidAmount
	}
	return Centavos(rounded.IntPart()), nil
}

// ParseCentavos converts a decimal string ("123.45") to centavos.
func ParseCentavos(s string) (Centavos, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return ToCentavos(d)
}

// CentavosFromFloat converts a wire float (pesos) to centavos. NaN and
// infinities are rejected, as are values with more than 2 decimal digits.
func CentavosFromFloat(f float64) (Centavos, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrInvalidAmount
	}
	d := decimal.NewFromFloat(f)
	if !d.Equal(d.Round(2)) {
		return 0, ErrInvalidAmount
	}
	return ToCentavos(d)
}

// FromCentavos returns the display-unit decimal for c. Display only.
func FromCentavos(c Centavos) decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// Pesos returns c as a float64 in display units for wire payloads.
func (c Centavos) Pesos() float64 {
	f, _ := FromCentavos(c).Float64()
	return f
}

// Abs returns the absolute value of c.
func (c Centavos) Abs() Centavos {
	if c < 0 {
		return -c
	}
	return c
}
