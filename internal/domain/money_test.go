package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToCentavos_RoundsHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		in   string
		want Centavos
	}{
		{"4600.00", 460000},
		{"0.005", 1},
		{"-0.005", -1},
		{"1.004", 100},
		{"1.015", 102},
		{"-1.015", -102},
		{"0", 0},
	}
	for _, tc := range tests {
		d, err := decimal.NewFromString(tc.in)
		if err != nil {
			t.Fatalf("bad test input %q", tc.in)
		}
		got, err := ToCentavos(d)
		if err != nil {
			t.Fatalf("ToCentavos(%s): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ToCentavos(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestToCentavos_RejectsOutOfRange(t *testing.T) {
	big := decimal.NewFromInt(MaxSafeCentavos) // 2^53 pesos is 2^53*100 centavos
	if _, err := ToCentavos(big); err == nil {
		t.Error("Expected error for amount outside safe integer range")
	}
}

func TestCentavosFromFloat_RejectsNaNAndInf(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := CentavosFromFloat(f); err == nil {
			t.Errorf("Expected error for %v", f)
		}
	}
}

func TestCentavosFromFloat_RejectsExtraDecimals(t *testing.T) {
	if _, err := CentavosFromFloat(10.123); err == nil {
		t.Error("Expected error for 3 decimal digits")
	}
	if got, err := CentavosFromFloat(10.12); err != nil || got != 1012 {
		t.Errorf("Expected 1012, got %d (%v)", got, err)
	}
}

func TestFromCentavos_RoundTrip(t *testing.T) {
	// fromCentavos(toCentavos(x)) == x for x with <= 2 decimal digits.
	for _, s := range []string{"0.01", "4600.00", "-155.87", "12345.67", "0"} {
		d, _ := decimal.NewFromString(s)
		c, err := ToCentavos(d)
		if err != nil {
			t.Fatalf("ToCentavos(%s): %v", s, err)
		}
		if !FromCentavos(c).Equal(d) {
			t.Errorf("Round trip of %s gave %s", s, FromCentavos(c))
		}
	}
}

func TestParseCentavos_RejectsNonNumeric(t *testing.T) {
	if _, err := ParseCentavos("abc"); err == nil {
		t.Error("Expected error for non-numeric input")
	}
}
