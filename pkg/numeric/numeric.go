// Package numeric holds the fixed-point helpers used by vault accounting.
// All monetary math is basis points over uint64 base units with floor
// division; 128-bit intermediates keep products exact.
package numeric

import (
	"errors"
	"math/big"
	"math/bits"
)

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator = 10000

var ErrOverflow = errors.New("numeric overflow")

// MulDiv computes floor(a*b/c) with a 128-bit intermediate product.
// It returns ErrOverflow when the quotient does not fit in uint64; a zero
// divisor also reports ErrOverflow rather than panicking.
func MulDiv(a, b, c uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}

// ApplyBps computes floor(amount*bps/10000): a fee or ratio application.
func ApplyBps(amount, bps uint64) (uint64, error) {
	return MulDiv(amount, bps, BpsDenominator)
}

// RatioBps computes floor(numerator*10000/denominator), the basis-point
// ratio between two amounts. Zero denominator yields zero.
func RatioBps(numerator, denominator uint64) uint64 {
	if denominator == 0 {
		return 0
	}
	v, err := MulDiv(numerator, BpsDenominator, denominator)
	if err != nil {
		// Ratio views saturate instead of failing; callers only display them.
		return ^uint64(0)
	}
	return v
}

// WithinBps reports whether numerator is at most bps basis points of
// denominator, comparing the 128-bit cross products exactly so boundary
// checks are never softened by floor division.
func WithinBps(numerator, denominator, bps uint64) bool {
	hiN, loN := bits.Mul64(numerator, BpsDenominator)
	hiD, loD := bits.Mul64(bps, denominator)
	if hiN != hiD {
		return hiN < hiD
	}
	return loN <= loD
}

// ScaledQuotient computes floor(a*scale/b) as a big integer, for views such
// as the 1e18-scaled intrinsic value per token.
func ScaledQuotient(a, b uint64, scale *big.Int) *big.Int {
	if b == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).SetUint64(a)
	out.Mul(out, scale)
	return out.Quo(out, new(big.Int).SetUint64(b))
}

// E18 is the 18-decimal fixed-point scale used for per-token values.
var E18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
