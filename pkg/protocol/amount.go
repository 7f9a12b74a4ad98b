package protocol

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ScaleAmount converts a human decimal-string amount (e.g. "0.01") into its
// smallest-unit integer representation for a token with the given number
// of decimals. It never uses binary floating point: the string is parsed
// directly into an arbitrary-precision decimal.Decimal and scaled with
// integer math.
//
// Fails with ErrInvalidAmount when the amount is non-positive or carries
// more fractional digits than decimals allows (i.e. the scaled value is
// not an integer).
func ScaleAmount(humanAmount string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(humanAmount)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	if d.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, ErrInvalidAmount
	}

	return scaled.BigInt(), nil
}

// DisplayAmount converts a smallest-unit integer amount back into its
// human decimal-string representation for a token with the given number
// of decimals. The inverse of ScaleAmount: DisplayAmount(ScaleAmount(a)) == a
// for any a with at most `decimals` fractional digits.
func DisplayAmount(smallest *big.Int, decimals int) string {
	if smallest == nil {
		return decimal.Zero.String()
	}

	fixed := decimal.NewFromBigInt(smallest, int32(-decimals)).StringFixed(int32(decimals))
	if !strings.Contains(fixed, ".") {
		return fixed
	}

	fixed = strings.TrimRight(fixed, "0")
	fixed = strings.TrimSuffix(fixed, ".")
	return fixed
}
