package swap

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// fixedPointScale returns 10^decimals as a big.Int.
func fixedPointScale(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// FormatAmount renders a base-units integer as a human decimal string,
// clamping display precision to [2,8] so tiny-decimal tokens don't produce
// unreadably long strings.
func FormatAmount(raw *big.Int, decimals uint8) string {
	precision := int(decimals)
	if precision > 8 {
		precision = 8
	}
	if precision < 2 {
		precision = 2
	}
	return FormatAmountPrecision(raw, decimals, precision)
}

// FormatAmountPrecision renders a base-units integer at an explicit display precision.
func FormatAmountPrecision(raw *big.Int, decimals uint8, precision int) string {
	if raw == nil {
		return "0"
	}
	scale := fixedPointScale(decimals)
	rat := new(big.Rat).SetFrac(raw, scale)
	return rat.FloatString(precision)
}

// ToBaseUnits converts a human decimal amount string into base units,
// human_amount * 10^decimals. It refuses any input that would require
// rounding instead of truncating or rounding silently, per the "decimal
// handling via floating point" redesign note: requiring an exact result is
// strictly stronger than the acceptable banker's-rounding fallback.
func ToBaseUnits(amountStr string, decimals uint8) (*big.Int, error) {
	rat, ok := new(big.Rat).SetString(amountStr)
	if !ok {
		return nil, fmt.Errorf("the amount provided is an invalid decimal number: %q", amountStr)
	}
	if rat.Sign() <= 0 {
		return nil, errors.New("amount must be greater than zero")
	}
	scale := fixedPointScale(decimals)
	rat.Mul(rat, new(big.Rat).SetInt(scale))
	if !rat.IsInt() {
		return nil, fmt.Errorf("amount %s exceeds decimal precision of %d", amountStr, decimals)
	}
	return new(big.Int).Set(rat.Num()), nil
}

// FromBaseUnits is the inverse of ToBaseUnits, at full precision, for
// round-trip property tests.
func FromBaseUnits(raw *big.Int, decimals uint8) string {
	return FormatAmountPrecision(raw, decimals, int(decimals))
}

// FormatBps renders a basis-points value (price_impact_bps,
// platform_fees_bps, slippage_bps) as a human percentage string.
func FormatBps(bps uint64) string {
	ratePct := new(big.Rat).SetFrac(big.NewInt(int64(bps)), big.NewInt(10_000))
	ratePct.Mul(ratePct, big.NewRat(100, 1))
	formatted := ratePct.FloatString(4)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimSuffix(formatted, ".")
	if formatted == "" {
		formatted = "0"
	}
	return fmt.Sprintf("%s%%", formatted)
}
