// Package amount converts between human decimal strings and scaled integers
// ("atoms", amount x 10^precision).
//
// Every comparison, sum and ratio over money in trustlens goes through atoms.
// Floating point never touches an amount.
package amount

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// RatioPlaces is the number of fractional digits kept by Ratio.
const RatioPlaces = 12

var decimalPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// ToAtoms parses an optionally signed decimal string "[-]digits[.digits]" into
// atoms at the given precision. Excess fractional digits are truncated, not
// rounded. Malformed input yields zero.
//
// The zero default keeps dashboards and analytics rendering when upstream data is
// dirty. It is unsuitable for ledger posting, where malformed input must fail.
func ToAtoms(s string, precision int) *big.Int {
	s = strings.TrimSpace(s)
	if !decimalPattern.MatchString(s) {
		return new(big.Int)
	}
	if precision < 0 {
		precision = 0
	}

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	if len(frac) > precision {
		frac = frac[:precision]
	} else {
		frac += strings.Repeat("0", precision-len(frac))
	}

	v, ok := new(big.Int).SetString(intPart+frac, 10)
	if !ok {
		return new(big.Int)
	}
	if negative {
		v.Neg(v)
	}
	return v
}

// FromAtoms renders atoms as a decimal string with exactly precision fractional
// digits (none when precision <= 0). The sign is kept for non-zero values.
func FromAtoms(v *big.Int, precision int) string {
	if v == nil {
		v = new(big.Int)
	}
	digits := new(big.Int).Abs(v).String()
	sign := ""
	if v.Sign() < 0 {
		sign = "-"
	}
	if precision <= 0 {
		return sign + digits
	}
	if len(digits) <= precision {
		digits = strings.Repeat("0", precision-len(digits)+1) + digits
	}
	cut := len(digits) - precision
	return sign + digits[:cut] + "." + digits[cut:]
}

// Canonical normalizes s to its canonical form at precision.
func Canonical(s string, precision int) string {
	return FromAtoms(ToAtoms(s, precision), precision)
}

// Valid reports whether s is a well-formed decimal string.
func Valid(s string) bool {
	return decimalPattern.MatchString(strings.TrimSpace(s))
}

// Ratio returns num/den rounded to RatioPlaces, or zero when den is zero.
func Ratio(num, den *big.Int) decimal.Decimal {
	if den == nil || den.Sign() == 0 || num == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), RatioPlaces)
}

// Sum adds atoms.
func Sum(values ...*big.Int) *big.Int {
	total := new(big.Int)
	for _, v := range values {
		if v != nil {
			total.Add(total, v)
		}
	}
	return total
}
