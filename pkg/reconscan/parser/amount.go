package parser

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// currencySymbols are stripped from text amounts before parsing.
const currencySymbols = "$€£¥"

// MaxAmountExponent bounds the decimal exponent of an amount in either direction.
// Amounts such as "1e-50000000" would otherwise expand to millions of digits when
// rendered in fixed-point notation.
const MaxAmountExponent = 28

// NormalizeAmount converts a raw cell value to an exact decimal.
// Numbers convert through their shortest printed form. Text is trimmed and stripped of
// currency symbols, thousands separators and whitespace; an amount wrapped in
// parentheses is negative (accounting format). The boolean is false when v holds no
// usable number or its exponent lies outside ±MaxAmountExponent.
func NormalizeAmount(v interface{}) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return bounded(x)
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case int32:
		return decimal.NewFromInt32(x), true
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case string:
		return parseAmountText(x)
	}
	return decimal.Zero, false
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return bounded(decimal.NewFromFloat(f))
}

func parseAmountText(s string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) || strings.ContainsRune(currencySymbols, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))

	if len(cleaned) >= 2 && strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + cleaned[1:len(cleaned)-1]
	}
	if cleaned == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return bounded(d)
}

func bounded(d decimal.Decimal) (decimal.Decimal, bool) {
	if exp := d.Exponent(); exp > MaxAmountExponent || exp < -MaxAmountExponent {
		return decimal.Zero, false
	}
	return d, true
}
