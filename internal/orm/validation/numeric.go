package validation

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// maxNumericPrecision bounds the significant digits kept while rounding
const maxNumericPrecision = 64

// Numeric normalizes a decimal value to a fixed number of decimals.
//
// Everything except digits and the first period is stripped, the sign is
// remembered separately, and the result is rounded half-up. A negative
// decimals argument keeps as many decimals as the input itself carries.
func Numeric(value interface{}, decimals int, unsigned bool) (string, bool) {
	raw, ok := String(value)
	if !ok {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	negative := strings.HasPrefix(raw, "-")
	digits := stripNumeric(raw)
	if digits == "" {
		return "", false
	}

	if decimals < 0 {
		decimals = 0
		if i := strings.IndexByte(digits, '.'); i >= 0 {
			decimals = len(digits) - i - 1
		}
	}

	d, _, err := apd.NewFromString(canonicalDecimal(digits))
	if err != nil {
		return "", false
	}
	if negative && !d.IsZero() {
		if unsigned {
			return "", false
		}
		d.Negative = true
	}

	ctx := apd.BaseContext.WithPrecision(maxNumericPrecision)
	ctx.Rounding = apd.RoundHalfUp

	var out apd.Decimal
	if _, err := ctx.Quantize(&out, d, -int32(decimals)); err != nil {
		return "", false
	}
	if out.IsZero() {
		out.Negative = false
	}

	return out.Text('f'), true
}

// NumericEqual reports whether a and b hold the same number regardless of
// how many trailing zeros either carries, so "12.50" equals 12.5. Values
// that are not numeric are never equal.
func NumericEqual(a, b interface{}) bool {
	x, ok := decimalOf(a)
	if !ok {
		return false
	}
	y, ok := decimalOf(b)
	if !ok {
		return false
	}
	return x.Cmp(y) == 0
}

func decimalOf(v interface{}) (*apd.Decimal, bool) {
	s, ok := Numeric(v, -1, false)
	if !ok {
		return nil, false
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, false
	}
	return d, true
}

// stripNumeric keeps digits and the first period
func stripNumeric(s string) string {
	var b strings.Builder
	seenPeriod := false
	seenDigit := false

	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			seenDigit = true
		case r == '.' && !seenPeriod:
			b.WriteRune(r)
			seenPeriod = true
		}
	}

	if !seenDigit {
		return ""
	}
	return b.String()
}

// canonicalDecimal turns ".5" into "0.5" and "12." into "12"
func canonicalDecimal(digits string) string {
	if strings.HasPrefix(digits, ".") {
		digits = "0" + digits
	}
	return strings.TrimSuffix(digits, ".")
}
