// Package format renders numbers for reports: space thousands separator,
// fixed decimals and an em dash for missing values.
package format

import (
	"math"
	"strconv"
	"strings"
)

// Empty is printed for NaN, Inf and missing values.
const Empty = "—"

// Number formats x with a space thousands separator and digits decimals.
func Number(x float64, digits int) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Empty
	}
	if digits < 0 {
		digits = 0
	}

	s := strconv.FormatFloat(x, 'f', digits, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if strings.Trim(s, "0.") == "" {
		sign = ""
	}

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

// Ptr formats an optional value; nil prints Empty.
func Ptr(x *float64, digits int) string {
	if x == nil {
		return Empty
	}
	return Number(*x, digits)
}

// WithUnit formats x and appends unit when the number is not empty.
func WithUnit(x float64, unit string, digits int) string {
	s := Number(x, digits)
	u := strings.TrimSpace(unit)
	if u == "" || s == Empty {
		return s
	}
	return s + " " + u
}

// Percent formats x as "12.3 %".
func Percent(x float64, digits int) string {
	return WithUnit(x, "%", digits)
}
