package exporter

import (
	"math"
	"strconv"

	"pvinsight/internal/format"
	"pvinsight/internal/timeseries"
)

// num formats a result value with a space thousands separator.
func num(x timeseries.Float, digits int) string {
	return format.Number(float64(x), digits)
}

// optNum formats an optional result value.
func optNum(x *timeseries.Float, digits int) string {
	if x == nil {
		return format.Empty
	}
	return num(*x, digits)
}

// share formats a percentage as "12.3 %".
func share(x timeseries.Float) string {
	return format.Percent(float64(x), 1)
}

// fixed1 formats with one decimal and no separator, as in "Share (%)" cells.
func fixed1(x timeseries.Float) string {
	v := float64(x)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return format.Empty
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// cellValue maps NaN to an empty spreadsheet cell.
func cellValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// cellFloat is cellValue for result values.
func cellFloat(x timeseries.Float) any {
	return cellValue(float64(x))
}

// cellOpt maps a missing result value to an empty cell.
func cellOpt(x *timeseries.Float) any {
	if x == nil {
		return nil
	}
	return cellFloat(*x)
}
