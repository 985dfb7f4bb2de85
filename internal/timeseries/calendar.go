package timeseries

import "time"

// Season names in display order.
const (
	Winter = "Winter"
	Spring = "Spring"
	Summer = "Summer"
	Autumn = "Autumn"
)

// SeasonOrder is the display order of seasons.
var SeasonOrder = []string{Winter, Spring, Summer, Autumn}

// MonthName returns the English month name.
func MonthName(m time.Month) string {
	return m.String()
}

// Season maps a month to its meteorological season (northern hemisphere).
func Season(m time.Month) string {
	switch m {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Autumn
	}
}

// Group is a set of row positions sharing a key.
type Group struct {
	Key  string
	Rows []int
}

// GroupByMonth groups the rows of index by calendar month. Only months that
// occur are returned, in calendar order.
func GroupByMonth(index []time.Time) []MonthGroup {
	var buckets [13][]int
	for i, t := range index {
		buckets[t.Month()] = append(buckets[t.Month()], i)
	}
	var out []MonthGroup
	for m := time.January; m <= time.December; m++ {
		if len(buckets[m]) > 0 {
			out = append(out, MonthGroup{Month: m, Rows: buckets[m]})
		}
	}
	return out
}

// MonthGroup holds the rows of one calendar month.
type MonthGroup struct {
	Month time.Month
	Rows  []int
}

// Name returns the English month name.
func (g MonthGroup) Name() string { return MonthName(g.Month) }

// GroupBySeason groups rows by season, in SeasonOrder, present seasons only.
func GroupBySeason(index []time.Time) []Group {
	buckets := make(map[string][]int, 4)
	for i, t := range index {
		s := Season(t.Month())
		buckets[s] = append(buckets[s], i)
	}
	var out []Group
	for _, s := range SeasonOrder {
		if rows := buckets[s]; len(rows) > 0 {
			out = append(out, Group{Key: s, Rows: rows})
		}
	}
	return out
}

// Pick returns values at the given rows.
func Pick(values []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = values[r]
	}
	return out
}
