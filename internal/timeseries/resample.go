package timeseries

import (
	"math"
	"time"
)

// ResampleHourly aggregates the frame into contiguous hourly bins from the
// first to the last hour. sumCols are summed (an empty hour sums to 0),
// meanCols are averaged (an empty hour is NaN). Other columns are dropped.
func ResampleHourly(f *Frame, sumCols, meanCols []string) *Frame {
	if f.Len() == 0 {
		out := NewFrame(nil)
		for _, c := range append(append([]string(nil), sumCols...), meanCols...) {
			if f.Has(c) {
				out.MustSet(c, []float64{})
			}
		}
		return out
	}

	lo, hi := f.MinMaxTime()
	start := lo.Truncate(time.Hour)
	end := hi.Truncate(time.Hour)
	n := int(end.Sub(start)/time.Hour) + 1

	index := make([]time.Time, n)
	for i := range index {
		index[i] = start.Add(time.Duration(i) * time.Hour)
	}

	bucket := make([]int, f.Len())
	for i, t := range f.Index {
		bucket[i] = int(t.Truncate(time.Hour).Sub(start) / time.Hour)
	}

	out := NewFrame(index)
	for _, c := range sumCols {
		src := f.Column(c)
		if src == nil {
			continue
		}
		sums := make([]float64, n)
		for i, v := range src {
			if !math.IsNaN(v) {
				sums[bucket[i]] += v
			}
		}
		out.MustSet(c, sums)
	}
	for _, c := range meanCols {
		src := f.Column(c)
		if src == nil || out.Has(c) {
			continue
		}
		out.MustSet(c, bucketMeans(src, bucket, n))
	}
	return out
}

// HourlyMean groups rows by their floored hour and averages every column.
// Only hours present in the frame are kept, in chronological order.
func HourlyMean(f *Frame) *Frame {
	g := f.Clone()
	g.Sort()

	var (
		index  []time.Time
		bucket = make([]int, g.Len())
	)
	for i, t := range g.Index {
		h := t.Truncate(time.Hour)
		if len(index) == 0 || !index[len(index)-1].Equal(h) {
			index = append(index, h)
		}
		bucket[i] = len(index) - 1
	}

	out := NewFrame(index)
	for _, c := range g.Columns() {
		out.MustSet(c, bucketMeans(g.Column(c), bucket, len(index)))
	}
	return out
}

func bucketMeans(src []float64, bucket []int, n int) []float64 {
	sums := make([]float64, n)
	counts := make([]int, n)
	for i, v := range src {
		if !math.IsNaN(v) {
			sums[bucket[i]] += v
			counts[bucket[i]]++
		}
	}
	means := make([]float64, n)
	for i := range means {
		if counts[i] == 0 {
			means[i] = math.NaN()
			continue
		}
		means[i] = sums[i] / float64(counts[i])
	}
	return means
}
