package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Frame is a time-indexed table of float64 columns. Missing values are NaN.
type Frame struct {
	Index   []time.Time
	columns []string
	data    map[string][]float64
}

// NewFrame creates an empty frame over index.
func NewFrame(index []time.Time) *Frame {
	return &Frame{
		Index: index,
		data:  make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Index)
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool { return f.Len() == 0 }

// Has reports whether the column exists.
func (f *Frame) Has(name string) bool {
	if f == nil {
		return false
	}
	_, ok := f.data[name]
	return ok
}

// Column returns the values of a column, or nil when it does not exist.
// The slice is shared with the frame.
func (f *Frame) Column(name string) []float64 {
	if f == nil {
		return nil
	}
	return f.data[name]
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Set adds or replaces a column.
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != len(f.Index) {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), len(f.Index))
	}
	if _, ok := f.data[name]; !ok {
		f.columns = append(f.columns, name)
	}
	f.data[name] = values
	return nil
}

// MustSet is Set for callers that build columns from the frame's own length.
func (f *Frame) MustSet(name string, values []float64) {
	if err := f.Set(name, values); err != nil {
		panic(err)
	}
}

// Drop removes a column if present.
func (f *Frame) Drop(name string) {
	if _, ok := f.data[name]; !ok {
		return
	}
	delete(f.data, name)
	for i, c := range f.columns {
		if c == name {
			f.columns = append(f.columns[:i], f.columns[i+1:]...)
			break
		}
	}
}

// Rename renames a column in place. Renaming onto an existing column
// replaces it.
func (f *Frame) Rename(from, to string) {
	if from == to {
		return
	}
	values, ok := f.data[from]
	if !ok {
		return
	}
	f.Drop(to)
	delete(f.data, from)
	for i, c := range f.columns {
		if c == from {
			f.columns[i] = to
			break
		}
	}
	f.data[to] = values
}

// Select returns a new frame with only the named columns that exist, in the
// given order.
func (f *Frame) Select(names ...string) *Frame {
	out := NewFrame(append([]time.Time(nil), f.Index...))
	for _, n := range names {
		if v, ok := f.data[n]; ok {
			out.MustSet(n, append([]float64(nil), v...))
		}
	}
	return out
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	return f.Select(f.columns...)
}

// Sort orders rows by index, keeping the original order of equal timestamps.
func (f *Frame) Sort() {
	order := make([]int, len(f.Index))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return f.Index[order[a]].Before(f.Index[order[b]])
	})
	f.reorder(order)
}

func (f *Frame) reorder(order []int) {
	idx := make([]time.Time, len(order))
	for i, o := range order {
		idx[i] = f.Index[o]
	}
	f.Index = idx
	for name, values := range f.data {
		nv := make([]float64, len(order))
		for i, o := range order {
			nv[i] = values[o]
		}
		f.data[name] = nv
	}
}

// Filter returns a new frame with the rows where mask is true.
func (f *Frame) Filter(mask []bool) *Frame {
	var rows []int
	for i, keep := range mask {
		if keep && i < len(f.Index) {
			rows = append(rows, i)
		}
	}
	return f.Rows(rows)
}

// Rows returns a new frame made of the given row positions.
func (f *Frame) Rows(rows []int) *Frame {
	idx := make([]time.Time, len(rows))
	for i, r := range rows {
		idx[i] = f.Index[r]
	}
	out := NewFrame(idx)
	for _, name := range f.columns {
		src := f.data[name]
		v := make([]float64, len(rows))
		for i, r := range rows {
			v[i] = src[r]
		}
		out.MustSet(name, v)
	}
	return out
}

// Start returns the first timestamp, or the zero time for an empty frame.
func (f *Frame) Start() time.Time {
	if f.Len() == 0 {
		return time.Time{}
	}
	return f.Index[0]
}

// End returns the last timestamp, or the zero time for an empty frame.
func (f *Frame) End() time.Time {
	if f.Len() == 0 {
		return time.Time{}
	}
	return f.Index[len(f.Index)-1]
}

// MinMaxTime scans the index for the earliest and latest timestamps.
func (f *Frame) MinMaxTime() (time.Time, time.Time) {
	var lo, hi time.Time
	for i, t := range f.Index {
		if i == 0 || t.Before(lo) {
			lo = t
		}
		if i == 0 || t.After(hi) {
			hi = t
		}
	}
	return lo, hi
}

// CountNaN returns the number of NaN cells across all columns.
func (f *Frame) CountNaN() int {
	n := 0
	for _, values := range f.data {
		for _, v := range values {
			if math.IsNaN(v) {
				n++
			}
		}
	}
	return n
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
