package production

import (
	"math"
	"strings"

	"pvinsight/internal/columns"
	"pvinsight/internal/timeseries"
)

// Ratio classes shared by the power distribution and saturation studies.
// Bins are right-closed: (0, .5], (.5, .7], (.7, .9], (.9, 1.01].
var (
	ratioBins   = []float64{0, 0.5, 0.7, 0.9, 1.01}
	ratioLabels = []string{"< 50 %", "50–70 %", "70–90 %", "> 90 %"}
)

// RatioLabels returns the class labels in display order.
func RatioLabels() []string {
	return append([]string(nil), ratioLabels...)
}

// ratioClass returns the class index of ratio, or -1 outside the bins.
func ratioClass(ratio float64) int {
	if math.IsNaN(ratio) {
		return -1
	}
	for i := 1; i < len(ratioBins); i++ {
		if ratio > ratioBins[i-1] && ratio <= ratioBins[i] {
			return i - 1
		}
	}
	return -1
}

func trimUnit(u string) string { return strings.TrimSpace(u) }

// unavailable reports missing columns with suggestions from the frame.
func unavailable(f *timeseries.Frame, missing []string) Availability {
	return Availability{
		Available:      false,
		MissingColumns: missing,
		Suggestions:    columns.SuggestSimilar(f.Columns(), missing, columns.DefaultCutoff),
	}
}

// requireColumns returns nil when every column is present.
func requireColumns(f *timeseries.Frame, required ...string) *Availability {
	ok, missing := columns.CheckRequired(f.Columns(), required)
	if ok {
		return nil
	}
	a := unavailable(f, missing)
	return &a
}

// seriesForAnalysis returns the threshold column, clamped at 0 when night
// disconnection is enabled.
func seriesForAnalysis(f *timeseries.Frame, col string, nightDisconnection bool) []float64 {
	s := f.Column(col)
	if nightDisconnection {
		return timeseries.Clip(s, 0)
	}
	return append([]float64(nil), s...)
}

// timestep infers dt from the frame index.
func timestep(f *timeseries.Frame) (float64, Timestep) {
	dt, meta := timeseries.InferTimestepHours(f.Index)
	return dt, Timestep{DTHours: timeseries.Float(dt), DTMeta: meta}
}

// fillNaN returns a copy of values with NaN replaced by 0.
func fillNaN(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			out[i] = v
		}
	}
	return out
}

// positive returns max(v, 0) for each value, NaN as 0.
func positive(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v > 0 {
			out[i] = v
		}
	}
	return out
}

// negativePart returns max(-v, 0) for each value, NaN as 0.
func negativePart(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v < 0 {
			out[i] = -v
		}
	}
	return out
}

// countIf counts values for which pred holds. NaN never matches a
// comparison.
func countIf(values []float64, pred func(float64) bool) int {
	n := 0
	for _, v := range values {
		if pred(v) {
			n++
		}
	}
	return n
}

// rowsWhere returns the row positions matching pred.
func rowsWhere(values []float64, pred func(float64) bool) []int {
	var rows []int
	for i, v := range values {
		if pred(v) {
			rows = append(rows, i)
		}
	}
	return rows
}

func pct(part, whole float64) float64 {
	if whole > 0 {
		return 100.0 * part / whole
	}
	return 0
}

func capacityKW(o Options) (float64, bool) {
	if o.GridCapacityKW == nil || *o.GridCapacityKW <= 0 || math.IsNaN(*o.GridCapacityKW) {
		return 0, false
	}
	return *o.GridCapacityKW, true
}
