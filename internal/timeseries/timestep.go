package timeseries

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StepMeta describes how a timestep was inferred from an index.
type StepMeta struct {
	NDeltas        int     `json:"n_deltas"`
	MedianHours    float64 `json:"dt_median_hours"`
	ModeHours      float64 `json:"dt_mode_hours"`
	IrregularShare float64 `json:"irregular_share"`
}

// irregularCutoff is the share of deltas differing from the mode above which
// the median is used instead of the mode.
const irregularCutoff = 0.10

// InferTimestepHours returns the sampling step of index in hours.
func InferTimestepHours(index []time.Time) (float64, StepMeta) {
	if len(index) < 2 {
		return 1.0, StepMeta{MedianHours: 1.0, ModeHours: 1.0}
	}

	hours := make([]float64, 0, len(index)-1)
	for i := 1; i < len(index); i++ {
		hours = append(hours, index[i].Sub(index[i-1]).Hours())
	}

	median := Median(hours)

	counts := make(map[float64]int, 4)
	for _, h := range hours {
		counts[Round(h, 6)]++
	}
	mode, best := median, 0
	keys := make([]float64, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	for _, k := range keys {
		if counts[k] > best {
			mode, best = k, counts[k]
		}
	}
	irregular := 1.0 - float64(best)/float64(len(hours))

	if math.IsNaN(median) || median <= 0 {
		median = 1.0
	}
	if math.IsNaN(mode) || mode <= 0 {
		mode = median
	}

	dt := median
	if irregular < irregularCutoff {
		dt = mode
	}

	return dt, StepMeta{
		NDeltas:        len(hours),
		MedianHours:    median,
		ModeHours:      mode,
		IrregularShare: irregular,
	}
}

// IntegrateKWh converts a per-step series to energy in kWh according to its
// unit. NaN counts as zero. Irradiance series (W/m²) are not energy and yield
// NaN.
func IntegrateKWh(values []float64, unit string, dtHours float64) float64 {
	u := strings.TrimSpace(unit)
	s := Sum(values)

	switch {
	case strings.Contains(u, "kWh"):
		return s
	case strings.Contains(u, "Wh"):
		return s / 1000.0
	case strings.Contains(u, "kW"):
		return s * dtHours
	case strings.Contains(u, "W/m"):
		return math.NaN()
	case strings.Contains(u, "W"):
		return s * dtHours / 1000.0
	default:
		return s * dtHours
	}
}

// StepInfo is a timestep in minutes with where it came from.
// Minutes is 0 when unknown.
type StepInfo struct {
	Minutes int    `json:"minutes"`
	Source  string `json:"source"`
}

// Step sources.
const (
	StepFromHeader = "header"
	StepAuto       = "auto"
	StepUnknown    = "unknown"
)

// Known reports whether the step is usable.
func (s StepInfo) Known() bool { return s.Minutes > 0 }

// ParseTimeStepHeader reads the "Time Step" header entry: "h", "hour",
// "1h", "5min" or a bare number of minutes.
func ParseTimeStepHeader(info map[string]string) StepInfo {
	raw := strings.ToLower(strings.TrimSpace(info["Time Step"]))
	if raw == "" {
		return StepInfo{Source: StepUnknown}
	}

	switch raw {
	case "h", "hour", "1h":
		return StepInfo{Minutes: 60, Source: StepFromHeader}
	}

	if strings.HasSuffix(raw, "min") {
		raw = strings.TrimSpace(strings.TrimSuffix(raw, "min"))
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return StepInfo{Source: StepUnknown}
	}
	return StepInfo{Minutes: n, Source: StepFromHeader}
}

// DetectTimeStep uses the first delta of the index, rounded to minutes.
func DetectTimeStep(index []time.Time) StepInfo {
	if len(index) < 2 {
		return StepInfo{Source: StepUnknown}
	}
	delta := index[1].Sub(index[0]).Minutes()
	if delta <= 0 {
		return StepInfo{Source: StepUnknown}
	}
	return StepInfo{Minutes: int(math.Round(delta)), Source: StepAuto}
}
