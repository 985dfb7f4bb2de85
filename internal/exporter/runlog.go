package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"pvinsight/internal/production"
	"pvinsight/internal/readers"
	"pvinsight/internal/timeseries"
)

const (
	logTimeLayout   = "2006-01-02 15:04:05"
	missingLogValue = "-"
)

// KeyValue is one ordered entry of a run log section.
type KeyValue struct {
	Key   string
	Value string
}

// SortedPairs turns a map into KeyValues ordered by key.
func SortedPairs(m map[string]string) []KeyValue {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]KeyValue, len(keys))
	for i, k := range keys {
		out[i] = KeyValue{Key: k, Value: m[k]}
	}
	return out
}

// RunLog is the plain-text execution log of a TMY tool.
type RunLog struct {
	Tool            string
	Generated       time.Time
	Sources         []string
	TimeStepMinutes *int
	HeaderInfo      []KeyValue
	Units           []KeyValue
	Quality         *timeseries.Quality
	Warnings        []string
}

// Render returns the log text.
func (l RunLog) Render() string {
	line := strings.Repeat("=", 70)
	var lines []string
	lines = append(lines,
		line,
		l.Tool+" — PVInsight",
		"Generated: "+l.Generated.Format(logTimeLayout),
		line,
		"Sources:",
	)
	for _, s := range l.Sources {
		lines = append(lines, "  - "+s)
	}
	lines = append(lines, "")

	if l.TimeStepMinutes != nil {
		lines = append(lines, fmt.Sprintf("Time step (min): %d", *l.TimeStepMinutes), "")
	}

	if len(l.HeaderInfo) > 0 {
		lines = append(lines, "Header info:")
		for _, kv := range l.HeaderInfo {
			lines = append(lines, fmt.Sprintf("  %s: %s", kv.Key, kv.Value))
		}
		lines = append(lines, "")
	}

	if len(l.Units) > 0 {
		lines = append(lines, "Units by column:")
		for _, kv := range l.Units {
			lines = append(lines, fmt.Sprintf("  %s: %s", kv.Key, kv.Value))
		}
		lines = append(lines, "")
	}

	if q := l.Quality; q != nil {
		lines = append(lines,
			"Quality summary:",
			"  n_rows: "+strconv.Itoa(q.Rows),
			"  n_nan: "+strconv.Itoa(q.NaN),
			"  n_nat: "+strconv.Itoa(q.NaT),
			"  start: "+logTime(q.Start),
			"  end: "+logTime(q.End),
			"  expected_rows: "+logInt(q.ExpectedRows),
			"  warning: "+logString(q.Warning),
			"",
		)
	}

	if len(l.Warnings) > 0 {
		lines = append(lines, "Warnings:")
		for _, w := range l.Warnings {
			lines = append(lines, "  - "+w)
		}
	} else {
		lines = append(lines, "Warnings: none")
	}
	lines = append(lines, "")

	return strings.Join(lines, "\n")
}

// WriteFile writes the log, creating the parent directory.
func (l RunLog) WriteFile(path string) error {
	return writeText(path, l.Render())
}

func logTime(t *time.Time) string {
	if t == nil {
		return missingLogValue
	}
	return t.Format(logTimeLayout)
}

func logInt(v *int) string {
	if v == nil {
		return missingLogValue
	}
	return strconv.Itoa(*v)
}

func logString(s string) string {
	if s == "" {
		return missingLogValue
	}
	return s
}

// HourlyLog renders the key=value log of an hourly analysis run.
func HourlyLog(c *production.Context) string {
	start, end := missingLogValue, missingLogValue
	if lo, hi, ok := c.Period(); ok {
		start, end = lo.Format(logTimeLayout), hi.Format(logTimeLayout)
	}
	capacity := "None"
	if c.Options.GridCapacityKW != nil {
		capacity = strconv.FormatFloat(*c.Options.GridCapacityKW, 'g', -1, 64)
	}

	lines := []string{
		"file=" + filepath.Base(c.InputFile),
		"project=" + c.ProjectName(),
		"variant=" + c.GeneralInfo[readers.InfoVariantName],
		"pvsyst_version=" + c.GeneralInfo[readers.InfoPVSystVersion],
		"simulation_date=" + c.GeneralInfo[readers.InfoSimulationDate],
		"period_start=" + start,
		"period_end=" + end,
		"rows=" + strconv.Itoa(c.Frame.Len()),
		"threshold_column=" + c.Options.ThresholdColumn,
		"threshold_value=" + strconv.FormatFloat(c.Options.ThresholdValue, 'g', -1, 64),
		"night_disconnection=" + strconv.FormatBool(c.Options.NightDisconnection),
		"grid_capacity_kw=" + capacity,
		"available_analyses=" + strings.Join(c.Results.Available(), ","),
	}
	return strings.Join(lines, "\n")
}

func writeText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
