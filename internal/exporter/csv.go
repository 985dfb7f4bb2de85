package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"pvinsight/internal/config"
	"pvinsight/internal/meteo"
	"pvinsight/internal/timeseries"
)

// utf8BOM lets spreadsheet tools detect UTF-8 (units carry ² and °).
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes tables for spreadsheet tools.
type CSVWriter struct {
	paths *config.Paths
}

// NewCSVWriter creates a CSV writer. Relative paths resolve against the
// outputs directory of paths; a nil paths leaves them untouched.
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool
}

// WriteCSV writes headers and records to filePath.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	slog.Debug("Writing CSV file",
		slog.String("full_path", fullPath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if options.BOMPrefix {
		if _, err := file.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteFrame writes a frame with a datetime column followed by one column per
// series, headed "name [unit]" when the unit is known. NaN cells are empty.
func (w *CSVWriter) WriteFrame(filePath string, f *timeseries.Frame, unitsByCol map[string]string) error {
	cols := f.Columns()
	headers := make([]string, 0, len(cols)+1)
	headers = append(headers, "datetime")
	for _, c := range cols {
		if u := unitsByCol[c]; u != "" {
			headers = append(headers, fmt.Sprintf("%s [%s]", c, u))
		} else {
			headers = append(headers, c)
		}
	}

	records := make([][]string, f.Len())
	for i, t := range f.Index {
		row := make([]string, 0, len(cols)+1)
		row = append(row, t.Format(logTimeLayout))
		for _, c := range cols {
			row = append(row, csvFloat(f.Column(c)[i]))
		}
		records[i] = row
	}

	return w.WriteCSV(filePath, WriteOptions{Headers: headers, Records: records, BOMPrefix: true})
}

// WriteMetrics writes comparison metrics, one row per variable.
func (w *CSVWriter) WriteMetrics(filePath string, metrics []meteo.Metric) error {
	headers := []string{"variable", "n", "mean_a", "mean_b", "bias_mean", "mae", "rmse", "mean_pct", "max_pct", "max_abs"}
	records := make([][]string, len(metrics))
	for i, m := range metrics {
		records[i] = []string{
			m.Variable,
			strconv.Itoa(m.N),
			csvFloat(float64(m.MeanA)),
			csvFloat(float64(m.MeanB)),
			csvFloat(float64(m.BiasMean)),
			csvFloat(float64(m.MAE)),
			csvFloat(float64(m.RMSE)),
			csvFloat(float64(m.MeanPct)),
			csvFloat(float64(m.MaxPct)),
			csvFloat(float64(m.MaxAbs)),
		}
	}
	return w.WriteCSV(filePath, WriteOptions{Headers: headers, Records: records, BOMPrefix: true})
}

func csvFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// resolvePath joins relative paths to the outputs directory.
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.paths == nil {
		return filePath
	}
	return filepath.Join(w.paths.OutputsDir, filePath)
}
