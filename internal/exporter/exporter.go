package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"pvinsight/internal/config"
	"pvinsight/internal/meteo"
	"pvinsight/internal/production"
	"pvinsight/internal/timeseries"
)

// Output kinds.
const (
	KindExcel  = "excel"
	KindPDF    = "pdf"
	KindLog    = "log"
	KindJSON   = "json"
	KindCSV    = "csv"
	KindFigure = "figure"
)

// OutputFile is one artefact written by a run.
type OutputFile struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Outputs lists the artefacts of a run and the non-fatal export problems.
type Outputs struct {
	Files    []OutputFile `json:"files"`
	Warnings []string     `json:"warnings,omitempty"`
}

func (o *Outputs) add(kind, path string) {
	o.Files = append(o.Files, OutputFile{Kind: kind, Name: filepath.Base(path), Path: path})
}

// Path returns the first output of a kind.
func (o Outputs) Path(kind string) (string, bool) {
	for _, f := range o.Files {
		if f.Kind == kind {
			return f.Path, true
		}
	}
	return "", false
}

// Options control which artefacts are written.
type Options struct {
	TimestampOutputs bool
	SkipHourlyData   bool
}

// Exporter writes the artefacts of each tool into its run directories.
type Exporter struct {
	renderer Renderer
	opts     Options
	csv      *CSVWriter
	logger   *slog.Logger
}

// New creates an Exporter. A nil renderer skips PDF reports.
func New(renderer Renderer, opts Options, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		renderer: renderer,
		opts:     opts,
		csv:      NewCSVWriter(nil),
		logger:   logger.With(slog.String("component", "exporter")),
	}
}

// pdf prints doc unless PDF output is disabled. Printing failures are kept as
// warnings so the other artefacts of the run survive.
func (e *Exporter) pdf(ctx context.Context, out *Outputs, doc Document, path string) {
	if e.renderer == nil {
		out.Warnings = append(out.Warnings, "[pdf] PDF rendering disabled; report skipped.")
		return
	}
	if err := ExportPDF(ctx, e.renderer, doc, path); err != nil {
		e.logger.WarnContext(ctx, "PDF export failed", slog.String("path", path), slog.String("error", err.Error()))
		out.Warnings = append(out.Warnings, fmt.Sprintf("[pdf] %s", err.Error()))
		return
	}
	out.add(KindPDF, path)
}

// ExportHourly writes the workbook, PDF report, key=value log and JSON
// results of an hourly analysis.
func (e *Exporter) ExportHourly(ctx context.Context, c *production.Context, dirs config.RunPaths) (Outputs, error) {
	namer := NewNamer(e.opts.TimestampOutputs)
	var out Outputs

	xlsx := filepath.Join(dirs.ReportsDir, namer.Hourly(".xlsx"))
	if err := ExportExcel(c, xlsx, ExcelOptions{SkipHourlyData: e.opts.SkipHourlyData}); err != nil {
		return out, err
	}
	out.add(KindExcel, xlsx)

	doc, err := HourlyReport(c, namer.Time())
	if err != nil {
		return out, err
	}
	e.pdf(ctx, &out, doc, filepath.Join(dirs.ReportsDir, namer.Hourly(".pdf")))

	chart := BarChart{Title: "Monthly — Hours above threshold", YLabel: "Hours"}
	for _, m := range c.Results.Threshold.Monthly {
		chart.Categories = append(chart.Categories, m.MonthName)
		chart.Values = append(chart.Values, float64(m.HoursAbove))
	}
	if err := e.figure(&out, dirs, Figure(namer.Hourly(""), "hours_above_threshold"), chart.SVG()); err != nil {
		return out, err
	}

	logPath := filepath.Join(dirs.LogsDir, namer.Hourly(".txt"))
	if err := writeText(logPath, HourlyLog(c)); err != nil {
		return out, err
	}
	out.add(KindLog, logPath)

	jsonPath := filepath.Join(dirs.ReportsDir, namer.Hourly(".json"))
	if err := WriteJSON(jsonPath, HourlyDocument(c)); err != nil {
		return out, err
	}
	out.add(KindJSON, jsonPath)

	e.logger.InfoContext(ctx, "Hourly outputs written", slog.Int("files", len(out.Files)))
	return out, nil
}

// HourlyJSON is the JSON document of an hourly analysis.
type HourlyJSON struct {
	File        string             `json:"file"`
	GeneralInfo map[string]string  `json:"general_info"`
	Units       map[string]string  `json:"units"`
	Rows        int                `json:"rows"`
	Options     production.Options `json:"options"`
	Available   []string           `json:"available_analyses"`
	Results     production.Results `json:"results"`
}

// HourlyDocument builds the JSON document of an hourly analysis.
func HourlyDocument(c *production.Context) HourlyJSON {
	return HourlyJSON{
		File:        filepath.Base(c.InputFile),
		GeneralInfo: c.GeneralInfo,
		Units:       c.Units,
		Rows:        c.Frame.Len(),
		Options:     c.Options,
		Available:   c.Results.Available(),
		Results:     c.Results,
	}
}

// ExportTMY writes the PDF report, run log, JSON summary and figures of a
// TMY analysis.
func (e *Exporter) ExportTMY(ctx context.Context, a *meteo.Analysis, dirs config.RunPaths) (Outputs, error) {
	namer := NewNamer(e.opts.TimestampOutputs)
	var out Outputs

	doc, err := TMYReport(a, namer.Time())
	if err != nil {
		return out, err
	}
	e.pdf(ctx, &out, doc, filepath.Join(dirs.ReportsDir, namer.TMYReport(a.SourceName)))

	if a.Dataset != nil {
		f := a.Dataset.Frame
		for _, v := range []string{"ghi", "temp"} {
			if !f.Has(v) {
				continue
			}
			chart := LineChart{
				Title:  strings.ToUpper(v),
				YLabel: fmt.Sprintf("%s (%s)", strings.ToUpper(v), a.Units[v]),
				Series: []LineSeries{{Label: v, Times: f.Index, Values: f.Column(v)}},
			}
			if err := e.figure(&out, dirs, Figure(Stem(a.SourceName), v), chart.SVG()); err != nil {
				return out, err
			}
		}
	}

	step := a.TimeStepMinutes
	logPath := filepath.Join(dirs.LogsDir, namer.TMYLog(a.SourceName))
	runLog := RunLog{
		Tool:            ToolTMY,
		Generated:       namer.Time(),
		Sources:         []string{a.SourceName},
		TimeStepMinutes: &step,
		HeaderInfo:      SortedPairs(a.HeaderInfo),
		Units:           SortedPairs(a.Units),
		Quality:         &a.Quality,
		Warnings:        a.Warnings,
	}
	if err := runLog.WriteFile(logPath); err != nil {
		return out, err
	}
	out.add(KindLog, logPath)

	jsonPath := filepath.Join(dirs.ReportsDir, namer.TMYFile(a.SourceName, "Analysis", ".json"))
	if err := WriteJSON(jsonPath, a); err != nil {
		return out, err
	}
	out.add(KindJSON, jsonPath)

	e.logger.InfoContext(ctx, "TMY outputs written", slog.Int("files", len(out.Files)))
	return out, nil
}

// ExportCompare writes the PDF report, run log, JSON summary, metrics and
// aligned series CSV and overlay figures of a TMY comparison.
func (e *Exporter) ExportCompare(ctx context.Context, c *meteo.Comparison, dirs config.RunPaths) (Outputs, error) {
	namer := NewNamer(e.opts.TimestampOutputs)
	var out Outputs

	doc, err := CompareReport(c, namer.Time())
	if err != nil {
		return out, err
	}
	e.pdf(ctx, &out, doc, filepath.Join(dirs.ReportsDir, namer.CompareReport(c.SourceA, c.SourceB)))

	if c.AlignedA != nil && c.AlignedB != nil {
		for _, v := range CompareVariablesPlotted {
			if !c.AlignedA.Has(v) || !c.AlignedB.Has(v) {
				continue
			}
			name := Figure(Stem(c.SourceA)+"_vs_"+Stem(c.SourceB), v)
			if err := e.figure(&out, dirs, name, compareChart(c, v).SVG()); err != nil {
				return out, err
			}
		}
	}

	metricsPath := filepath.Join(dirs.ReportsDir, namer.CompareFile(c.SourceA, c.SourceB, "Metrics", ".csv"))
	if err := e.csv.WriteMetrics(metricsPath, c.Metrics); err != nil {
		return out, err
	}
	out.add(KindCSV, metricsPath)

	if c.AlignedA != nil && c.AlignedB != nil {
		alignedPath := filepath.Join(dirs.ReportsDir, namer.CompareFile(c.SourceA, c.SourceB, "Aligned", ".csv"))
		if err := e.csv.WriteFrame(alignedPath, AlignedFrame(c), nil); err != nil {
			return out, err
		}
		out.add(KindCSV, alignedPath)
	}

	logPath := filepath.Join(dirs.LogsDir, namer.CompareLog(c.SourceA, c.SourceB))
	if err := CompareRunLog(c, namer.Time()).WriteFile(logPath); err != nil {
		return out, err
	}
	out.add(KindLog, logPath)

	jsonPath := filepath.Join(dirs.ReportsDir, namer.CompareFile(c.SourceA, c.SourceB, "Summary", ".json"))
	if err := WriteJSON(jsonPath, c); err != nil {
		return out, err
	}
	out.add(KindJSON, jsonPath)

	e.logger.InfoContext(ctx, "TMY comparison outputs written",
		slog.Int("files", len(out.Files)),
		slog.Bool("alert", c.Alert))
	return out, nil
}

// CompareRunLog builds the run log of a comparison.
func CompareRunLog(c *meteo.Comparison, generated time.Time) RunLog {
	step := c.UsedStep
	var stepA, stepB int
	if c.A != nil {
		stepA = c.A.TimeStepMinutes
	}
	if c.B != nil {
		stepB = c.B.TimeStepMinutes
	}
	header := []KeyValue{
		{"reader_a", c.ReaderA},
		{"reader_b", c.ReaderB},
		{"file_a", c.SourceA},
		{"file_b", c.SourceB},
		{"step_a_min", fmt.Sprint(stepA)},
		{"step_b_min", fmt.Sprint(stepB)},
		{"used_step_min", fmt.Sprint(c.UsedStep)},
		{"alignment", c.Alignment},
		{"common_start", c.CommonStart.Format(logTimeLayout)},
		{"common_end", c.CommonEnd.Format(logTimeLayout)},
	}
	var unitsA, unitsB map[string]string
	if c.A != nil {
		unitsA = c.A.Units
	}
	if c.B != nil {
		unitsB = c.B.Units
	}
	return RunLog{
		Tool:            ToolTMYCompare,
		Generated:       generated,
		Sources:         []string{c.SourceA, c.SourceB},
		TimeStepMinutes: &step,
		HeaderInfo:      header,
		Units: []KeyValue{
			{"A", inlinePairs(unitsA)},
			{"B", inlinePairs(unitsB)},
		},
		Warnings: c.Warnings,
	}
}

func inlinePairs(m map[string]string) string {
	pairs := SortedPairs(m)
	parts := make([]string, len(pairs))
	for i, kv := range pairs {
		parts[i] = kv.Key + "=" + kv.Value
	}
	return strings.Join(parts, ", ")
}

func (e *Exporter) figure(out *Outputs, dirs config.RunPaths, name, svg string) error {
	path := filepath.Join(dirs.FiguresDir, name)
	if err := writeText(path, svg); err != nil {
		return err
	}
	out.add(KindFigure, path)
	return nil
}

// AlignedFrame merges the aligned series of a comparison into one frame with
// {variable}_a and {variable}_b columns.
func AlignedFrame(c *meteo.Comparison) *timeseries.Frame {
	out := timeseries.NewFrame(append([]time.Time(nil), c.AlignedA.Index...))
	for _, v := range c.AlignedA.Columns() {
		if !c.AlignedB.Has(v) {
			continue
		}
		out.MustSet(v+"_a", append([]float64(nil), c.AlignedA.Column(v)...))
		out.MustSet(v+"_b", append([]float64(nil), c.AlignedB.Column(v)...))
	}
	return out
}
