package exporter

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/format"
	"pvinsight/internal/meteo"
	"pvinsight/internal/production"
	"pvinsight/internal/readers"
	"pvinsight/internal/timeseries"
)

// AppTitle heads the hourly report.
const AppTitle = "PVInsight — PVSyst Analyzer"

// MsgMissingThresholdPDF is returned when the threshold analysis did not run.
const MsgMissingThresholdPDF = "Missing 'threshold' analysis — cannot generate PDF."

const (
	footerLayout    = "2006-01-02 15:04"
	generatedLayout = "2006-01-02 15:04:05"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Document is a rendered HTML report ready to print.
type Document struct {
	Title  string
	HTML   []byte
	Footer string
}

type monthRow struct {
	Month, Hours, Energy string
}

type classRow struct {
	Class, Hours, Share, Energy string
}

type hourlyView struct {
	Title        string
	Generated    string
	Summary      []KeyValue
	Monthly      []monthRow
	Shares       []KeyValue
	MonthlyChart template.HTML
	Distribution []classRow
}

// HourlyReport renders the hourly analysis report.
func HourlyReport(c *production.Context, generated time.Time) (Document, error) {
	thrRes := c.Results.Threshold
	if thrRes == nil || !thrRes.IsAvailable() || thrRes.Summary == nil {
		return Document{}, apperrors.NewExportError(MsgMissingThresholdPDF, nil)
	}
	thr := thrRes.Summary

	summary := []KeyValue{
		{"PVSyst version", c.GeneralInfo[readers.InfoPVSystVersion]},
		{"Input file", filepath.Base(c.InputFile)},
		{"Simulation date", c.GeneralInfo[readers.InfoSimulationDate]},
		{"Project", c.ProjectName()},
		{"Variant", c.GeneralInfo[readers.InfoVariantName]},
		{"Threshold column", thr.ThresholdColumn},
		{"Threshold value", num(thr.ThresholdValue, 2)},
		{"Night disconnection", strconv.FormatBool(thr.NightDisconnection)},
	}
	if gp := c.Results.GlobalProduction; gp != nil && gp.IsAvailable() && gp.Summary != nil {
		s := gp.Summary
		summary = append(summary,
			KeyValue{"Operating hours", num(s.OperatingHours, 0)},
			KeyValue{"Operating share (%)", fixed1(s.OperatingPct)},
			KeyValue{"Net production (kWh)", num(s.NetProductionKWh, 0)},
			KeyValue{"Production w/o import (kWh)", num(s.ProductionWithoutImportKWh, 0)},
			KeyValue{"Night consumption (kWh)", num(s.NightConsumptionKWh, 0)},
			KeyValue{"Import hours", num(s.ImportHours, 0)},
		)
	}
	summary = append(summary,
		KeyValue{"Hours above threshold", num(thr.HoursAbove, 0)},
		KeyValue{"Share above threshold (%)", fixed1(thr.PctAboveOperatingTime)},
		KeyValue{"Energy above threshold (kWh)", num(thr.EnergyAboveKWh, 0)},
		KeyValue{"Night import hours", num(thr.NightImportHours, 0)},
		KeyValue{"Night consumption (kWh)", num(thr.NightConsumptionKWh, 0)},
	)

	view := hourlyView{
		Title:     AppTitle,
		Generated: generated.Format(footerLayout),
		Summary:   summary,
	}

	chart := BarChart{Title: "Monthly distribution — hours above threshold", YLabel: "Hours"}
	for _, m := range thrRes.Monthly {
		view.Monthly = append(view.Monthly, monthRow{m.MonthName, num(m.HoursAbove, 0), num(m.EnergyAboveKWh, 0)})
		chart.Categories = append(chart.Categories, m.MonthName)
		chart.Values = append(chart.Values, float64(m.HoursAbove))
	}
	view.MonthlyChart = template.HTML(chart.SVG())

	for _, m := range thrRes.MonthlyPct {
		view.Shares = append(view.Shares, KeyValue{m.MonthName, share(m.PctAbove)})
	}

	if pd := c.Results.PowerDistribution; pd != nil && pd.HasData() {
		for _, cl := range pd.Classes {
			view.Distribution = append(view.Distribution, classRow{cl.Class, num(cl.Hours, 0), share(cl.PctTime), num(cl.EnergyKWh, 0)})
		}
	}

	return render("hourly", view.Title, view, view.Generated)
}

type statRow struct {
	Variable, Mean, Min, Max, Unit string
}

type tmyView struct {
	Title          string
	File           string
	Generated      string
	Rows           string
	Period         string
	Missing        string
	QualityWarning string
	Stats          []statRow
	Energy         []KeyValue
	Charts         []template.HTML
}

// TMYReport renders the single-file TMY report.
func TMYReport(a *meteo.Analysis, generated time.Time) (Document, error) {
	q := a.Quality
	view := tmyView{
		Title:          fmt.Sprintf("TMY Report (%s)", strings.ToUpper(a.Reader)),
		File:           a.SourceName,
		Generated:      generated.Format(generatedLayout),
		Rows:           format.Number(float64(q.Rows), 0),
		Period:         qualityPeriod(q),
		QualityWarning: q.Warning,
	}
	if q.NaN == 0 && q.NaT == 0 {
		view.Missing = "Missing values: none"
	} else {
		view.Missing = fmt.Sprintf("Missing values: %d NaN, %d NaT", q.NaN, q.NaT)
	}

	for _, s := range a.Stats {
		view.Stats = append(view.Stats, statRow{
			Variable: strings.ToUpper(s.Variable),
			Mean:     num(s.Mean, 2),
			Min:      num(s.Min, 2),
			Max:      num(s.Max, 2),
			Unit:     a.Units[s.Variable],
		})
	}
	for _, v := range []string{"ghi", "dni", "dhi"} {
		if e := a.Energy.Value(v); e != nil {
			view.Energy = append(view.Energy, KeyValue{strings.ToUpper(v), num(*e, 1) + " " + a.Energy.Unit})
		}
	}

	if a.Dataset != nil {
		f := a.Dataset.Frame
		if f.Has("ghi") {
			view.Charts = append(view.Charts, template.HTML(LineChart{
				Title:  "Global Horizontal Irradiance (GHI)",
				YLabel: fmt.Sprintf("GHI (%s)", a.Units["ghi"]),
				Series: []LineSeries{{Label: "GHI", Times: f.Index, Values: f.Column("ghi")}},
			}.SVG()))
		}
		if f.Has("temp") {
			view.Charts = append(view.Charts, template.HTML(LineChart{
				Title:  "Ambient Temperature",
				YLabel: fmt.Sprintf("Temp (%s)", a.Units["temp"]),
				Series: []LineSeries{{Label: "Temp", Times: f.Index, Values: f.Column("temp")}},
			}.SVG()))
		}
	}

	return render("tmy", view.Title, view, generated.Format(footerLayout))
}

func qualityPeriod(q timeseries.Quality) string {
	if q.Start == nil || q.End == nil {
		return format.Empty
	}
	return q.Start.Format(generatedLayout) + "  →  " + q.End.Format(generatedLayout)
}

type metricRow struct {
	Variable, N, MeanA, MeanB, Bias, MAE, RMSE, MeanPct, MaxPct string
}

type compareView struct {
	Title     string
	LabelA    string
	LabelB    string
	Readers   string
	Steps     string
	Alignment string
	Generated string
	Energy    []string
	Alert     bool
	Metrics   []metricRow
	Charts    []template.HTML
}

// CompareVariablesPlotted are overlaid in the comparison report.
var CompareVariablesPlotted = []string{"ghi", "dni", "temp"}

// CompareReport renders the two-file TMY comparison report.
func CompareReport(c *meteo.Comparison, generated time.Time) (Document, error) {
	view := compareView{
		Title:     "TMY Comparison Report",
		LabelA:    c.SourceA,
		LabelB:    c.SourceB,
		Readers:   strings.ToUpper(c.ReaderA) + " vs " + strings.ToUpper(c.ReaderB),
		Steps:     fmt.Sprintf("A=%d min, B=%d min → used %d min", c.NativeStepA, c.NativeStepB, c.UsedStep),
		Alignment: c.Alignment,
		Generated: generated.Format(generatedLayout),
		Alert:     c.Alert,
	}

	for _, v := range []string{"ghi", "dni", "dhi"} {
		ea, eb := c.EnergyA.Value(v), c.EnergyB.Value(v)
		if ea != nil && eb != nil {
			view.Energy = append(view.Energy, fmt.Sprintf("Annual %s (full): %s vs %s %s",
				strings.ToUpper(v), num(*ea, 1), num(*eb, 1), c.EnergyA.Unit))
		}
	}

	for _, m := range c.Metrics {
		view.Metrics = append(view.Metrics, metricRow{
			Variable: m.Variable,
			N:        strconv.Itoa(m.N),
			MeanA:    num(m.MeanA, 3),
			MeanB:    num(m.MeanB, 3),
			Bias:     num(m.BiasMean, 3),
			MAE:      num(m.MAE, 3),
			RMSE:     num(m.RMSE, 3),
			MeanPct:  share(m.MeanPct),
			MaxPct:   share(m.MaxPct),
		})
	}

	view.Charts = compareCharts(c)
	return render("compare", view.Title, view, generated.Format(footerLayout))
}

func compareCharts(c *meteo.Comparison) []template.HTML {
	if c.AlignedA == nil || c.AlignedB == nil {
		return nil
	}
	var out []template.HTML
	for _, v := range CompareVariablesPlotted {
		if !c.AlignedA.Has(v) || !c.AlignedB.Has(v) {
			continue
		}
		out = append(out, template.HTML(compareChart(c, v).SVG()))
	}
	return out
}

func compareChart(c *meteo.Comparison, v string) LineChart {
	var ua, ub string
	if c.A != nil {
		ua = c.A.Units[v]
	}
	if c.B != nil {
		ub = c.B.Units[v]
	}
	unit := ua
	if ua != ub {
		unit = strings.Trim(ua+" / "+ub, " /")
	}
	return LineChart{
		Title:  fmt.Sprintf("%s (%s)", strings.ToUpper(v), unit),
		YLabel: unit,
		Series: []LineSeries{
			{Label: "A", Times: c.AlignedA.Index, Values: c.AlignedA.Column(v)},
			{Label: "B", Times: c.AlignedB.Index, Values: c.AlignedB.Column(v)},
		},
	}
}

func render(name, title string, view any, footer string) (Document, error) {
	var buf bytes.Buffer
	if err := reportTemplates.ExecuteTemplate(&buf, name, view); err != nil {
		return Document{}, apperrors.NewExportError("failed to render "+name+" report", err)
	}
	return Document{Title: title, HTML: buf.Bytes(), Footer: footer}, nil
}
