package exporter

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	apperrors "pvinsight/internal/errors"
	"pvinsight/internal/production"
	"pvinsight/internal/readers"
)

// Workbook sheet names.
const (
	SheetSummary           = "Summary"
	SheetThresholdMonthly  = "Threshold — Monthly"
	SheetThresholdSeasonal = "Threshold — Seasonal"
	SheetThresholdShare    = "Threshold — Monthly share"
	SheetNightMonthly      = "Night consumption — Monthly"
	SheetPowerDistribution = "Power distribution"
	SheetClippingMonthly   = "Clipping — Monthly"
	SheetGridLimitMonthly  = "Grid limit — Monthly"
	SheetLoadFactorMonthly = "Load factor — Monthly"
	SheetHourlyData        = "Hourly data"
	SheetUnits             = "Units"

	maxSheetNameLen = 31
	defaultSheet    = "Sheet1"
)

// MsgMissingThresholdExcel is returned when the threshold analysis did not run.
const MsgMissingThresholdExcel = "Missing 'threshold' analysis — cannot export Excel."

// SheetName truncates a sheet name to the 31 characters spreadsheets accept.
func SheetName(name string) string {
	r := []rune(name)
	if len(r) > maxSheetNameLen {
		r = r[:maxSheetNameLen]
	}
	return string(r)
}

// ExcelOptions control optional workbook content.
type ExcelOptions struct {
	// SkipHourlyData leaves out the raw hourly table.
	SkipHourlyData bool
}

// BuildWorkbook lays out the hourly analysis workbook.
func BuildWorkbook(c *production.Context, opts ExcelOptions) (*excelize.File, error) {
	thr := c.Results.Threshold
	if thr == nil || !thr.IsAvailable() || thr.Summary == nil {
		return nil, apperrors.NewExportError(MsgMissingThresholdExcel, nil)
	}

	wb := &workbook{f: excelize.NewFile()}
	if err := wb.f.SetSheetName(defaultSheet, SheetSummary); err != nil {
		wb.f.Close()
		return nil, err
	}

	wb.summary(c)
	wb.threshold(thr)
	if pd := c.Results.PowerDistribution; pd != nil && pd.HasData() {
		wb.powerDistribution(pd)
	}
	if cl := c.Results.InverterClipping; cl != nil && cl.IsAvailable() && len(cl.Monthly) > 0 {
		wb.clipping(cl)
	}
	if gl := c.Results.GridLimit; gl != nil && gl.IsAvailable() && len(gl.Monthly) > 0 {
		wb.gridLimit(gl)
	}
	if lf := c.Results.LoadFactor; lf != nil && lf.IsAvailable() && len(lf.Monthly) > 0 {
		wb.loadFactor(lf)
	}
	if !opts.SkipHourlyData {
		wb.hourlyData(c)
	}
	wb.units(c)

	if wb.err != nil {
		wb.f.Close()
		return nil, apperrors.NewExportError("failed to build Excel workbook", wb.err)
	}
	return wb.f, nil
}

// ExportExcel writes the hourly analysis workbook to path.
func ExportExcel(c *production.Context, path string, opts ExcelOptions) error {
	f, err := BuildWorkbook(c, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return apperrors.NewExportError(fmt.Sprintf("failed to save %s", filepath.Base(path)), err)
	}
	return nil
}

// workbook accumulates the first error so sheet writers stay linear.
type workbook struct {
	f   *excelize.File
	err error
}

func (w *workbook) table(sheet string, headers []string, rows [][]any) {
	if w.err != nil {
		return
	}
	sheet = SheetName(sheet)
	if sheet != SheetSummary {
		if _, err := w.f.NewSheet(sheet); err != nil {
			w.err = err
			return
		}
	}

	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := w.f.SetSheetRow(sheet, "A1", &header); err != nil {
		w.err = err
		return
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			w.err = err
			return
		}
		r := row
		if err := w.f.SetSheetRow(sheet, cell, &r); err != nil {
			w.err = err
			return
		}
	}
}

// columnChart adds a column chart at E2 over the first two columns of sheet.
func (w *workbook) columnChart(sheet string, n int, title, xLabel, yLabel string) {
	if w.err != nil || n == 0 {
		return
	}
	sheet = SheetName(sheet)
	ref := func(col string) string {
		return fmt.Sprintf("'%s'!$%s$2:$%s$%d", sheet, col, col, n+1)
	}
	w.err = w.f.AddChart(sheet, "E2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       "Hours above threshold",
			Categories: ref("A"),
			Values:     ref("B"),
		}},
		Title:  []excelize.RichTextRun{{Text: title}},
		XAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: xLabel}}},
		YAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: yLabel}}},
		Legend: excelize.ChartLegend{Position: "none"},
	})
}

func (w *workbook) summary(c *production.Context) {
	thr := c.Results.Threshold.Summary
	rows := [][]any{
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
		rows = append(rows,
			[]any{"Operating hours", num(s.OperatingHours, 0)},
			[]any{"Operating share (%)", fixed1(s.OperatingPct)},
			[]any{"Net production (kWh)", num(s.NetProductionKWh, 0)},
			[]any{"Production without import (kWh)", num(s.ProductionWithoutImportKWh, 0)},
			[]any{"Night consumption (kWh)", num(s.NightConsumptionKWh, 0)},
			[]any{"Import hours", num(s.ImportHours, 0)},
		)
	} else {
		for _, k := range []string{"Operating hours", "Operating share (%)", "Net production (kWh)",
			"Production without import (kWh)", "Night consumption (kWh)", "Import hours"} {
			rows = append(rows, []any{k, ""})
		}
	}

	rows = append(rows,
		[]any{"Hours above threshold", num(thr.HoursAbove, 0)},
		[]any{"Share of operating time above threshold (%)", fixed1(thr.PctAboveOperatingTime)},
		[]any{"Energy above threshold (kWh)", num(thr.EnergyAboveKWh, 0)},
	)

	if cl := c.Results.InverterClipping; cl != nil && cl.IsAvailable() && cl.Summary != nil {
		rows = append(rows,
			[]any{"Energy clipped (kWh)", num(cl.Summary.EnergyClipped, 0)},
			[]any{"Clipping share of potential (%)", fixed1(cl.Summary.PctOfPotential)},
			[]any{"Clipping hours", strconv.Itoa(cl.Summary.HoursClipping)},
		)
	}
	if gl := c.Results.GridLimit; gl != nil && gl.IsAvailable() && gl.Summary != nil {
		rows = append(rows,
			[]any{"Grid limitation losses (kWh)", num(gl.Summary.LostKWh, 0)},
			[]any{"Grid limitation share (%)", fixed1(gl.Summary.LostPct)},
			[]any{"Annual load factor", optNum(gl.Summary.AnnualLoadFactor, 3)},
		)
	}

	w.table(SheetSummary, []string{"Key", "Value"}, rows)
}

func (w *workbook) threshold(res *production.ThresholdResult) {
	if len(res.Monthly) > 0 {
		rows := make([][]any, len(res.Monthly))
		for i, m := range res.Monthly {
			rows[i] = []any{m.MonthName, cellFloat(m.HoursAbove), cellFloat(m.EnergyAboveKWh)}
		}
		w.table(SheetThresholdMonthly, []string{"month_name", "hours_above", "energy_above_kwh"}, rows)
		w.columnChart(SheetThresholdMonthly, len(rows), "Monthly — Hours above threshold", "Month", "Hours")
	}

	if len(res.Seasonal) > 0 {
		rows := make([][]any, len(res.Seasonal))
		for i, s := range res.Seasonal {
			rows[i] = []any{s.Season, cellFloat(s.HoursAbove), cellFloat(s.EnergyAboveKWh)}
		}
		w.table(SheetThresholdSeasonal, []string{"season", "hours_above", "energy_above_kwh"}, rows)
		w.columnChart(SheetThresholdSeasonal, len(rows), "Seasonal — Hours above threshold", "Season", "Hours")
	}

	if len(res.MonthlyPct) > 0 {
		rows := make([][]any, len(res.MonthlyPct))
		for i, m := range res.MonthlyPct {
			rows[i] = []any{m.MonthName, share(m.PctAbove)}
		}
		w.table(SheetThresholdShare, []string{"month_name", "Share above threshold"}, rows)
	}

	if len(res.NightConsumptionMonthly) > 0 {
		rows := make([][]any, len(res.NightConsumptionMonthly))
		for i, m := range res.NightConsumptionMonthly {
			rows[i] = []any{m.MonthName, cellFloat(m.ImportHours), cellFloat(m.NightConsumptionKWh)}
		}
		w.table(SheetNightMonthly, []string{"month_name", "import_hours", "night_consumption_kwh"}, rows)
	}
}

func (w *workbook) powerDistribution(res *production.PowerDistributionResult) {
	rows := make([][]any, len(res.Classes))
	for i, c := range res.Classes {
		rows[i] = []any{c.Class, num(c.Hours, 0), share(c.PctTime), num(c.EnergyKWh, 0)}
	}
	w.table(SheetPowerDistribution, []string{"Class", "Hours", "Share of time", "Energy (kWh)"}, rows)
}

func (w *workbook) clipping(res *production.ClippingResult) {
	rows := make([][]any, len(res.Monthly))
	for i, m := range res.Monthly {
		rows[i] = []any{m.MonthName, cellFloat(m.ILPmax), cellFloat(m.PctClipping)}
	}
	w.table(SheetClippingMonthly, []string{"month_name", "IL_Pmax", "pct_clipping"}, rows)
}

func (w *workbook) gridLimit(res *production.GridLimitResult) {
	rows := make([][]any, len(res.Monthly))
	for i, m := range res.Monthly {
		rows[i] = []any{m.MonthName, cellFloat(m.LostKWh), cellFloat(m.LostPct), cellFloat(m.HoursLimited), cellFloat(m.InjectedKWh)}
	}
	w.table(SheetGridLimitMonthly, []string{"month_name", "lost_kwh", "lost_pct", "hours_limited", "injected_kwh"}, rows)
}

func (w *workbook) loadFactor(res *production.LoadFactorResult) {
	lf := make(map[string]production.MonthlyLoadFactor, len(res.MonthlyLoadFactor))
	for _, m := range res.MonthlyLoadFactor {
		lf[m.MonthName] = m
	}

	rows := make([][]any, len(res.Monthly))
	for i, m := range res.Monthly {
		var factor any
		if v, ok := lf[m.MonthName]; ok {
			factor = cellFloat(v.LoadFactor)
		}
		rows[i] = []any{m.MonthName, cellFloat(m.SKWh), cellFloat(m.QKWh), cellOpt(m.PKWh), cellOpt(m.CosPhi), cellFloat(m.QShare), factor}
	}
	w.table(SheetLoadFactorMonthly, []string{"month_name", "S_kWh_equiv", "Q_kWh_equiv", "P_kWh", "cosphi", "q_share", "load_factor"}, rows)
}

func (w *workbook) hourlyData(c *production.Context) {
	cols := c.Frame.Columns()
	headers := append([]string{"date"}, cols...)
	rows := make([][]any, c.Frame.Len())
	for i, t := range c.Frame.Index {
		row := make([]any, 0, len(cols)+1)
		row = append(row, t)
		for _, col := range cols {
			row = append(row, cellValue(c.Frame.Column(col)[i]))
		}
		rows[i] = row
	}
	w.table(SheetHourlyData, headers, rows)
}

func (w *workbook) units(c *production.Context) {
	pairs := SortedPairs(c.Units)
	rows := make([][]any, len(pairs))
	for i, kv := range pairs {
		rows[i] = []any{kv.Key, kv.Value}
	}
	w.table(SheetUnits, []string{"Parameter", "Unit"}, rows)
}
