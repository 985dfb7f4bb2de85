package production

import (
	"time"

	"pvinsight/internal/timeseries"
)

func isPositive(v float64) bool { return v > 0 }
func isNegative(v float64) bool { return v < 0 }

// AnalyzeGlobalProduction computes operating time and energies of the
// threshold column over the whole period.
func AnalyzeGlobalProduction(c *Context) {
	f := c.Frame
	col := c.Options.ThresholdColumn

	if !f.Has(col) {
		c.Results.GlobalProduction = &GlobalProductionResult{Availability: unavailable(f, []string{col})}
		return
	}

	dt, step := timestep(f)
	unit := c.Unit(col)

	raw := f.Column(col)
	s := seriesForAnalysis(f, col, c.Options.NightDisconnection)

	operatingHours := float64(countIf(s, isPositive)) * dt
	totalHours := float64(f.Len()) * dt

	c.Results.GlobalProduction = &GlobalProductionResult{
		Availability: Availability{Available: true},
		Summary: &GlobalProductionSummary{
			Column:             col,
			Unit:               unit,
			Timestep:           step,
			NightDisconnection: c.Options.NightDisconnection,

			TotalHours:     timeseries.Float(totalHours),
			OperatingHours: timeseries.Float(operatingHours),
			OperatingPct:   timeseries.Float(pct(operatingHours, totalHours)),

			ProductionWithoutImportKWh: timeseries.Float(timeseries.IntegrateKWh(positive(raw), unit, dt)),
			NetProductionKWh:           timeseries.Float(timeseries.IntegrateKWh(raw, unit, dt)),

			ImportHours:         timeseries.Float(float64(countIf(raw, isNegative)) * dt),
			NightConsumptionKWh: timeseries.Float(timeseries.IntegrateKWh(negativePart(raw), unit, dt)),
		},
	}
}

// AnalyzeThreshold measures how often and how much production exceeds the
// threshold, with monthly and seasonal breakdowns.
func AnalyzeThreshold(c *Context) {
	f := c.Frame
	col := c.Options.ThresholdColumn
	thr := c.Options.ThresholdValue

	if !f.Has(col) {
		c.Results.Threshold = &ThresholdResult{Availability: unavailable(f, []string{col})}
		return
	}

	dt, step := timestep(f)
	unit := c.Unit(col)

	raw := f.Column(col)
	s := seriesForAnalysis(f, col, c.Options.NightDisconnection)

	above := func(v float64) bool { return v > thr }
	aboveRows := rowsWhere(s, above)
	prodRows := rowsWhere(s, isPositive)
	importRows := rowsWhere(raw, isNegative)

	hoursProd := float64(len(prodRows)) * dt
	hoursAbove := float64(len(aboveRows)) * dt
	aboveValues := timeseries.Pick(s, aboveRows)

	summary := &ThresholdSummary{
		ThresholdColumn:    col,
		ThresholdValue:     timeseries.Float(thr),
		Unit:               unit,
		Timestep:           step,
		NightDisconnection: c.Options.NightDisconnection,

		OperatingHours:        timeseries.Float(hoursProd),
		HoursAbove:            timeseries.Float(hoursAbove),
		PctAboveOperatingTime: timeseries.Float(pct(hoursAbove, hoursProd)),
		EnergyAboveKWh:        timeseries.Float(timeseries.IntegrateKWh(aboveValues, unit, dt)),

		NightImportHours:    timeseries.Float(float64(len(importRows)) * dt),
		NightConsumptionKWh: timeseries.Float(timeseries.IntegrateKWh(negativePart(raw), unit, dt)),
	}

	aboveIndex := pickTimes(f.Index, aboveRows)

	var monthly []MonthlyAbove
	for _, g := range timeseries.GroupByMonth(aboveIndex) {
		values := timeseries.Pick(aboveValues, g.Rows)
		monthly = append(monthly, MonthlyAbove{
			MonthName:      g.Name(),
			HoursAbove:     timeseries.Float(float64(len(g.Rows)) * dt),
			EnergyAboveKWh: timeseries.Float(timeseries.IntegrateKWh(values, unit, dt)),
		})
	}

	var seasonal []SeasonalAbove
	for _, g := range timeseries.GroupBySeason(aboveIndex) {
		values := timeseries.Pick(aboveValues, g.Rows)
		seasonal = append(seasonal, SeasonalAbove{
			Season:         g.Key,
			HoursAbove:     timeseries.Float(float64(len(g.Rows)) * dt),
			EnergyAboveKWh: timeseries.Float(timeseries.IntegrateKWh(values, unit, dt)),
		})
	}

	// share of operating steps above the threshold, per month
	var aboveByMonth, prodByMonth [13]int
	for _, t := range aboveIndex {
		aboveByMonth[t.Month()]++
	}
	for _, r := range prodRows {
		prodByMonth[f.Index[r].Month()]++
	}
	var monthlyPct []MonthlyShare
	for m := time.January; m <= time.December; m++ {
		if aboveByMonth[m] == 0 && prodByMonth[m] == 0 {
			continue
		}
		share := 0.0
		if prodByMonth[m] > 0 {
			share = float64(aboveByMonth[m]) / float64(prodByMonth[m]) * 100
		}
		monthlyPct = append(monthlyPct, MonthlyShare{MonthName: timeseries.MonthName(m), PctAbove: timeseries.Float(share)})
	}

	night := []MonthlyNightConsume{}
	importValues := timeseries.Pick(raw, importRows)
	for _, g := range timeseries.GroupByMonth(pickTimes(f.Index, importRows)) {
		values := negativePart(timeseries.Pick(importValues, g.Rows))
		night = append(night, MonthlyNightConsume{
			MonthName:           g.Name(),
			ImportHours:         timeseries.Float(float64(len(g.Rows)) * dt),
			NightConsumptionKWh: timeseries.Float(timeseries.IntegrateKWh(values, unit, dt)),
		})
	}

	c.Results.Threshold = &ThresholdResult{
		Availability:            Availability{Available: true},
		Summary:                 summary,
		Monthly:                 monthly,
		Seasonal:                seasonal,
		MonthlyPct:              monthlyPct,
		NightConsumptionMonthly: night,
	}
}

// AnalyzePowerDistribution classifies production steps by their ratio to the
// peak value.
func AnalyzePowerDistribution(c *Context) {
	f := c.Frame
	col := c.Options.ThresholdColumn

	if !f.Has(col) {
		c.Results.PowerDistribution = &PowerDistributionResult{Availability: unavailable(f, []string{col})}
		return
	}

	dt, step := timestep(f)
	unit := c.Unit(col)

	s := seriesForAnalysis(f, col, c.Options.NightDisconnection)
	prod := timeseries.Pick(s, rowsWhere(s, isPositive))
	empty := &PowerDistributionResult{Availability: Availability{Available: true, Empty: true}}
	if len(prod) == 0 {
		c.Results.PowerDistribution = empty
		return
	}
	vMax := timeseries.Max(prod)
	if !(vMax > 0) {
		c.Results.PowerDistribution = empty
		return
	}

	steps := make([]int, len(ratioLabels))
	sums := make([][]float64, len(ratioLabels))
	for _, v := range prod {
		if k := ratioClass(v / vMax); k >= 0 {
			steps[k]++
			sums[k] = append(sums[k], v)
		}
	}

	totalHours := 0.0
	for _, n := range steps {
		totalHours += float64(n) * dt
	}

	classes := make([]PowerClass, len(ratioLabels))
	for k, label := range ratioLabels {
		hours := float64(steps[k]) * dt
		classes[k] = PowerClass{
			Class:     label,
			Hours:     timeseries.Float(hours),
			PctTime:   timeseries.Float(pct(hours, totalHours)),
			EnergyKWh: timeseries.Float(timeseries.IntegrateKWh(sums[k], unit, dt)),
		}
	}

	c.Results.PowerDistribution = &PowerDistributionResult{
		Availability:       Availability{Available: true},
		Unit:               unit,
		Timestep:           step,
		MaxValue:           timeseries.Float(vMax),
		Classes:            classes,
		NightDisconnection: c.Options.NightDisconnection,
	}
}

// AnalyzeInverterClipping measures energy lost to the inverter Pmax limit
// (IL_Pmax) relative to the potential EOutInv + IL_Pmax.
func AnalyzeInverterClipping(c *Context) {
	f := c.Frame
	if miss := requireColumns(f, "EOutInv", "IL_Pmax"); miss != nil {
		c.Results.InverterClipping = &ClippingResult{Availability: *miss}
		return
	}

	out := f.Column("EOutInv")
	il := f.Column("IL_Pmax")

	var rows []int
	for i := range out {
		if out[i] > 0 || il[i] > 0 {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		c.Results.InverterClipping = &ClippingResult{Availability: Availability{Available: true, Empty: true}}
		return
	}

	potential := make([]float64, len(rows))
	clipped := make([]float64, len(rows))
	for j, r := range rows {
		potential[j] = out[r] + il[r]
		clipped[j] = il[r]
	}
	totalPotential := timeseries.Sum(potential)
	totalClipped := timeseries.Sum(clipped)

	var monthly []MonthlyClipping
	for _, g := range timeseries.GroupByMonth(pickTimes(f.Index, rows)) {
		ilSum := timeseries.Sum(timeseries.Pick(clipped, g.Rows))
		potSum := timeseries.Sum(timeseries.Pick(potential, g.Rows))
		monthly = append(monthly, MonthlyClipping{
			MonthName:   g.Name(),
			ILPmax:      timeseries.Float(ilSum),
			PctClipping: timeseries.Float(pct(ilSum, potSum)),
		})
	}

	c.Results.InverterClipping = &ClippingResult{
		Availability: Availability{Available: true},
		Summary: &ClippingSummary{
			EnergyClipped:  timeseries.Float(totalClipped),
			PctOfPotential: timeseries.Float(pct(totalClipped, totalPotential)),
			HoursClipping:  countIf(clipped, isPositive),
		},
		Monthly: monthly,
	}
}

func pickTimes(index []time.Time, rows []int) []time.Time {
	out := make([]time.Time, len(rows))
	for i, r := range rows {
		out[i] = index[r]
	}
	return out
}
