package production

import "pvinsight/internal/timeseries"

// AnalyzeLoadFactor reports apparent (EApGrid), reactive (EReGrid) and, when
// E_Grid is present, active energy at the grid connection with the energy
// power factor cos φ = P/S.
func AnalyzeLoadFactor(c *Context) {
	f := c.Frame
	if miss := requireColumns(f, "EApGrid", "EReGrid"); miss != nil {
		c.Results.LoadFactor = &LoadFactorResult{Availability: *miss}
		return
	}

	dt, step := timestep(f)
	totalHours := float64(f.Len()) * dt
	uS, uQ, uP := c.Unit("EApGrid"), c.Unit("EReGrid"), c.Unit("E_Grid")

	ap := fillNaN(f.Column("EApGrid"))
	re := fillNaN(f.Column("EReGrid"))
	hasP := f.Has("E_Grid")
	var p []float64
	if hasP {
		p = positive(fillNaN(f.Column("E_Grid")))
	}

	sKWh := timeseries.IntegrateKWh(ap, uS, dt)
	qKWh := timeseries.IntegrateKWh(re, uQ, dt)

	summary := &LoadFactorSummary{
		Timestep:   step,
		TotalHours: timeseries.Float(totalHours),
		SKWh:       timeseries.Float(sKWh),
		QKWh:       timeseries.Float(qKWh),
	}

	var pKWh float64
	if hasP {
		pKWh = timeseries.IntegrateKWh(p, uP, dt)
		summary.PKWh = timeseries.FloatPtr(pKWh)
		if sKWh > 0 {
			summary.CosPhi = timeseries.FloatPtr(pKWh / sKWh)
		}
	}
	if sKWh > 0 {
		summary.QShare = timeseries.FloatPtr(qKWh / sKWh)
	}

	groups := timeseries.GroupByMonth(f.Index)
	monthly := make([]MonthlyPowerFactor, len(groups))
	monthlyP := make([]float64, len(groups))
	for i, g := range groups {
		mS := timeseries.IntegrateKWh(positive(timeseries.Pick(ap, g.Rows)), uS, dt)
		mQ := timeseries.IntegrateKWh(timeseries.Pick(re, g.Rows), uQ, dt)
		row := MonthlyPowerFactor{
			MonthName: g.Name(),
			SKWh:      timeseries.Float(mS),
			QKWh:      timeseries.Float(mQ),
		}
		if mS > 0 {
			row.QShare = timeseries.Float(mQ / mS)
		}
		if hasP {
			mP := timeseries.IntegrateKWh(timeseries.Pick(p, g.Rows), uP, dt)
			monthlyP[i] = mP
			row.PKWh = timeseries.FloatPtr(mP)
			cos := 0.0
			if mS > 0 {
				cos = mP / mS
			}
			row.CosPhi = timeseries.FloatPtr(cos)
		}
		monthly[i] = row
	}

	// saturation of apparent energy relative to its peak
	apPos := positive(ap)
	sMax := 0.0
	if len(apPos) > 0 {
		sMax = timeseries.Max(apPos)
	}
	summary.SMax = timeseries.Float(sMax)

	saturation := []SaturationClass{}
	if sMax > 0 {
		steps := make([]int, len(ratioLabels))
		for _, v := range apPos {
			if k := ratioClass(v / sMax); k >= 0 {
				steps[k]++
			}
		}
		total := 0.0
		for _, n := range steps {
			total += float64(n) * dt
		}
		for k, label := range ratioLabels {
			hours := float64(steps[k]) * dt
			saturation = append(saturation, SaturationClass{
				Class:   label,
				Steps:   steps[k],
				Hours:   timeseries.Float(hours),
				PctTime: timeseries.Float(pct(hours, total)),
			})
		}
	}

	var monthlyLF []MonthlyLoadFactor
	if capKW, ok := capacityKW(c.Options); ok {
		summary.GridCapacityKW = &capKW
		if totalHours > 0 && hasP {
			summary.AnnualLoadFactor = timeseries.FloatPtr(pKWh / (capKW * totalHours))
			monthlyLF = monthlyLoadFactors(groups, monthlyP, capKW, dt)
		}
	}

	c.Results.LoadFactor = &LoadFactorResult{
		Availability:      Availability{Available: true},
		Summary:           summary,
		Monthly:           monthly,
		Saturation:        saturation,
		MonthlyLoadFactor: monthlyLF,
	}
}
