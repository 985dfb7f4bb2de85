package production

import "pvinsight/internal/timeseries"

// AnalyzeGridLimit quantifies energy lost to the grid injection limit
// (EGrdLim) against the injected energy (E_Grid). With a grid capacity it
// also reports annual and monthly load factors.
func AnalyzeGridLimit(c *Context) {
	f := c.Frame
	if miss := requireColumns(f, "EGrdLim", "E_Grid"); miss != nil {
		c.Results.GridLimit = &GridLimitResult{Availability: *miss}
		return
	}

	dt, step := timestep(f)
	uLim := c.Unit("EGrdLim")
	uGrid := c.Unit("E_Grid")

	lim := fillNaN(f.Column("EGrdLim"))
	grid := fillNaN(f.Column("E_Grid"))

	lostKWh := timeseries.IntegrateKWh(positive(lim), uLim, dt)
	injectedKWh := timeseries.IntegrateKWh(positive(grid), uGrid, dt)
	potentialKWh := injectedKWh + lostKWh
	totalHours := float64(f.Len()) * dt

	groups := timeseries.GroupByMonth(f.Index)
	monthly := make([]MonthlyGridLimit, 0, len(groups))
	monthlyInjected := make([]float64, len(groups))
	for i, g := range groups {
		mLim := timeseries.Pick(lim, g.Rows)
		lost := timeseries.IntegrateKWh(positive(mLim), uLim, dt)
		inj := timeseries.IntegrateKWh(positive(timeseries.Pick(grid, g.Rows)), uGrid, dt)
		monthlyInjected[i] = inj
		monthly = append(monthly, MonthlyGridLimit{
			MonthName:    g.Name(),
			LostKWh:      timeseries.Float(lost),
			LostPct:      timeseries.Float(pct(lost, lost+inj)),
			HoursLimited: timeseries.Float(float64(countIf(mLim, isPositive)) * dt),
			InjectedKWh:  timeseries.Float(inj),
		})
	}

	summary := &GridLimitSummary{
		Timestep:     step,
		LostKWh:      timeseries.Float(lostKWh),
		InjectedKWh:  timeseries.Float(injectedKWh),
		PotentialKWh: timeseries.Float(potentialKWh),
		LostPct:      timeseries.Float(pct(lostKWh, potentialKWh)),
		HoursLimited: timeseries.Float(float64(countIf(lim, isPositive)) * dt),
		TotalHours:   timeseries.Float(totalHours),
	}

	var monthlyLF []MonthlyLoadFactor
	if capKW, ok := capacityKW(c.Options); ok {
		summary.GridCapacityKW = &capKW
	}
	if capKW, ok := capacityKW(c.Options); ok && totalHours > 0 {
		summary.AnnualLoadFactor = timeseries.FloatPtr(injectedKWh / (capKW * totalHours))
		monthlyLF = monthlyLoadFactors(groups, monthlyInjected, capKW, dt)
	}

	c.Results.GridLimit = &GridLimitResult{
		Availability:      Availability{Available: true},
		Summary:           summary,
		Monthly:           monthly,
		MonthlyLoadFactor: monthlyLF,
	}
}

// monthlyLoadFactors divides each month's energy by capacity × hours.
func monthlyLoadFactors(groups []timeseries.MonthGroup, energyKWh []float64, capKW, dt float64) []MonthlyLoadFactor {
	out := make([]MonthlyLoadFactor, len(groups))
	for i, g := range groups {
		hours := float64(len(g.Rows)) * dt
		lf := 0.0
		if hours > 0 {
			lf = energyKWh[i] / (capKW * hours)
		}
		out[i] = MonthlyLoadFactor{
			MonthName:  g.Name(),
			LoadFactor: timeseries.Float(lf),
			EnergyKWh:  timeseries.Float(energyKWh[i]),
		}
	}
	return out
}
