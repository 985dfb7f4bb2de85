package production

import (
	"time"

	"pvinsight/internal/timeseries"
)

// boundaryFrame spans 31 January 20:00 to 1 February 03:00, hourly.
func boundaryFrame() *timeseries.Frame {
	start := time.Date(2023, 1, 31, 20, 0, 0, 0, time.UTC)
	index := make([]time.Time, 8)
	for i := range index {
		index[i] = start.Add(time.Duration(i) * time.Hour)
	}
	f := timeseries.NewFrame(index)
	f.MustSet("E_Grid", []float64{-2, -1, 0, 100, 600, 800, 300, -3})
	f.MustSet("EOutInv", []float64{0, 0, 0, 100, 500, 500, 300, 0})
	f.MustSet("IL_Pmax", []float64{0, 0, 0, 0, 100, 300, 0, 0})
	f.MustSet("EGrdLim", []float64{0, 0, 0, 0, 50, 150, 0, 0})
	f.MustSet("EApGrid", []float64{0, 0, 0, 110, 650, 850, 320, 0})
	f.MustSet("EReGrid", []float64{0, 0, 0, 20, 100, 120, 40, 0})
	return f
}

func newTestContext(f *timeseries.Frame, opts Options) *Context {
	return &Context{
		InputFile: "test.csv",
		GeneralInfo: map[string]string{
			"Project_code": "Demo",
		},
		Units: map[string]string{
			"E_Grid":  "kW",
			"EOutInv": "kW",
			"IL_Pmax": "kW",
			"EGrdLim": "kW",
			"EApGrid": "kVA",
			"EReGrid": "kvar",
		},
		Frame:   f,
		Options: opts.Normalize(),
	}
}

func capacity(v float64) *float64 { return &v }

func floats(vs []timeseries.Float) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = float64(v)
	}
	return out
}
